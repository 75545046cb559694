// Package config loads the synthesis settings from defaults, a YAML config
// file, SCRIPTDB_* environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/vitebski/scriptdb/internal/accessor"
	"github.com/vitebski/scriptdb/internal/merge"
	"github.com/vitebski/scriptdb/internal/naming"
	"github.com/vitebski/scriptdb/pkg/models"
)

const envPrefix = "SCRIPTDB"

// Config holds the application configuration.
type Config struct {
	Dialect    string           `mapstructure:"dialect"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Naming     NamingConfig     `mapstructure:"naming"`
	Merge      MergeConfig      `mapstructure:"merge"`
	Accessor   AccessorConfig   `mapstructure:"accessor"`
	Output     OutputConfig     `mapstructure:"output"`
	Generation GenerationConfig `mapstructure:"generation"`
}

// CatalogConfig selects what is read from the catalog.
type CatalogConfig struct {
	Schema      string `mapstructure:"schema"`
	Table       string `mapstructure:"table"`
	TablePrefix string `mapstructure:"table_prefix"`
	Routine     string `mapstructure:"routine"`
}

// NamingConfig holds naming overrides.
type NamingConfig struct {
	PluralExceptions []string `mapstructure:"plural_exceptions"`
}

// MergeConfig holds the merge procedure settings.
type MergeConfig struct {
	AdditionalJoinColumns []string `mapstructure:"additional_join_columns"`
	SkipUpdateColumns     []string `mapstructure:"skip_update_columns"`
	WithDrops             bool     `mapstructure:"with_drops"`
}

// ReplacementField binds a stub parameter to a server-side expression.
// Kept as a list rather than a map so field names keep their case.
type ReplacementField struct {
	Field      string `mapstructure:"field"`
	Expression string `mapstructure:"expression"`
}

// AccessorConfig holds the data-access and controller stub settings.
type AccessorConfig struct {
	SkipFields           []string               `mapstructure:"skip_fields"`
	ReplacementFields    []ReplacementField     `mapstructure:"replacement_fields"`
	RouteStripSuffixes   []string               `mapstructure:"route_strip_suffixes"`
	NamespaceRules       []naming.NamespaceRule `mapstructure:"namespace_rules"`
	GetterNamespace      string                 `mapstructure:"getter_namespace"`
	SetterNamespace      string                 `mapstructure:"setter_namespace"`
	TableSetterNamespace string                 `mapstructure:"table_setter_namespace"`
}

// OutputConfig holds the output directory and per-stream file names.
type OutputConfig struct {
	Dir   string      `mapstructure:"dir"`
	Files OutputFiles `mapstructure:"files"`
}

// OutputFiles names the file written for each stream.
type OutputFiles struct {
	DataDefinition string `mapstructure:"data_definition"`
	DataAccess     string `mapstructure:"data_access"`
	Controller     string `mapstructure:"controller"`
	Samples        string `mapstructure:"samples"`
}

// GenerationConfig holds run settings.
type GenerationConfig struct {
	Workers int   `mapstructure:"workers"`
	Samples int   `mapstructure:"samples"`
	Seed    int64 `mapstructure:"seed"`
}

// flagKeys maps command line flag names to their config keys. Flags not
// listed here (connection, logging) are read directly by the command.
var flagKeys = map[string]string{
	"dialect":      "dialect",
	"schema":       "catalog.schema",
	"table":        "catalog.table",
	"table-prefix": "catalog.table_prefix",
	"routine":      "catalog.routine",
	"out":          "output.dir",
	"with-drops":   "merge.with_drops",
	"workers":      "generation.workers",
	"samples":      "generation.samples",
	"seed":         "generation.seed",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dialect", "sqlserver")

	v.SetDefault("catalog.schema", "")
	v.SetDefault("catalog.table", "")
	v.SetDefault("catalog.table_prefix", "")
	v.SetDefault("catalog.routine", "")

	v.SetDefault("naming.plural_exceptions", []string{})

	v.SetDefault("merge.additional_join_columns", []string{})
	v.SetDefault("merge.skip_update_columns", []string{"CreatedBy", "CreatedDatetime"})
	v.SetDefault("merge.with_drops", false)

	v.SetDefault("accessor.skip_fields", []string{"username"})
	v.SetDefault("accessor.replacement_fields", []map[string]interface{}{
		{"field": "username", "expression": "Security.GetUsername()"},
	})
	v.SetDefault("accessor.route_strip_suffixes", []string{"List"})
	v.SetDefault("accessor.namespace_rules", []map[string]interface{}{
		{"contains": "transaction", "namespace": "Models.Transaction"},
	})
	v.SetDefault("accessor.getter_namespace", "Models.ReferentialData")
	v.SetDefault("accessor.setter_namespace", "Models.Transaction")
	v.SetDefault("accessor.table_setter_namespace", "Models.Unknown")

	v.SetDefault("output.dir", ".")
	v.SetDefault("output.files.data_definition", "SQLStatementFile.sql")
	v.SetDefault("output.files.data_access", "DataAccessMethodsFile.cs")
	v.SetDefault("output.files.controller", "ControllerMethodsFile.cs")
	v.SetDefault("output.files.samples", "SampleScripts.sql")

	v.SetDefault("generation.workers", 4)
	v.SetDefault("generation.samples", 0)
	v.SetDefault("generation.seed", 1)
}

// Load loads configuration with the following precedence:
// 1. Command line flags (only those explicitly set)
// 2. Environment variables (SCRIPTDB_CATALOG_SCHEMA, SCRIPTDB_GENERATION_WORKERS, ...)
// 3. Config file (cfgPath, or scriptdb.yaml in the working directory)
// 4. Default values
func Load(cfgPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.SetConfigName("scriptdb")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if cfgPath != "" {
			return nil, fmt.Errorf("failed to read config file %q: %w", cfgPath, err)
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		bindChangedFlags(v, flags)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// bindChangedFlags copies only explicitly-set flags into viper,
// preserving precedence: flags > env > file > defaults.
func bindChangedFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.Visit(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return
		}

		switch f.Value.Type() {
		case "string":
			val, _ := flags.GetString(f.Name)
			v.Set(key, val)
		case "int":
			val, _ := flags.GetInt(f.Name)
			v.Set(key, val)
		case "int64":
			val, _ := flags.GetInt64(f.Name)
			v.Set(key, val)
		case "bool":
			val, _ := flags.GetBool(f.Name)
			v.Set(key, val)
		default:
			v.Set(key, f.Value.String())
		}
	})
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	if c.Generation.Workers < 0 {
		return fmt.Errorf("generation.workers must not be negative, got %d", c.Generation.Workers)
	}
	if c.Generation.Samples < 0 {
		return fmt.Errorf("generation.samples must not be negative, got %d", c.Generation.Samples)
	}
	if strings.TrimSpace(c.Output.Dir) == "" {
		return errors.New("output.dir must not be empty")
	}
	for stream, name := range c.OutputNames() {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("output file name for the %s stream must not be empty", stream)
		}
	}
	for _, rule := range c.Accessor.NamespaceRules {
		if rule.Contains == "" || rule.Namespace == "" {
			return fmt.Errorf("accessor.namespace_rules entries need both contains and namespace, got %+v", rule)
		}
	}
	for _, r := range c.Accessor.ReplacementFields {
		if r.Field == "" {
			return fmt.Errorf("accessor.replacement_fields entry has no field: %+v", r)
		}
	}
	return nil
}

// OutputNames returns the file name of each stream.
func (c *Config) OutputNames() map[models.Stream]string {
	return map[models.Stream]string{
		models.DataDefinition: c.Output.Files.DataDefinition,
		models.DataAccess:     c.Output.Files.DataAccess,
		models.Controller:     c.Output.Files.Controller,
		models.Samples:        c.Output.Files.Samples,
	}
}

// MergeSynthesizer builds the merge synthesizer from the merge settings.
func (c *Config) MergeSynthesizer() *merge.Synthesizer {
	return merge.NewSynthesizer(c.Merge.AdditionalJoinColumns, c.Merge.SkipUpdateColumns)
}

// AccessorSynthesizer builds the accessor synthesizer from the naming and
// accessor settings.
func (c *Config) AccessorSynthesizer() *accessor.Synthesizer {
	replacements := make(map[string]string, len(c.Accessor.ReplacementFields))
	for _, r := range c.Accessor.ReplacementFields {
		replacements[r.Field] = r.Expression
	}
	return &accessor.Synthesizer{
		PluralExceptions:     c.Naming.PluralExceptions,
		SkipFields:           c.Accessor.SkipFields,
		ReplacementFields:    replacements,
		RouteSuffixes:        c.Accessor.RouteStripSuffixes,
		NamespaceRules:       c.Accessor.NamespaceRules,
		GetterNamespace:      c.Accessor.GetterNamespace,
		SetterNamespace:      c.Accessor.SetterNamespace,
		TableSetterNamespace: c.Accessor.TableSetterNamespace,
	}
}
