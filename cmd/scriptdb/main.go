package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vitebski/scriptdb/internal/analyzer"
	"github.com/vitebski/scriptdb/internal/config"
	"github.com/vitebski/scriptdb/internal/connector"
	"github.com/vitebski/scriptdb/internal/generator"
	"github.com/vitebski/scriptdb/internal/output"
	"github.com/vitebski/scriptdb/internal/scripter"
	"github.com/vitebski/scriptdb/internal/utils"
)

func main() {
	var (
		host        string
		user        string
		password    string
		database    string
		port        string
		configFile  string
		envFile     string
		logLevel    string
		analyzeOnly bool
	)

	rootCmd := &cobra.Command{
		Use:   "scriptdb",
		Short: "Generate table sync procedures and C# data-access stubs from a database catalog",
		Long: `ScriptDB

Reads tables and stored procedures from a SQL Server (or MySQL) catalog and
writes table types with MERGE synchronization procedures, C# data-access
methods and Web API controller methods for them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Setup logging
			logger := utils.SetupLogging(logLevel)

			// Load environment variables
			utils.LoadEnvironmentVariables(envFile, logger)

			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}

			dialect, err := connector.ParseDialect(cfg.Dialect)
			if err != nil {
				return err
			}

			// Connection parameters fall back to SCRIPTDB_* variables
			db := connector.NewDatabaseConnector(dialect, host, user, password, database, port, logger)
			if err := utils.ValidateConnectionParams(db.Host, db.User, db.Password, db.Database, db.Port, logger); err != nil {
				return fmt.Errorf("invalid connection parameters: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			if err := db.Connect(ctx); err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer db.Disconnect()

			// Read the catalog
			schemaAnalyzer := analyzer.NewSchemaAnalyzer(db, cfg.Catalog.Schema, analyzer.Filter{
				Table:       cfg.Catalog.Table,
				TablePrefix: cfg.Catalog.TablePrefix,
				Routine:     cfg.Catalog.Routine,
			}, logger)
			snapshot, err := schemaAnalyzer.AnalyzeSchema(ctx)
			if err != nil {
				return fmt.Errorf("analyze schema: %w", err)
			}

			accessorSynthesizer := cfg.AccessorSynthesizer()

			// Print schema analysis
			utils.PrintSchemaAnalysis(schemaAnalyzer, accessorSynthesizer)

			// If analyze-only mode, exit here
			if analyzeOnly {
				logger.Info("Analyze-only mode, exiting without writing scripts")
				return nil
			}

			if len(snapshot.Tables) == 0 && len(snapshot.Routines) == 0 {
				logger.Warning("No tables or routines found in schema")
			}

			var samples *generator.SampleGenerator
			if cfg.Generation.Samples > 0 {
				samples = generator.NewSampleGenerator(cfg.Generation.Samples, cfg.Generation.Seed, logger)
			}

			s := scripter.NewScripter(
				cfg.MergeSynthesizer(),
				accessorSynthesizer,
				samples,
				cfg.Generation.Workers,
				cfg.Merge.WithDrops,
				logger,
			)

			logger.Info("Starting script generation...")
			result, runErr := s.Run(ctx, snapshot)
			if result == nil {
				return fmt.Errorf("script generation aborted: %w", runErr)
			}

			writer := output.NewWriter(cfg.Output.Dir, cfg.OutputNames(), logger)
			written, err := writer.Write(result.Streams)
			if err != nil {
				return fmt.Errorf("write output: %w", err)
			}

			// Print summary
			utils.PrintSummary(result.Summary, result.Failures, written)

			return runOutcome(result, runErr, logger)
		},
	}

	// Define flags
	rootCmd.Flags().StringVarP(&host, "host", "H", "", "Database host (default: localhost)")
	rootCmd.Flags().StringVarP(&user, "user", "u", "", "Database user (default: sa, or root for mysql)")
	rootCmd.Flags().StringVarP(&password, "password", "p", "", "Database password")
	rootCmd.Flags().StringVarP(&database, "database", "d", "", "Database name")
	rootCmd.Flags().StringVarP(&port, "port", "P", "", "Database port (default: 1433, or 3306 for mysql)")
	rootCmd.Flags().String("dialect", "sqlserver", "Catalog dialect (sqlserver, mysql)")
	rootCmd.Flags().String("schema", "", "Schema to read (default: dbo, or the database for mysql)")
	rootCmd.Flags().String("table", "", "Only script the named table")
	rootCmd.Flags().String("table-prefix", "", "Only script tables whose name starts with this prefix")
	rootCmd.Flags().String("routine", "", "Only script the named routine")
	rootCmd.Flags().StringP("out", "o", ".", "Output directory")
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to config file (default: ./scriptdb.yaml)")
	rootCmd.Flags().StringVarP(&envFile, "env-file", "e", ".env", "Path to .env file")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "Log level (debug, info, warn, error)")
	rootCmd.Flags().IntP("workers", "w", 4, "Number of tables and routines synthesized concurrently")
	rootCmd.Flags().Bool("with-drops", false, "Append drop statements after each table's procedure")
	rootCmd.Flags().IntP("samples", "s", 0, "Number of sample rows to script per table (0 disables)")
	rootCmd.Flags().Int64("seed", 1, "Seed for sample row values")
	rootCmd.Flags().BoolVarP(&analyzeOnly, "analyze-only", "a", false, "Only analyze the database schema without writing scripts")

	// Execute
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// runOutcome turns the per-entity failures of a run into the command's
// result. Tables skipped for a missing primary key only warn.
func runOutcome(result *scripter.Result, runErr error, logger *logrus.Logger) error {
	if runErr == nil {
		return nil
	}
	if result.Fatal() {
		return fmt.Errorf("script generation finished with errors: %w", runErr)
	}
	logger.Warningf("Script generation finished with warnings: %v", runErr)
	return nil
}
