package utils

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/vitebski/scriptdb/internal/accessor"
	"github.com/vitebski/scriptdb/internal/analyzer"
	"github.com/vitebski/scriptdb/internal/naming"
	"github.com/vitebski/scriptdb/pkg/models"
)

// connectionVars are the environment variables read for the catalog connection
var connectionVars = []string{
	"SCRIPTDB_DIALECT",
	"SCRIPTDB_HOST",
	"SCRIPTDB_PORT",
	"SCRIPTDB_USER",
	"SCRIPTDB_PASSWORD",
	"SCRIPTDB_DATABASE",
}

// SetupLogging configures the logging system. The level comes from the
// flag, then SCRIPTDB_LOG_LEVEL, then defaults to info.
func SetupLogging(logLevel string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logger.SetOutput(os.Stdout)

	levelStr := logLevel
	if levelStr == "" {
		levelStr = os.Getenv("SCRIPTDB_LOG_LEVEL")
	}

	level := logrus.InfoLevel
	if levelStr != "" {
		parsed, err := logrus.ParseLevel(levelStr)
		if err != nil {
			logger.Warningf("Unknown log level %q, using %s", levelStr, level)
		} else {
			level = parsed
		}
	}
	logger.SetLevel(level)

	logger.Debugf("Logging at level %s", level)
	return logger
}

// LoadEnvironmentVariables loads connection settings from an env file when
// one exists. Variables already set in the environment win. It reports
// whether host, user and database are all known afterwards.
func LoadEnvironmentVariables(envFile string, logger *logrus.Logger) bool {
	if _, err := os.Stat(envFile); err != nil {
		logger.Debugf("No env file at %s, using the process environment", envFile)
	} else if err := godotenv.Load(envFile); err != nil {
		logger.Warningf("Could not load env file %s: %v", envFile, err)
	} else {
		logger.Infof("Loaded connection settings from %s", envFile)
	}

	LogConnectionSettings(logger)

	var missing []string
	for _, name := range []string{"SCRIPTDB_HOST", "SCRIPTDB_USER", "SCRIPTDB_DATABASE"} {
		if os.Getenv(name) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		logger.Debugf("Not set in the environment: %s (flags may still supply them)", strings.Join(missing, ", "))
		return false
	}
	return true
}

// LogConnectionSettings logs the connection variables at debug level with
// the password masked
func LogConnectionSettings(logger *logrus.Logger) {
	if !logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	for _, name := range connectionVars {
		value, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		if name == "SCRIPTDB_PASSWORD" && value != "" {
			value = "********"
		}
		logger.WithField("variable", name).Debugf("connection setting: %s", value)
	}
}

// PrintSummary prints a summary of the generation run
func PrintSummary(summary models.GenerationSummary, failures []*models.EntityError, written []string) {
	fmt.Println("\n" + strings.Repeat("=", 50))
	fmt.Println("SCRIPT GENERATION SUMMARY")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Total tables processed: %d\n", summary.Tables)
	fmt.Printf("Tables scripted: %d\n", len(summary.SuccessfulTables))
	fmt.Printf("Tables skipped (no primary key): %d\n", len(summary.SkippedTables))
	fmt.Printf("Failed tables: %d\n", len(summary.FailedTables))
	fmt.Printf("Total routines processed: %d\n", summary.Routines)
	fmt.Printf("Failed routines: %d\n", len(summary.FailedRoutines))

	if len(failures) > 0 {
		fmt.Println("\nFailures:")
		for _, failure := range failures {
			fmt.Printf("  - %s\n", failure)
		}
	}

	if len(written) > 0 {
		fmt.Println("\nFiles written:")
		for _, path := range written {
			fmt.Printf("  - %s\n", path)
		}
	}

	fmt.Println(strings.Repeat("=", 50))
}

// ValidateConnectionParams checks the resolved connection parameters and
// returns every problem found. An empty password only warns.
func ValidateConnectionParams(host, user, password, database, port string, logger *logrus.Logger) error {
	var errs []error
	if host == "" {
		errs = append(errs, errors.New("database host is required"))
	}
	if user == "" {
		errs = append(errs, errors.New("database user is required"))
	}
	if database == "" {
		errs = append(errs, errors.New("database name is required"))
	}
	if n, err := strconv.Atoi(port); err != nil || n <= 0 || n > 65535 {
		errs = append(errs, fmt.Errorf("invalid port number: %q", port))
	}
	if password == "" {
		logger.Warning("Database password is empty")
	}
	return errors.Join(errs...)
}

// TableCategories splits tables into those without foreign keys, those
// with foreign keys outside any cycle, and those without a primary key
func TableCategories(snapshot *models.SchemaSnapshot, circularTables map[string]bool) (standalone, dependent, keyless []string) {
	for _, table := range snapshot.Tables {
		if len(table.PrimaryKeyColumns()) == 0 {
			keyless = append(keyless, table.Name)
		}
		if circularTables[table.Name] {
			continue
		}
		if len(table.ForeignKeys) == 0 {
			standalone = append(standalone, table.Name)
		} else {
			dependent = append(dependent, table.Name)
		}
	}
	return standalone, dependent, keyless
}

// DescribeRoutine renders one line of the routine report: the stub it
// would produce, or why it cannot be produced
func DescribeRoutine(routine *models.RoutineDefinition, synthesizer *accessor.Synthesizer) string {
	a, err := synthesizer.Routine(routine)
	if err != nil {
		return fmt.Sprintf("%s (skipped: %v)", routine.Name, err)
	}
	return fmt.Sprintf("%s -> %s %s(%s) [%s]", routine.Name, a.Shape.ReturnType(), a.Method, a.Typed(), a.Route)
}

// PrintSchemaAnalysis prints a detailed analysis of the database schema
func PrintSchemaAnalysis(schemaAnalyzer *analyzer.SchemaAnalyzer, synthesizer *accessor.Synthesizer) {
	snapshot := schemaAnalyzer.Snapshot
	if snapshot == nil {
		snapshot = &models.SchemaSnapshot{Schema: schemaAnalyzer.Schema}
	}

	// Get sync order and circular dependencies
	orderedTables, circularTables := schemaAnalyzer.SyncOrder()
	standaloneTables, dependentTables, keylessTables := TableCategories(snapshot, circularTables)

	var setters, getters, unclassified int
	for _, routine := range snapshot.Routines {
		switch naming.ClassifyVerb(routine.Name) {
		case naming.VerbSet:
			setters++
		case naming.VerbGet:
			getters++
		default:
			unclassified++
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("DATABASE SCHEMA ANALYSIS REPORT")
	fmt.Println(strings.Repeat("=", 80))

	// Basic statistics
	fmt.Println("\n1. BASIC STATISTICS")
	fmt.Printf("   Schema: %s\n", snapshot.Schema)
	fmt.Printf("   Total tables: %d\n", len(snapshot.Tables))
	fmt.Printf("   Total routines: %d (set: %d, get: %d, unclassified: %d)\n",
		len(snapshot.Routines), setters, getters, unclassified)
	fmt.Printf("   Tables with foreign keys: %d\n", len(dependentTables)+len(circularTables))
	fmt.Printf("   Tables without a primary key: %d\n", len(keylessTables))
	fmt.Printf("   Tables in circular dependencies: %d\n", len(circularTables))

	fmt.Println("\n2. TABLE CATEGORIES")
	fmt.Printf("   Standalone tables (no foreign keys): %d\n", len(standaloneTables))
	fmt.Printf("   Dependent tables (with foreign keys, no circular deps): %d\n", len(dependentTables))
	fmt.Printf("   Tables in circular dependencies: %d\n", len(circularTables))
	if len(keylessTables) > 0 {
		fmt.Printf("   Tables that will get no merge procedure: %s\n", strings.Join(keylessTables, ", "))
	}

	// Circular dependencies
	if len(schemaAnalyzer.CircularGroups) > 0 {
		fmt.Println("\n3. CIRCULAR DEPENDENCIES")
		fmt.Printf("   Total tables involved: %d\n", len(circularTables))
		for _, group := range schemaAnalyzer.CircularGroups {
			fmt.Printf("     %s\n", strings.Join(group, " <-> "))
		}
	}

	fmt.Println("\n4. ROUTINES")
	for i := range snapshot.Routines {
		fmt.Printf("   %3d. %s\n", i+1, DescribeRoutine(&snapshot.Routines[i], synthesizer))
	}

	// Sync order
	fmt.Println("\n5. RECOMMENDED SYNC ORDER")
	for i, table := range orderedTables {
		category := "Standalone"
		if circularTables[table] {
			category = "Circular"
		} else if t := snapshot.Table(table); t != nil && len(t.ForeignKeys) > 0 {
			category = "Dependent"
		}
		fmt.Printf("   %3d. %s (%s)\n", i+1, table, category)
	}

	fmt.Println("\n" + strings.Repeat("=", 80))
}
