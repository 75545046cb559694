package connector

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/microsoft/go-mssqldb"
	"github.com/sirupsen/logrus"
)

// Dialect identifies the catalog flavour being read
type Dialect string

const (
	SQLServer Dialect = "sqlserver"
	MySQL     Dialect = "mysql"
)

// ParseDialect resolves a dialect name, defaulting to SQL Server when empty
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sqlserver", "mssql":
		return SQLServer, nil
	case "mysql":
		return MySQL, nil
	default:
		return "", fmt.Errorf("unsupported dialect %q (expected sqlserver or mysql)", name)
	}
}

// DefaultPort returns the usual listening port for the dialect
func (d Dialect) DefaultPort() string {
	if d == MySQL {
		return "3306"
	}
	return "1433"
}

// DefaultSchema returns the schema generation reads when none is configured.
// MySQL has no schemas inside a database, so the database name is used.
func (d Dialect) DefaultSchema(database string) string {
	if d == MySQL {
		return database
	}
	return "dbo"
}

// DatabaseConnector handles database connection and query execution
type DatabaseConnector struct {
	Dialect  Dialect
	Host     string
	User     string
	Password string
	Database string
	Port     string
	DB       *sql.DB
	Logger   *logrus.Logger
}

// NewDatabaseConnector creates a new database connector
func NewDatabaseConnector(dialect Dialect, host, user, password, database, port string, logger *logrus.Logger) *DatabaseConnector {
	if dialect == "" {
		dialect = SQLServer
	}
	if host == "" {
		host = getEnvOrDefault("SCRIPTDB_HOST", "localhost")
	}
	if user == "" {
		user = getEnvOrDefault("SCRIPTDB_USER", defaultUser(dialect))
	}
	if password == "" {
		password = getEnvOrDefault("SCRIPTDB_PASSWORD", "")
	}
	if database == "" {
		database = getEnvOrDefault("SCRIPTDB_DATABASE", "")
	}
	if port == "" {
		port = getEnvOrDefault("SCRIPTDB_PORT", dialect.DefaultPort())
	}

	return &DatabaseConnector{
		Dialect:  dialect,
		Host:     host,
		User:     user,
		Password: password,
		Database: database,
		Port:     port,
		Logger:   logger,
	}
}

func defaultUser(dialect Dialect) string {
	if dialect == MySQL {
		return "root"
	}
	return "sa"
}

// DSN builds the driver connection string for the configured dialect
func (dc *DatabaseConnector) DSN() string {
	addr := net.JoinHostPort(dc.Host, dc.Port)
	if dc.Dialect == MySQL {
		cfg := mysql.NewConfig()
		cfg.User = dc.User
		cfg.Passwd = dc.Password
		cfg.Net = "tcp"
		cfg.Addr = addr
		cfg.DBName = dc.Database
		cfg.ParseTime = true
		return cfg.FormatDSN()
	}

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(dc.User, dc.Password),
		Host:     addr,
		RawQuery: url.Values{"database": {dc.Database}}.Encode(),
	}
	return u.String()
}

// Connect establishes a connection to the catalog database
func (dc *DatabaseConnector) Connect(ctx context.Context) error {
	if dc.Database == "" {
		return fmt.Errorf("database name must be provided either as an argument or as SCRIPTDB_DATABASE environment variable")
	}

	db, err := sql.Open(string(dc.Dialect), dc.DSN())
	if err != nil {
		dc.Logger.Errorf("Error connecting to %s database: %v", dc.Dialect, err)
		return err
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		dc.Logger.Errorf("Error pinging %s database: %v", dc.Dialect, err)
		db.Close()
		return err
	}

	dc.DB = db
	dc.Logger.Infof("Connected to %s database: %s", dc.Dialect, dc.Database)
	return nil
}

// Disconnect closes the database connection
func (dc *DatabaseConnector) Disconnect() {
	if dc.DB != nil {
		err := dc.DB.Close()
		if err != nil {
			dc.Logger.Errorf("Error closing database connection: %v", err)
		} else {
			dc.Logger.Infof("%s connection closed", dc.Dialect)
		}
	}
}

// ExecuteQuery executes a SQL query and returns each row keyed by column name
func (dc *DatabaseConnector) ExecuteQuery(ctx context.Context, query string, params ...interface{}) ([]map[string]interface{}, error) {
	if dc.DB == nil {
		if err := dc.Connect(ctx); err != nil {
			return nil, err
		}
	}

	rows, err := dc.DB.QueryContext(ctx, query, params...)
	if err != nil {
		dc.Logger.Errorf("Error executing query: %v", err)
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		dc.Logger.Errorf("Error getting columns: %v", err)
		return nil, err
	}

	var results []map[string]interface{}

	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range columns {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			dc.Logger.Errorf("Error scanning row: %v", err)
			return nil, err
		}

		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			// Drivers hand text back as []byte
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}

		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		dc.Logger.Errorf("Error iterating rows: %v", err)
		return nil, err
	}

	return results, nil
}

// getEnvOrDefault gets an environment variable or returns a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
