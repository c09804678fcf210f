package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/microsoft/go-mssqldb"         // SQL Server driver
	_ "github.com/microsoft/go-mssqldb/azuread" // Azure AD support
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdb/pkg/adapters/datasource"
)

// driverName is the name go-mssqldb registers for plain SQL Server connections.
const driverName = "sqlserver"

// Adapter owns the shared connection pool to the target database.
type Adapter struct {
	config *Config
	db     *sql.DB
	logger *zap.Logger
}

// Open creates the connection pool, applies the pool limits and verifies
// the database is reachable.
func Open(ctx context.Context, cfg *Config, logger *zap.Logger) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var (
		db  *sql.DB
		err error
	)
	switch cfg.AuthMethod {
	case "", AuthMethodSQL:
		db, err = sql.Open(driverName, buildSQLAuthDSN(cfg))
	case AuthMethodServicePrincipal:
		db, err = sql.Open("azuresql", buildServicePrincipalDSN(cfg))
	default:
		return nil, fmt.Errorf("unsupported auth method: %s", cfg.AuthMethod)
	}
	if err != nil {
		return nil, fmt.Errorf("open connection: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	adapter := NewAdapterWithDB(cfg, db, logger)
	if err := adapter.TestConnection(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connection test failed: %w", err)
	}

	adapter.logger.Info("Connected to SQL Server",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
		zap.String("auth_method", cfg.AuthMethod))

	return adapter, nil
}

// NewAdapterWithDB wraps an existing pool. Used by tests with sqlmock.
func NewAdapterWithDB(cfg *Config, db *sql.DB, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		config: cfg,
		db:     db,
		logger: logger.Named("mssql"),
	}
}

// buildSQLAuthDSN builds a sqlserver:// URL for SQL Server authentication.
func buildSQLAuthDSN(cfg *Config) string {
	query := connectionOptions(cfg)

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		RawQuery: query.Encode(),
	}
	return u.String()
}

// buildServicePrincipalDSN builds a sqlserver:// URL for the azuresql driver
// using Azure AD client credentials.
func buildServicePrincipalDSN(cfg *Config) string {
	query := connectionOptions(cfg)
	query.Add("fedauth", "ActiveDirectoryServicePrincipal")
	query.Add("user id", cfg.ClientID+"@"+cfg.TenantID)
	query.Add("password", cfg.ClientSecret)

	u := &url.URL{
		Scheme:   "sqlserver",
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		RawQuery: query.Encode(),
	}
	return u.String()
}

func connectionOptions(cfg *Config) url.Values {
	query := url.Values{}
	query.Add("database", cfg.Database)
	query.Add("app name", "ekaya-askdb")

	if cfg.Encrypt {
		query.Add("encrypt", "true")
	} else {
		query.Add("encrypt", "false")
	}
	if cfg.TrustServerCertificate {
		query.Add("TrustServerCertificate", "true")
	}
	if cfg.ConnectionTimeout > 0 {
		query.Add("connection timeout", fmt.Sprintf("%d", cfg.ConnectionTimeout))
	}
	return query
}

// TestConnection verifies the database is reachable with valid credentials.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	var result int
	if err := a.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("test query failed: %w", err)
	}

	return nil
}

// Close releases the connection pool.
func (a *Adapter) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

// DB returns the underlying pool for the schema discoverer and query executor.
func (a *Adapter) DB() *sql.DB {
	return a.db
}

// Ensure Adapter implements ConnectionTester at compile time.
var _ datasource.ConnectionTester = (*Adapter)(nil)
