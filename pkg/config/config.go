package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for ekaya-askdb.
// Configuration can come from a YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3480"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	// RequestTimeout bounds one /api/ask request end to end.
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT" env-default:"60s"`

	// TrustProxy takes the client address from X-Forwarded-For.
	TrustProxy bool `yaml:"trust_proxy" env:"TRUST_PROXY" env-default:"false"`

	// Target SQL Server database that questions are answered from
	Datasource DatasourceConfig `yaml:"datasource"`

	// Language model used for SQL generation
	LLM LLMConfig `yaml:"llm"`

	Schema   SchemaConfig   `yaml:"schema"`
	Fallback FallbackConfig `yaml:"fallback"`
	Audit    AuditConfig    `yaml:"audit"`

	// Database configuration (PostgreSQL), used only when Audit.Persist is set
	Database DatabaseConfig `yaml:"database"`

	MCP MCPConfig `yaml:"mcp"`
}

// DatasourceConfig holds the SQL Server connection settings.
type DatasourceConfig struct {
	Host     string `yaml:"host" env:"MSSQL_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"MSSQL_PORT" env-default:"1433"`
	Database string `yaml:"database" env:"MSSQL_DATABASE" env-default:""`

	// AuthMethod is "sql" or "service_principal"
	AuthMethod   string `yaml:"auth_method" env:"MSSQL_AUTH_METHOD" env-default:"sql"`
	User         string `yaml:"user" env:"MSSQL_USER" env-default:""`
	Password     string `yaml:"-" env:"MSSQL_PASSWORD"` // Secret - not in YAML
	TenantID     string `yaml:"tenant_id" env:"MSSQL_TENANT_ID" env-default:""`
	ClientID     string `yaml:"client_id" env:"MSSQL_CLIENT_ID" env-default:""`
	ClientSecret string `yaml:"-" env:"MSSQL_CLIENT_SECRET"` // Secret - not in YAML

	Encrypt                bool `yaml:"encrypt" env:"MSSQL_ENCRYPT" env-default:"true"`
	TrustServerCertificate bool `yaml:"trust_server_certificate" env:"MSSQL_TRUST_SERVER_CERTIFICATE" env-default:"false"`
	ConnectionTimeout      int  `yaml:"connection_timeout" env:"MSSQL_CONNECTION_TIMEOUT" env-default:"30"` // seconds

	MaxOpenConns    int           `yaml:"max_open_conns" env:"MSSQL_MAX_OPEN_CONNS" env-default:"10"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MSSQL_MAX_IDLE_CONNS" env-default:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"MSSQL_CONN_MAX_LIFETIME" env-default:"30m"`

	// QueryTimeout bounds one query execution.
	QueryTimeout time.Duration `yaml:"query_timeout" env:"MSSQL_QUERY_TIMEOUT" env-default:"30s"`
	// MaxRows caps the rows returned per query.
	MaxRows int `yaml:"max_rows" env:"MSSQL_MAX_ROWS" env-default:"1000"`
}

// LLMConfig holds the language model endpoint settings.
type LLMConfig struct {
	// Provider is "openai" (any OpenAI-compatible endpoint) or "anthropic".
	Provider    string        `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`
	Endpoint    string        `yaml:"endpoint" env:"LLM_ENDPOINT" env-default:"https://api.openai.com/v1"`
	Model       string        `yaml:"model" env:"LLM_MODEL" env-default:"gpt-4o-mini"`
	APIKey      string        `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
	Temperature float64       `yaml:"temperature" env:"LLM_TEMPERATURE" env-default:"0"`
	MaxTokens   int           `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"500"`
	Timeout     time.Duration `yaml:"timeout" env:"LLM_TIMEOUT" env-default:"30s"`

	// Circuit breaker around the model client
	BreakerThreshold  int           `yaml:"breaker_threshold" env:"LLM_BREAKER_THRESHOLD" env-default:"5"`
	BreakerResetAfter time.Duration `yaml:"breaker_reset_after" env:"LLM_BREAKER_RESET_AFTER" env-default:"30s"`
}

// SchemaConfig controls schema introspection.
type SchemaConfig struct {
	SampleRows int           `yaml:"sample_rows" env:"SCHEMA_SAMPLE_ROWS" env-default:"3"`
	CacheTTL   time.Duration `yaml:"cache_ttl" env:"SCHEMA_CACHE_TTL" env-default:"5m"`
	Timeout    time.Duration `yaml:"timeout" env:"SCHEMA_TIMEOUT" env-default:"30s"`

	// DegradeToStatic answers from the static schema when live
	// introspection fails, instead of failing the request.
	DegradeToStatic bool `yaml:"degrade_to_static" env:"SCHEMA_DEGRADE_TO_STATIC" env-default:"false"`

	// StaticPath is an optional YAML description replacing the built-in static schema.
	StaticPath string `yaml:"static_path" env:"SCHEMA_STATIC_PATH" env-default:""`
}

// FallbackConfig controls the deterministic fallback rules.
type FallbackConfig struct {
	// RulesPath is an optional YAML file of rules evaluated before the built-in ones.
	RulesPath string `yaml:"rules_path" env:"FALLBACK_RULES_PATH" env-default:""`
}

// AuditConfig controls where execution records go. They are always logged.
type AuditConfig struct {
	// Persist also writes records to PostgreSQL.
	Persist bool `yaml:"persist" env:"AUDIT_PERSIST" env-default:"false"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host            string        `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port            int           `yaml:"port" env:"PGPORT" env-default:"5432"`
	User            string        `yaml:"user" env:"PGUSER" env-default:"askdb"`
	Password        string        `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database        string        `yaml:"database" env:"PGDATABASE" env-default:"askdb"`
	MaxConnections  int32         `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" env:"PGMAX_CONN_LIFETIME" env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"PGMAX_CONN_IDLE_TIME" env-default:"10m"`
	SSLMode         string        `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// MCPConfig controls the MCP endpoint.
type MCPConfig struct {
	Enabled bool `yaml:"enabled" env:"MCP_ENABLED" env-default:"true"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// A missing config.yaml is not an error; defaults and environment are used.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	return LoadFile("config.yaml", version)
}

// LoadFile is Load with an explicit config file path.
func LoadFile(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.validateTLS(); err != nil {
		return nil, fmt.Errorf("invalid TLS configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Auto-derive BaseURL from Port if not explicitly set
	// Use HTTPS scheme if TLS is configured
	if cfg.BaseURL == "" {
		scheme := "http"
		if cfg.TLSCertPath != "" {
			scheme = "https"
		}
		cfg.BaseURL = (&url.URL{
			Scheme: scheme,
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Datasource.Database) == "" {
		return fmt.Errorf("datasource.database is required")
	}
	switch c.Datasource.AuthMethod {
	case "sql":
	case "service_principal":
		if c.Datasource.TenantID == "" || c.Datasource.ClientID == "" || c.Datasource.ClientSecret == "" {
			return fmt.Errorf("service_principal auth requires tenant_id, client_id and MSSQL_CLIENT_SECRET")
		}
	default:
		return fmt.Errorf("unknown datasource.auth_method %q", c.Datasource.AuthMethod)
	}

	switch strings.ToLower(c.LLM.Provider) {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unknown llm.provider %q", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}

	if c.Schema.SampleRows < 0 || c.Schema.SampleRows > 5 {
		return fmt.Errorf("schema.sample_rows must be between 0 and 5, got %d", c.Schema.SampleRows)
	}
	if c.Datasource.MaxRows <= 0 {
		return fmt.Errorf("datasource.max_rows must be positive")
	}
	return nil
}

// validateTLS ensures TLS configuration is valid if provided.
// Both cert and key must be provided together, and files must exist.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	// Readability is checked by tls.LoadX509KeyPair at startup
	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}

	return nil
}

// ConnectionString returns a PostgreSQL connection URL.
func (c *DatabaseConfig) ConnectionString() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", ResolveHostForDocker(c.Host), c.Port),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	return u.String()
}
