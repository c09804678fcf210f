// Package app assembles the question-answering pipeline from configuration.
// The server and the command line tools share it so both run the same stack.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdb/pkg/adapters/datasource/mssql"
	"github.com/ekaya-inc/ekaya-askdb/pkg/audit"
	"github.com/ekaya-inc/ekaya-askdb/pkg/config"
	"github.com/ekaya-inc/ekaya-askdb/pkg/database"
	"github.com/ekaya-inc/ekaya-askdb/pkg/fallback"
	"github.com/ekaya-inc/ekaya-askdb/pkg/llm"
	"github.com/ekaya-inc/ekaya-askdb/pkg/metrics"
	"github.com/ekaya-inc/ekaya-askdb/pkg/models"
	"github.com/ekaya-inc/ekaya-askdb/pkg/prompts"
	"github.com/ekaya-inc/ekaya-askdb/pkg/repositories"
	"github.com/ekaya-inc/ekaya-askdb/pkg/retry"
	"github.com/ekaya-inc/ekaya-askdb/pkg/services"
)

// App holds the long-lived components built at startup.
type App struct {
	Datasource   *mssql.Adapter
	AuditDB      *database.DB // nil unless audit.persist is set
	Introspector services.SchemaIntrospector
	Audit        services.ExecutionAuditService
	Pipeline     services.QueryPipeline
}

// Options tune Build for the caller.
type Options struct {
	// Registerer receives the pipeline metrics. Nil disables metrics.
	Registerer prometheus.Registerer
	// RetryStartup retries the initial database connections with backoff.
	RetryStartup bool
}

// Build connects to SQL Server (and PostgreSQL when audit records are
// persisted) and wires the pipeline. Close must be called on success.
func Build(ctx context.Context, cfg *config.Config, opts Options, logger *zap.Logger) (*App, error) {
	a := &App{}

	staticSnapshot, err := loadStaticSnapshot(cfg)
	if err != nil {
		return nil, err
	}

	var rules []fallback.Rule
	if cfg.Fallback.RulesPath != "" {
		rules, err = fallback.LoadRules(cfg.Fallback.RulesPath)
		if err != nil {
			return nil, err
		}
		logger.Info("Loaded fallback rules",
			zap.String("path", cfg.Fallback.RulesPath),
			zap.Int("count", len(rules)))
	}
	selector := fallback.NewSelector(rules, logger)

	completer, err := llm.NewCompleter(&llm.Config{
		Provider:      cfg.LLM.Provider,
		Endpoint:      cfg.LLM.Endpoint,
		Model:         cfg.LLM.Model,
		APIKey:        cfg.LLM.APIKey,
		SystemMessage: prompts.BuildNLToSQLSystemMessage(),
		Temperature:   cfg.LLM.Temperature,
		MaxTokens:     cfg.LLM.MaxTokens,
		Timeout:       cfg.LLM.Timeout,
	}, llm.CircuitBreakerConfig{
		Threshold:  cfg.LLM.BreakerThreshold,
		ResetAfter: cfg.LLM.BreakerResetAfter,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm client: %w", err)
	}

	retryCfg := &retry.Config{MaxRetries: 0}
	if opts.RetryStartup {
		retryCfg = retry.StartupConfig()
	}

	mssqlCfg := DatasourceConfig(&cfg.Datasource)
	a.Datasource, err = retry.DoWithResult(ctx, retryCfg, func() (*mssql.Adapter, error) {
		return mssql.Open(ctx, mssqlCfg, logger)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQL Server: %w", err)
	}

	var repo repositories.ExecutionRecordRepository
	if cfg.Audit.Persist {
		a.AuditDB, err = openAuditStore(ctx, cfg, retryCfg, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		repo = repositories.NewExecutionRecordRepository(a.AuditDB)
	}

	var pipelineMetrics *metrics.PipelineMetrics
	if opts.Registerer != nil {
		pipelineMetrics = metrics.NewPipelineMetrics(opts.Registerer)
	}

	a.Introspector = services.NewSchemaIntrospector(
		mssql.NewSchemaDiscoverer(a.Datasource, logger),
		staticSnapshot,
		services.SchemaIntrospectorConfig{
			SampleRows: cfg.Schema.SampleRows,
			CacheTTL:   cfg.Schema.CacheTTL,
			Timeout:    cfg.Schema.Timeout,
		},
		logger,
	)
	a.Audit = services.NewExecutionAuditService(audit.NewExecutionLogger(logger), repo, logger)
	a.Pipeline = services.NewQueryPipeline(services.QueryPipelineDeps{
		Introspector: a.Introspector,
		Completer:    completer,
		Executor:     mssql.NewQueryExecutor(a.Datasource, cfg.Datasource.MaxRows, cfg.Datasource.QueryTimeout, logger),
		Fallback:     selector,
		Audit:        a.Audit,
		Security:     audit.NewSecurityAuditor(logger),
		Metrics:      pipelineMetrics,
	}, services.QueryPipelineConfig{
		DegradeToStatic: cfg.Schema.DegradeToStatic,
	}, logger)

	return a, nil
}

// Close releases the database connections.
func (a *App) Close() {
	if a.AuditDB != nil {
		a.AuditDB.Close()
	}
	if a.Datasource != nil {
		_ = a.Datasource.Close()
	}
}

// DatasourceConfig converts the datasource section into adapter options.
func DatasourceConfig(c *config.DatasourceConfig) *mssql.Config {
	return &mssql.Config{
		Host:                   config.ResolveHostForDocker(c.Host),
		Port:                   c.Port,
		Database:               c.Database,
		AuthMethod:             c.AuthMethod,
		Username:               c.User,
		Password:               c.Password,
		TenantID:               c.TenantID,
		ClientID:               c.ClientID,
		ClientSecret:           c.ClientSecret,
		Encrypt:                c.Encrypt,
		TrustServerCertificate: c.TrustServerCertificate,
		ConnectionTimeout:      c.ConnectionTimeout,
		MaxOpenConns:           c.MaxOpenConns,
		MaxIdleConns:           c.MaxIdleConns,
		ConnMaxLifetime:        c.ConnMaxLifetime,
	}
}

func loadStaticSnapshot(cfg *config.Config) (*models.SchemaSnapshot, error) {
	if cfg.Schema.StaticPath == "" {
		return services.DefaultStaticSnapshot(), nil
	}
	return services.LoadStaticSnapshot(cfg.Schema.StaticPath)
}

func openAuditStore(ctx context.Context, cfg *config.Config, retryCfg *retry.Config, logger *zap.Logger) (*database.DB, error) {
	dbCfg := &database.Config{
		URL:             cfg.Database.ConnectionString(),
		MaxConnections:  cfg.Database.MaxConnections,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	}
	db, err := retry.DoWithResult(ctx, retryCfg, func() (*database.DB, error) {
		return database.NewConnection(ctx, dbCfg)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to audit database: %w", err)
	}

	if err := database.RunMigrations(db.SQLDB(), logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("Connected to audit database",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("database", cfg.Database.Database))
	return db, nil
}
