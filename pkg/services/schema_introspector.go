package services

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ekaya-inc/ekaya-askdb/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-askdb/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-askdb/pkg/logging"
	"github.com/ekaya-inc/ekaya-askdb/pkg/models"
)

const (
	// MaxSampleRows is the most sample rows kept per table.
	MaxSampleRows = 5
	// DefaultSnapshotTTL is how long a live snapshot is reused.
	DefaultSnapshotTTL = 5 * time.Minute
	// DefaultIntrospectionTimeout bounds one full introspection.
	DefaultIntrospectionTimeout = 30 * time.Second

	snapshotCacheKey = "snapshot"
)

// SchemaIntrospector produces schema snapshots of the target database.
type SchemaIntrospector interface {
	// Snapshot returns a live snapshot, from cache when one is fresh.
	// Failing to enumerate tables returns an error wrapping
	// apperrors.ErrIntrospection; per-table failures are recorded on the
	// table instead. The returned snapshot is shared and must not be modified.
	Snapshot(ctx context.Context) (*models.SchemaSnapshot, error)

	// Static returns the built-in or configured static snapshot.
	Static() *models.SchemaSnapshot
}

// SchemaIntrospectorConfig configures a SchemaIntrospector.
type SchemaIntrospectorConfig struct {
	SampleRows int           // clamped to 0..MaxSampleRows
	CacheTTL   time.Duration // 0 disables caching
	Timeout    time.Duration // per introspection, defaults to DefaultIntrospectionTimeout
}

type schemaIntrospector struct {
	discoverer datasource.SchemaDiscoverer
	static     *models.SchemaSnapshot
	cache      *gocache.Cache
	group      singleflight.Group
	sampleRows int
	timeout    time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

// NewSchemaIntrospector creates a SchemaIntrospector over discoverer. static
// is returned by Static; nil uses the built-in tender schema.
func NewSchemaIntrospector(
	discoverer datasource.SchemaDiscoverer,
	static *models.SchemaSnapshot,
	cfg SchemaIntrospectorConfig,
	logger *zap.Logger,
) SchemaIntrospector {
	if static == nil {
		static = DefaultStaticSnapshot()
	}

	sampleRows := cfg.SampleRows
	if sampleRows < 0 {
		sampleRows = 0
	}
	if sampleRows > MaxSampleRows {
		sampleRows = MaxSampleRows
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultIntrospectionTimeout
	}

	var cache *gocache.Cache
	if cfg.CacheTTL > 0 {
		cache = gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}

	return &schemaIntrospector{
		discoverer: discoverer,
		static:     static,
		cache:      cache,
		sampleRows: sampleRows,
		timeout:    timeout,
		now:        time.Now,
		logger:     logger.Named("schema-introspector"),
	}
}

var _ SchemaIntrospector = (*schemaIntrospector)(nil)

func (s *schemaIntrospector) Static() *models.SchemaSnapshot {
	return s.static
}

func (s *schemaIntrospector) Snapshot(ctx context.Context) (*models.SchemaSnapshot, error) {
	if s.cache != nil {
		if cached, found := s.cache.Get(snapshotCacheKey); found {
			return cached.(*models.SchemaSnapshot), nil
		}
	}

	// Concurrent misses share one introspection. It runs detached from any
	// single caller so one canceled request does not fail the others.
	ch := s.group.DoChan(snapshotCacheKey, func() (any, error) {
		introspectCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		snapshot, err := s.introspect(introspectCtx)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			s.cache.SetDefault(snapshotCacheKey, snapshot)
		}
		return snapshot, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.SchemaSnapshot), nil
	}
}

func (s *schemaIntrospector) introspect(ctx context.Context) (*models.SchemaSnapshot, error) {
	started := s.now()

	tables, err := s.discoverer.DiscoverTables(ctx)
	if err != nil {
		s.logger.Error("Failed to enumerate tables", zap.String("error", logging.SanitizeError(err)))
		return nil, fmt.Errorf("%w: %w", apperrors.ErrIntrospection, err)
	}

	snapshot := &models.SchemaSnapshot{
		Tables: make([]models.TableDescriptor, 0, len(tables)),
		Source: models.SchemaSourceLive,
	}

	failed := 0
	for _, t := range tables {
		desc := s.describeTable(ctx, t)
		if desc.Error != "" {
			failed++
		}
		snapshot.Tables = append(snapshot.Tables, desc)
	}
	snapshot.IntrospectedAt = s.now().UTC()

	s.logger.Info("Schema introspected",
		zap.Int("tables", len(snapshot.Tables)),
		zap.Int("failed_tables", failed),
		zap.Duration("elapsed", s.now().Sub(started)),
	)
	return snapshot, nil
}

// describeTable introspects one table. Failures are recorded on the
// descriptor so other tables are unaffected.
func (s *schemaIntrospector) describeTable(ctx context.Context, t datasource.TableMetadata) models.TableDescriptor {
	desc := models.TableDescriptor{Schema: t.SchemaName, Name: t.TableName}

	columns, err := s.discoverer.DiscoverColumns(ctx, t.SchemaName, t.TableName)
	if err != nil {
		return s.tableFailed(desc, "columns", err)
	}
	if len(columns) == 0 {
		desc.Error = "no visible columns"
		s.logger.Warn("Table has no visible columns", zap.String("table", desc.QualifiedName()))
		return desc
	}

	desc.Columns = make([]models.ColumnDescriptor, len(columns))
	for i, c := range columns {
		desc.Columns[i] = models.ColumnDescriptor{
			Name:        c.ColumnName,
			LogicalType: c.DataType,
			Nullable:    c.IsNullable,
		}
	}

	if s.sampleRows == 0 {
		return desc
	}

	rows, err := s.discoverer.SampleRows(ctx, t.SchemaName, t.TableName, s.sampleRows)
	if err != nil {
		return s.tableFailed(desc, "samples", err)
	}
	if len(rows) > s.sampleRows {
		rows = rows[:s.sampleRows]
	}
	desc.SampleRows = rows
	return desc
}

func (s *schemaIntrospector) tableFailed(desc models.TableDescriptor, step string, err error) models.TableDescriptor {
	msg := logging.SanitizeError(err)
	s.logger.Warn("Failed to introspect table",
		zap.String("table", desc.QualifiedName()),
		zap.String("step", step),
		zap.String("error", msg),
	)
	desc.Error = fmt.Sprintf("%s: %s", step, msg)
	return desc
}
