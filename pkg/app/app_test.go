package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-askdb/pkg/adapters/datasource/mssql"
	"github.com/ekaya-inc/ekaya-askdb/pkg/config"
	"github.com/ekaya-inc/ekaya-askdb/pkg/models"
)

func TestDatasourceConfig(t *testing.T) {
	got := DatasourceConfig(&config.DatasourceConfig{
		Host:            "sql.internal",
		Port:            1444,
		Database:        "Tenders",
		AuthMethod:      "service_principal",
		TenantID:        "tenant",
		ClientID:        "client",
		ClientSecret:    "secret",
		Encrypt:         true,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	})

	assert.Equal(t, "sql.internal", got.Host)
	assert.Equal(t, 1444, got.Port)
	assert.Equal(t, mssql.AuthMethodServicePrincipal, got.AuthMethod)
	assert.Equal(t, "secret", got.ClientSecret)
	assert.Equal(t, 25, got.MaxOpenConns)
	assert.Equal(t, 5*time.Minute, got.ConnMaxLifetime)
	require.NoError(t, got.Validate())
}

func TestLoadStaticSnapshot(t *testing.T) {
	cfg := &config.Config{}

	snapshot, err := loadStaticSnapshot(cfg)
	require.NoError(t, err)
	assert.Equal(t, models.SchemaSourceStatic, snapshot.Source)
	assert.NotEmpty(t, snapshot.Tables)

	cfg.Schema.StaticPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = loadStaticSnapshot(cfg)
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tables:\n  - name: tenderTender\n    columns:\n      - name: Id\n        type: INTEGER\n"), 0o600))
	cfg.Schema.StaticPath = path
	snapshot, err = loadStaticSnapshot(cfg)
	require.NoError(t, err)
	require.Len(t, snapshot.Tables, 1)
	assert.Equal(t, "tenderTender", snapshot.Tables[0].Name)
}
