package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwkim/schemadoc/internal/errs"
	"github.com/jwkim/schemadoc/internal/filestore"
	"github.com/jwkim/schemadoc/internal/metadata"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
listen: ":9999"
database:
  driver: mysql
  dsn: "user:pass@tcp(localhost:3306)/shop"
  schema: shop
pipeline:
  workers: 2
  debounceWindow: 150ms
render:
  chunkSize: 50
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Listen)
	assert.Equal(t, metadata.DriverMySQL, cfg.Database.Driver)
	assert.Equal(t, "shop", cfg.Database.Schema)
	assert.Equal(t, 2, cfg.Pipeline.Workers)
	assert.Equal(t, 150*time.Millisecond, cfg.Pipeline.DebounceWindow)
	assert.Equal(t, 50, cfg.Render.ChunkSize)

	// Untouched sections keep their defaults.
	assert.Equal(t, filestore.ProviderLocal, cfg.Store.Provider)
	assert.Equal(t, 64, cfg.Pipeline.EventBuffer)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_MissingDSNRejected(t *testing.T) {
	path := writeFile(t, `
database:
  driver: postgres
`)

	_, err := Load(path)
	assert.True(t, errs.IsInvalidInput(err))
}

func TestLoad_UnknownDriverRejected(t *testing.T) {
	path := writeFile(t, `
database:
  driver: oracle
  dsn: "something"
`)

	_, err := Load(path)
	assert.True(t, errs.IsInvalidInput(err))
}

func TestLoad_MinioNeedsEndpointAndBucket(t *testing.T) {
	path := writeFile(t, `
database:
  driver: postgres
  dsn: "postgres://localhost/db"
store:
  provider: minio
  endpoint: "localhost:9000"
`)

	_, err := Load(path)
	assert.True(t, errs.IsInvalidInput(err))
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	_, err := Load("")
	// Defaults alone fail validation: the DSN cannot be defaulted.
	assert.True(t, errs.IsInvalidInput(err))
}

func TestDefault_IsValidOnceDSNIsSet(t *testing.T) {
	cfg := Default()
	cfg.Database.DSN = "postgres://localhost/db"
	assert.NoError(t, cfg.Validate())
}
