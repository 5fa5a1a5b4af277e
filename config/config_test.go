package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Agency.MaxConcurrentSeats)
	assert.Equal(t, 2, cfg.Agency.MaxRetries)
	assert.Equal(t, time.Second, cfg.Agency.RetryDelay)
	assert.Equal(t, "markdown", cfg.Agency.OutputFormat)
	assert.Equal(t, "data/agency.db", cfg.Store.Path)
	assert.Equal(t, "agency.progress", cfg.NATS.SubjectPrefix)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
agency:
  max_concurrent_seats: 8
  retry_delay: 250ms
  output_format: json
store:
  path: /tmp/run.db
nats:
  url: nats://localhost:4222
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Agency.MaxConcurrentSeats)
	assert.Equal(t, 2, cfg.Agency.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Agency.RetryDelay)
	assert.Equal(t, "json", cfg.Agency.OutputFormat)
	assert.Equal(t, "/tmp/run.db", cfg.Store.Path)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agency:\n  max_retries: 5\n"), 0o644))

	t.Setenv("AGENCYKIT_MAX_RETRIES", "1")
	t.Setenv("AGENCYKIT_RETRY_DELAY", "10ms")
	t.Setenv("AGENCYKIT_STORE_PATH", "/var/lib/agency.db")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Agency.MaxRetries)
	assert.Equal(t, 10*time.Millisecond, cfg.Agency.RetryDelay)
	assert.Equal(t, "/var/lib/agency.db", cfg.Store.Path)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("agency:\n  max_concurrent_seats: 0\n"), 0o644))
	_, err := Load(bad)
	assert.ErrorContains(t, err, "max_concurrent_seats")

	format := filepath.Join(dir, "format.yaml")
	require.NoError(t, os.WriteFile(format, []byte("agency:\n  output_format: xml\n"), 0o644))
	_, err = Load(format)
	assert.ErrorContains(t, err, "output_format")
}

func TestLoad_RejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agency: [oops"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "parse config")
}
