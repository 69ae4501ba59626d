package config

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"code.cloudfoundry.org/lager/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(NewViper())
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.InstanceID)
	assert.Equal(t, 8000, cfg.ServerPort)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Zero(t, cfg.ToolTimeout)
	assert.False(t, cfg.Guard.Enabled)
	assert.Equal(t, "cppcheck", cfg.Cppcheck.Binary)
	assert.Equal(t, "all", cfg.Cppcheck.Enable)
	assert.True(t, cfg.Database.TrustServerCertificate)
	assert.Equal(t, uint(3), cfg.Database.ConnectRetries)
	assert.Equal(t, 30*time.Second, cfg.Database.CacheTTL)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "8001")
	t.Setenv("MCPHUB_API_KEY", "s3cret")
	t.Setenv("SERVER_ALLOWED_ORIGINS", "http://localhost:3000, https://ide.example.com")
	t.Setenv("TOOL_TIMEOUT", "90s")
	t.Setenv("DB_SERVER", `sqlhost\SQLEXPRESS`)
	t.Setenv("DB_NAME", "Sales")
	t.Setenv("DB_CACHE_TTL", "0s")
	t.Setenv("GUARD_ENABLED", "true")

	cfg, err := Load(NewViper())
	require.NoError(t, err)

	assert.Equal(t, 8001, cfg.ServerPort)
	assert.Equal(t, "s3cret", cfg.APIKey)
	assert.Equal(t, []string{"http://localhost:3000", "https://ide.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, 90*time.Second, cfg.ToolTimeout)
	assert.Equal(t, `sqlhost\SQLEXPRESS`, cfg.Database.Server)
	assert.Equal(t, "Sales", cfg.Database.Name)
	assert.Zero(t, cfg.Database.CacheTTL)
	assert.True(t, cfg.Guard.Enabled)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcphub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9100
log_level: debug
cppcheck:
  binary: /opt/cppcheck/bin/cppcheck
db:
  server: db01
  name: Inventory
  user: reader
`), 0o644))

	v := NewViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.ServerPort)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/opt/cppcheck/bin/cppcheck", cfg.Cppcheck.Binary)
	assert.Equal(t, "reader", cfg.Database.User)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	v := NewViper()
	v.Set("server.port", 70000)
	v.Set("log_level", "verbose")
	v.Set("tool_timeout", "-1s")
	v.Set("cppcheck.binary", "")

	_, err := Load(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port 70000 out of range")
	assert.Contains(t, err.Error(), `unknown log_level "verbose"`)
	assert.Contains(t, err.Error(), "tool_timeout must not be negative")
	assert.Contains(t, err.Error(), "cppcheck.binary must not be empty")
}

func TestDatabaseValidate(t *testing.T) {
	err := DatabaseConfig{}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_SERVER")
	assert.Contains(t, err.Error(), "DB_NAME")

	require.NoError(t, DatabaseConfig{Server: "db01", Name: "Sales"}.Validate())
	require.NoError(t, DatabaseConfig{DSN: "sqlserver://db01"}.Validate())
}

func TestConnectionString(t *testing.T) {
	t.Run("integrated auth", func(t *testing.T) {
		u, err := url.Parse(DatabaseConfig{Server: "db01", Name: "Sales", TrustServerCertificate: true}.ConnectionString())
		require.NoError(t, err)
		assert.Equal(t, "sqlserver", u.Scheme)
		assert.Equal(t, "db01", u.Host)
		assert.Nil(t, u.User)
		assert.Equal(t, "Sales", u.Query().Get("database"))
		assert.Equal(t, "true", u.Query().Get("TrustServerCertificate"))
	})

	t.Run("named instance with credentials", func(t *testing.T) {
		u, err := url.Parse(DatabaseConfig{Server: `db01\SQLEXPRESS`, Port: 1433, Name: "Sales", User: "reader", Password: "p@ss"}.ConnectionString())
		require.NoError(t, err)
		assert.Equal(t, "db01:1433", u.Host)
		assert.Equal(t, "/SQLEXPRESS", u.Path)
		assert.Equal(t, "reader", u.User.Username())
		password, _ := u.User.Password()
		assert.Equal(t, "p@ss", password)
		assert.Empty(t, u.Query().Get("TrustServerCertificate"))
	})

	t.Run("explicit dsn", func(t *testing.T) {
		assert.Equal(t, "sqlserver://x", DatabaseConfig{DSN: "sqlserver://x", Server: "ignored"}.ConnectionString())
	})
}

func TestParseLogLevel(t *testing.T) {
	level, err := ParseLogLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, lager.DEBUG, level)

	_, err = ParseLogLevel("trace")
	require.Error(t, err)
}
