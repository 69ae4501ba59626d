package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"code.cloudfoundry.org/lager/v3"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
)

type Config struct {
	InstanceID     string
	ServerPort     int
	APIKey         string // bearer token required on POST / when set
	AllowedOrigins []string
	LogLevel       string
	ToolTimeout    time.Duration

	Guard    GuardConfig
	Cppcheck CppcheckConfig
	Database DatabaseConfig
}

type GuardConfig struct {
	Enabled    bool
	ConfigPath string // gitleaks toml; empty uses the built-in rules
}

type CppcheckConfig struct {
	Binary string
	Enable string
}

type DatabaseConfig struct {
	DSN                    string // overrides the fields below when set
	Server                 string
	Port                   int
	Name                   string
	User                   string
	Password               string
	TrustServerCertificate bool
	ConnectRetries         uint
	CacheTTL               time.Duration
}

// NewViper returns a viper instance with defaults and environment bindings.
// Keys map to environment variables by upper-casing and replacing dots, so
// db.server is read from DB_SERVER.
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("server.port", 8000)
	v.SetDefault("server.api_key", "")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log_level", "info")
	v.SetDefault("tool_timeout", time.Duration(0))
	v.SetDefault("guard.enabled", false)
	v.SetDefault("guard.config", "")
	v.SetDefault("cppcheck.binary", "cppcheck")
	v.SetDefault("cppcheck.enable", "all")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.server", "")
	v.SetDefault("db.port", 0)
	v.SetDefault("db.name", "")
	v.SetDefault("db.user", "")
	v.SetDefault("db.password", "")
	v.SetDefault("db.trust_server_certificate", true)
	v.SetDefault("db.connect_retries", 3)
	v.SetDefault("db.cache_ttl", 30*time.Second)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("server.api_key", "MCPHUB_API_KEY", "SERVER_API_KEY")

	return v
}

// Load reads the configuration out of v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		InstanceID:     uuid.NewString(),
		ServerPort:     v.GetInt("server.port"),
		APIKey:         v.GetString("server.api_key"),
		AllowedOrigins: splitCSV(v.GetStringSlice("server.allowed_origins")),
		LogLevel:       strings.ToLower(v.GetString("log_level")),
		ToolTimeout:    v.GetDuration("tool_timeout"),
		Guard: GuardConfig{
			Enabled:    v.GetBool("guard.enabled"),
			ConfigPath: v.GetString("guard.config"),
		},
		Cppcheck: CppcheckConfig{
			Binary: v.GetString("cppcheck.binary"),
			Enable: v.GetString("cppcheck.enable"),
		},
		Database: DatabaseConfig{
			DSN:                    v.GetString("db.dsn"),
			Server:                 v.GetString("db.server"),
			Port:                   v.GetInt("db.port"),
			Name:                   v.GetString("db.name"),
			User:                   v.GetString("db.user"),
			Password:               v.GetString("db.password"),
			TrustServerCertificate: v.GetBool("db.trust_server_certificate"),
			ConnectRetries:         v.GetUint("db.connect_retries"),
			CacheTTL:               v.GetDuration("db.cache_ttl"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.ServerPort < 1 || c.ServerPort > 65535 {
		result = multierror.Append(result, fmt.Errorf("server.port %d out of range", c.ServerPort))
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		result = multierror.Append(result, err)
	}
	if c.ToolTimeout < 0 {
		result = multierror.Append(result, fmt.Errorf("tool_timeout must not be negative, got %s", c.ToolTimeout))
	}
	if c.Cppcheck.Binary == "" {
		result = multierror.Append(result, errors.New("cppcheck.binary must not be empty"))
	}
	if c.Database.Port < 0 || c.Database.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("db.port %d out of range", c.Database.Port))
	}
	if c.Database.CacheTTL < 0 {
		result = multierror.Append(result, fmt.Errorf("db.cache_ttl must not be negative, got %s", c.Database.CacheTTL))
	}

	return result.ErrorOrNil()
}

// Validate checks the settings the procedure metadata service needs.
func (d DatabaseConfig) Validate() error {
	if d.DSN != "" {
		return nil
	}

	var result *multierror.Error
	if d.Server == "" {
		result = multierror.Append(result, errors.New("db.server (DB_SERVER) is required"))
	}
	if d.Name == "" {
		result = multierror.Append(result, errors.New("db.name (DB_NAME) is required"))
	}
	return result.ErrorOrNil()
}

// ConnectionString builds a go-mssqldb URL. A server of the form
// HOST\INSTANCE addresses a named instance. Without a user the driver falls
// back to integrated authentication.
func (d DatabaseConfig) ConnectionString() string {
	if d.DSN != "" {
		return d.DSN
	}

	host, instance, _ := strings.Cut(d.Server, `\`)
	if d.Port > 0 {
		host = net.JoinHostPort(host, strconv.Itoa(d.Port))
	}

	u := &url.URL{Scheme: "sqlserver", Host: host}
	if instance != "" {
		u.Path = "/" + instance
	}
	if d.User != "" {
		u.User = url.UserPassword(d.User, d.Password)
	}

	q := url.Values{}
	q.Set("database", d.Name)
	q.Set("app name", "mcphub")
	if d.TrustServerCertificate {
		q.Set("TrustServerCertificate", "true")
	}
	u.RawQuery = q.Encode()

	return u.String()
}

func ParseLogLevel(level string) (lager.LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return lager.DEBUG, nil
	case "info", "":
		return lager.INFO, nil
	case "error":
		return lager.ERROR, nil
	case "fatal":
		return lager.FATAL, nil
	default:
		return lager.INFO, fmt.Errorf("unknown log_level %q (want debug, info, error or fatal)", level)
	}
}

// splitCSV accepts both list values and a single comma separated string, as
// environment variables arrive.
func splitCSV(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
