package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hurou927/hydro-catalog/internal/pfb"
)

// Config represents the top-level YAML configuration.
type Config struct {
	Catalog    Catalog    `yaml:"catalog"`
	Reader     Reader     `yaml:"reader"`
	Log        Log        `yaml:"log"`
	Connection Connection `yaml:"connection"`
	Export     Export     `yaml:"export"`
}

// Catalog locates the catalog model files and the optional remote snapshot.
type Catalog struct {
	Dir            string        `yaml:"dir"`
	RemoteURL      string        `yaml:"remote_url"`
	RemoteTimeout  time.Duration `yaml:"remote_timeout"`
	RemoteAttempts int           `yaml:"remote_attempts"`
}

// Reader bounds the memory and concurrency of grid file reads.
type Reader struct {
	MaxElements int64 `yaml:"max_elements"`
	MaxWorkers  int   `yaml:"max_workers"`
}

// Log selects the logrus level and formatter.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Connection holds database connection parameters.
type Connection struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// Export configures the PostgreSQL copy of the catalog model.
type Export struct {
	Schema  string   `yaml:"schema"`
	ROUsers []string `yaml:"ro_users"`
	RWUsers []string `yaml:"rw_users"`
}

// DSN builds a PostgreSQL connection string.
func (c *Connection) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Database, c.User, c.Password, c.SSLMode,
	)
}

// Load reads and parses a YAML config file. An empty path yields the
// defaults with environment overrides applied.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyEnv fills in empty fields from environment variables.
// YAML values take precedence; env vars are used only as fallback.
func (c *Config) applyEnv() {
	if c.Catalog.Dir == "" {
		c.Catalog.Dir = envOr("HYDRO_CATALOG_DIR")
	}
	if c.Catalog.RemoteURL == "" {
		c.Catalog.RemoteURL = envOr("HYDRODATA_URL")
	}
	if c.Log.Level == "" {
		c.Log.Level = envOr("HYDRO_LOG_LEVEL")
	}

	conn := &c.Connection
	if conn.Host == "" {
		conn.Host = envOr("PGHOST", "POSTGRES_HOST")
	}
	if conn.Port == 0 {
		if s := envOr("PGPORT", "POSTGRES_PORT"); s != "" {
			if p, err := strconv.Atoi(s); err == nil {
				conn.Port = p
			}
		}
	}
	if conn.Database == "" {
		conn.Database = envOr("PGDATABASE", "POSTGRES_DB")
	}
	if conn.User == "" {
		conn.User = envOr("PGUSER", "POSTGRES_USER")
	}
	if conn.Password == "" {
		conn.Password = envOr("PGPASSWORD", "POSTGRES_PASSWORD")
	}
	if conn.SSLMode == "" {
		conn.SSLMode = envOr("PGSSLMODE")
	}
}

// envOr returns the first non-empty value from the given env var names.
func envOr(names ...string) string {
	for _, n := range names {
		if n == "" {
			continue
		}
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

// validate fills defaults and rejects values no command can work with.
func (c *Config) validate() error {
	if c.Catalog.Dir == "" {
		c.Catalog.Dir = "model"
	}
	if c.Catalog.RemoteTimeout == 0 {
		c.Catalog.RemoteTimeout = 30 * time.Second
	}
	if c.Catalog.RemoteAttempts == 0 {
		c.Catalog.RemoteAttempts = 3
	}
	if c.Catalog.RemoteAttempts < 0 {
		return fmt.Errorf("catalog.remote_attempts must not be negative")
	}
	if c.Reader.MaxElements == 0 {
		c.Reader.MaxElements = pfb.DefaultMaxElements
	}
	if c.Reader.MaxElements < 0 {
		return fmt.Errorf("reader.max_elements must be positive")
	}
	if c.Reader.MaxWorkers < 0 {
		return fmt.Errorf("reader.max_workers must not be negative")
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	switch c.Log.Format {
	case "":
		c.Log.Format = "text"
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if c.Connection.Port == 0 {
		c.Connection.Port = 5432
	}
	if c.Connection.SSLMode == "" {
		c.Connection.SSLMode = "disable"
	}
	if c.Export.Schema == "" {
		c.Export.Schema = "development"
	}
	return nil
}

// ValidateForDatabase checks the fields required by commands that talk to PostgreSQL.
func (c *Config) ValidateForDatabase() error {
	if c.Connection.Host == "" {
		return fmt.Errorf("connection.host is required")
	}
	if c.Connection.Database == "" {
		return fmt.Errorf("connection.database is required")
	}
	if c.Connection.User == "" {
		return fmt.Errorf("connection.user is required")
	}
	switch c.Export.Schema {
	case "development", "public_test", "public":
	default:
		return fmt.Errorf("export.schema must be development, public_test or public, got %q", c.Export.Schema)
	}
	return nil
}
