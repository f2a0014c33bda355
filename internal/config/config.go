package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Supported connection drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config represents the application configuration.
type Config struct {
	Connections []Connection `mapstructure:"connections" yaml:"connections"`
	Simulation  Simulation   `mapstructure:"simulation" yaml:"simulation"`
	Preferences Preferences  `mapstructure:"preferences" yaml:"preferences"`
}

// Connection represents a saved database connection profile.
type Connection struct {
	Name     string `mapstructure:"name" yaml:"name"`
	Driver   string `mapstructure:"driver" yaml:"driver"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Database string `mapstructure:"database" yaml:"database"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
	Schema   string `mapstructure:"schema" yaml:"schema,omitempty"`
	Keyring  bool   `mapstructure:"keyring" yaml:"keyring,omitempty"`
}

// Simulation holds the parameters of a data loss run.
type Simulation struct {
	Table       string        `mapstructure:"table" yaml:"table"`
	KeyField    string        `mapstructure:"key_field" yaml:"key_field"`
	BackupTable string        `mapstructure:"backup_table" yaml:"backup_table,omitempty"`
	SampleSize  int           `mapstructure:"sample_size" yaml:"sample_size"`
	Seed        uint64        `mapstructure:"seed" yaml:"seed,omitempty"`
	BatchSize   int           `mapstructure:"batch_size" yaml:"batch_size"`
	Verify      bool          `mapstructure:"verify" yaml:"verify"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout,omitempty"`
}

// Preferences holds user preferences.
type Preferences struct {
	DefaultConnection string `mapstructure:"default_connection" yaml:"default_connection"`
	LogFormat         string `mapstructure:"log_format" yaml:"log_format"`
	LogLevel          string `mapstructure:"log_level" yaml:"log_level"`
	TUI               bool   `mapstructure:"tui" yaml:"tui"`
}

// Backup returns the configured backup table name, or <table>_backup.
func (s Simulation) Backup() string {
	if s.BackupTable != "" {
		return s.BackupTable
	}
	return s.Table + "_backup"
}

// Validate checks the simulation parameters and preferences. It is run
// once, after flags and environment have been applied.
func (cfg *Config) Validate() error {
	var errs []error
	s := cfg.Simulation
	if s.Table == "" {
		errs = append(errs, errors.New("simulation.table is required"))
	}
	if s.KeyField == "" {
		errs = append(errs, errors.New("simulation.key_field is required"))
	}
	if s.Table != "" && s.Backup() == s.Table {
		errs = append(errs, fmt.Errorf("simulation.backup_table must differ from %q", s.Table))
	}
	if s.SampleSize <= 0 {
		errs = append(errs, fmt.Errorf("simulation.sample_size must be positive, got %d", s.SampleSize))
	}
	if s.BatchSize < 0 {
		errs = append(errs, fmt.Errorf("simulation.batch_size must not be negative, got %d", s.BatchSize))
	}
	if s.Timeout < 0 {
		errs = append(errs, fmt.Errorf("simulation.timeout must not be negative, got %s", s.Timeout))
	}
	switch cfg.Preferences.LogFormat {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("preferences.log_format must be text or json, got %q", cfg.Preferences.LogFormat))
	}
	for _, c := range cfg.Connections {
		if err := c.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Validate checks that the profile can produce a DSN.
func (c Connection) Validate() error {
	switch c.DriverName() {
	case DriverPostgres:
		if c.Host == "" {
			return fmt.Errorf("connection %q: host is required", c.Name)
		}
	case DriverSQLite:
	default:
		return fmt.Errorf("connection %q: unknown driver %q", c.Name, c.Driver)
	}
	if c.Database == "" {
		return fmt.Errorf("connection %q: database is required", c.Name)
	}
	return nil
}

// DriverName returns the profile driver, defaulting to postgres.
func (c Connection) DriverName() string {
	if c.Driver == "" {
		return DriverPostgres
	}
	return c.Driver
}

// DSN builds a connection string from the connection profile. For SQLite
// profiles it is the database file path.
func (c Connection) DSN() string {
	if c.DriverName() == DriverSQLite {
		return c.Database
	}

	u := url.URL{Scheme: "postgresql", Host: c.Host, Path: "/" + c.Database}
	if c.Port > 0 {
		u.Host += ":" + strconv.Itoa(c.Port)
	}
	if c.Username != "" {
		if c.Password != "" {
			u.User = url.UserPassword(c.Username, c.Password)
		} else {
			u.User = url.User(c.Username)
		}
	}
	if c.SSLMode != "" {
		u.RawQuery = "sslmode=" + url.QueryEscape(c.SSLMode)
	}
	return u.String()
}

// DisplayString returns a human-readable summary of the connection.
func (c Connection) DisplayString() string {
	if c.DriverName() == DriverSQLite {
		return "sqlite:" + c.Database
	}
	s := c.Host
	if c.Port > 0 {
		s += ":" + strconv.Itoa(c.Port)
	}
	s += "/" + c.Database
	if c.Username != "" {
		s = c.Username + "@" + s
	}
	return s
}

// ParseDSN parses a connection string into a Connection. postgres:// and
// postgresql:// URLs yield PostgreSQL profiles; sqlite:// URLs, file: URIs
// and bare paths yield SQLite profiles.
func ParseDSN(dsn string) (Connection, error) {
	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		path := strings.TrimPrefix(dsn, "sqlite://")
		if path == "" {
			return Connection{}, fmt.Errorf("invalid DSN: empty sqlite path")
		}
		return sqliteConnection(path), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
	case strings.HasPrefix(dsn, "file:"):
		return sqliteConnection(dsn), nil
	case strings.Contains(dsn, "://"):
		scheme, _, _ := strings.Cut(dsn, "://")
		return Connection{}, fmt.Errorf("invalid DSN: unsupported scheme %q", scheme)
	default:
		if dsn == "" {
			return Connection{}, fmt.Errorf("invalid DSN: empty")
		}
		return sqliteConnection(dsn), nil
	}

	u, err := url.Parse(dsn)
	if err != nil {
		return Connection{}, fmt.Errorf("invalid DSN: %w", err)
	}

	conn := Connection{
		Driver:   DriverPostgres,
		Host:     u.Hostname(),
		Database: strings.TrimPrefix(u.Path, "/"),
		SSLMode:  u.Query().Get("sslmode"),
	}

	if u.User != nil {
		conn.Username = u.User.Username()
		if p, ok := u.User.Password(); ok {
			conn.Password = p
		}
	}

	if portStr := u.Port(); portStr != "" {
		conn.Port, _ = strconv.Atoi(portStr)
	}
	if conn.Port == 0 {
		conn.Port = 5432
	}

	// Auto-generate a name
	conn.Name = fmt.Sprintf("postgres-%s-%d-%s", conn.Host, conn.Port, conn.Database)

	return conn, nil
}

func sqliteConnection(path string) Connection {
	return Connection{
		Name:     "sqlite-" + path,
		Driver:   DriverSQLite,
		Database: path,
	}
}

// HasConnection checks if a connection with the given name already exists.
func (cfg *Config) HasConnection(name string) bool {
	return cfg.FindConnection(name) != nil
}

// FindConnection returns the profile with the given name, or nil.
func (cfg *Config) FindConnection(name string) *Connection {
	for i := range cfg.Connections {
		if cfg.Connections[i].Name == name {
			return &cfg.Connections[i]
		}
	}
	return nil
}

// AddConnection appends a connection, replacing any profile with the same name.
func (cfg *Config) AddConnection(conn Connection) {
	if existing := cfg.FindConnection(conn.Name); existing != nil {
		*existing = conn
		return
	}
	cfg.Connections = append(cfg.Connections, conn)
}
