package pgvector

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"

	"github.com/agentplexus/omnibench/vector"
)

// Config holds the connection settings for a pgvector database.
type Config struct {
	// UserName is the role to connect as (default "postgres").
	UserName vector.Secret `yaml:"user_name"`
	// Password is required.
	Password vector.Secret `yaml:"password"`
	// Host is the server host (default "localhost").
	Host string `yaml:"host"`
	// Port is the server port (default 5432).
	Port int `yaml:"port"`
	// DBName is the database to connect to.
	DBName string `yaml:"db_name"`
	// SSLMode is passed to the driver when set (lib/pq defaults to "require").
	SSLMode string `yaml:"sslmode"`
}

// DefaultConfig returns a configuration with every default filled in.
func DefaultConfig(dbName string, password string) Config {
	return Config{
		UserName: vector.NewSecret("postgres"),
		Password: vector.NewSecret(password),
		Host:     "localhost",
		Port:     5432,
		DBName:   dbName,
	}
}

// WithDefaults returns a copy of c with unset optional fields defaulted.
func (c Config) WithDefaults() Config {
	if c.UserName.IsZero() {
		c.UserName = vector.NewSecret("postgres")
	}
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 5432
	}
	return c
}

// Validate reports missing required fields.
func (c Config) Validate() error {
	if c.Password.IsZero() {
		return fmt.Errorf("%w: password is required", ErrConfig)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: db_name is required", ErrConfig)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrConfig, c.Port)
	}
	return nil
}

// ToMap returns the connection parameters the database driver consumes.
// User and password are unmasked here and nowhere else.
func (c Config) ToMap() map[string]any {
	return map[string]any{
		"host":     c.Host,
		"port":     c.Port,
		"dbname":   c.DBName,
		"user":     c.UserName.Reveal(),
		"password": c.Password.Reveal(),
	}
}

// ConnString renders the configuration as a postgres:// URL understood by
// both lib/pq and pgx.
func (c Config) ConnString() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.UserName.Reveal(), c.Password.Reveal()),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.DBName,
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
	}
	return u.String()
}

// String implements fmt.Stringer without revealing credentials.
func (c Config) String() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s",
		c.UserName, c.Password, net.JoinHostPort(c.Host, strconv.Itoa(c.Port)), c.DBName)
}

// LogValue implements slog.LogValuer.
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("host", c.Host),
		slog.Int("port", c.Port),
		slog.String("dbname", c.DBName),
		slog.Any("user", c.UserName),
	)
}
