package store

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"
)

// Config represents configuration for the different store types.
type Config struct {
	Type string `toml:"type" mapstructure:"type" json:"type"` // "memory", "sqlite", "postgres", "gorm"

	// SQLite specific
	Path string `toml:"path,omitempty" mapstructure:"path" json:"path,omitempty"`

	// DSN overrides the discrete PostgreSQL fields when set.
	DSN string `toml:"dsn,omitempty" mapstructure:"dsn" json:"dsn,omitempty"`

	// PostgreSQL specific
	Host     string `toml:"host,omitempty" mapstructure:"host" json:"host,omitempty"`
	Port     int    `toml:"port,omitempty" mapstructure:"port" json:"port,omitempty"`
	Database string `toml:"database,omitempty" mapstructure:"database" json:"database,omitempty"`
	Username string `toml:"username,omitempty" mapstructure:"username" json:"username,omitempty"`
	Password string `toml:"password,omitempty" mapstructure:"password" json:"-"`
	SSLMode  string `toml:"ssl_mode,omitempty" mapstructure:"ssl_mode" json:"ssl_mode,omitempty"`

	// Connection pooling
	MaxOpenConns int           `toml:"max_open_conns,omitempty" mapstructure:"max_open_conns" json:"max_open_conns,omitempty"`
	MaxIdleConns int           `toml:"max_idle_conns,omitempty" mapstructure:"max_idle_conns" json:"max_idle_conns,omitempty"`
	ConnMaxAge   time.Duration `toml:"conn_max_age,omitempty" mapstructure:"conn_max_age" json:"conn_max_age,omitempty"`

	// Additional options
	TablePrefix string            `toml:"table_prefix,omitempty" mapstructure:"table_prefix" json:"table_prefix,omitempty"`
	Options     map[string]string `toml:"options,omitempty" mapstructure:"options" json:"options,omitempty"`
}

// PostgresDSN returns DSN or a URL assembled from the discrete fields.
func (c Config) PostgresDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   "/" + c.Database,
	}
	if c.Username != "" {
		if c.Password != "" {
			u.User = url.UserPassword(c.Username, c.Password)
		} else {
			u.User = url.User(c.Username)
		}
	}
	q := url.Values{}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	q.Set("sslmode", sslMode)
	for k, v := range c.Options {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// String describes the target without credentials, for logs.
func (c Config) String() string {
	switch c.Type {
	case "sqlite":
		return fmt.Sprintf("sqlite(%s)", c.Path)
	case "postgres", "postgresql", "gorm":
		if c.DSN != "" {
			if u, err := url.Parse(c.DSN); err == nil {
				return fmt.Sprintf("%s(%s%s)", c.Type, u.Host, u.Path)
			}
			return c.Type
		}
		return fmt.Sprintf("%s(%s:%d/%s)", c.Type, c.Host, c.Port, c.Database)
	default:
		return c.Type
	}
}
