package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/curator/internal/auth"
	"github.com/loykin/curator/internal/env"
	"github.com/loykin/curator/internal/logger"
	"github.com/loykin/curator/internal/resource"
	"github.com/loykin/curator/internal/store"
	ctls "github.com/loykin/curator/internal/tls"
)

// EnvPrefix prefixes environment overrides: server.listen is read from
// CURATOR_SERVER_LISTEN.
const EnvPrefix = "CURATOR"

var knownStoreTypes = map[string]bool{
	"memory": true, "sqlite": true, "postgres": true, "postgresql": true, "gorm": true,
}

// Config represents the top-level TOML structure.
type Config struct {
	EnvFiles  []string            `toml:"env_files" mapstructure:"env_files"`
	Server    ServerConfig        `toml:"server" mapstructure:"server"`
	Store     store.Config        `toml:"store" mapstructure:"store"`
	Auth      AuthConfig          `toml:"auth" mapstructure:"auth"`
	Policy    map[string][]string `toml:"policy" mapstructure:"policy"`
	Log       logger.Config       `toml:"log" mapstructure:"log"`
	Metrics   MetricsConfig       `toml:"metrics" mapstructure:"metrics"`
	History   HistoryConfig       `toml:"history" mapstructure:"history"`
	Resources []ResourceConfig    `toml:"resources" mapstructure:"resources"`
}

type ServerConfig struct {
	Listen          string        `toml:"listen" mapstructure:"listen"`
	BasePath        string        `toml:"base_path" mapstructure:"base_path"`
	Engine          string        `toml:"engine" mapstructure:"engine"` // gin or echo
	ReadTimeout     time.Duration `toml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `toml:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	TLS             ctls.Config   `toml:"tls" mapstructure:"tls"`
}

type AuthConfig struct {
	Enabled           bool            `toml:"enabled" mapstructure:"enabled"`
	JWTSecret         string          `toml:"jwt_secret" mapstructure:"jwt_secret"`
	JWTSecretRequired bool            `toml:"jwt_secret_required" mapstructure:"jwt_secret_required"`
	TokenTTL          time.Duration   `toml:"token_ttl" mapstructure:"token_ttl"`
	BcryptCost        int             `toml:"bcrypt_cost" mapstructure:"bcrypt_cost"`
	AnonymousRoles    []string        `toml:"anonymous_roles" mapstructure:"anonymous_roles"`
	Store             store.Config    `toml:"store" mapstructure:"store"`
	Users             []auth.SeedUser `toml:"users" mapstructure:"users"`
}

// Service returns the settings consumed by auth.NewAuthService.
func (a AuthConfig) Service() auth.AuthConfig {
	return auth.AuthConfig{JWTSecret: a.JWTSecret, TokenTTL: a.TokenTTL, BcryptCost: a.BcryptCost}
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Path    string `toml:"path" mapstructure:"path"`
}

// HistoryConfig lists sink DSNs; see history/factory.NewSinkFromDSN.
type HistoryConfig struct {
	Enabled bool          `toml:"enabled" mapstructure:"enabled"`
	Sinks   []string      `toml:"sinks" mapstructure:"sinks"`
	Timeout time.Duration `toml:"timeout" mapstructure:"timeout"`
}

type ResourceConfig struct {
	Name   string        `toml:"name" mapstructure:"name"`
	Route  string        `toml:"route" mapstructure:"route"`
	Table  string        `toml:"table" mapstructure:"table"`
	Fields []FieldConfig `toml:"fields" mapstructure:"fields"`
}

type FieldConfig struct {
	Name     string            `toml:"name" mapstructure:"name"`
	Type     string            `toml:"type" mapstructure:"type"`
	Rules    string            `toml:"rules" mapstructure:"rules"`
	Messages map[string]string `toml:"messages" mapstructure:"messages"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.base_path", "/api")
	v.SetDefault("server.engine", "gin")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.tls.enabled", false)
	v.SetDefault("server.tls.cert_file", "")
	v.SetDefault("server.tls.key_file", "")
	v.SetDefault("server.tls.dir", "")
	v.SetDefault("server.tls.min_version", "1.2")

	v.SetDefault("store.type", "memory")
	v.SetDefault("store.path", "")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.table_prefix", "")

	v.SetDefault("auth.enabled", true)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_secret_required", false)
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 0)
	v.SetDefault("auth.anonymous_roles", []string{"USER", "ADMIN"})
	v.SetDefault("auth.store.type", "memory")
	v.SetDefault("auth.store.path", "")
	v.SetDefault("auth.store.dsn", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("history.enabled", false)
	v.SetDefault("history.timeout", 5*time.Second)
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg, err := load(viper.New())
	if err != nil {
		// defaults alone always decode
		panic(err)
	}
	return cfg
}

// LoadConfig reads a TOML file, applies CURATOR_* environment overrides
// and validates the result. An empty path loads defaults and environment
// only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		files := v.GetStringSlice("env_files")
		for i, f := range files {
			if !filepath.IsAbs(f) {
				files[i] = filepath.Join(filepath.Dir(path), f)
			}
		}
		if err := ApplyEnvFiles(files); err != nil {
			return nil, err
		}
	}
	cfg, err := load(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if !knownStoreTypes[strings.ToLower(c.Store.Type)] {
		errs = append(errs, fmt.Errorf("store: unknown type %q", c.Store.Type))
	}
	if c.Auth.Enabled {
		if t := strings.ToLower(c.Auth.Store.Type); t == "gorm" || !knownStoreTypes[t] {
			errs = append(errs, fmt.Errorf("auth.store: unsupported type %q", c.Auth.Store.Type))
		}
		if c.Auth.JWTSecretRequired && c.Auth.JWTSecret == "" {
			errs = append(errs, errors.New("auth: jwt_secret is required"))
		}
		for i, u := range c.Auth.Users {
			if u.Username == "" || (u.Password == "" && u.PasswordHash == "") {
				errs = append(errs, fmt.Errorf("auth.users[%d]: username and password or password_hash required", i))
			}
		}
	}
	switch strings.ToLower(c.Server.Engine) {
	case "", "gin", "echo":
	default:
		errs = append(errs, fmt.Errorf("server: unknown engine %q", c.Server.Engine))
	}
	if _, err := c.Kinds(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Kinds converts [[resources]] into kinds. Without any entry the built-in
// Book and Employee kinds are returned. Routes and tables must be unique.
func (c *Config) Kinds() ([]*resource.Kind, error) {
	if len(c.Resources) == 0 {
		return resource.Builtins(), nil
	}
	kinds := make([]*resource.Kind, 0, len(c.Resources))
	for _, rc := range c.Resources {
		k := &resource.Kind{Name: rc.Name, Route: rc.Route, Table: rc.Table}
		if k.Route == "" {
			k.Route = strings.ToLower(rc.Name) + "s"
		}
		if k.Table == "" {
			k.Table = strings.ReplaceAll(k.Route, "-", "_")
		}
		for _, fc := range rc.Fields {
			k.Fields = append(k.Fields, resource.Field{
				Name:     fc.Name,
				Type:     resource.FieldType(strings.ToLower(fc.Type)),
				Rules:    fc.Rules,
				Messages: fc.Messages,
			})
		}
		kinds = append(kinds, k)
	}
	// NewRegistry validates every kind and rejects duplicates
	if _, err := resource.NewRegistry(kinds...); err != nil {
		return nil, err
	}
	return kinds, nil
}

// ApplyEnvFiles loads KEY=VALUE files into the process environment.
// Variables already set in the environment win.
func ApplyEnvFiles(paths []string) error {
	return env.Apply(paths)
}
