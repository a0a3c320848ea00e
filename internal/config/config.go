package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/simp-lee/rentadmin/internal/domain"
)

// Config is the top-level dashboard configuration.
type Config struct {
	Server    ServerConfig              `koanf:"server"`
	Backend   BackendConfig             `koanf:"backend"`
	Listing   ListingConfig             `koanf:"listing"`
	State     StateConfig               `koanf:"state"`
	Database  DatabaseConfig            `koanf:"database"`
	Redis     RedisConfig               `koanf:"redis"`
	Log       LogConfig                 `koanf:"log"`
	Resources map[string]ResourceConfig `koanf:"resources"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Mode    string        `koanf:"mode"`
	Timeout string        `koanf:"timeout"`
	CORS    CORSConfig    `koanf:"cors"`
	Session SessionConfig `koanf:"session"`
	// TrustRequestID reuses a valid upstream X-Request-ID.
	TrustRequestID bool `koanf:"trust_request_id"`
}

// CORSConfig holds CORS settings for a rendering layer served from another
// origin.
type CORSConfig struct {
	AllowOrigins     []string `koanf:"allow_origins"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           string   `koanf:"max_age"`
}

// SessionConfig holds the dashboard session cookie settings.
type SessionConfig struct {
	CookieName string `koanf:"cookie_name"`
	MaxAge     string `koanf:"max_age"`
	Secure     *bool  `koanf:"secure"`
}

// BackendConfig holds the marketplace REST backend settings.
type BackendConfig struct {
	BaseURL   string          `koanf:"base_url"`
	Token     string          `koanf:"token"`
	Timeout   string          `koanf:"timeout"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
}

// RateLimitConfig holds client-side rate limiting settings.
type RateLimitConfig struct {
	Enabled bool    `koanf:"enabled"`
	RPS     float64 `koanf:"rps"`
	Burst   int     `koanf:"burst"`
}

// ListingConfig holds list view settings.
type ListingConfig struct {
	DefaultPageSize int                `koanf:"default_page_size"`
	MaxPageSize     int                `koanf:"max_page_size"`
	MaxSessions     int                `koanf:"max_sessions"`
	InboxSize       int                `koanf:"inbox_size"`
	Cache           ListingCacheConfig `koanf:"cache"`
}

// ListingCacheConfig holds the shared snapshot cache settings.
type ListingCacheConfig struct {
	TTL     string `koanf:"ttl"`
	MaxSize int    `koanf:"max_size"`
}

// StateConfig selects where pagination preferences are stored.
type StateConfig struct {
	Driver string `koanf:"driver"`
	TTL    string `koanf:"ttl"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver   string         `koanf:"driver"`
	SQLite   SQLiteConfig   `koanf:"sqlite"`
	Postgres PostgresConfig `koanf:"postgres"`
	Pool     PoolConfig     `koanf:"pool"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path string `koanf:"path"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	DBName   string `koanf:"dbname"`
	SSLMode  string `koanf:"sslmode"`
}

// PoolConfig holds database connection pool settings.
type PoolConfig struct {
	MaxIdleConns    int    `koanf:"max_idle_conns"`
	MaxOpenConns    int    `koanf:"max_open_conns"`
	ConnMaxLifetime string `koanf:"conn_max_lifetime"`
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Prefix   string `koanf:"prefix"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level           string `koanf:"level"`
	Format          string `koanf:"format"`
	Color           *bool  `koanf:"color"`
	FilePath        string `koanf:"file_path"`
	MaxSizeMB       int    `koanf:"max_size_mb"`
	RetentionDays   int    `koanf:"retention_days"`
	MaxBackups      int    `koanf:"max_backups"`
	CompressRotated *bool  `koanf:"compress_rotated"`
}

// ResourceConfig overrides the endpoints of one catalog resource.
type ResourceConfig struct {
	Path       string   `koanf:"path"`
	ListPath   string   `koanf:"list_path"`
	CreatePath string   `koanf:"create_path"`
	ListKey    string   `koanf:"list_key"`
	Required   []string `koanf:"required"`
}

// Load reads configuration from a YAML file and overlays environment variables.
// Environment variables use the prefix "APP__" and double-underscore as the
// hierarchy separator, so APP__BACKEND__BASE_URL overrides backend.base_url
// and APP__LISTING__CACHE__TTL overrides listing.cache.ttl.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}

	if err := k.Load(env.Provider("APP__", ".", func(s string) string {
		key := strings.TrimPrefix(s, "APP__")
		key = strings.ToLower(key)
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate normalizes values, fills defaults and rejects unsupported ones.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateBackend(); err != nil {
		return err
	}
	if err := c.validateListing(); err != nil {
		return err
	}
	if err := c.validateState(); err != nil {
		return err
	}
	if err := c.validateResources(); err != nil {
		return err
	}
	return c.validateLog()
}

func (c *Config) validateServer() error {
	mode := strings.TrimSpace(c.Server.Mode)
	switch mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		c.Server.Mode = mode
	default:
		return fmt.Errorf("invalid server.mode %q: must be one of %q, %q, %q", c.Server.Mode, gin.DebugMode, gin.ReleaseMode, gin.TestMode)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d: must be between 1 and 65535", c.Server.Port)
	}

	host := strings.TrimSpace(c.Server.Host)
	if host == "" {
		return fmt.Errorf("server.host is required")
	}
	c.Server.Host = host

	if err := optionalDuration("server.timeout", &c.Server.Timeout); err != nil {
		return err
	}
	if err := optionalDuration("server.cors.max_age", &c.Server.CORS.MaxAge); err != nil {
		return err
	}
	if err := optionalDuration("server.session.max_age", &c.Server.Session.MaxAge); err != nil {
		return err
	}

	origins := make([]string, 0, len(c.Server.CORS.AllowOrigins))
	for i, o := range c.Server.CORS.AllowOrigins {
		o = strings.TrimSpace(o)
		if o == "" {
			return fmt.Errorf("server.cors.allow_origins[%d] cannot be empty", i)
		}
		if o == "*" && c.Server.CORS.AllowCredentials {
			return fmt.Errorf("server.cors.allow_origins cannot contain %q when allow_credentials is true", "*")
		}
		origins = append(origins, o)
	}
	c.Server.CORS.AllowOrigins = origins

	c.Server.Session.CookieName = strings.TrimSpace(c.Server.Session.CookieName)
	if c.Server.Session.CookieName == "" {
		c.Server.Session.CookieName = "rentadmin_session"
	}
	return nil
}

func (c *Config) validateBackend() error {
	raw := strings.TrimSpace(c.Backend.BaseURL)
	if raw == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid backend.base_url %q: must be an absolute http or https url", c.Backend.BaseURL)
	}
	c.Backend.BaseURL = raw
	c.Backend.Token = strings.TrimSpace(c.Backend.Token)

	if err := optionalDuration("backend.timeout", &c.Backend.Timeout); err != nil {
		return err
	}

	if c.Backend.RateLimit.Enabled {
		if c.Backend.RateLimit.RPS <= 0 {
			return fmt.Errorf("invalid backend.rate_limit.rps %v: must be positive when rate limiting is enabled", c.Backend.RateLimit.RPS)
		}
		if c.Backend.RateLimit.Burst <= 0 {
			return fmt.Errorf("invalid backend.rate_limit.burst %d: must be positive when rate limiting is enabled", c.Backend.RateLimit.Burst)
		}
	}
	return nil
}

func (c *Config) validateListing() error {
	l := &c.Listing
	if l.DefaultPageSize < 0 || l.MaxPageSize < 0 || l.MaxSessions < 0 || l.InboxSize < 0 || l.Cache.MaxSize < 0 {
		return fmt.Errorf("listing sizes must not be negative")
	}
	if l.DefaultPageSize == 0 {
		l.DefaultPageSize = 10
	}
	if l.MaxPageSize == 0 {
		l.MaxPageSize = 100
	}
	if l.DefaultPageSize > l.MaxPageSize {
		return fmt.Errorf("invalid listing.default_page_size %d: must not exceed listing.max_page_size %d", l.DefaultPageSize, l.MaxPageSize)
	}
	return optionalDuration("listing.cache.ttl", &l.Cache.TTL)
}

func (c *Config) validateState() error {
	driver := strings.ToLower(strings.TrimSpace(c.State.Driver))
	if driver == "" {
		driver = "memory"
	}
	c.State.Driver = driver
	if err := optionalDuration("state.ttl", &c.State.TTL); err != nil {
		return err
	}

	switch driver {
	case "memory":
		return nil
	case "database":
		return c.validateDatabase()
	case "redis":
		addr := strings.TrimSpace(c.Redis.Addr)
		if addr == "" {
			return fmt.Errorf("redis.addr is required when state.driver is redis")
		}
		c.Redis.Addr = addr
		if c.Redis.DB < 0 {
			return fmt.Errorf("invalid redis.db %d: must not be negative", c.Redis.DB)
		}
		return nil
	default:
		return fmt.Errorf("invalid state.driver %q: must be one of %q, %q, %q", c.State.Driver, "memory", "database", "redis")
	}
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case "sqlite":
		sqlitePath := strings.TrimSpace(c.Database.SQLite.Path)
		if sqlitePath == "" {
			return fmt.Errorf("database.sqlite.path is required when driver is sqlite")
		}
		c.Database.SQLite.Path = sqlitePath
	case "postgres":
		pg := &c.Database.Postgres
		pg.Host = strings.TrimSpace(pg.Host)
		pg.User = strings.TrimSpace(pg.User)
		pg.DBName = strings.TrimSpace(pg.DBName)
		pg.SSLMode = strings.TrimSpace(pg.SSLMode)
		if pg.Host == "" {
			return fmt.Errorf("database.postgres.host is required when driver is postgres")
		}
		if pg.Port < 1 || pg.Port > 65535 {
			return fmt.Errorf("invalid database.postgres.port %d: must be between 1 and 65535", pg.Port)
		}
		if pg.User == "" {
			return fmt.Errorf("database.postgres.user is required when driver is postgres")
		}
		if pg.DBName == "" {
			return fmt.Errorf("database.postgres.dbname is required when driver is postgres")
		}
		switch pg.SSLMode {
		case "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
		default:
			return fmt.Errorf("invalid database.postgres.sslmode %q", pg.SSLMode)
		}
	default:
		return fmt.Errorf("invalid database.driver %q: must be one of %q, %q", c.Database.Driver, "sqlite", "postgres")
	}
	return optionalDuration("database.pool.conn_max_lifetime", &c.Database.Pool.ConnMaxLifetime)
}

func (c *Config) validateResources() error {
	known := domain.DefaultCatalog()
	for name, r := range c.Resources {
		if _, ok := known.Lookup(name); !ok {
			return fmt.Errorf("unknown resource %q in resources", name)
		}
		for _, p := range []struct{ key, value string }{
			{"path", r.Path}, {"list_path", r.ListPath}, {"create_path", r.CreatePath},
		} {
			if p.value != "" && !strings.HasPrefix(p.value, "/") {
				return fmt.Errorf("invalid resources.%s.%s %q: must start with '/'", name, p.key, p.value)
			}
		}
	}
	return nil
}

func (c *Config) validateLog() error {
	level := strings.ToLower(strings.TrimSpace(c.Log.Level))
	switch level {
	case "debug", "info", "warn", "error":
		c.Log.Level = level
	default:
		return fmt.Errorf("invalid log.level %q: must be one of %q, %q, %q, %q", c.Log.Level, "debug", "info", "warn", "error")
	}

	format := strings.ToLower(strings.TrimSpace(c.Log.Format))
	switch format {
	case "text", "json":
		c.Log.Format = format
	default:
		return fmt.Errorf("invalid log.format %q: must be one of %q, %q", c.Log.Format, "text", "json")
	}
	return nil
}

// Catalog returns the default resource catalog with the configured
// overrides applied.
func (c *Config) Catalog() (*domain.Catalog, error) {
	catalog := domain.DefaultCatalog()
	for name, r := range c.Resources {
		err := catalog.Apply(name, domain.ResourceOverride{
			Path:       r.Path,
			ListPath:   r.ListPath,
			CreatePath: r.CreatePath,
			ListKey:    r.ListKey,
			Required:   r.Required,
		})
		if err != nil {
			return nil, err
		}
	}
	return catalog, nil
}

// Duration parses a validated optional duration, returning def when unset.
func Duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// optionalDuration trims *v and checks it is a positive duration when set.
func optionalDuration(key string, v *string) error {
	*v = strings.TrimSpace(*v)
	if *v == "" {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, *v, err)
	}
	if d <= 0 {
		return fmt.Errorf("invalid %s %q: must be greater than 0", key, *v)
	}
	return nil
}
