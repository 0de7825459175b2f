package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kabina/kabinaview/internal/core/domain"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
	Viewer    ViewerConfig    `mapstructure:"viewer"`
}

type ServerConfig struct {
	Port           int `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout    int `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout   int `mapstructure:"write_timeout" validate:"gt=0"`
	RequestTimeout int `mapstructure:"request_timeout" validate:"gt=0"`
	RateLimit      int `mapstructure:"rate_limit" validate:"gte=0"`
}

type DatabaseConfig struct {
	Driver     string `mapstructure:"driver" validate:"oneof=postgres sqlite"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port" validate:"min=0,max=65535"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	DBName     string `mapstructure:"dbname"`
	SSLMode    string `mapstructure:"sslmode"`
	MaxConns   int32  `mapstructure:"max_conns" validate:"gte=0"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
	// StreamMaxAge is how long notice and frame events are retained, in hours.
	StreamMaxAge int `mapstructure:"stream_max_age" validate:"gt=0"`
}

type ValkeyConfig struct {
	Addr    string `mapstructure:"addr"`
	Enabled bool   `mapstructure:"enabled"`
	Prefix  string `mapstructure:"prefix"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

// ViewerConfig fixes the map canvas and the drawing geometry.
type ViewerConfig struct {
	MinLon float64 `mapstructure:"min_lon"`
	MaxLon float64 `mapstructure:"max_lon"`
	MinLat float64 `mapstructure:"min_lat" validate:"gte=-90,lte=90"`
	MaxLat float64 `mapstructure:"max_lat" validate:"gte=-90,lte=90"`

	FullWidth       int `mapstructure:"full_width" validate:"gt=0"`
	FullHeight      int `mapstructure:"full_height" validate:"gt=0"`
	WindowSize      int `mapstructure:"window_size" validate:"gt=0"`
	RouteMargin     int `mapstructure:"route_margin" validate:"gte=0"`
	EntityRadius    int `mapstructure:"entity_radius" validate:"gt=0"`
	EntityThickness int `mapstructure:"entity_thickness" validate:"gte=0"`
	Jitter          int `mapstructure:"jitter" validate:"gte=0"`

	// CacheTTL is in seconds; zero disables the fetch cache.
	CacheTTL int `mapstructure:"cache_ttl" validate:"gte=0"`
	// SessionIdle is in seconds; zero keeps sessions until closed.
	SessionIdle     int    `mapstructure:"session_idle" validate:"gte=0"`
	BackgroundImage string `mapstructure:"background_image"`
}

// Box returns the configured bounding box.
func (v ViewerConfig) Box() domain.BoundingBox {
	return domain.BoundingBox{MinLon: v.MinLon, MaxLon: v.MaxLon, MinLat: v.MinLat, MaxLat: v.MaxLat}
}

// IdleTimeout returns SessionIdle as a duration.
func (v ViewerConfig) IdleTimeout() time.Duration {
	return time.Duration(v.SessionIdle) * time.Second
}

// Load reads configuration from .env, an optional config file and
// environment variables, in increasing precedence.
func Load(service string) (*Config, error) {
	_ = godotenv.Load() // OK if missing

	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.request_timeout", 15)
	v.SetDefault("server.rate_limit", 300)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "kabina")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "kabina")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.sqlite_path", "kabina-snapshot.db")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", true)
	v.SetDefault("nats.stream_max_age", 24)
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.enabled", true)
	v.SetDefault("valkey.prefix", "kabinaview:")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("viewer.min_lon", 18.864488)
	v.SetDefault("viewer.max_lon", 19.375611)
	v.SetDefault("viewer.min_lat", 47.326478)
	v.SetDefault("viewer.max_lat", 47.673487)
	v.SetDefault("viewer.full_width", 11928)
	v.SetDefault("viewer.full_height", 12000)
	v.SetDefault("viewer.window_size", 1500)
	v.SetDefault("viewer.route_margin", 50)
	v.SetDefault("viewer.entity_radius", 15)
	v.SetDefault("viewer.entity_thickness", 10)
	v.SetDefault("viewer.jitter", 4)
	v.SetDefault("viewer.cache_ttl", 5)
	v.SetDefault("viewer.session_idle", 1800)
	v.SetDefault("viewer.background_image", "")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: KABINA_DATABASE_HOST → database.host
	v.SetEnvPrefix("KABINA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

var validate = validator.New()

// Validate checks field ranges from the struct tags, then the rules that
// span several fields.
func (c *Config) Validate() error {
	var errs []string

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("config validation failed: %w", err)
		}
		for _, fe := range verrs {
			errs = append(errs, fmt.Sprintf("%s failed %s=%s (got %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
		}
	}

	switch c.Database.Driver {
	case "postgres":
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Port <= 0 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
	case "sqlite":
		if c.Database.SQLitePath == "" {
			errs = append(errs, "database.sqlite_path is required for the sqlite driver")
		}
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Enabled && c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Viewer.MinLon >= c.Viewer.MaxLon {
		errs = append(errs, "viewer.min_lon must be below viewer.max_lon")
	}
	if c.Viewer.MinLat >= c.Viewer.MaxLat {
		errs = append(errs, "viewer.min_lat must be below viewer.max_lat")
	}
	if 2*c.Viewer.RouteMargin >= c.Viewer.FullWidth || 2*c.Viewer.RouteMargin >= c.Viewer.FullHeight {
		errs = append(errs, "viewer.route_margin leaves no drawing area")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
