package config

import (
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("kabinaview-test")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("expected postgres driver, got %q", cfg.Database.Driver)
	}
	if cfg.Telemetry.ServiceName != "kabinaview-test" {
		t.Errorf("expected service name from caller, got %q", cfg.Telemetry.ServiceName)
	}
	if cfg.Viewer.FullWidth != 11928 || cfg.Viewer.FullHeight != 12000 {
		t.Errorf("unexpected canvas %dx%d", cfg.Viewer.FullWidth, cfg.Viewer.FullHeight)
	}
	box := cfg.Viewer.Box()
	if box.MinLon != 18.864488 || box.MaxLat != 47.673487 {
		t.Errorf("unexpected box %+v", box)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("KABINA_SERVER_PORT", "9090")
	t.Setenv("KABINA_DATABASE_DRIVER", "sqlite")
	t.Setenv("KABINA_DATABASE_SQLITE_PATH", "/tmp/snap.db")
	t.Setenv("KABINA_VIEWER_WINDOW_SIZE", "800")

	cfg, err := Load("kabinaview")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.SQLitePath != "/tmp/snap.db" {
		t.Errorf("unexpected database %+v", cfg.Database)
	}
	if cfg.Viewer.WindowSize != 800 {
		t.Errorf("expected window 800, got %d", cfg.Viewer.WindowSize)
	}
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("KABINA_DATABASE_DRIVER", "mysql")
	if _, err := Load("kabinaview"); err == nil {
		t.Fatal("expected validation error")
	}
}

func validConfig() Config {
	return Config{
		Server:   ServerConfig{Port: 8080, ReadTimeout: 10, WriteTimeout: 10, RequestTimeout: 15},
		Database: DatabaseConfig{Driver: "sqlite", SQLitePath: "snap.db"},
		NATS:     NATSConfig{StreamMaxAge: 24},
		Log:      LogConfig{Level: "info", Format: "json"},
		Viewer: ViewerConfig{
			MinLon: 18.86, MaxLon: 19.37, MinLat: 47.32, MaxLat: 47.67,
			FullWidth: 11928, FullHeight: 12000, WindowSize: 1500,
			RouteMargin: 50, EntityRadius: 15, EntityThickness: 10, Jitter: 4,
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"valid", func(*Config) {}, ""},
		{"inverted longitude", func(c *Config) { c.Viewer.MinLon = 20 }, "viewer.min_lon"},
		{"margin too wide", func(c *Config) { c.Viewer.RouteMargin = 6000 }, "route_margin"},
		{"zero window", func(c *Config) { c.Viewer.WindowSize = 0 }, "WindowSize"},
		{"postgres without host", func(c *Config) {
			c.Database = DatabaseConfig{Driver: "postgres", Port: 5432, User: "u", DBName: "d"}
		}, "database.host"},
		{"nats without url", func(c *Config) { c.NATS.Enabled = true }, "nats.url"},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }, "Level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error mentioning %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}
