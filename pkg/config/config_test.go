package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dd0wney/cluso-graphview/pkg/store"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graphview.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
  shutdown_timeout: 3s
store:
  driver: sqlite
  path: /tmp/graphview.db
  compress: true
layout:
  repulsion_constant: 4000
  ideal_length: 120
  spring_constant: 0.04
  gravity_constant: 0.02
  velocity_clamp: 4
  convergence_threshold: 0.05
  max_iterations: 5000
  frame_rate: 30
builder:
  seed: 42
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Addr != ":9090" || cfg.Server.ShutdownTimeout != 3*time.Second {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unset field lost its default: ReadTimeout = %v", cfg.Server.ReadTimeout)
	}
	if cfg.Store.Driver != store.DriverSQLite || !cfg.Store.Compress {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Layout.RepulsionConstant != 4000 || cfg.Layout.MaxIterations != 5000 || cfg.Layout.FrameRate != 30 {
		t.Errorf("layout = %+v", cfg.Layout)
	}
	if cfg.Builder.Seed != 42 || cfg.Builder.Width != 1000 {
		t.Errorf("builder = %+v", cfg.Builder)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: \":9090\"\n")
	t.Setenv("GRAPHVIEW_ADDR", ":7000")
	t.Setenv("GRAPHVIEW_STORE_DRIVER", "postgres")
	t.Setenv("GRAPHVIEW_STORE_DSN", "postgres://localhost/graphview")
	t.Setenv("GRAPHVIEW_LAYOUT_MAX_ITERATIONS", "250")
	t.Setenv("GRAPHVIEW_LAYOUT_GRAVITY", "0.5")
	t.Setenv("GRAPHVIEW_TRANSPORT_ENABLED", "true")
	t.Setenv("GRAPHVIEW_FINAL_FRAME_TIMEOUT", "250ms")
	t.Setenv("GRAPHVIEW_SESSION_RETENTION", "30s")
	t.Setenv("GRAPHVIEW_MAX_RETAINED_SESSIONS", "8")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != ":7000" {
		t.Errorf("Addr = %q, want :7000", cfg.Server.Addr)
	}
	if cfg.Store.Driver != store.DriverPostgres || cfg.Store.DSN == "" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Layout.MaxIterations != 250 || cfg.Layout.GravityConstant != 0.5 {
		t.Errorf("layout = %+v", cfg.Layout)
	}
	if !cfg.Transport.Enabled {
		t.Error("transport not enabled")
	}
	if cfg.Server.FinalFrameTimeout != 250*time.Millisecond {
		t.Errorf("FinalFrameTimeout = %v", cfg.Server.FinalFrameTimeout)
	}
	if cfg.Server.SessionRetention != 30*time.Second || cfg.Server.MaxRetainedSessions != 8 {
		t.Errorf("retention = %v / %d", cfg.Server.SessionRetention, cfg.Server.MaxRetainedSessions)
	}
}

func TestLoad_MalformedEnv(t *testing.T) {
	t.Setenv("GRAPHVIEW_LAYOUT_FRAME_RATE", "fast")
	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "GRAPHVIEW_LAYOUT_FRAME_RATE") {
		t.Errorf("Load() error = %v, want frame rate parse error", err)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad yaml", "server: [", "parse config"},
		{"unknown driver", "store:\n  driver: mongo\n", "Driver"},
		{"postgres without dsn", "store:\n  driver: postgres\n", "Store.DSN"},
		{"s3 without bucket", "store:\n  driver: s3\n", "Store.S3.Bucket"},
		{"bad layout", "layout:\n  velocity_clamp: 0\n", "VelocityClamp"},
		{"bad log level", "log:\n  level: loud\n", "Level"},
		{"negative retained cap", "server:\n  max_retained_sessions: -1\n", "Server.MaxRetainedSessions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Load() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of a missing file succeeded")
	}
}
