// Package header parses header service flags and launches the service.
package header

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/navheader/internal/platform/cmd"
	"github.com/louisbranch/navheader/internal/platform/i18n/catalog"
	"github.com/louisbranch/navheader/internal/platform/telemetry/metrics"
	headerservice "github.com/louisbranch/navheader/internal/services/header"
	"github.com/louisbranch/navheader/internal/services/header/gateway"
	"github.com/louisbranch/navheader/internal/services/header/storage/sqlite"
)

// Config holds header command configuration.
type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:"localhost:8095"`
	BackendURL      string        `env:"BACKEND_URL" envDefault:"http://localhost:8080"`
	BasePath        string        `env:"BASE_PATH"`
	DBPath          string        `env:"DB_PATH" envDefault:"data/navheader.db"`
	ExpectedPlugins []string      `env:"EXPECTED_PLUGINS" envSeparator:","`
	PluginWait      time.Duration `env:"PLUGIN_WAIT" envDefault:"2s"`
	SessionTTL      time.Duration `env:"SESSION_TTL" envDefault:"1m"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	expected := strings.Join(cfg.ExpectedPlugins, ",")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.BackendURL, "backend-url", cfg.BackendURL, "Code-review backend REST base URL")
	fs.StringVar(&cfg.BasePath, "base-path", cfg.BasePath, "Public base path; defaults to the backend's")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "Plugin registry SQLite path")
	fs.StringVar(&expected, "expected-plugins", expected, "Comma-separated plugins to wait for")
	fs.DurationVar(&cfg.PluginWait, "plugin-wait", cfg.PluginWait, "Maximum wait for expected plugins")
	fs.DurationVar(&cfg.SessionTTL, "session-ttl", cfg.SessionTTL, "How long a viewer's header state is reused")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	cfg.ExpectedPlugins = splitList(expected)
	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Run starts the header HTTP service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceHeader, func(ctx context.Context) error {
		client, err := gateway.New(cfg.BackendURL)
		if err != nil {
			return err
		}
		if dir := filepath.Dir(cfg.DBPath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create storage dir: %w", err)
			}
		}
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open plugin registry: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Printf("close plugin registry: %v", err)
			}
		}()

		srv, err := headerservice.NewServer(ctx, headerservice.Config{
			HTTPAddr:        cfg.HTTPAddr,
			Backends:        headerservice.GatewayBackends(client),
			Registry:        store,
			ExpectedPlugins: cfg.ExpectedPlugins,
			PluginWait:      cfg.PluginWait,
			BasePath:        cfg.BasePath,
			SessionTTL:      cfg.SessionTTL,
			Catalog:         catalog.Default(),
			Metrics:         metrics.NewRecorder(),
			Logger:          log.Default(),
		})
		if err != nil {
			return err
		}
		defer srv.Close()
		return srv.ListenAndServe(ctx)
	})
}
