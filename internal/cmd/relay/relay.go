// Package relay parses relay flags and launches the websocket relay.
package relay

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"time"

	entrypoint "github.com/nearplay/duelsync/internal/platform/cmd"
	"github.com/nearplay/duelsync/internal/platform/logging"
	"github.com/nearplay/duelsync/internal/transport/ws"
)

// Config holds relay command configuration.
type Config struct {
	Port int `env:"DUELSYNC_RELAY_PORT" envDefault:"8090"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The relay websocket port")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the websocket relay server.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceRelay, func(ctx context.Context) error {
		log := logging.New()
		relay := ws.NewRelay(log)

		mux := http.NewServeMux()
		mux.Handle("/session", relay.Handler())

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.WithField("port", cfg.Port).Info("relay listening")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		case err := <-errCh:
			return err
		}
	})
}
