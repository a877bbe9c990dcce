// Command eurus runs the game session service: the room creation API, the
// repository actor, and one runtime per live room.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/eurus-project/eurus/internal/v1/config"
	"github.com/eurus-project/eurus/internal/v1/logging"
	"github.com/eurus-project/eurus/internal/v1/repository"
	"github.com/eurus-project/eurus/internal/v1/service"
	"github.com/eurus-project/eurus/internal/v1/tracing"
	"github.com/eurus-project/eurus/internal/v1/transport"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "eurus:", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) != 2 {
		return errors.New("usage: eurus <config_path>")
	}

	// Optional .env for secrets kept out of the config file.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Args[1])
	if err != nil {
		return err
	}
	if err := logging.Initialize(cfg.Telemetry.Development); err != nil {
		return fmt.Errorf("setting up logger: %w", err)
	}

	ctx := context.Background()

	tracingEnabled := cfg.Telemetry.OTLPCollectorAddr != ""
	if tracingEnabled {
		tp, err := tracing.InitTracer(ctx, "eurus", cfg.Telemetry.OTLPCollectorAddr)
		if err != nil {
			logging.Warn(ctx, "tracing disabled", zap.Error(err))
			tracingEnabled = false
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				_ = tp.Shutdown(shutdownCtx)
			}()
		}
	}

	store, err := repository.NewMongoStore(ctx, cfg.DB)
	if err != nil {
		return err
	}

	actor := repository.NewActor(store)
	go actor.Run(ctx)

	svc := service.NewRoomService(actor, cfg, nil)
	router, err := transport.NewRouter(transport.NewHandler(svc), store, transport.RouterOptions{
		TracingEnabled: tracingEnabled,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    cfg.Runtime.ServerAddress,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info(ctx, "http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return err
	case <-sigCtx.Done():
	}

	// Stop accepting, let in-flight handlers finish, then close the
	// repository. Live rooms detach; the broker's last will covers the ones
	// that die with us.
	logging.Info(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(ctx, "http shutdown", zap.Error(err))
	}

	if _, err := actor.Send(shutdownCtx, repository.Close{}); err != nil {
		logging.Error(ctx, "closing repository", zap.Error(err))
	}
	select {
	case <-actor.Finished():
	case <-shutdownCtx.Done():
		logging.Error(ctx, "repository did not drain in time")
	}

	logging.Info(ctx, "shutdown complete")
	return nil
}
