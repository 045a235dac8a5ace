// Command realtime-demo wires the realtime hub to a WebSocket and SSE
// transport: join a channel over /ws or /events, publish over /publish, and
// inspect membership over /presence. It exists as a reference for embedding
// the hub behind a real transport, not as a production server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/realtime/core/config"
	"github.com/dmitrymomot/realtime/core/heartbeat"
	"github.com/dmitrymomot/realtime/core/hub"
)

type appConfig struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	BufferSize      int           `env:"CHANNEL_BUFFER_SIZE" envDefault:"256"`
	Heartbeat       heartbeat.Config
}

func main() {
	var cfg appConfig
	config.MustLoad(&cfg)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	srv := newServer(logger)
	h := hub.New(
		hub.WithChannelBufferSize(cfg.BufferSize),
		hub.WithHeartbeatConfig(cfg.Heartbeat),
		hub.WithHeartbeatHandler(heartbeat.HandlerFuncs{
			OnPingFunc: srv.pingClient,
			OnDeadFunc: srv.dropClient,
		}),
		hub.WithLogger(logger),
	)
	srv.hub = h

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(h.Heartbeat().Run(ctx))
	g.Go(func() error {
		logger.InfoContext(ctx, "server listening", slog.String("addr", cfg.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}
