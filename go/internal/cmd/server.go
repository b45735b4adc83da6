package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/mcdev12/ludotime/go/internal/config"
	"github.com/mcdev12/ludotime/go/internal/service"
)

const shutdownTimeout = 10 * time.Second

func run(ctx context.Context, cfg config.Config) error {
	st, err := setupStore(ctx, cfg)
	if err != nil {
		return err
	}
	services, err := setupServices(ctx, cfg, st)
	if err != nil {
		return err
	}
	defer services.Close()

	srv := setupServer(cfg, services)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return services.Gateway.Start(ctx) })
	g.Go(func() error { return services.Relay.Run(ctx, services.Sessions) })
	if services.Scheduler != nil {
		g.Go(func() error { return services.Scheduler.Run(ctx, services.Sessions) })
	}
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("store", cfg.StoreDriver).Bool("nats", cfg.NATSEnabled).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info().Msg("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func setupServer(cfg config.Config, services *Services) *http.Server {
	mux := http.NewServeMux()

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	registerServices(mux, services)
	setupHealthCheck(mux)

	handler := c.Handler(mux)

	return &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func registerServices(mux *http.ServeMux, services *Services) {
	path, handler := service.NewSessionServiceHandler(services.Session)
	mux.Handle(path, handler)

	services.Gateway.RegisterRoutes(mux)
}

func setupHealthCheck(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}
