package main

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/ludotime/go/internal/autoplay"
	"github.com/mcdev12/ludotime/go/internal/config"
	"github.com/mcdev12/ludotime/go/internal/events"
	"github.com/mcdev12/ludotime/go/internal/gateway"
	"github.com/mcdev12/ludotime/go/internal/service"
	"github.com/mcdev12/ludotime/go/internal/session"
	"github.com/mcdev12/ludotime/go/internal/store"
)

type Services struct {
	Sessions  *session.Synchronizer
	Session   *service.Service
	Gateway   *gateway.Service
	Relay     *events.Relay
	Scheduler *autoplay.Scheduler

	closers []func() error
}

// Close releases the bus connection and the store.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			log.Error().Err(err).Msg("failed to close resource")
		}
	}
}

func setupServices(ctx context.Context, cfg config.Config, st store.Store) (*Services, error) {
	// Store → Synchronizer → Service, with the relay and autoplay scheduler
	// hanging off the synchronizer's listener.
	svcs := &Services{closers: []func() error{st.Close}}

	var (
		pub events.Publisher = events.LogPublisher{}
		js  jetstream.JetStream
	)
	if cfg.NATSEnabled {
		busCfg := events.DefaultConfig()
		busCfg.URL = cfg.NATSURL
		jsPub, err := events.Connect(ctx, busCfg)
		if err != nil {
			svcs.Close()
			return nil, fmt.Errorf("failed to connect event bus: %w", err)
		}
		svcs.closers = append(svcs.closers, jsPub.Close)
		pub, js = jsPub, jsPub.JetStream()
	}
	svcs.Relay = events.NewRelay(pub)

	listeners := []session.Listener{svcs.Relay}
	if cfg.Autoplay.Enabled {
		apCfg, err := cfg.AutoplayConfig()
		if err != nil {
			svcs.Close()
			return nil, err
		}
		scheduler, err := autoplay.NewScheduler(apCfg)
		if err != nil {
			svcs.Close()
			return nil, err
		}
		svcs.Scheduler = scheduler
		listeners = append(listeners, scheduler)
	}

	safeCells, err := cfg.SafeCellPolicy()
	if err != nil {
		svcs.Close()
		return nil, err
	}
	svcs.Sessions = session.NewSynchronizer(st,
		session.WithSafeCells(safeCells),
		session.WithRetryPolicy(cfg.RetryPolicy()),
		session.WithListener(session.MultiListener(listeners...)),
	)
	svcs.Session = service.NewService(svcs.Sessions)

	gwCfg := gateway.DefaultConfig()
	gwCfg.Path = cfg.GatewayPath
	gw, err := gateway.NewService(ctx, gwCfg, svcs.Sessions, js)
	if err != nil {
		svcs.Close()
		return nil, err
	}
	svcs.Gateway = gw
	return svcs, nil
}
