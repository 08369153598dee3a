// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/vigil/internal/api"
	"github.com/tomtom215/vigil/internal/auth"
	"github.com/tomtom215/vigil/internal/config"
	"github.com/tomtom215/vigil/internal/detection"
	"github.com/tomtom215/vigil/internal/ingest"
	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/store"
	"github.com/tomtom215/vigil/internal/supervisor"
	"github.com/tomtom215/vigil/internal/supervisor/services"
	ws "github.com/tomtom215/vigil/internal/websocket"
)

func runServe(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		logging.Error().Err(err).Msg("Failed to load configuration")
		return fmt.Errorf("load configuration: %w", err)
	}
	logging.Init(cfg.Logging)
	logging.Info().
		Int("channels", len(cfg.Detection.Channels)).
		Str("auth_mode", cfg.Auth.Mode).
		Msg("Starting Vigil")

	ctx, cancel := signalContext(parent)
	defer cancel()

	// === DATA LAYER ===

	st, err := store.Open(cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeQuietly("store", st)
	logging.Info().Bool("in_memory", cfg.Store.InMemory).Str("path", cfg.Store.Path).Msg("Store opened")

	var broker *ingest.EmbeddedServer
	if cfg.Broker.Enabled {
		broker = ingest.NewEmbeddedServer(cfg.Broker)
		if err := broker.Start(); err != nil {
			return fmt.Errorf("start embedded NATS server: %w", err)
		}
		cfg.Ingest.URL = broker.ClientURL()
		logging.Info().Str("url", cfg.Ingest.URL).Msg("Embedded NATS server started")
	}

	// === ALERTING ===

	hub := ws.NewHub()

	var natsSink detection.Sink
	var poisonPub message.Publisher
	var engineOpts []detection.Option
	if cfg.Notify.NATS || cfg.Ingest.PoisonQueueTopic != "" || cfg.Ingest.ActionsTopic != "" {
		pub, err := ingest.NewPublisher(cfg.Ingest, ingest.NewLogger())
		if err != nil {
			return fmt.Errorf("create NATS publisher: %w", err)
		}
		poisonPub = pub
		if cfg.Notify.NATS {
			// The alert publisher owns pub and closes it.
			alerts := ingest.NewAlertPublisher(pub, cfg.Ingest.AlertsTopic)
			defer closeQuietly("nats-publisher", alerts)
			natsSink = alerts
		} else {
			defer closeQuietly("nats-publisher", pub)
		}
		if cfg.Ingest.ActionsTopic != "" {
			engineOpts = append(engineOpts,
				detection.WithActionHandler(ingest.NewActionPublisher(pub, cfg.Ingest.ActionsTopic)))
			logging.Info().Str("topic", cfg.Ingest.ActionsTopic).Msg("Action publisher configured")
		}
	}

	dispatcher := detection.NewDispatcher(cfg.Detection.Dispatch,
		buildSinks(cfg.Notify, hub, natsSink)...)
	logging.Info().Strs("sinks", dispatcher.Sinks()).Msg("Alert dispatcher configured")

	// === ENGINE ===

	engineOpts = append(engineOpts,
		detection.WithLedger(st),
		detection.WithDispatcher(dispatcher),
	)
	engine := detection.NewEngine(cfg.Detection, engineOpts...)
	defer closeQuietly("engine", engine)

	channels := channelList(cfg.Detection)
	ingestCfg := cfg.Ingest
	router, err := ingest.NewRouter(ingestCfg, engine, channels,
		func() (message.Subscriber, error) {
			return ingest.NewSubscriber(ingestCfg, ingest.NewLogger())
		},
		poisonPub, ingest.NewLogger())
	if err != nil {
		return fmt.Errorf("create ingest router: %w", err)
	}
	logging.Info().Strs("topics", router.Topics()).Str("url", ingestCfg.URL).Msg("Ingest router configured")

	// === HTTP ===

	authMW, err := newAuthMiddleware(cfg)
	if err != nil {
		return err
	}
	warnCORS(cfg)

	handler := api.NewHandler(cfg.API, engine, st, hub, dispatcher)
	routes := api.NewRouter(handler, authMW).Setup()
	newServer := func() services.HTTPServer {
		return &http.Server{
			Addr:         cfg.API.Addr(),
			Handler:      routes,
			ReadTimeout:  cfg.API.ReadTimeout,
			WriteTimeout: cfg.API.WriteTimeout,
			IdleTimeout:  cfg.API.IdleTimeout,
		}
	}

	// === SUPERVISOR TREE ===

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), cfg.Supervisor)
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	if broker != nil {
		tree.AddDataService(services.NewBrokerService(broker, cfg.Supervisor.ShutdownTimeout))
	}
	tree.AddDataService(services.NewStoreGCService(store.NewGCLoop(st)))

	tree.AddEngineService(services.NewEngineService(engine))
	tree.AddEngineService(services.NewDispatcherService(dispatcher))

	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	tree.AddMessagingService(services.NewIngestService(router))

	tree.AddAPIService(services.NewHTTPServerService(newServer, cfg.API.ShutdownTimeout))
	logging.Info().Str("addr", cfg.API.Addr()).Msg("HTTP server service added")

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Vigil stopped gracefully")
	return nil
}

func newAuthMiddleware(cfg *config.Config) (*auth.Middleware, error) {
	var jwtManager *auth.JWTManager
	switch cfg.Auth.Mode {
	case auth.ModeJWT:
		var err error
		jwtManager, err = auth.NewJWTManager(cfg.Auth)
		if err != nil {
			return nil, fmt.Errorf("initialize JWT manager: %w", err)
		}
		logging.Info().Dur("token_ttl", cfg.Auth.TokenTTL).Msg("JWT authentication enabled")
	case auth.ModeNone:
		logging.Warn().Msg("============================================================")
		logging.Warn().Msg("  SECURITY WARNING: Authentication is DISABLED (AUTH_MODE=none)")
		logging.Warn().Msg("  ")
		logging.Warn().Msg("  Every staff endpoint, including pardons and ban removal,")
		logging.Warn().Msg("  is reachable without credentials.")
		logging.Warn().Msg("  ")
		logging.Warn().Msg("  NEVER use AUTH_MODE=none on a network players can reach!")
		logging.Warn().Msg("============================================================")
	}

	mw, err := auth.NewMiddleware(jwtManager, cfg.Auth.Mode)
	if err != nil {
		return nil, fmt.Errorf("create auth middleware: %w", err)
	}

	if cfg.API.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}
	return mw, nil
}

func warnCORS(cfg *config.Config) {
	if cfg.Auth.Mode == auth.ModeNone || !slices.Contains(cfg.API.CORSOrigins, "*") {
		return
	}
	logging.Warn().Msg("============================================================")
	logging.Warn().Msg("  SECURITY WARNING: CORS is configured with wildcard origin (CORS_ORIGINS=*)")
	logging.Warn().Msg("  ")
	logging.Warn().Msg("  Any website can issue cross-origin requests to the staff API.")
	logging.Warn().Msg("  RECOMMENDED: CORS_ORIGINS=https://panel.example.com")
	logging.Warn().Msg("============================================================")
}
