// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package ingest

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/tomtom215/vigil/internal/detection"
	"github.com/tomtom215/vigil/internal/logging"
)

// SubscriberFactory creates the subscriber for one router run. The watermill
// router closes its subscriber on shutdown.
type SubscriberFactory func() (message.Subscriber, error)

// Router consumes the sample and session topics and feeds the engine.
// Each Run builds a fresh watermill router and subscriber, since closed ones
// cannot be started again.
type Router struct {
	config        Config
	handlers      *Handlers
	channels      []detection.Channel
	newSubscriber SubscriberFactory
	poisonPub     message.Publisher
	logger        watermill.LoggerAdapter

	mu      sync.Mutex
	current *message.Router
}

// NewRouter creates a router for the given channels. poisonPub may be nil,
// in which case failed messages are only logged.
func NewRouter(
	cfg Config,
	engine Engine,
	channels []detection.Channel,
	newSubscriber SubscriberFactory,
	poisonPub message.Publisher,
	logger watermill.LoggerAdapter,
) (*Router, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if newSubscriber == nil {
		return nil, fmt.Errorf("subscriber factory is required")
	}
	if len(channels) == 0 {
		return nil, fmt.Errorf("at least one channel is required")
	}
	if logger == nil {
		logger = NewLogger()
	}

	chs := slices.Clone(channels)
	slices.Sort(chs)

	return &Router{
		config:        cfg,
		handlers:      NewHandlers(engine),
		channels:      chs,
		newSubscriber: newSubscriber,
		poisonPub:     poisonPub,
		logger:        logger,
	}, nil
}

// String implements fmt.Stringer for supervisor logs.
func (r *Router) String() string {
	return "ingest-router"
}

// Topics returns the subscribed topics.
func (r *Router) Topics() []string {
	topics := make([]string, 0, len(r.channels)+1)
	for _, ch := range r.channels {
		topics = append(topics, r.config.SamplesTopic(ch))
	}
	return append(topics, r.config.SessionsTopic)
}

func (r *Router) build() (*message.Router, error) {
	closeTimeout := r.config.CloseTimeout
	if closeTimeout <= 0 {
		closeTimeout = 30 * time.Second
	}

	sub, err := r.newSubscriber()
	if err != nil {
		return nil, fmt.Errorf("create subscriber: %w", err)
	}

	wr, err := message.NewRouter(message.RouterConfig{CloseTimeout: closeTimeout}, r.logger)
	if err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	// The first middleware added is the outermost. A panic becomes an error
	// that is retried, and only then poisoned.
	if r.config.ThrottlePerSecond > 0 {
		throttle := middleware.NewThrottle(r.config.ThrottlePerSecond, time.Second)
		wr.AddMiddleware(throttle.Middleware)
	}

	if r.poisonPub != nil && r.config.PoisonQueueTopic != "" {
		poison, err := middleware.PoisonQueue(r.poisonPub, r.config.PoisonQueueTopic)
		if err != nil {
			_ = sub.Close()
			return nil, fmt.Errorf("create poison queue middleware: %w", err)
		}
		wr.AddMiddleware(poison)
	}

	retry := middleware.Retry{
		MaxRetries:      r.config.RetryMaxRetries,
		InitialInterval: r.config.RetryInitialInterval,
		MaxInterval:     r.config.RetryMaxInterval,
		Multiplier:      r.config.RetryMultiplier,
		Logger:          r.logger,
	}
	wr.AddMiddleware(retry.Middleware)
	wr.AddMiddleware(middleware.Recoverer)

	for _, ch := range r.channels {
		topic := r.config.SamplesTopic(ch)
		wr.AddConsumerHandler("samples-"+string(ch), topic, sub, r.handlers.SampleHandler(topic, ch))
	}
	wr.AddConsumerHandler("sessions", r.config.SessionsTopic, sub, r.handlers.SessionHandler(r.config.SessionsTopic))

	return wr, nil
}

// Run consumes until ctx is canceled.
func (r *Router) Run(ctx context.Context) error {
	wr, err := r.build()
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.current = wr
	r.mu.Unlock()

	logging.Info().Strs("topics", r.Topics()).Msg("ingest router starting")

	err = wr.Run(ctx)

	r.mu.Lock()
	r.current = nil
	r.mu.Unlock()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("ingest router: %w", err)
	}
	return fmt.Errorf("ingest router stopped unexpectedly")
}

// Running returns a channel closed once the current router has subscribed
// to every topic. It returns nil while no router is running.
func (r *Router) Running() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return nil
	}
	return r.current.Running()
}
