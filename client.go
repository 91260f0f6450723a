// Copyright 2026 The bluestreak-go Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bluestreak is a durable workflow execution engine backed by a
// document store. A workflow is a user-registered handler that coordinates
// side-effectful steps and timed pauses through a Context; the engine
// guarantees each step runs at-most-once across crashes and retries, that
// pauses survive process restarts, and that failed executions resume from
// the last completed step.
package bluestreak

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/ferromir/bluestreak-go/internal/engine"
	"github.com/ferromir/bluestreak-go/internal/registry"
	"github.com/ferromir/bluestreak-go/internal/store"
	"github.com/ferromir/bluestreak-go/internal/store/mongostore"
	"github.com/ferromir/bluestreak-go/internal/store/sqlitestore"
	bserrs "github.com/ferromir/bluestreak-go/pkg/errors"
)

// Context is the per-run object a Handler uses to produce durable,
// idempotent effects. It is a type alias for the engine's internal
// implementation so the concrete type can live in an internal package
// while still being nameable in a Handler's signature.
type Context = engine.Context

// Handler is a user-supplied asynchronous procedure registered under a
// handler id. It receives the opaque input recorded at Start and returns
// an opaque result or an error; a returned error is recorded as a workflow
// failure and never propagates to the caller of Poll.
type Handler func(ctx *Context, input any) (any, error)

// Client is the boundary between user code and the
// engine. Construct one with New, call Init before RegisterHandler/Poll,
// and Close when done.
type Client struct {
	cfg      *Config
	store    store.Store
	registry *registry.Registry
	runner   *engine.Runner
	poller   *engine.Poller
	tracer   trace.Tracer
}

// New constructs a Client from the given options without opening any
// connection; call Init to do that.
func New(opts ...Option) *Client {
	return &Client{
		cfg:      NewConfig(opts...),
		registry: registry.New(),
		tracer:   otel.Tracer("github.com/ferromir/bluestreak-go"),
	}
}

// Init opens the store connection, acquires collections/tables, and
// creates indexes. Must be called before RegisterHandler or Poll.
func (c *Client) Init(ctx context.Context) error {
	st := c.cfg.store
	if st == nil {
		var err error
		st, err = openStore(ctx, c.cfg.dbURL, c.cfg.dbName)
		if err != nil {
			return err
		}
	}
	if err := st.EnsureIndexes(ctx); err != nil {
		return bserrs.Wrap(err, "bluestreak: ensure indexes")
	}

	c.store = st
	c.runner = engine.NewRunner(st, c.registry, c.cfg.clock, engine.RunnerConfig{
		TimeoutInterval:   c.cfg.timeoutInterval,
		WaitRetryInterval: c.cfg.waitRetryInterval,
		MaxFailures:       c.cfg.maxFailures,
		ErrorCallback:     c.cfg.errorCallback,
	}, c.tracer, c.cfg.logger)

	var shouldStop func() bool
	if c.cfg.shouldStop != nil {
		shouldStop = func() bool { return c.cfg.shouldStop() }
	}
	c.poller = engine.NewPoller(st, c.runner, c.cfg.clock, c.cfg.pollInterval, c.cfg.timeoutInterval, shouldStop, c.cfg.logger)
	return nil
}

// openStore picks a store.Store backend from dbURL's scheme: mongodb(+srv)
// for the canonical MongoDB backend, sqlite for the embedded backend.
func openStore(ctx context.Context, dbURL, dbName string) (store.Store, error) {
	switch {
	case strings.HasPrefix(dbURL, "mongodb://"), strings.HasPrefix(dbURL, "mongodb+srv://"):
		return mongostore.Connect(ctx, dbURL, dbName)
	case strings.HasPrefix(dbURL, "sqlite://"):
		return sqlitestore.Open(ctx, strings.TrimPrefix(dbURL, "sqlite://"))
	default:
		return nil, fmt.Errorf("bluestreak: unrecognized dbUrl scheme: %q", dbURL)
	}
}

// Close closes the underlying store connection.
func (c *Client) Close(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	return bserrs.Wrap(c.store.Close(ctx), "bluestreak: close store")
}

// RegisterHandler inserts handler under handlerID, replacing any existing
// registration. Intended to be called before Poll; lookups during polling
// are thread-safe against concurrent dispatches regardless.
func (c *Client) RegisterHandler(handlerID string, handler Handler) {
	c.registry.Register(handlerID, func(ctx registry.Context, input any) (any, error) {
		// The Runner only ever constructs *engine.Context values, so this
		// assertion cannot fail in practice; it exists to keep the public
		// Handler signature concrete while registry.Context stays an
		// interface engine does not need to import bluestreak to satisfy.
		engCtx, ok := ctx.(*engine.Context)
		if !ok {
			return nil, fmt.Errorf("bluestreak: unexpected context type %T", ctx)
		}
		return handler(engCtx, input)
	})
}

// Start creates a new workflow instance. It fails with a *Error of kind
// ErrWorkflowAlreadyStarted if workflowID collides with an existing
// instance.
func (c *Client) Start(ctx context.Context, workflowID, handlerID string, input any) error {
	now := c.cfg.clock.Now()
	err := c.store.InsertInstance(ctx, workflowID, handlerID, input, now)
	if err != nil {
		if store.IsAlreadyExists(err) {
			return newWorkflowAlreadyStartedError(workflowID, err)
		}
		return err
	}
	return nil
}

// Wait polls FindStatusAndResult once immediately and then up to retries
// more times (retries+1 probes in all), sleeping pauseInterval between
// probes. It returns the workflow's result once
// status=finished; fails with a *Error of kind ErrWorkflowNotFound if the
// instance is missing, or ErrWaitTimeout if the retry budget is exhausted.
// aborted is not a distinguished outcome here: it surfaces as
// ErrWaitTimeout like any other status except finished once retries run out.
// A pauseInterval <= 0 uses the Config's WaitRetryInterval.
func (c *Client) Wait(ctx context.Context, workflowID string, retries int, pauseInterval time.Duration) (any, error) {
	pause := pauseInterval
	if pause <= 0 {
		pause = c.cfg.waitRetryInterval
	}

	for attempt := 0; attempt <= retries; attempt++ {
		sr, err := c.store.FindStatusAndResult(ctx, workflowID)
		if err != nil {
			if store.IsNotFound(err) {
				return nil, newWorkflowNotFoundError(workflowID)
			}
			return nil, err
		}

		if sr.Status == store.StatusFinished {
			return sr.Result, nil
		}

		if attempt < retries {
			c.cfg.clock.Sleep(pause)
		}
	}

	return nil, newWaitTimeoutError(workflowID)
}

// Poll runs the Poller's claim loop until ShouldStop fires or a dispatched
// run surfaces an infrastructure error (HandlerNotFound or
// WorkflowNotFound), at which point Poll returns that error.
func (c *Client) Poll(ctx context.Context) error {
	err := c.poller.Poll(ctx)
	if err == nil {
		return nil
	}

	var infraErr *engine.InfraError
	if asInfraError(err, &infraErr) {
		switch infraErr.Kind {
		case engine.InfraHandlerNotFound:
			return newHandlerNotFoundError(infraErr.HandlerID)
		default:
			return newWorkflowNotFoundError(infraErr.WorkflowID)
		}
	}
	return err
}

func asInfraError(err error, target **engine.InfraError) bool {
	for err != nil {
		if e, ok := err.(*engine.InfraError); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
