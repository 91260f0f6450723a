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

package bluestreak

import (
	"log/slog"
	"time"

	"k8s.io/utils/clock"

	blog "github.com/ferromir/bluestreak-go/internal/log"
	"github.com/ferromir/bluestreak-go/internal/store"
)

// Defaults for every optional configuration knob.
const (
	DefaultDBURL             = "mongodb://localhost:27017"
	DefaultDBName            = "bluestreak"
	DefaultTimeoutInterval   = 10_000 * time.Millisecond
	DefaultPollInterval      = 5_000 * time.Millisecond
	DefaultWaitRetryInterval = 1_000 * time.Millisecond
)

// ErrorCallback is invoked, advisory-only, whenever a handler run ends in
// failure or abort. Its own failures are swallowed by the Runner.
type ErrorCallback func(workflowID string, err error)

// StopFunc reports whether the Poller's loop should exit before its next
// claim attempt. Without one, Poll runs until its context is cancelled or a
// dispatched run or a claim returns an error.
type StopFunc func() bool

// Config carries every engine-level knob. Construct one with NewConfig and zero
// or more Options;
// do not build it as a struct literal from outside the package, since
// unexported fields (clock, logger) need their defaults wired in.
type Config struct {
	dbURL             string
	dbName            string
	timeoutInterval   time.Duration
	pollInterval      time.Duration
	waitRetryInterval time.Duration
	maxFailures       *int
	errorCallback     ErrorCallback
	shouldStop        StopFunc
	clock             clock.Clock
	logger            *slog.Logger
	store             store.Store
}

// Option configures a Config.
type Option func(*Config)

// WithDBURL overrides the document store connection string.
func WithDBURL(url string) Option {
	return func(c *Config) { c.dbURL = url }
}

// WithDBName overrides the database/schema name.
func WithDBName(name string) Option {
	return func(c *Config) { c.dbName = name }
}

// WithTimeoutInterval overrides the lease duration granted on claim and on
// lease refresh.
func WithTimeoutInterval(d time.Duration) Option {
	return func(c *Config) { c.timeoutInterval = d }
}

// WithPollInterval overrides the Poller's idle sleep when no instance is due.
func WithPollInterval(d time.Duration) Option {
	return func(c *Config) { c.pollInterval = d }
}

// WithWaitRetryInterval overrides the default pause between Wait probes.
func WithWaitRetryInterval(d time.Duration) Option {
	return func(c *Config) { c.waitRetryInterval = d }
}

// WithMaxFailures bounds retries: a handler failure that would push
// failures past max transitions the instance to aborted instead of failed.
// Unset (the default) means unbounded retries.
func WithMaxFailures(max int) Option {
	return func(c *Config) { c.maxFailures = &max }
}

// WithErrorCallback installs an advisory callback invoked on every handler
// failure or abort.
func WithErrorCallback(cb ErrorCallback) Option {
	return func(c *Config) { c.errorCallback = cb }
}

// WithShouldStop installs the predicate Poll consults before every claim
// attempt. Without one, Poll never terminates on its own.
func WithShouldStop(fn StopFunc) Option {
	return func(c *Config) { c.shouldStop = fn }
}

// withStore injects a pre-built store, bypassing the dbUrl-scheme dispatch
// in Init. Tests use it to run the engine against memstore.
func withStore(st store.Store) Option {
	return func(c *Config) { c.store = st }
}

// WithClock overrides the time source. Production code never needs this;
// tests inject a k8s.io/utils/clock/testing fake to drive the engine
// deterministically.
func WithClock(c clock.Clock) Option {
	return func(cfg *Config) { cfg.clock = c }
}

// WithLogger overrides the structured logger used for claim/dispatch/finish
// transitions.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.logger = logger }
}

// NewConfig builds a Config with the Default* values above, then applies
// opts in order.
func NewConfig(opts ...Option) *Config {
	c := &Config{
		dbURL:             DefaultDBURL,
		dbName:            DefaultDBName,
		timeoutInterval:   DefaultTimeoutInterval,
		pollInterval:      DefaultPollInterval,
		waitRetryInterval: DefaultWaitRetryInterval,
		clock:             clock.RealClock{},
		logger:            blog.New(blog.FromEnv()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
