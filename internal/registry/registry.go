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

// Package registry implements the handler registry: a thread-safe
// mapping from handler id to handler procedure, populated before polling
// begins and read concurrently by every dispatched run thereafter.
package registry

import "sync"

// Handler is the user-supplied asynchronous procedure registered under a
// handler id. It receives the opaque input recorded at Start and returns an
// opaque result or an error.
type Handler func(ctx Context, input any) (any, error)

// Context is the minimal interface the registry exposes to a Handler; it is
// satisfied by *engine.Context, kept abstract here so this package does not
// import engine (which in turn depends on registry for lookups).
type Context interface {
	Step(stepID string, fn func() (any, error)) (any, error)
	Sleep(napID string, durationMs int64) error
}

// Registry is a handler id -> Handler map, safe for concurrent lookups
// while dispatches are in flight. Registration is expected to complete
// before Poll is ever called, but Register itself is also safe to call
// concurrently since nothing prevents a caller from registering handlers
// from multiple goroutines during setup.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register inserts or replaces the handler for handlerID.
func (r *Registry) Register(handlerID string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[handlerID] = h
}

// Lookup returns the handler for handlerID, or ok=false if nothing is
// registered under that id.
func (r *Registry) Lookup(handlerID string) (h Handler, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok = r.handlers[handlerID]
	return h, ok
}
