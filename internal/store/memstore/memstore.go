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

// Package memstore is an in-memory Store implementation. It enforces the
// same uniqueness and insert-only semantics the wire backends must, which
// makes it suitable as the backbone of the engine's unit test suite rather
// than a relaxed stand-in.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/ferromir/bluestreak-go/internal/store"
)

// Compile-time interface assertion.
var _ store.Store = (*Store)(nil)

type instance struct {
	handlerID string
	input     any
	status    store.Status
	failures  int
	timeoutAt time.Time
	result    any
}

type stepKey struct{ workflowID, stepID string }
type napKey struct{ workflowID, napID string }

// Store is an in-memory, mutex-guarded implementation of store.Store.
type Store struct {
	mu        sync.Mutex
	instances map[string]*instance
	steps     map[stepKey]any
	naps      map[napKey]time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		instances: make(map[string]*instance),
		steps:     make(map[stepKey]any),
		naps:      make(map[napKey]time.Time),
	}
}

// EnsureIndexes is a no-op: uniqueness is enforced by map keys.
func (s *Store) EnsureIndexes(ctx context.Context) error { return nil }

func (s *Store) InsertInstance(ctx context.Context, workflowID, handlerID string, input any, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.instances[workflowID]; exists {
		return store.AlreadyExists("insertInstance", nil)
	}

	s.instances[workflowID] = &instance{
		handlerID: handlerID,
		input:     input,
		status:    store.StatusIdle,
		failures:  0,
		timeoutAt: now,
	}
	return nil
}

func (s *Store) ClaimDue(ctx context.Context, now, newTimeoutAt time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, inst := range s.instances {
		if store.Claimable(inst.status) && inst.timeoutAt.Before(now) {
			inst.status = store.StatusRunning
			inst.timeoutAt = newTimeoutAt
			return id, nil
		}
	}
	return "", nil
}

func (s *Store) FindRunData(ctx context.Context, workflowID string) (store.RunData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.instances[workflowID]
	if !ok {
		return store.RunData{}, store.NotFound("findRunData")
	}
	return store.RunData{HandlerID: inst.handlerID, Input: inst.input, Failures: inst.failures}, nil
}

func (s *Store) FindStatusAndResult(ctx context.Context, workflowID string) (store.StatusResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.instances[workflowID]
	if !ok {
		return store.StatusResult{}, store.NotFound("findStatusAndResult")
	}
	return store.StatusResult{Status: inst.status, Result: inst.result}, nil
}

func (s *Store) MarkFinished(ctx context.Context, workflowID string, result any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.instances[workflowID]
	if !ok {
		return store.NotFound("markFinished")
	}
	inst.status = store.StatusFinished
	inst.result = result
	return nil
}

func (s *Store) MarkFailure(ctx context.Context, workflowID string, newStatus store.Status, newTimeoutAt time.Time, newFailures int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.instances[workflowID]
	if !ok {
		return store.NotFound("markFailure")
	}
	inst.status = newStatus
	inst.timeoutAt = newTimeoutAt
	inst.failures = newFailures
	return nil
}

func (s *Store) ExtendLease(ctx context.Context, workflowID string, newTimeoutAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.instances[workflowID]
	if !ok {
		return store.NotFound("extendLease")
	}
	inst.timeoutAt = newTimeoutAt
	return nil
}

func (s *Store) FindStepOutput(ctx context.Context, workflowID, stepID string) (any, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	output, ok := s.steps[stepKey{workflowID, stepID}]
	return output, ok, nil
}

func (s *Store) PutStepOutput(ctx context.Context, workflowID, stepID string, output any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := stepKey{workflowID, stepID}
	if _, exists := s.steps[key]; exists {
		return nil
	}
	s.steps[key] = output
	return nil
}

func (s *Store) FindNapWake(ctx context.Context, workflowID, napID string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wakeUpAt, ok := s.naps[napKey{workflowID, napID}]
	return wakeUpAt, ok, nil
}

func (s *Store) PutNapWake(ctx context.Context, workflowID, napID string, wakeUpAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := napKey{workflowID, napID}
	if _, exists := s.naps[key]; exists {
		return nil
	}
	s.naps[key] = wakeUpAt
	return nil
}

func (s *Store) Close(ctx context.Context) error { return nil }

// Counts reports how many instance, step, and nap records exist. Tests use
// it to assert a run left no stray records behind.
func (s *Store) Counts() (instances, steps, naps int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.instances), len(s.steps), len(s.naps)
}
