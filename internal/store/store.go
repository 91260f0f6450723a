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

// Package store defines the Store Gateway contract and the handful of
// projections the engine reads through it. Every backend under
// internal/store/* (memstore, mongostore, sqlitestore) implements the same
// Store interface so the engine is wired to none of them directly.
package store

import (
	"context"
	"fmt"
	"time"
)

// Status is one of the five states a workflow instance can occupy.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusRunning  Status = "running"
	StatusFailed   Status = "failed"
	StatusAborted  Status = "aborted"
	StatusFinished Status = "finished"
)

// claimable lists the statuses claimDue is allowed to pick up.
var claimable = map[Status]bool{
	StatusIdle:    true,
	StatusRunning: true,
	StatusFailed:  true,
}

// Claimable reports whether a given status is eligible for claimDue. memstore
// uses it directly; mongostore and sqlitestore spell out the same three
// statuses in their own queries.
func Claimable(s Status) bool {
	return claimable[s]
}

// RunData is the projection the Runner needs to build a Context and invoke a
// handler.
type RunData struct {
	HandlerID string
	Input     any
	Failures  int
}

// StatusResult is the projection wait polls.
type StatusResult struct {
	Status Status
	Result any
}

// ErrorKind classifies store-layer faults.
type ErrorKind string

const (
	// ErrNotFound means the keyed record does not exist.
	ErrNotFound ErrorKind = "not_found"
	// ErrAlreadyExists means a unique-index collision.
	ErrAlreadyExists ErrorKind = "already_exists"
	// ErrIO means any other underlying store fault.
	ErrIO ErrorKind = "io"
)

// Error is the tagged error type every Store method returns on failure.
type Error struct {
	Kind  ErrorKind
	Op    string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("store: %s: %s: %v", e.Op, e.Kind, e.Cause)
	}
	return fmt.Sprintf("store: %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

// IsNotFound reports whether err is a *Error with Kind ErrNotFound.
func IsNotFound(err error) bool { return hasKind(err, ErrNotFound) }

// IsAlreadyExists reports whether err is a *Error with Kind ErrAlreadyExists.
func IsAlreadyExists(err error) bool { return hasKind(err, ErrAlreadyExists) }

func hasKind(err error, kind ErrorKind) bool {
	se, ok := err.(*Error)
	return ok && se.Kind == kind
}

// NotFound builds a store *Error of kind ErrNotFound for op.
func NotFound(op string) *Error { return &Error{Kind: ErrNotFound, Op: op} }

// AlreadyExists builds a store *Error of kind ErrAlreadyExists for op.
func AlreadyExists(op string, cause error) *Error {
	return &Error{Kind: ErrAlreadyExists, Op: op, Cause: cause}
}

// IOError builds a store *Error of kind ErrIO for op.
func IOError(op string, cause error) *Error {
	return &Error{Kind: ErrIO, Op: op, Cause: cause}
}

// Store is the gateway to the document store: typed, atomic operations over the
// document store. Implementations must make ClaimDue a single atomic
// conditional update — every other correctness property in the engine rests
// on that one call being race-free.
type Store interface {
	// EnsureIndexes creates the unique/compound indexes the schema requires.
	// Safe to call repeatedly (e.g. on every Init).
	EnsureIndexes(ctx context.Context) error

	// InsertInstance creates a new idle workflow instance. Fails with
	// ErrAlreadyExists if workflowID collides.
	InsertInstance(ctx context.Context, workflowID, handlerID string, input any, now time.Time) error

	// ClaimDue atomically finds one claimable instance whose timeoutAt is in
	// the past, flips it to running with a fresh lease, and returns its id.
	// Returns ("", nil) if no candidate exists.
	ClaimDue(ctx context.Context, now, newTimeoutAt time.Time) (string, error)

	// FindRunData returns the projection the Runner needs. Fails with
	// ErrNotFound if workflowID is unknown.
	FindRunData(ctx context.Context, workflowID string) (RunData, error)

	// FindStatusAndResult returns the projection Wait polls. Fails with
	// ErrNotFound if workflowID is unknown.
	FindStatusAndResult(ctx context.Context, workflowID string) (StatusResult, error)

	// MarkFinished transitions an instance to finished with its result.
	MarkFinished(ctx context.Context, workflowID string, result any) error

	// MarkFailure transitions an instance to failed or aborted.
	MarkFailure(ctx context.Context, workflowID string, newStatus Status, newTimeoutAt time.Time, newFailures int) error

	// ExtendLease pushes timeoutAt forward without touching status.
	ExtendLease(ctx context.Context, workflowID string, newTimeoutAt time.Time) error

	// FindStepOutput returns a step's recorded output. ok is false if no
	// record exists yet.
	FindStepOutput(ctx context.Context, workflowID, stepID string) (output any, ok bool, err error)

	// PutStepOutput is an insert-only upsert: a pre-existing record is left
	// untouched.
	PutStepOutput(ctx context.Context, workflowID, stepID string, output any) error

	// FindNapWake returns a nap's committed wake instant. ok is false if no
	// record exists yet.
	FindNapWake(ctx context.Context, workflowID, napID string) (wakeUpAt time.Time, ok bool, err error)

	// PutNapWake is an insert-only upsert: a pre-existing record is left
	// untouched.
	PutNapWake(ctx context.Context, workflowID, napID string, wakeUpAt time.Time) error

	// Close releases underlying connections/handles.
	Close(ctx context.Context) error
}
