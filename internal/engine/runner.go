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

package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/utils/clock"

	blog "github.com/ferromir/bluestreak-go/internal/log"
	"github.com/ferromir/bluestreak-go/internal/metrics"
	"github.com/ferromir/bluestreak-go/internal/registry"
	"github.com/ferromir/bluestreak-go/internal/store"
)

// RunnerConfig carries the knobs the Runner needs from the engine-wide
// Config without depending on the root package (which depends on engine).
type RunnerConfig struct {
	TimeoutInterval   time.Duration
	WaitRetryInterval time.Duration
	MaxFailures       *int
	ErrorCallback     func(workflowID string, err error)
}

// Runner executes claimed workflows: given a workflowId a Poller just claimed, it
// resolves the handler, builds a Context, awaits the handler, and
// transitions the instance to finished, failed, or aborted.
type Runner struct {
	store    store.Store
	registry *registry.Registry
	clock    clock.Clock
	cfg      RunnerConfig
	tracer   trace.Tracer
	logger   *slog.Logger
}

// NewRunner builds a Runner over the given store, handler registry and
// clock.
func NewRunner(st store.Store, reg *registry.Registry, clk clock.Clock, cfg RunnerConfig, tracer trace.Tracer, logger *slog.Logger) *Runner {
	return &Runner{store: st, registry: reg, clock: clk, cfg: cfg, tracer: tracer, logger: logger}
}

// Run executes one claimed workflowId to completion (finished), recorded
// failure (failed/aborted), or an *InfraError. It returns an *InfraError for
// a vanished instance or an unregistered handler, and store faults as-is;
// any handler failure is recovered here and never rethrown.
func (r *Runner) Run(ctx context.Context, workflowID string) error {
	// attemptID correlates every log line and span of one run attempt;
	// workflowID alone is ambiguous across replays of the same instance.
	attemptID := uuid.NewString()

	runCtx, span := safeStartSpan(ctx, r.tracer, "bluestreak.run",
		trace.WithAttributes(
			attribute.String(blog.WorkflowIDKey, workflowID),
			attribute.String(blog.AttemptIDKey, attemptID),
		))
	defer safeEndSpan(span)

	logger := r.logger.With(blog.WorkflowIDKey, workflowID, blog.AttemptIDKey, attemptID)

	runData, err := r.store.FindRunData(runCtx, workflowID)
	if err != nil {
		if store.IsNotFound(err) {
			infraErr := &InfraError{Kind: InfraWorkflowNotFound, WorkflowID: workflowID}
			safeRecordError(span, infraErr)
			return infraErr
		}
		safeRecordError(span, err)
		return err
	}

	handler, ok := r.registry.Lookup(runData.HandlerID)
	if !ok {
		infraErr := &InfraError{Kind: InfraHandlerNotFound, WorkflowID: workflowID, HandlerID: runData.HandlerID}
		safeRecordError(span, infraErr)
		return infraErr
	}

	safeSetAttributes(span, attribute.String(blog.HandlerIDKey, runData.HandlerID))

	wfCtx := newContext(runCtx, workflowID, r.store, r.clock, r.cfg.TimeoutInterval, r.tracer, logger)

	result, handlerErr := handler(wfCtx, runData.Input)
	if handlerErr == nil {
		if err := r.store.MarkFinished(runCtx, workflowID, result); err != nil {
			safeRecordError(span, err)
			return err
		}
		metrics.RecordFinish(runData.HandlerID)
		logger.Info("workflow finished", blog.HandlerIDKey, runData.HandlerID)
		return nil
	}

	safeRecordError(span, handlerErr)
	return r.recordFailure(runCtx, logger, workflowID, runData, handlerErr)
}

func (r *Runner) recordFailure(ctx context.Context, logger *slog.Logger, workflowID string, runData store.RunData, handlerErr error) error {
	newFailures := runData.Failures + 1
	newStatus := store.StatusFailed
	if r.cfg.MaxFailures != nil && newFailures > *r.cfg.MaxFailures {
		newStatus = store.StatusAborted
	}

	newTimeoutAt := r.clock.Now().Add(r.cfg.WaitRetryInterval)
	if err := r.store.MarkFailure(ctx, workflowID, newStatus, newTimeoutAt, newFailures); err != nil {
		return err
	}

	if newStatus == store.StatusAborted {
		metrics.RecordAbort(runData.HandlerID)
		logger.Warn("workflow aborted", blog.HandlerIDKey, runData.HandlerID, "failures", newFailures, blog.Error(handlerErr))
	} else {
		metrics.RecordFailure(runData.HandlerID)
		logger.Info("workflow failed, will retry", blog.HandlerIDKey, runData.HandlerID, "failures", newFailures, blog.Error(handlerErr))
	}

	if r.cfg.ErrorCallback != nil {
		r.invokeErrorCallback(workflowID, handlerErr)
	}

	return nil
}

// invokeErrorCallback calls the configured callback, swallowing any panic:
// the callback is advisory and must never take down a Runner.
func (r *Runner) invokeErrorCallback(workflowID string, handlerErr error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("panic in error callback", blog.WorkflowIDKey, workflowID, "error", rec)
		}
	}()
	r.cfg.ErrorCallback(workflowID, handlerErr)
}
