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

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/utils/clock"

	blog "github.com/ferromir/bluestreak-go/internal/log"
	"github.com/ferromir/bluestreak-go/internal/metrics"
	"github.com/ferromir/bluestreak-go/internal/store"
)

// Context is a per-run object bound to one
// workflowId, exposing exactly the two operations a handler may use to
// produce durable, idempotent effects.
type Context struct {
	ctx             context.Context
	workflowID      string
	store           store.Store
	clock           clock.Clock
	timeoutInterval time.Duration
	tracer          trace.Tracer
	logger          *slog.Logger
}

// newContext builds a Context bound to workflowID. Unexported: only the
// Runner constructs these, immediately before invoking a handler.
func newContext(ctx context.Context, workflowID string, st store.Store, clk clock.Clock, timeoutInterval time.Duration, tracer trace.Tracer, logger *slog.Logger) *Context {
	return &Context{
		ctx:             ctx,
		workflowID:      workflowID,
		store:           st,
		clock:           clk,
		timeoutInterval: timeoutInterval,
		tracer:          tracer,
		logger:          logger,
	}
}

// Step runs fn at most once per (workflowId, stepId): a pre-existing
// recorded output short-circuits fn entirely; otherwise fn is invoked, its
// output persisted with insert-only semantics, and the lease refreshed.
//
// fn's own failure is returned unchanged and nothing is persisted.
func (c *Context) Step(stepID string, fn func() (any, error)) (any, error) {
	spanCtx, span := safeStartSpan(c.ctx, c.tracer, "bluestreak.step",
		trace.WithAttributes(
			attribute.String(blog.WorkflowIDKey, c.workflowID),
			attribute.String(blog.StepIDKey, stepID),
		))
	defer safeEndSpan(span)

	if output, ok, err := c.store.FindStepOutput(spanCtx, c.workflowID, stepID); err != nil {
		safeRecordError(span, err)
		return nil, err
	} else if ok {
		metrics.RecordStepCacheHit()
		c.logger.Debug("step cache hit", blog.WorkflowIDKey, c.workflowID, blog.StepIDKey, stepID)
		return output, nil
	}

	output, err := fn()
	if err != nil {
		safeRecordError(span, err)
		return nil, err
	}

	if err := c.store.PutStepOutput(spanCtx, c.workflowID, stepID, output); err != nil {
		safeRecordError(span, err)
		return nil, err
	}

	newTimeoutAt := c.clock.Now().Add(c.timeoutInterval)
	if err := c.store.ExtendLease(spanCtx, c.workflowID, newTimeoutAt); err != nil {
		safeRecordError(span, err)
		return nil, err
	}

	c.logger.Debug("step recorded", blog.WorkflowIDKey, c.workflowID, blog.StepIDKey, stepID)
	return output, nil
}

// Sleep suspends cooperatively until napID's committed wake instant. On
// first entry it commits wakeUpAt = now + durationMs and extends the lease
// past that instant so the claim loop cannot steal the workflow mid-sleep;
// on replay after a crash it only waits out whatever remains.
func (c *Context) Sleep(napID string, durationMs int64) error {
	spanCtx, span := safeStartSpan(c.ctx, c.tracer, "bluestreak.sleep",
		trace.WithAttributes(
			attribute.String(blog.WorkflowIDKey, c.workflowID),
			attribute.String(blog.NapIDKey, napID),
		))
	defer safeEndSpan(span)

	wakeUpAt, ok, err := c.store.FindNapWake(spanCtx, c.workflowID, napID)
	if err != nil {
		safeRecordError(span, err)
		return err
	}

	now := c.clock.Now()

	if ok {
		if remaining := wakeUpAt.Sub(now); remaining > 0 {
			c.clock.Sleep(remaining)
		}
		return nil
	}

	duration := time.Duration(durationMs) * time.Millisecond
	wakeUpAt = now.Add(duration)

	if err := c.store.PutNapWake(spanCtx, c.workflowID, napID, wakeUpAt); err != nil {
		safeRecordError(span, err)
		return err
	}

	metrics.RecordNapEntry()

	newTimeoutAt := wakeUpAt.Add(c.timeoutInterval)
	if err := c.store.ExtendLease(spanCtx, c.workflowID, newTimeoutAt); err != nil {
		safeRecordError(span, err)
		return err
	}

	c.logger.Debug("nap entered", blog.WorkflowIDKey, c.workflowID, blog.NapIDKey, napID)
	c.clock.Sleep(duration)
	return nil
}
