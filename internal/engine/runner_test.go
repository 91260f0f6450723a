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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/ferromir/bluestreak-go/internal/registry"
	"github.com/ferromir/bluestreak-go/internal/store"
	"github.com/ferromir/bluestreak-go/internal/store/memstore"
)

var waitRetryInterval = time.Second

func newTestRunner(ms *memstore.Store, reg *registry.Registry, fc *clocktesting.FakeClock, maxFailures *int, cb func(string, error)) *Runner {
	return NewRunner(ms, reg, fc, RunnerConfig{
		TimeoutInterval:   timeoutInterval,
		WaitRetryInterval: waitRetryInterval,
		MaxFailures:       maxFailures,
		ErrorCallback:     cb,
	}, nil, discardLogger())
}

func TestRun_Success(t *testing.T) {
	ms := memstore.New()
	fc := clocktesting.NewFakeClock(t0)
	reg := registry.New()

	var gotInput any
	reg.Register("h", func(ctx registry.Context, input any) (any, error) {
		gotInput = input
		return "ok", nil
	})

	require.NoError(t, ms.InsertInstance(context.Background(), "w1", "h", map[string]any{"x": 1}, t0))
	r := newTestRunner(ms, reg, fc, nil, nil)

	require.NoError(t, r.Run(context.Background(), "w1"))

	assert.Equal(t, map[string]any{"x": 1}, gotInput)

	sr, err := ms.FindStatusAndResult(context.Background(), "w1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusFinished, sr.Status)
	assert.Equal(t, "ok", sr.Result)
}

func TestRun_HandlerFailureRecordsRetry(t *testing.T) {
	ms := memstore.New()
	fc := clocktesting.NewFakeClock(t0)
	reg := registry.New()

	boom := errors.New("boom")
	reg.Register("h", func(ctx registry.Context, input any) (any, error) {
		return nil, boom
	})

	require.NoError(t, ms.InsertInstance(context.Background(), "w1", "h", nil, t0))
	r := newTestRunner(ms, reg, fc, nil, nil)

	// Handler failure is recovered locally, never returned.
	require.NoError(t, r.Run(context.Background(), "w1"))

	sr, err := ms.FindStatusAndResult(context.Background(), "w1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, sr.Status)

	rd, err := ms.FindRunData(context.Background(), "w1")
	require.NoError(t, err)
	assert.Equal(t, 1, rd.Failures)

	// timeoutAt = now + waitRetryInterval.
	assert.False(t, dueAt(t, ms, t0.Add(waitRetryInterval)))
	assert.True(t, dueAt(t, ms, t0.Add(waitRetryInterval).Add(time.Millisecond)))
}

func TestRun_AbortPastMaxFailures(t *testing.T) {
	ms := memstore.New()
	fc := clocktesting.NewFakeClock(t0)
	reg := registry.New()

	reg.Register("h", func(ctx registry.Context, input any) (any, error) {
		return nil, errors.New("always fails")
	})

	require.NoError(t, ms.InsertInstance(context.Background(), "w1", "h", nil, t0))
	// Three recorded failures already on the books.
	require.NoError(t, ms.MarkFailure(context.Background(), "w1", store.StatusFailed, t0, 3))

	maxFailures := 3
	r := newTestRunner(ms, reg, fc, &maxFailures, nil)

	require.NoError(t, r.Run(context.Background(), "w1"))

	sr, err := ms.FindStatusAndResult(context.Background(), "w1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusAborted, sr.Status)

	rd, err := ms.FindRunData(context.Background(), "w1")
	require.NoError(t, err)
	assert.Equal(t, 4, rd.Failures)

	// Aborted is dormant: nothing is claimable no matter how far the clock
	// advances.
	assert.False(t, dueAt(t, ms, t0.Add(24*time.Hour)))
}

func TestRun_AtMaxFailuresStillRetries(t *testing.T) {
	ms := memstore.New()
	fc := clocktesting.NewFakeClock(t0)
	reg := registry.New()

	reg.Register("h", func(ctx registry.Context, input any) (any, error) {
		return nil, errors.New("boom")
	})

	require.NoError(t, ms.InsertInstance(context.Background(), "w1", "h", nil, t0))
	require.NoError(t, ms.MarkFailure(context.Background(), "w1", store.StatusFailed, t0, 2))

	// failures' = 3 does not exceed maxFailures = 3, so this is a retry,
	// not an abort.
	maxFailures := 3
	r := newTestRunner(ms, reg, fc, &maxFailures, nil)

	require.NoError(t, r.Run(context.Background(), "w1"))

	sr, err := ms.FindStatusAndResult(context.Background(), "w1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, sr.Status)
}

func TestRun_WorkflowNotFound(t *testing.T) {
	ms := memstore.New()
	fc := clocktesting.NewFakeClock(t0)
	r := newTestRunner(ms, registry.New(), fc, nil, nil)

	err := r.Run(context.Background(), "ghost")
	var infraErr *InfraError
	require.ErrorAs(t, err, &infraErr)
	assert.Equal(t, InfraWorkflowNotFound, infraErr.Kind)
	assert.Equal(t, "ghost", infraErr.WorkflowID)
}

func TestRun_HandlerNotFound(t *testing.T) {
	ms := memstore.New()
	fc := clocktesting.NewFakeClock(t0)

	require.NoError(t, ms.InsertInstance(context.Background(), "w1", "missing", nil, t0))
	r := newTestRunner(ms, registry.New(), fc, nil, nil)

	err := r.Run(context.Background(), "w1")
	var infraErr *InfraError
	require.ErrorAs(t, err, &infraErr)
	assert.Equal(t, InfraHandlerNotFound, infraErr.Kind)
	assert.Equal(t, "missing", infraErr.HandlerID)
}

func TestRun_ErrorCallbackInvoked(t *testing.T) {
	ms := memstore.New()
	fc := clocktesting.NewFakeClock(t0)
	reg := registry.New()

	boom := errors.New("boom")
	reg.Register("h", func(ctx registry.Context, input any) (any, error) {
		return nil, boom
	})

	var cbWorkflowID string
	var cbErr error
	cb := func(workflowID string, err error) {
		cbWorkflowID = workflowID
		cbErr = err
	}

	require.NoError(t, ms.InsertInstance(context.Background(), "w1", "h", nil, t0))
	r := newTestRunner(ms, reg, fc, nil, cb)

	require.NoError(t, r.Run(context.Background(), "w1"))
	assert.Equal(t, "w1", cbWorkflowID)
	assert.ErrorIs(t, cbErr, boom)
}

func TestRun_ErrorCallbackPanicSwallowed(t *testing.T) {
	ms := memstore.New()
	fc := clocktesting.NewFakeClock(t0)
	reg := registry.New()

	reg.Register("h", func(ctx registry.Context, input any) (any, error) {
		return nil, errors.New("boom")
	})

	cb := func(workflowID string, err error) { panic("callback gone wrong") }

	require.NoError(t, ms.InsertInstance(context.Background(), "w1", "h", nil, t0))
	r := newTestRunner(ms, reg, fc, nil, cb)

	// Must not panic, must still have recorded the failure.
	require.NoError(t, r.Run(context.Background(), "w1"))

	sr, err := ms.FindStatusAndResult(context.Background(), "w1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, sr.Status)
}

func TestRun_StepsPersistAcrossReplay(t *testing.T) {
	ms := memstore.New()
	fc := clocktesting.NewFakeClock(t0)
	reg := registry.New()

	sideEffects := 0
	attempt := 0
	reg.Register("h", func(ctx registry.Context, input any) (any, error) {
		attempt++
		out, err := ctx.Step("s1", func() (any, error) {
			sideEffects++
			return "expensive", nil
		})
		if err != nil {
			return nil, err
		}
		if attempt == 1 {
			return nil, errors.New("crash after step")
		}
		return out, nil
	})

	require.NoError(t, ms.InsertInstance(context.Background(), "w1", "h", nil, t0))
	r := newTestRunner(ms, reg, fc, nil, nil)

	require.NoError(t, r.Run(context.Background(), "w1"))
	require.NoError(t, r.Run(context.Background(), "w1"))

	assert.Equal(t, 2, attempt)
	assert.Equal(t, 1, sideEffects, "replay must reuse the recorded step output")

	sr, err := ms.FindStatusAndResult(context.Background(), "w1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusFinished, sr.Status)
	assert.Equal(t, "expensive", sr.Result)

	rd, err := ms.FindRunData(context.Background(), "w1")
	require.NoError(t, err)
	assert.Equal(t, 1, rd.Failures)
}
