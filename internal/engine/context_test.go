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
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/ferromir/bluestreak-go/internal/store/memstore"
)

var (
	t0              = time.UnixMilli(1_000_000)
	timeoutInterval = 10 * time.Second
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestContext(t *testing.T, ms *memstore.Store, fc *clocktesting.FakeClock, workflowID string) *Context {
	t.Helper()
	require.NoError(t, ms.InsertInstance(context.Background(), workflowID, "h", nil, fc.Now()))
	return newContext(context.Background(), workflowID, ms, fc, timeoutInterval, nil, discardLogger())
}

// dueAt reports whether anything is claimable at probe time now. ClaimDue
// is the only reader of timeoutAt the Store interface exposes, so lease
// assertions probe claimability just before and just after the expected
// instant. A true probe claims the instance, so order probes false-first.
func dueAt(t *testing.T, ms *memstore.Store, now time.Time) bool {
	t.Helper()
	wid, err := ms.ClaimDue(context.Background(), now, now.Add(time.Hour))
	require.NoError(t, err)
	return wid != ""
}

func TestStep_RunsAndRecords(t *testing.T) {
	ms := memstore.New()
	fc := clocktesting.NewFakeClock(t0)
	wfCtx := newTestContext(t, ms, fc, "w1")

	calls := 0
	output, err := wfCtx.Step("s1", func() (any, error) {
		calls++
		return "fresh", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", output)
	assert.Equal(t, 1, calls)

	recorded, ok, err := ms.FindStepOutput(context.Background(), "w1", "s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "fresh", recorded)

	// The lease was refreshed to now + timeoutInterval: not due one tick
	// before, due one tick after.
	assert.False(t, dueAt(t, ms, t0.Add(timeoutInterval)))
	assert.True(t, dueAt(t, ms, t0.Add(timeoutInterval).Add(time.Millisecond)))
}

func TestStep_CacheHitSkipsFn(t *testing.T) {
	ms := memstore.New()
	fc := clocktesting.NewFakeClock(t0)
	wfCtx := newTestContext(t, ms, fc, "w1")

	require.NoError(t, ms.PutStepOutput(context.Background(), "w1", "s1", "cached"))

	output, err := wfCtx.Step("s1", func() (any, error) {
		t.Fatal("fn must not run on a cache hit")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "cached", output)

	// A cache hit must not refresh the lease either.
	assert.True(t, dueAt(t, ms, t0.Add(time.Millisecond)))
}

func TestStep_FnFailurePersistsNothing(t *testing.T) {
	ms := memstore.New()
	fc := clocktesting.NewFakeClock(t0)
	wfCtx := newTestContext(t, ms, fc, "w1")

	boom := errors.New("boom")
	_, err := wfCtx.Step("s1", func() (any, error) { return nil, boom })
	require.ErrorIs(t, err, boom)

	_, ok, err := ms.FindStepOutput(context.Background(), "w1", "s1")
	require.NoError(t, err)
	assert.False(t, ok, "failed step must not be recorded")
}

func TestStep_SecondReplayReadsFirstOutput(t *testing.T) {
	ms := memstore.New()
	fc := clocktesting.NewFakeClock(t0)
	wfCtx := newTestContext(t, ms, fc, "w1")

	first, err := wfCtx.Step("s1", func() (any, error) { return "one", nil })
	require.NoError(t, err)
	assert.Equal(t, "one", first)

	replay, err := wfCtx.Step("s1", func() (any, error) { return "two", nil })
	require.NoError(t, err)
	assert.Equal(t, "one", replay, "replay must observe the first recorded output")
}

func TestSleep_FirstEntry(t *testing.T) {
	ms := memstore.New()
	fc := clocktesting.NewFakeClock(t0)
	wfCtx := newTestContext(t, ms, fc, "w1")

	require.NoError(t, wfCtx.Sleep("n1", 5000))

	wakeUpAt, ok, err := ms.FindNapWake(context.Background(), "w1", "n1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.UnixMilli(1_005_000), wakeUpAt)

	// The fake clock's Sleep advances it, so the whole pause elapsed.
	assert.Equal(t, time.UnixMilli(1_005_000), fc.Now())

	// Lease extended past the wake instant: timeoutAt = wakeUpAt + interval.
	assert.False(t, dueAt(t, ms, time.UnixMilli(1_015_000)))
	assert.True(t, dueAt(t, ms, time.UnixMilli(1_015_001)))
}

func TestSleep_ReplayWaitsRemainder(t *testing.T) {
	ms := memstore.New()
	fc := clocktesting.NewFakeClock(t0)
	wfCtx := newTestContext(t, ms, fc, "w1")

	wake := t0.Add(5 * time.Second)
	require.NoError(t, ms.PutNapWake(context.Background(), "w1", "n1", wake))

	fc.SetTime(t0.Add(2 * time.Second))
	require.NoError(t, wfCtx.Sleep("n1", 5000))

	// Only the remaining 3s elapsed; the committed wake instant governs.
	assert.Equal(t, wake, fc.Now())

	// Replay entry must not touch the lease: the instance is still due at
	// its original insert-time timeout.
	assert.True(t, dueAt(t, ms, t0.Add(time.Millisecond)))
}

func TestSleep_ReplayPastWakeReturnsImmediately(t *testing.T) {
	ms := memstore.New()
	fc := clocktesting.NewFakeClock(t0)
	wfCtx := newTestContext(t, ms, fc, "w1")

	require.NoError(t, ms.PutNapWake(context.Background(), "w1", "n1", t0.Add(-time.Second)))

	require.NoError(t, wfCtx.Sleep("n1", 5000))
	assert.Equal(t, t0, fc.Now(), "an expired nap must not sleep at all")
}

func TestSleep_WakeInstantNeverRevised(t *testing.T) {
	ms := memstore.New()
	fc := clocktesting.NewFakeClock(t0)
	wfCtx := newTestContext(t, ms, fc, "w1")

	require.NoError(t, wfCtx.Sleep("n1", 5000))
	committed, _, err := ms.FindNapWake(context.Background(), "w1", "n1")
	require.NoError(t, err)

	// A later replay with a different duration still honors the first
	// committed instant.
	require.NoError(t, wfCtx.Sleep("n1", 60_000))
	after, _, err := ms.FindNapWake(context.Background(), "w1", "n1")
	require.NoError(t, err)
	assert.Equal(t, committed, after)
}
