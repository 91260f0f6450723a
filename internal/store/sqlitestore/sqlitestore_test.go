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

package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferromir/bluestreak-go/internal/store"
)

var t0 = time.UnixMilli(1_000_000)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "bluestreak.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestInsertAndFind(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	input := map[string]any{"x": "one"}
	require.NoError(t, s.InsertInstance(ctx, "w1", "h", input, t0))

	rd, err := s.FindRunData(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "h", rd.HandlerID)
	assert.Equal(t, 0, rd.Failures)
	assert.Equal(t, input, rd.Input)

	sr, err := s.FindStatusAndResult(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusIdle, sr.Status)
	assert.Nil(t, sr.Result)
}

func TestInsert_Duplicate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertInstance(ctx, "w1", "h", nil, t0))
	err := s.InsertInstance(ctx, "w1", "h", nil, t0)
	assert.True(t, store.IsAlreadyExists(err), "got %v", err)
}

func TestClaimDue(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertInstance(ctx, "w1", "h", nil, t0))

	// Strictly less-than: not due at the exact timeout instant.
	wid, err := s.ClaimDue(ctx, t0, t0.Add(10*time.Second))
	require.NoError(t, err)
	assert.Empty(t, wid)

	now := t0.Add(time.Millisecond)
	wid, err = s.ClaimDue(ctx, now, now.Add(10*time.Second))
	require.NoError(t, err)
	assert.Equal(t, "w1", wid)

	sr, err := s.FindStatusAndResult(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusRunning, sr.Status)

	// The fresh lease blocks a second claim.
	wid, err = s.ClaimDue(ctx, now, now.Add(10*time.Second))
	require.NoError(t, err)
	assert.Empty(t, wid)
}

func TestClaimDue_SkipsTerminal(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertInstance(ctx, "done", "h", nil, t0))
	require.NoError(t, s.MarkFinished(ctx, "done", "r"))
	require.NoError(t, s.InsertInstance(ctx, "dead", "h", nil, t0))
	require.NoError(t, s.MarkFailure(ctx, "dead", store.StatusAborted, t0, 4))

	wid, err := s.ClaimDue(ctx, t0.Add(time.Hour), t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, wid)
}

func TestMarkFinishedAndFailure(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertInstance(ctx, "w1", "h", nil, t0))
	require.NoError(t, s.MarkFailure(ctx, "w1", store.StatusFailed, t0.Add(time.Second), 1))

	rd, err := s.FindRunData(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, 1, rd.Failures)

	require.NoError(t, s.MarkFinished(ctx, "w1", map[string]any{"out": "ok"}))
	sr, err := s.FindStatusAndResult(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusFinished, sr.Status)
	assert.Equal(t, map[string]any{"out": "ok"}, sr.Result)
}

func TestExtendLease(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertInstance(ctx, "w1", "h", nil, t0))
	lease := t0.Add(time.Minute)
	require.NoError(t, s.ExtendLease(ctx, "w1", lease))

	// Due only once the extended lease has lapsed.
	wid, err := s.ClaimDue(ctx, lease, lease.Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, wid)

	wid, err = s.ClaimDue(ctx, lease.Add(time.Millisecond), lease.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "w1", wid)
}

func TestNotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.FindRunData(ctx, "nope")
	assert.True(t, store.IsNotFound(err), "got %v", err)
	_, err = s.FindStatusAndResult(ctx, "nope")
	assert.True(t, store.IsNotFound(err), "got %v", err)
	assert.True(t, store.IsNotFound(s.MarkFinished(ctx, "nope", nil)))
	assert.True(t, store.IsNotFound(s.MarkFailure(ctx, "nope", store.StatusFailed, t0, 1)))
	assert.True(t, store.IsNotFound(s.ExtendLease(ctx, "nope", t0)))
}

func TestStepOutput_InsertOnly(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, ok, err := s.FindStepOutput(ctx, "w1", "s1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.PutStepOutput(ctx, "w1", "s1", "first"))
	require.NoError(t, s.PutStepOutput(ctx, "w1", "s1", "second"))

	output, ok, err := s.FindStepOutput(ctx, "w1", "s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "first", output)
}

func TestNapWake_InsertOnly(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, ok, err := s.FindNapWake(ctx, "w1", "n1")
	require.NoError(t, err)
	assert.False(t, ok)

	first := t0.Add(5 * time.Second)
	require.NoError(t, s.PutNapWake(ctx, "w1", "n1", first))
	require.NoError(t, s.PutNapWake(ctx, "w1", "n1", t0.Add(time.Hour)))

	wakeUpAt, ok, err := s.FindNapWake(ctx, "w1", "n1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, wakeUpAt.Equal(first), "expected %v, got %v", first, wakeUpAt)
}
