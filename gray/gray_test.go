// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package gray

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tochemey/grayconf/backend"
	"github.com/tochemey/grayconf/backend/memory"
	"github.com/tochemey/grayconf/broadcast"
	gerrors "github.com/tochemey/grayconf/errors"
	"github.com/tochemey/grayconf/internal/nodepath"
	"github.com/tochemey/grayconf/log"
	"github.com/tochemey/grayconf/nodestore"
)

func TestBeginAndCommit(t *testing.T) {
	ctx := context.Background()
	coordinator, store, recorder := newTestCoordinator(t, memory.New())
	seed(t, store, map[string]string{"/app/a": "a0", "/app/b": "b0"})

	id, err := coordinator.Begin(ctx, []Change{
		{Path: "/app/a", Value: []byte("a1")},
		{Path: "app/b/", Value: []byte("b1")},
	}, []string{"m2", "m1"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(id.String(), "GRAYID-"))

	// new values are visible to everyone right away
	assertValue(t, store, "/app/a", "a1")
	assertValue(t, store, "/app/b", "b1")

	for _, machine := range []string{"m1", "m2"} {
		owner, ok, err := coordinator.MachineGray(ctx, machine)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, id, owner)
	}

	tx, ok, err := coordinator.Lookup(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"m2", "m1"}, tx.Machines)
	assert.Equal(t, []Change{{Path: "/app/a", Value: []byte("a1")}, {Path: "/app/b", Value: []byte("b1")}}, tx.Changes)
	assert.Equal(t, []Change{{Path: "/app/a", Value: []byte("a0")}, {Path: "/app/b", Value: []byte("b0")}}, tx.Prior)

	require.NoError(t, coordinator.Commit(ctx, id))

	assertValue(t, store, "/app/a", "a1")
	assertValue(t, store, "/app/b", "b1")
	assertNoBookkeeping(t, coordinator, store, id, "m1", "m2")

	t.Run("With repeated end", func(t *testing.T) {
		err := coordinator.Commit(ctx, id)
		require.ErrorIs(t, err, gerrors.ErrGrayNotFound)
		assert.Equal(t, gerrors.CodeNotFound, gerrors.Code(err))
		require.ErrorIs(t, coordinator.Rollback(ctx, id), gerrors.ErrGrayNotFound)
	})

	t.Run("With events", func(t *testing.T) {
		events := recorder.all()
		require.Len(t, events, 2)
		assert.Equal(t, broadcast.KindBegun, events[0].Kind)
		assert.Equal(t, broadcast.KindCommitted, events[1].Kind)
		assert.Equal(t, id.String(), events[1].GrayID)
		assert.Equal(t, "corp", events[1].Datacenter)
		assert.Equal(t, []string{"m2", "m1"}, events[1].Machines)
		assert.Equal(t, []string{"/app/a", "/app/b"}, events[1].Paths)
	})
}

func TestRollback(t *testing.T) {
	ctx := context.Background()
	coordinator, store, recorder := newTestCoordinator(t, memory.New())
	seed(t, store, map[string]string{"/app/a": "a0", "/app/empty": ""})

	id, err := coordinator.Begin(ctx, []Change{
		{Path: "/app/a", Value: []byte("a1")},
		{Path: "/app/empty", Value: []byte("filled")},
	}, []string{"m1"})
	require.NoError(t, err)
	assertValue(t, store, "/app/empty", "filled")

	require.NoError(t, coordinator.Rollback(ctx, id))

	assertValue(t, store, "/app/a", "a0")
	assertValue(t, store, "/app/empty", "")
	assertNoBookkeeping(t, coordinator, store, id, "m1")

	events := recorder.all()
	require.Len(t, events, 2)
	assert.Equal(t, broadcast.KindRolledBack, events[1].Kind)

	// machines are free again
	_, err = coordinator.Begin(ctx, []Change{{Path: "/app/a", Value: []byte("a2")}}, []string{"m1"})
	require.NoError(t, err)
}

func TestBeginValidation(t *testing.T) {
	ctx := context.Background()
	coordinator, store, recorder := newTestCoordinator(t, memory.New(), WithChunkSize(64))
	seed(t, store, map[string]string{"/app/a": "a0", "/app/b": "b0"})

	oversized := bytes.Repeat([]byte("x"), store.MaxValueSize()+1)
	testCases := []struct {
		name     string
		changes  []Change
		machines []string
		err      error
	}{
		{name: "no changes", changes: nil, machines: []string{"m1"}, err: gerrors.ErrEmptyInput},
		{name: "missing node", changes: []Change{{Path: "/app/a", Value: []byte("1")}, {Path: "/app/missing", Value: []byte("1")}}, machines: []string{"m1"}, err: gerrors.ErrNodeNotFound},
		{name: "duplicate path", changes: []Change{{Path: "/app/a", Value: []byte("1")}, {Path: "app//a/", Value: []byte("2")}}, machines: []string{"m1"}, err: gerrors.ErrDuplicatePath},
		{name: "invalid path", changes: []Change{{Path: "/", Value: []byte("1")}}, machines: []string{"m1"}, err: gerrors.ErrInvalidPath},
		{name: "internal path", changes: []Change{{Path: nodepath.ClientRoot + "/m1", Value: []byte("1")}}, machines: []string{"m1"}, err: gerrors.ErrInvalidPath},
		{name: "value too large", changes: []Change{{Path: "/app/a", Value: oversized}}, machines: []string{"m1"}, err: gerrors.ErrValueTooLarge},
		{name: "no machines", changes: []Change{{Path: "/app/a", Value: []byte("1")}}, machines: nil, err: gerrors.ErrInvalidMachine},
		{name: "duplicate machine", changes: []Change{{Path: "/app/a", Value: []byte("1")}}, machines: []string{"m1", "m1"}, err: gerrors.ErrInvalidMachine},
		{name: "malformed machine", changes: []Change{{Path: "/app/a", Value: []byte("1")}}, machines: []string{"a/b"}, err: gerrors.ErrInvalidMachine},
	}

	for _, tc := range testCases {
		id, err := coordinator.Begin(ctx, tc.changes, tc.machines)
		require.ErrorIs(t, err, tc.err, tc.name)
		assert.Equal(t, NoID, id, tc.name)
	}

	assertValue(t, store, "/app/a", "a0")
	assertValue(t, store, "/app/b", "b0")
	_, ok, err := coordinator.MachineGray(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, recorder.all())
}

func TestMachineExclusion(t *testing.T) {
	ctx := context.Background()
	coordinator, store, _ := newTestCoordinator(t, memory.New())
	seed(t, store, map[string]string{"/app/a": "a0", "/app/b": "b0"})

	first, err := coordinator.Begin(ctx, []Change{{Path: "/app/a", Value: []byte("a1")}}, []string{"m2"})
	require.NoError(t, err)

	id, err := coordinator.Begin(ctx, []Change{{Path: "/app/b", Value: []byte("b1")}}, []string{"m1", "m2", "m3"})
	require.ErrorIs(t, err, gerrors.ErrMachineClaimed)
	assert.Equal(t, gerrors.CodeConflict, gerrors.Code(err))
	assert.Equal(t, NoID, id)

	// the failed call left nothing behind
	assertValue(t, store, "/app/b", "b0")
	for _, machine := range []string{"m1", "m3"} {
		_, ok, err := coordinator.MachineGray(ctx, machine)
		require.NoError(t, err)
		assert.False(t, ok, machine)
	}

	owner, ok, err := coordinator.MachineGray(ctx, "m2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first, owner)

	t.Run("With concurrent begins", func(t *testing.T) {
		seed(t, store, map[string]string{"/race/x": "0"})
		const racers = 6

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins []ID
		)
		for i := range racers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				machines := []string{"solo-" + string(rune('a'+i)), "contended"}
				if id, err := coordinator.Begin(ctx, []Change{{Path: "/race/x", Value: []byte("1")}}, machines); err == nil {
					mu.Lock()
					wins = append(wins, id)
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		require.Len(t, wins, 1)
		owner, ok, err := coordinator.MachineGray(ctx, "contended")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, wins[0], owner)
	})
}

func TestLargeRecord(t *testing.T) {
	ctx := context.Background()
	coordinator, store, _ := newTestCoordinator(t, memory.New(), WithChunkSize(32))

	value := bytes.Repeat([]byte("0123456789"), 20)
	seed(t, store, map[string]string{"/big": string(value)})

	id, err := coordinator.Begin(ctx, []Change{{Path: "/big", Value: []byte("small")}}, []string{"m1"})
	require.NoError(t, err)

	chunks, ok, err := store.List(ctx, nodepath.ContentRoot)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Greater(t, len(chunks), 1)

	require.NoError(t, coordinator.Rollback(ctx, id))
	assertValue(t, store, "/big", string(value))
	assertNoBookkeeping(t, coordinator, store, id, "m1")
}

func TestSetDuringGray(t *testing.T) {
	ctx := context.Background()
	coordinator, store, _ := newTestCoordinator(t, memory.New())
	seed(t, store, map[string]string{"/app/a": "a0"})

	id, err := coordinator.Begin(ctx, []Change{{Path: "/app/a", Value: []byte("a1")}}, []string{"m1"})
	require.NoError(t, err)

	require.NoError(t, store.Set(ctx, "/app/a", []byte("manual")))
	assertValue(t, store, "/app/a", "manual")

	require.NoError(t, coordinator.Rollback(ctx, id))
	assertValue(t, store, "/app/a", "a0")
}

func TestBeginUndo(t *testing.T) {
	ctx := context.Background()
	failing := &failingBackend{Backend: memory.New(), failKey: "/app/b"}
	coordinator, store, recorder := newTestCoordinator(t, failing)
	require.NoError(t, failing.Backend.Put(ctx, "/app", nil))
	require.NoError(t, failing.Backend.Put(ctx, "/app/a", []byte("a0")))
	require.NoError(t, failing.Backend.Put(ctx, "/app/b", []byte("b0")))

	id, err := coordinator.Begin(ctx, []Change{
		{Path: "/app/a", Value: []byte("a1")},
		{Path: "/app/b", Value: []byte("b1")},
	}, []string{"m1", "m2"})
	require.ErrorIs(t, err, gerrors.ErrStoreFailure)
	assert.Equal(t, NoID, id)

	assertValue(t, store, "/app/a", "a0")
	assertValue(t, store, "/app/b", "b0")

	for _, machine := range []string{"m1", "m2"} {
		_, ok, err := coordinator.MachineGray(ctx, machine)
		require.NoError(t, err)
		assert.False(t, ok)
	}

	chunks, _, err := store.List(ctx, nodepath.ContentRoot)
	require.NoError(t, err)
	assert.Empty(t, chunks)
	assert.Empty(t, recorder.all())
}

func TestBeginUndoAfterCommittedFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("With value written before the error", func(t *testing.T) {
		lossy := &lossyBackend{Backend: memory.New()}
		coordinator, store, _ := newTestCoordinator(t, lossy)
		seed(t, store, map[string]string{"/app/a": "a0", "/app/b": "b0"})
		lossy.failKey = "/app/b"

		id, err := coordinator.Begin(ctx, []Change{
			{Path: "/app/a", Value: []byte("a1")},
			{Path: "/app/b", Value: []byte("b1")},
		}, []string{"m1"})
		require.ErrorIs(t, err, gerrors.ErrStoreFailure)
		assert.Equal(t, NoID, id)

		assertValue(t, store, "/app/a", "a0")
		assertValue(t, store, "/app/b", "b0")

		_, ok, err := coordinator.MachineGray(ctx, "m1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("With record chunk written before the error", func(t *testing.T) {
		lossy := &lossyBackend{Backend: memory.New(), failPrefix: nodepath.ContentRoot + "/"}
		coordinator, store, _ := newTestCoordinator(t, lossy)
		seed(t, store, map[string]string{"/app/a": "a0"})

		id, err := coordinator.Begin(ctx, []Change{{Path: "/app/a", Value: []byte("a1")}}, []string{"m1"})
		require.ErrorIs(t, err, gerrors.ErrStoreFailure)
		assert.Equal(t, NoID, id)

		assertValue(t, store, "/app/a", "a0")
		chunks, _, err := store.List(ctx, nodepath.ContentRoot)
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})
}

func TestUnknownID(t *testing.T) {
	ctx := context.Background()
	coordinator, _, _ := newTestCoordinator(t, memory.New())

	for _, id := range []ID{NoID, "GRAYID-unknown", "bad/id"} {
		require.ErrorIs(t, coordinator.Commit(ctx, id), gerrors.ErrGrayNotFound)
		require.ErrorIs(t, coordinator.Rollback(ctx, id), gerrors.ErrGrayNotFound)
		_, ok, err := coordinator.Lookup(ctx, id)
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestPublishFailureIsIgnored(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	t.Cleanup(func() { _ = b.Close() })
	store := nodestore.New(b, nodestore.WithLogger(log.DiscardLogger))
	coordinator := New(store, WithLogger(log.DiscardLogger), WithBroadcaster(brokenBroadcaster{}))
	seed(t, store, map[string]string{"/app/a": "a0"})

	id, err := coordinator.Begin(ctx, []Change{{Path: "/app/a", Value: []byte("a1")}}, []string{"m1"})
	require.NoError(t, err)
	require.NoError(t, coordinator.Commit(ctx, id))
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []*broadcast.Event
}

func (r *recordingBroadcaster) Publish(_ context.Context, event *broadcast.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingBroadcaster) Close() error { return nil }

func (r *recordingBroadcaster) all() []*broadcast.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*broadcast.Event(nil), r.events...)
}

type brokenBroadcaster struct{}

func (brokenBroadcaster) Publish(context.Context, *broadcast.Event) error {
	return errors.New("broker down")
}

func (brokenBroadcaster) Close() error { return nil }

// failingBackend refuses every write to failKey
type failingBackend struct {
	backend.Backend
	failKey string
}

func (f *failingBackend) Put(ctx context.Context, key string, value []byte) error {
	if key == f.failKey {
		return errors.New("disk full")
	}
	return f.Backend.Put(ctx, key, value)
}

// lossyBackend commits the first write to failKey, or to a key under
// failPrefix, and then reports an error for it
type lossyBackend struct {
	backend.Backend
	failKey    string
	failPrefix string
	failed     bool
}

func (l *lossyBackend) Put(ctx context.Context, key string, value []byte) error {
	if err := l.Backend.Put(ctx, key, value); err != nil {
		return err
	}

	matches := key == l.failKey || (l.failPrefix != "" && strings.HasPrefix(key, l.failPrefix))
	if matches && !l.failed {
		l.failed = true
		return errors.New("deadline exceeded")
	}
	return nil
}

func newTestCoordinator(t *testing.T, b backend.Backend, opts ...Option) (*Coordinator, *nodestore.Store, *recordingBroadcaster) {
	t.Helper()
	t.Cleanup(func() { _ = b.Close() })

	store := nodestore.New(b,
		nodestore.WithLogger(log.DiscardLogger),
		nodestore.WithRetry(1, time.Millisecond, time.Millisecond),
	)

	recorder := new(recordingBroadcaster)
	opts = append([]Option{
		WithLogger(log.DiscardLogger),
		WithBroadcaster(recorder),
		WithDatacenter("corp"),
	}, opts...)
	return New(store, opts...), store, recorder
}

func seed(t *testing.T, store *nodestore.Store, values map[string]string) {
	t.Helper()
	for path, value := range values {
		require.NoError(t, store.Set(context.Background(), path, []byte(value)))
	}
}

func assertValue(t *testing.T, store *nodestore.Store, path, expected string) {
	t.Helper()
	value, ok, err := store.Get(context.Background(), path)
	require.NoError(t, err)
	require.True(t, ok, path)
	assert.Equal(t, expected, string(value), path)
}

func assertNoBookkeeping(t *testing.T, coordinator *Coordinator, store *nodestore.Store, id ID, machines ...string) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := coordinator.Lookup(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	for _, machine := range machines {
		_, ok, err := coordinator.MachineGray(ctx, machine)
		require.NoError(t, err)
		assert.False(t, ok, machine)
	}

	chunks, _, err := store.List(ctx, nodepath.ContentRoot)
	require.NoError(t, err)
	for _, chunk := range chunks {
		assert.False(t, strings.HasPrefix(chunk, id.String()+"_"), chunk)
	}
}
