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

package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tochemey/grayconf/backend"
	"github.com/tochemey/grayconf/backend/memory"
	gerrors "github.com/tochemey/grayconf/errors"
	"github.com/tochemey/grayconf/log"
	"github.com/tochemey/grayconf/nodestore"
)

func TestClaim(t *testing.T) {
	ctx := context.Background()

	t.Run("With free machines", func(t *testing.T) {
		index := newTestIndex(t)
		require.NoError(t, index.Claim(ctx, "GRAYID-1", []string{"m1", "m2"}))

		for _, machine := range []string{"m1", "m2"} {
			owner, ok, err := index.Pointer(ctx, machine)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "GRAYID-1", owner)
		}
	})

	t.Run("With a claimed machine nothing is claimed", func(t *testing.T) {
		index := newTestIndex(t)
		require.NoError(t, index.Claim(ctx, "GRAYID-1", []string{"m2"}))

		err := index.Claim(ctx, "GRAYID-2", []string{"m1", "m2", "m3"})
		require.ErrorIs(t, err, gerrors.ErrMachineClaimed)
		assert.Equal(t, gerrors.CodeConflict, gerrors.Code(err))

		_, ok, err := index.Pointer(ctx, "m1")
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, err = index.Pointer(ctx, "m3")
		require.NoError(t, err)
		assert.False(t, ok)

		owner, ok, err := index.Pointer(ctx, "m2")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "GRAYID-1", owner)
	})

	t.Run("With invalid machines", func(t *testing.T) {
		index := newTestIndex(t)
		testCases := [][]string{
			nil,
			{},
			{""},
			{"m1", "m1"},
			{"a/b"},
			{"bad machine"},
		}
		for _, machines := range testCases {
			err := index.Claim(ctx, "GRAYID-1", machines)
			require.ErrorIs(t, err, gerrors.ErrInvalidMachine, machines)
			assert.Equal(t, gerrors.CodeInvalidValue, gerrors.Code(err))
		}
	})

	t.Run("With concurrent claims on a shared machine", func(t *testing.T) {
		index := newTestIndex(t)
		const racers = 8

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins []string
		)
		for i := range racers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id := "GRAYID-" + string(rune('a'+i))
				if err := index.Claim(ctx, id, []string{"own-" + id, "shared"}); err == nil {
					mu.Lock()
					wins = append(wins, id)
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		require.Len(t, wins, 1)
		owner, ok, err := index.Pointer(ctx, "shared")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, wins[0], owner)
	})
}

func TestRelease(t *testing.T) {
	ctx := context.Background()
	index := newTestIndex(t)

	require.NoError(t, index.Claim(ctx, "GRAYID-1", []string{"m1"}))
	require.NoError(t, index.Claim(ctx, "GRAYID-2", []string{"m2"}))

	// m2 belongs to another transaction and must survive
	require.NoError(t, index.Release(ctx, "GRAYID-1", []string{"m1", "m2", "m3"}))

	_, ok, err := index.Pointer(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, ok)

	owner, ok, err := index.Pointer(ctx, "m2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "GRAYID-2", owner)

	require.NoError(t, index.Claim(ctx, "GRAYID-3", []string{"m1"}))
}

func TestBacklink(t *testing.T) {
	ctx := context.Background()
	index := newTestIndex(t)

	machines := []string{"m3", "m1", "m2"}
	require.NoError(t, index.WriteBacklink(ctx, "GRAYID-1", machines))

	actual, ok, err := index.Backlink(ctx, "GRAYID-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, machines, actual)

	require.NoError(t, index.DeleteBacklink(ctx, "GRAYID-1"))
	_, ok, err = index.Backlink(ctx, "GRAYID-1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = index.Backlink(ctx, "not/an/id")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBacklinkEncoding(t *testing.T) {
	assert.Equal(t, "m1;m2;", string(EncodeBacklink([]string{"m1", "m2"})))
	assert.Equal(t, []string{"m1", "m2"}, DecodeBacklink([]byte("m1;m2;")))
	assert.Equal(t, []string{"m1"}, DecodeBacklink([]byte("m1")))
	assert.Empty(t, DecodeBacklink(nil))
}

func TestClaimAfterCommittedFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("With retry finding its own pointer", func(t *testing.T) {
		lossy := &lossyBackend{Backend: memory.New(), failKey: "/grayconf/notify/client/m2"}
		index := newIndexOn(t, lossy, 3)

		require.NoError(t, index.Claim(ctx, "GRAYID-1", []string{"m1", "m2"}))
		for _, machine := range []string{"m1", "m2"} {
			owner, ok, err := index.Pointer(ctx, machine)
			require.NoError(t, err)
			require.True(t, ok, machine)
			assert.Equal(t, "GRAYID-1", owner)
		}

		require.NoError(t, index.Release(ctx, "GRAYID-1", []string{"m1", "m2"}))
		require.NoError(t, index.Claim(ctx, "GRAYID-2", []string{"m2"}))
	})

	t.Run("Without retry the written pointer is undone", func(t *testing.T) {
		lossy := &lossyBackend{Backend: memory.New(), failKey: "/grayconf/notify/client/m2"}
		index := newIndexOn(t, lossy, 1)

		err := index.Claim(ctx, "GRAYID-1", []string{"m1", "m2"})
		require.ErrorIs(t, err, gerrors.ErrStoreFailure)

		for _, machine := range []string{"m1", "m2"} {
			_, ok, err := index.Pointer(ctx, machine)
			require.NoError(t, err)
			assert.False(t, ok, machine)
		}
		require.NoError(t, index.Claim(ctx, "GRAYID-2", []string{"m1", "m2"}))
	})
}

// lossyBackend commits the first create of failKey and then reports an error
type lossyBackend struct {
	backend.Backend
	failKey string
	failed  bool
}

func (l *lossyBackend) Create(ctx context.Context, key string, value []byte) (bool, error) {
	created, err := l.Backend.Create(ctx, key, value)
	if err != nil {
		return created, err
	}

	if key == l.failKey && !l.failed {
		l.failed = true
		return false, errors.New("deadline exceeded")
	}
	return created, nil
}

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	return newIndexOn(t, memory.New(), 1)
}

func newIndexOn(t *testing.T, b backend.Backend, attempts int) *Index {
	t.Helper()
	t.Cleanup(func() { _ = b.Close() })
	store := nodestore.New(b,
		nodestore.WithLogger(log.DiscardLogger),
		nodestore.WithRetry(attempts, time.Millisecond, time.Millisecond),
	)
	return New(store, WithLogger(log.DiscardLogger))
}
