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

// Package backendtest holds the behaviour every backend.Backend must share.
// Implementations run it from their own tests.
package backendtest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tochemey/grayconf/backend"
)

// Run exercises store against the backend contract. The store must be empty.
func Run(t *testing.T, store backend.Backend) {
	t.Helper()
	ctx := context.Background()

	t.Run("With get of a missing key", func(t *testing.T) {
		value, ok, err := store.Get(ctx, "/missing")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, value)
	})

	t.Run("With put and get", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "/put", []byte("v1")))
		value, ok, err := store.Get(ctx, "/put")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("v1"), value)

		require.NoError(t, store.Put(ctx, "/put", []byte("v2")))
		value, ok, err = store.Get(ctx, "/put")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("v2"), value)
	})

	t.Run("With empty value", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "/empty", nil))
		value, ok, err := store.Get(ctx, "/empty")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Empty(t, value)
	})

	t.Run("With conditional create", func(t *testing.T) {
		created, err := store.Create(ctx, "/create", []byte("first"))
		require.NoError(t, err)
		require.True(t, created)

		created, err = store.Create(ctx, "/create", []byte("second"))
		require.NoError(t, err)
		require.False(t, created)

		value, ok, err := store.Get(ctx, "/create")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("first"), value)
	})

	t.Run("With concurrent create only one wins", func(t *testing.T) {
		const racers = 8
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := range racers {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				created, err := store.Create(ctx, "/race", []byte(fmt.Sprintf("racer-%d", i)))
				assert.NoError(t, err)
				if created {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})

	t.Run("With delete", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "/delete", []byte("x")))
		existed, err := store.Delete(ctx, "/delete")
		require.NoError(t, err)
		assert.True(t, existed)

		_, ok, err := store.Get(ctx, "/delete")
		require.NoError(t, err)
		assert.False(t, ok)

		existed, err = store.Delete(ctx, "/delete")
		require.NoError(t, err)
		assert.False(t, existed)
	})

	t.Run("With children in creation order", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "/group", nil))
		for _, host := range []string{"10.0.0.3:80", "10.0.0.1:80", "10.0.0.2:80"} {
			require.NoError(t, store.Put(ctx, "/group/"+host, []byte("0")))
		}
		require.NoError(t, store.Put(ctx, "/group/10.0.0.1:80/nested", nil))
		require.NoError(t, store.Put(ctx, "/groupie", nil))

		children, err := store.Children(ctx, "/group")
		require.NoError(t, err)
		assert.Equal(t, []string{"10.0.0.3:80", "10.0.0.1:80", "10.0.0.2:80"}, children)

		// overwriting keeps the position
		require.NoError(t, store.Put(ctx, "/group/10.0.0.3:80", []byte("2")))
		children, err = store.Children(ctx, "/group")
		require.NoError(t, err)
		assert.Equal(t, []string{"10.0.0.3:80", "10.0.0.1:80", "10.0.0.2:80"}, children)

		// recreating moves to the end
		_, err = store.Delete(ctx, "/group/10.0.0.3:80")
		require.NoError(t, err)
		require.NoError(t, store.Put(ctx, "/group/10.0.0.3:80", []byte("0")))
		children, err = store.Children(ctx, "/group")
		require.NoError(t, err)
		assert.Equal(t, []string{"10.0.0.1:80", "10.0.0.2:80", "10.0.0.3:80"}, children)
	})

	t.Run("With no children", func(t *testing.T) {
		children, err := store.Children(ctx, "/put")
		require.NoError(t, err)
		assert.Empty(t, children)

		children, err = store.Children(ctx, "/missing")
		require.NoError(t, err)
		assert.Empty(t, children)
	})

	t.Run("With root children", func(t *testing.T) {
		children, err := store.Children(ctx, "/")
		require.NoError(t, err)
		assert.Contains(t, children, "group")
		assert.Contains(t, children, "put")
		assert.NotContains(t, children, "10.0.0.1:80")
	})

	t.Run("With cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, _, err := store.Get(cancelled, "/put")
		assert.Error(t, err)
	})
}
