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

package datacenter

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tochemey/grayconf/backend"
	"github.com/tochemey/grayconf/backend/boltdb"
	"github.com/tochemey/grayconf/backend/etcd"
	"github.com/tochemey/grayconf/backend/memory"
	gerrors "github.com/tochemey/grayconf/errors"
	"github.com/tochemey/grayconf/log"
)

func TestNewTable(t *testing.T) {
	ctx := context.Background()

	t.Run("With memory and boltdb datacenters", func(t *testing.T) {
		table, err := NewTable(ctx, []*Config{
			{Name: "corp", Backend: backend.KindMemory},
			{Name: "edge", Backend: backend.KindBoltDB, BoltDB: &boltdb.Config{Path: filepath.Join(t.TempDir(), "edge.db")}},
		}, log.DiscardLogger)
		require.NoError(t, err)
		t.Cleanup(func() { require.NoError(t, table.Close()) })

		assert.Equal(t, []string{"corp", "edge"}, table.Names())

		corp, err := table.Backend("corp")
		require.NoError(t, err)
		require.NoError(t, corp.Put(ctx, "/a", []byte("1")))

		edge, err := table.Backend("edge")
		require.NoError(t, err)
		_, ok, err := edge.Get(ctx, "/a")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("With unknown datacenter", func(t *testing.T) {
		table, err := NewTable(ctx, []*Config{{Name: "corp"}}, log.DiscardLogger)
		require.NoError(t, err)
		t.Cleanup(func() { _ = table.Close() })

		_, err = table.Backend("mars")
		require.ErrorIs(t, err, gerrors.ErrUnknownDataCenter)
		assert.Equal(t, gerrors.CodeNotFound, gerrors.Code(err))
	})

	t.Run("With invalid configuration", func(t *testing.T) {
		testCases := []struct {
			name    string
			configs []*Config
		}{
			{name: "empty", configs: nil},
			{name: "no name", configs: []*Config{{Backend: backend.KindMemory}}},
			{name: "bad name", configs: []*Config{{Name: "a/b"}}},
			{name: "unsupported backend", configs: []*Config{{Name: "corp", Backend: "zookeeper"}}},
			{name: "missing section", configs: []*Config{{Name: "corp", Backend: backend.KindEtcd}}},
			{name: "invalid section", configs: []*Config{{Name: "corp", Backend: backend.KindEtcd, Etcd: &etcd.Config{}}}},
			{name: "missing bolt path", configs: []*Config{{Name: "corp", Backend: backend.KindBoltDB, BoltDB: &boltdb.Config{}}}},
			{name: "duplicate", configs: []*Config{{Name: "corp"}, {Name: "corp"}}},
		}
		for _, tc := range testCases {
			table, err := NewTable(ctx, tc.configs, log.DiscardLogger)
			assert.Error(t, err, tc.name)
			assert.Nil(t, table, tc.name)
		}
	})

	t.Run("With failing backend the opened ones are closed", func(t *testing.T) {
		opened := &closeTracker{Backend: memory.New()}
		custom := map[backend.Kind]Factory{
			backend.KindMemory: func(context.Context, *Config) (backend.Backend, error) { return opened, nil },
			backend.KindBoltDB: func(context.Context, *Config) (backend.Backend, error) { return nil, errors.New("locked") },
		}

		table, err := newTable(ctx, []*Config{
			{Name: "corp", Backend: backend.KindMemory},
			{Name: "edge", Backend: backend.KindBoltDB, BoltDB: &boltdb.Config{Path: "x.db"}},
		}, custom, log.DiscardLogger)
		require.Error(t, err)
		assert.Nil(t, table)
		assert.True(t, opened.closed)
	})
}

type closeTracker struct {
	backend.Backend
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return c.Backend.Close()
}
