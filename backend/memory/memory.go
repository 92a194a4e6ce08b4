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

// Package memory provides an in-process backend.Backend.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/tochemey/grayconf/backend"
	"github.com/tochemey/grayconf/internal/nodepath"
)

type node struct {
	seq   uint64
	value []byte
}

// Store is an in-memory implementation of backend.Backend that keeps nodes
// in a mutex-protected map.
//
// Concurrency:
//   - A RWMutex guards the map allowing concurrent readers while writes are
//     exclusive. Create checks and inserts under the same write lock.
//   - Values are copied in and out so callers cannot mutate stored state.
//
// Ordering:
//   - Every newly created node takes the next value of a monotonic sequence.
//     Children are sorted by that sequence; overwriting a node keeps it.
//
// Use cases:
//   - Suitable for tests and single-process deployments. Nothing survives a
//     restart.
type Store struct {
	mu    sync.RWMutex
	seq   uint64
	nodes map[string]*node
}

var _ backend.Backend = (*Store)(nil) // enforce compilation error

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		nodes: make(map[string]*node),
	}
}

// Get returns a copy of the value stored at key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	n, ok := s.nodes[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(n.value), true, nil
}

// Put creates or overwrites key.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if n, ok := s.nodes[key]; ok {
		n.value = clone(value)
	} else {
		s.insert(key, value)
	}
	s.mu.Unlock()
	return nil
}

// Create stores value at key when key is absent.
func (s *Store) Create(ctx context.Context, key string, value []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[key]; ok {
		return false, nil
	}
	s.insert(key, value)
	return true, nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	_, ok := s.nodes[key]
	delete(s.nodes, key)
	s.mu.Unlock()
	return ok, nil
}

// Children returns the direct children of key ordered by creation.
func (s *Store) Children(ctx context.Context, key string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type child struct {
		name string
		seq  uint64
	}

	prefix := nodepath.ChildPrefix(key)
	var found []child

	s.mu.RLock()
	for k, n := range s.nodes {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if name, ok := nodepath.ChildName(key, k); ok {
			found = append(found, child{name: name, seq: n.seq})
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(found, func(a, b child) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		default:
			return 0
		}
	})

	names := make([]string, 0, len(found))
	for _, c := range found {
		names = append(names, c.name)
	}
	return names, nil
}

// Close drops every node. The store can be reused afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	clear(s.nodes)
	s.mu.Unlock()
	return nil
}

// insert must be called with the write lock held
func (s *Store) insert(key string, value []byte) {
	s.seq++
	s.nodes[key] = &node{seq: s.seq, value: clone(value)}
}

func clone(value []byte) []byte {
	if value == nil {
		return []byte{}
	}
	return slices.Clone(value)
}
