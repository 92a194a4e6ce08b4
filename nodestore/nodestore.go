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

// Package nodestore implements the node operations of the registry on top
// of a backend.Backend: path validation, value limits, implicit parent
// creation and ordered listing.
package nodestore

import (
	"context"
	"fmt"
	"time"

	"github.com/flowchartsman/retry"
	"github.com/spf13/cast"
	"golang.org/x/sync/errgroup"

	"github.com/tochemey/grayconf/backend"
	gerrors "github.com/tochemey/grayconf/errors"
	"github.com/tochemey/grayconf/internal/nodepath"
	"github.com/tochemey/grayconf/log"
)

const (
	// DefaultMaxValueSize is the largest value a node holds by default:
	// one MiB minus an allowance for the store's own framing.
	DefaultMaxValueSize = 1024*1024 - 100

	defaultAttempts     = 3
	defaultInitialDelay = 50 * time.Millisecond
	defaultMaxDelay     = 500 * time.Millisecond
	listConcurrency     = 16
)

// Child is a child node with its value
type Child struct {
	Name  string
	Value string
}

// Store reads and writes nodes.
//
// Every path argument is validated and normalised before it reaches the
// backend. Setting a node creates its missing ancestors with empty values.
// Backend failures are retried and reported as errors.ErrStoreFailure.
type Store struct {
	backend      backend.Backend
	logger       log.Logger
	maxValueSize int
	attempts     int
	initialDelay time.Duration
	maxDelay     time.Duration
}

// New creates a Store over the given backend
func New(b backend.Backend, opts ...Option) *Store {
	store := &Store{
		backend:      b,
		logger:       log.DefaultLogger,
		maxValueSize: DefaultMaxValueSize,
		attempts:     defaultAttempts,
		initialDelay: defaultInitialDelay,
		maxDelay:     defaultMaxDelay,
	}

	for _, opt := range opts {
		opt.Apply(store)
	}
	return store
}

// MaxValueSize returns the largest value a node may hold
func (s *Store) MaxValueSize() int {
	return s.maxValueSize
}

// CheckValue validates the size of a value
func (s *Store) CheckValue(value []byte) error {
	if len(value) > s.maxValueSize {
		return fmt.Errorf("size=(%d) limit=(%d) %w", len(value), s.maxValueSize, gerrors.ErrValueTooLarge)
	}
	return nil
}

// Set creates or overwrites the node at path. Missing ancestors are created
// with empty values.
func (s *Store) Set(ctx context.Context, path string, value []byte) error {
	canonical, err := nodepath.Normalize(path)
	if err != nil {
		return err
	}

	if err := s.CheckValue(value); err != nil {
		return err
	}

	if err := s.ensureParents(ctx, canonical); err != nil {
		return err
	}

	if err := s.do(ctx, "set", canonical, func(ctx context.Context) error {
		return s.backend.Put(ctx, canonical, value)
	}); err != nil {
		return err
	}

	s.logger.Debugf("node %s set (%d bytes)", canonical, len(value))
	return nil
}

// Create creates the node at path only when it does not exist and reports
// whether it did. Missing ancestors are created with empty values.
func (s *Store) Create(ctx context.Context, path string, value []byte) (bool, error) {
	canonical, err := nodepath.Normalize(path)
	if err != nil {
		return false, err
	}

	if err := s.CheckValue(value); err != nil {
		return false, err
	}

	if err := s.ensureParents(ctx, canonical); err != nil {
		return false, err
	}

	var created bool
	err = s.do(ctx, "create", canonical, func(ctx context.Context) error {
		var err error
		created, err = s.backend.Create(ctx, canonical, value)
		return err
	})
	return created, err
}

// Get returns the value of the node at path. The boolean is false when the
// node does not exist.
func (s *Store) Get(ctx context.Context, path string) ([]byte, bool, error) {
	canonical, err := nodepath.Normalize(path)
	if err != nil {
		return nil, false, err
	}
	return s.get(ctx, canonical)
}

// Exists reports whether the node at path exists
func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	_, ok, err := s.Get(ctx, path)
	return ok, err
}

// Delete removes the node at path. Deleting a missing node succeeds.
// Reserved bookkeeping roots cannot be deleted and a node that still has
// children is refused with errors.ErrNotEmpty.
func (s *Store) Delete(ctx context.Context, path string) error {
	canonical, err := nodepath.Normalize(path)
	if err != nil {
		return err
	}

	if nodepath.IsReserved(canonical) {
		return gerrors.NewErrInvalidPath(canonical)
	}

	children, err := s.children(ctx, canonical)
	if err != nil {
		return err
	}

	if len(children) > 0 {
		return fmt.Errorf("path=(%s) %w", canonical, gerrors.ErrNotEmpty)
	}

	var existed bool
	if err := s.do(ctx, "delete", canonical, func(ctx context.Context) error {
		existed, err = s.backend.Delete(ctx, canonical)
		return err
	}); err != nil {
		return err
	}

	if existed {
		s.logger.Debugf("node %s deleted", canonical)
	}
	return nil
}

// List returns the names of the children of path in creation order. The
// boolean is false when the node does not exist.
func (s *Store) List(ctx context.Context, path string) ([]string, bool, error) {
	canonical, err := nodepath.Normalize(path)
	if err != nil {
		return nil, false, err
	}

	if _, ok, err := s.get(ctx, canonical); err != nil || !ok {
		return nil, false, err
	}

	children, err := s.children(ctx, canonical)
	if err != nil {
		return nil, false, err
	}
	return children, true, nil
}

// ListWithValues returns the children of path with their values, in
// creation order. Children removed while listing are skipped.
func (s *Store) ListWithValues(ctx context.Context, path string) ([]Child, bool, error) {
	names, ok, err := s.List(ctx, path)
	if err != nil || !ok {
		return nil, ok, err
	}

	canonical, _ := nodepath.Normalize(path)
	values := make([][]byte, len(names))
	present := make([]bool, len(names))

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(listConcurrency)
	for i, name := range names {
		group.Go(func() error {
			value, found, err := s.get(gctx, nodepath.Join(canonical, name))
			if err != nil {
				return err
			}
			values[i], present[i] = value, found
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, false, err
	}

	children := make([]Child, 0, len(names))
	for i, name := range names {
		if present[i] {
			children = append(children, Child{Name: name, Value: string(values[i])})
		}
	}
	return children, true, nil
}

// Canonical converts a value of any origin into the bytes stored in a node.
// Strings and byte slices are kept verbatim, everything else goes through
// its canonical string form.
func Canonical(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	case nil:
		return []byte{}, nil
	}

	s, err := cast.ToStringE(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gerrors.ErrInvalidValue, err)
	}
	return []byte(s), nil
}

func (s *Store) get(ctx context.Context, canonical string) ([]byte, bool, error) {
	var (
		value []byte
		found bool
	)
	err := s.do(ctx, "get", canonical, func(ctx context.Context) error {
		var err error
		value, found, err = s.backend.Get(ctx, canonical)
		return err
	})
	if err != nil {
		return nil, false, err
	}

	if found && value == nil {
		value = []byte{}
	}
	return value, found, nil
}

func (s *Store) children(ctx context.Context, canonical string) ([]string, error) {
	var names []string
	err := s.do(ctx, "list", canonical, func(ctx context.Context) error {
		var err error
		names, err = s.backend.Children(ctx, canonical)
		return err
	})
	return names, err
}

// ensureParents creates the missing ancestors of canonical, outermost first
func (s *Store) ensureParents(ctx context.Context, canonical string) error {
	parent := nodepath.Parent(canonical)
	if parent == nodepath.Separator {
		return nil
	}

	_, ok, err := s.get(ctx, parent)
	if err != nil || ok {
		return err
	}

	for _, ancestor := range nodepath.Ancestors(canonical) {
		if err := s.do(ctx, "create", ancestor, func(ctx context.Context) error {
			_, err := s.backend.Create(ctx, ancestor, nil)
			return err
		}); err != nil {
			return err
		}
	}
	return nil
}

// do runs a backend call with retries and maps its failure to a store failure
func (s *Store) do(ctx context.Context, op, path string, fn func(context.Context) error) error {
	attempt := 0
	retrier := retry.NewRetrier(s.attempts, s.initialDelay, s.maxDelay)
	err := retrier.RunContext(ctx, func(ctx context.Context) error {
		attempt++
		if err := fn(ctx); err != nil {
			if attempt < s.attempts && ctx.Err() == nil {
				s.logger.Warnf("%s %s failed (attempt %d/%d): %v", op, path, attempt, s.attempts, err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		s.logger.Errorf("%s %s failed: %v", op, path, err)
		return gerrors.NewErrStoreFailure(err)
	}
	return nil
}
