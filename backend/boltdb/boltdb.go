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

// Package boltdb provides a single-process backend.Backend persisted in a
// bbolt file.
package boltdb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/atomic"

	"github.com/tochemey/grayconf/backend"
	"github.com/tochemey/grayconf/internal/codec"
	"github.com/tochemey/grayconf/internal/nodepath"
)

const (
	boltFileMode   os.FileMode = 0o600
	boltBucketName             = "nodes"
)

var (
	boltTimeout        = 5 * time.Second
	defaultBoltOptions = &bbolt.Options{Timeout: boltTimeout, NoGrowSync: true}
	errStoreClosed     = errors.New("backend/boltdb: store is closed")
)

// Config defines the bbolt backend settings
type Config struct {
	// Path is the database file. Parent folders are created when missing.
	Path string
}

// Store implements backend.Backend using go.etcd.io/bbolt.
//
// Concurrency:
//   - bbolt provides single-writer/multi-reader semantics, so a conditional
//     create is a lookup and a put inside one write transaction.
//
// Ordering:
//   - Each value is wrapped in an envelope carrying the bucket sequence
//     assigned when the node was created. Overwrites keep the sequence.
type Store struct {
	db     *bbolt.DB
	bucket []byte
	closed atomic.Bool
}

var _ backend.Backend = (*Store)(nil)

// New opens (or creates) the database file named by config.
func New(config *Config) (*Store, error) {
	if config == nil || config.Path == "" {
		return nil, errors.New("backend/boltdb: path is required")
	}

	if err := os.MkdirAll(filepath.Dir(config.Path), 0o700); err != nil {
		return nil, fmt.Errorf("backend/boltdb: creating folder: %w", err)
	}

	optionsCopy := *defaultBoltOptions
	db, err := bbolt.Open(config.Path, boltFileMode, &optionsCopy)
	if err != nil {
		return nil, fmt.Errorf("backend/boltdb: opening database: %w", err)
	}

	bucket := []byte(boltBucketName)
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists(bucket)
		return e
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("backend/boltdb: initializing bucket: %w", err)
	}

	return &Store{db: db, bucket: bucket}, nil
}

// Get returns the value stored at key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.ready(ctx); err != nil {
		return nil, false, err
	}

	var (
		value []byte
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(s.bucket).Get([]byte(key))
		if raw == nil {
			return nil
		}
		_, decoded, err := codec.DecodeEnvelope(raw)
		if err != nil {
			return err
		}
		value, found = decoded, true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("backend/boltdb: failed to get %s: %w", key, err)
	}
	return value, found, nil
}

// Put creates or overwrites key.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(s.bucket)
		var seq uint64
		if raw := bucket.Get([]byte(key)); raw != nil {
			current, _, err := codec.DecodeEnvelope(raw)
			if err != nil {
				return err
			}
			seq = current
		} else {
			next, err := bucket.NextSequence()
			if err != nil {
				return err
			}
			seq = next
		}
		return bucket.Put([]byte(key), codec.EncodeEnvelope(seq, value))
	})
	if err != nil {
		return fmt.Errorf("backend/boltdb: failed to put %s: %w", key, err)
	}
	return nil
}

// Create stores value at key when key does not exist.
func (s *Store) Create(ctx context.Context, key string, value []byte) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}

	var created bool
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(s.bucket)
		if bucket.Get([]byte(key)) != nil {
			return nil
		}
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		created = true
		return bucket.Put([]byte(key), codec.EncodeEnvelope(seq, value))
	})
	if err != nil {
		return false, fmt.Errorf("backend/boltdb: failed to create %s: %w", key, err)
	}
	return created, nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}

	var existed bool
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(s.bucket)
		if bucket.Get([]byte(key)) == nil {
			return nil
		}
		existed = true
		return bucket.Delete([]byte(key))
	})
	if err != nil {
		return false, fmt.Errorf("backend/boltdb: failed to delete %s: %w", key, err)
	}
	return existed, nil
}

// Children returns the direct children of key ordered by creation.
func (s *Store) Children(ctx context.Context, key string) ([]string, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	type child struct {
		name string
		seq  uint64
	}

	var found []child
	prefix := []byte(nodepath.ChildPrefix(key))
	err := s.db.View(func(tx *bbolt.Tx) error {
		cursor := tx.Bucket(s.bucket).Cursor()
		for k, v := cursor.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = cursor.Next() {
			name, ok := nodepath.ChildName(key, string(k))
			if !ok {
				continue
			}
			seq, _, err := codec.DecodeEnvelope(v)
			if err != nil {
				return err
			}
			found = append(found, child{name: name, seq: seq})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("backend/boltdb: failed to list %s: %w", key, err)
	}

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

// Close closes the database file. Close is idempotent.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if s.closed.Load() {
		return errStoreClosed
	}
	return ctx.Err()
}
