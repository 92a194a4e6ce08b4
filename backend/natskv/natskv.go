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

// Package natskv provides a backend.Backend on top of a NATS JetStream
// key-value bucket.
package natskv

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/tochemey/grayconf/backend"
	"github.com/tochemey/grayconf/internal/codec"
	"github.com/tochemey/grayconf/internal/nodepath"
	"github.com/tochemey/grayconf/internal/validation"
)

const (
	defaultBucket = "grayconf"
	// maxUpdateAttempts bounds the optimistic update loop of Put
	maxUpdateAttempts = 16
)

var (
	escaper   = strings.NewReplacer(".", "=2E", ":", "=3A")
	unescaper = strings.NewReplacer("=2E", ".", "=3A", ":")
)

// Config defines the NATS key-value backend settings
type Config struct {
	// URL is the NATS server URL.
	URL string
	// Bucket is the key-value bucket holding the nodes. It is created when missing.
	Bucket string
	// ConnectTimeout bounds the initial connection.
	ConnectTimeout time.Duration
}

var _ validation.Validator = (*Config)(nil)

// Sanitize sets defaults for empty fields.
func (c *Config) Sanitize() {
	if strings.TrimSpace(c.Bucket) == "" {
		c.Bucket = defaultBucket
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 5 * time.Second
	}
}

// Validate implements validation.Validator.
func (c *Config) Validate() error {
	return validation.New(validation.FailFast()).
		AddAssertion(strings.TrimSpace(c.URL) != "", "URL must not be empty").
		AddAssertion(c.ConnectTimeout > 0, "ConnectTimeout must be greater than 0").
		Validate()
}

// Store keeps nodes in a JetStream key-value bucket.
//
// A node path maps to a dotted key, one token per segment, with "." and ":"
// escaped inside segments. Values are wrapped in an envelope holding the
// creation order: zero means the entry revision is the creation revision,
// which holds until the node is overwritten for the first time.
type Store struct {
	conn *nats.Conn
	kv   nats.KeyValue
}

var _ backend.Backend = (*Store)(nil)

// New connects to NATS and opens (or creates) the configured bucket.
func New(config *Config) (*Store, error) {
	if config == nil {
		return nil, errors.New("backend/natskv: config is nil")
	}

	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	conn, err := nats.Connect(config.URL, nats.Timeout(config.ConnectTimeout))
	if err != nil {
		return nil, fmt.Errorf("backend/natskv: connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("backend/natskv: jetstream: %w", err)
	}

	kv, err := js.KeyValue(config.Bucket)
	if err != nil {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{Bucket: config.Bucket, History: 1})
		if err != nil {
			// another instance may have created the bucket
			if errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
				kv, err = js.KeyValue(config.Bucket)
			}

			if err != nil {
				conn.Close()
				return nil, fmt.Errorf("backend/natskv: create bucket: %w", err)
			}
		}
	}

	return &Store{conn: conn, kv: kv}, nil
}

// Get returns the value stored at key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	entry, err := s.entry(key)
	if err != nil || entry == nil {
		return nil, false, err
	}

	_, value, err := codec.DecodeEnvelope(entry.Value())
	if err != nil {
		return nil, false, fmt.Errorf("backend/natskv: failed to decode %s: %w", key, err)
	}
	return value, true, nil
}

// Put creates or overwrites key. Overwrites are optimistic updates retried
// on concurrent modification.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	for range maxUpdateAttempts {
		if err := ctx.Err(); err != nil {
			return err
		}

		entry, err := s.entry(key)
		if err != nil {
			return err
		}

		if entry == nil {
			_, err = s.kv.Create(toKey(key), codec.EncodeEnvelope(0, value))
		} else {
			seq, _, derr := codec.DecodeEnvelope(entry.Value())
			if derr != nil {
				return fmt.Errorf("backend/natskv: failed to decode %s: %w", key, derr)
			}
			if seq == 0 {
				seq = entry.Revision()
			}
			_, err = s.kv.Update(toKey(key), codec.EncodeEnvelope(seq, value), entry.Revision())
		}

		switch {
		case err == nil:
			return nil
		case isConflict(err):
			continue
		default:
			return fmt.Errorf("backend/natskv: failed to put %s: %w", key, err)
		}
	}
	return fmt.Errorf("backend/natskv: failed to put %s: too many concurrent updates", key)
}

// Create stores value at key when key does not exist.
func (s *Store) Create(ctx context.Context, key string, value []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	if _, err := s.kv.Create(toKey(key), codec.EncodeEnvelope(0, value)); err != nil {
		if isConflict(err) {
			return false, nil
		}
		return false, fmt.Errorf("backend/natskv: failed to create %s: %w", key, err)
	}
	return true, nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	entry, err := s.entry(key)
	if err != nil || entry == nil {
		return false, err
	}

	if err := s.kv.Delete(toKey(key)); err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) || errors.Is(err, nats.ErrKeyDeleted) {
			return false, nil
		}
		return false, fmt.Errorf("backend/natskv: failed to delete %s: %w", key, err)
	}
	return true, nil
}

// Children returns the direct children of key ordered by creation.
func (s *Store) Children(ctx context.Context, key string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pattern := "*"
	if key != nodepath.Separator {
		pattern = toKey(key) + ".*"
	}

	watcher, err := s.kv.Watch(pattern, nats.IgnoreDeletes(), nats.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("backend/natskv: failed to list %s: %w", key, err)
	}
	defer func() { _ = watcher.Stop() }()

	type child struct {
		name string
		seq  uint64
	}

	var found []child
	for entry := range watcher.Updates() {
		// a nil entry marks the end of the initial values
		if entry == nil {
			break
		}
		seq, _, err := codec.DecodeEnvelope(entry.Value())
		if err != nil {
			return nil, fmt.Errorf("backend/natskv: failed to decode %s: %w", entry.Key(), err)
		}
		if seq == 0 {
			seq = entry.Revision()
		}
		found = append(found, child{name: nodepath.Base(fromKey(entry.Key())), seq: seq})
	}

	if err := ctx.Err(); err != nil {
		return nil, err
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

// Close drains and closes the NATS connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	s.conn.Close()
	return nil
}

// entry returns the live entry of key or nil when key is absent
func (s *Store) entry(key string) (nats.KeyValueEntry, error) {
	entry, err := s.kv.Get(toKey(key))
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) || errors.Is(err, nats.ErrKeyDeleted) {
			return nil, nil
		}
		return nil, fmt.Errorf("backend/natskv: failed to get %s: %w", key, err)
	}
	return entry, nil
}

func isConflict(err error) bool {
	if errors.Is(err, nats.ErrKeyExists) {
		return true
	}
	var apiErr *nats.APIError
	return errors.As(err, &apiErr) && apiErr != nil && apiErr.ErrorCode == nats.JSErrCodeStreamWrongLastSequence
}

// toKey converts a canonical path into a bucket key
func toKey(path string) string {
	segments := strings.Split(strings.TrimPrefix(path, nodepath.Separator), nodepath.Separator)
	for i, segment := range segments {
		segments[i] = escaper.Replace(segment)
	}
	return strings.Join(segments, ".")
}

// fromKey converts a bucket key back into a canonical path
func fromKey(key string) string {
	tokens := strings.Split(key, ".")
	for i, token := range tokens {
		tokens[i] = unescaper.Replace(token)
	}
	return nodepath.Separator + strings.Join(tokens, nodepath.Separator)
}
