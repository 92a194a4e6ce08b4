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

// Package etcd provides a backend.Backend on top of etcd v3.
package etcd

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/namespace"

	"github.com/tochemey/grayconf/backend"
	"github.com/tochemey/grayconf/internal/nodepath"
)

const (
	defaultListPageSize = 256

	// subtreeEnd is the byte right after the path separator
	subtreeEnd = "0"
)

// Store is an etcd-backed implementation of backend.Backend.
//
// Every node is one etcd key under the configured namespace. Conditional
// creates are transactions guarded on the key's create revision, and
// children are ordered by create revision, which etcd keeps unchanged
// across overwrites.
//
// Any provided context is wrapped with the configured per-operation timeout.
type Store struct {
	config    *Config
	client    *clientv3.Client
	kv        clientv3.KV
	closeFunc func(*clientv3.Client) error

	listPageSize int64
}

var _ backend.Backend = (*Store)(nil)

// New connects to etcd and returns a Store.
func New(config *Config) (*Store, error) {
	return newStore(config, clientv3.New, func(client *clientv3.Client) error { return client.Close() })
}

func newStore(config *Config, clientFunc func(clientv3.Config) (*clientv3.Client, error), closeFunc func(*clientv3.Client) error) (*Store, error) {
	if config == nil {
		return nil, errors.New("backend/etcd: config is nil")
	}

	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := clientFunc(clientv3.Config{
		Endpoints:   config.Endpoints,
		DialTimeout: config.DialTimeout,
		TLS:         config.TLS,
		Username:    config.Username,
		Password:    config.Password,
		Context:     config.Context,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(config.Context, config.DialTimeout)
	defer cancel()

	if _, err = client.Status(ctx, config.Endpoints[0]); err != nil {
		if cerr := closeFunc(client); cerr != nil {
			return nil, errors.Join(err, fmt.Errorf("failed to close etcd client: %w", cerr))
		}
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	return &Store{
		config:    config,
		client:    client,
		kv:        namespace.NewKV(client.KV, config.Namespace),
		closeFunc: closeFunc,
	}, nil
}

// Get returns the value stored at key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.kv.Get(opCtx, key)
	if err != nil {
		return nil, false, fmt.Errorf("backend/etcd: failed to get %s: %w", key, err)
	}

	if len(resp.Kvs) == 0 {
		return nil, false, nil
	}
	return resp.Kvs[0].Value, true, nil
}

// Put creates or overwrites key.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.kv.Put(opCtx, key, string(value)); err != nil {
		return fmt.Errorf("backend/etcd: failed to put %s: %w", key, err)
	}
	return nil
}

// Create stores value at key when key does not exist.
func (s *Store) Create(ctx context.Context, key string, value []byte) (bool, error) {
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	txnResp, err := s.kv.Txn(opCtx).
		If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
		Then(clientv3.OpPut(key, string(value))).
		Commit()
	if err != nil {
		return false, fmt.Errorf("backend/etcd: failed to create %s: %w", key, err)
	}
	return txnResp.Succeeded, nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.kv.Delete(opCtx, key)
	if err != nil {
		return false, fmt.Errorf("backend/etcd: failed to delete %s: %w", key, err)
	}
	return resp.Deleted > 0, nil
}

// Children returns the direct children of key ordered by create revision.
//
// Keys are scanned in key order one page at a time. When the scan meets a
// descendant of a child it jumps past that child's subtree, so the cost
// grows with the number of children rather than with the size of the tree.
func (s *Store) Children(ctx context.Context, key string) ([]string, error) {
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	prefix := nodepath.ChildPrefix(key)
	end := clientv3.GetPrefixRangeEnd(prefix)

	var children []*mvccpb.KeyValue
	for start := prefix; ; {
		resp, err := s.kv.Get(opCtx, start,
			clientv3.WithRange(end),
			clientv3.WithKeysOnly(),
			clientv3.WithLimit(s.pageSize()),
			clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
		if err != nil {
			return nil, fmt.Errorf("backend/etcd: failed to list %s: %w", key, err)
		}

		if len(resp.Kvs) == 0 {
			break
		}

		skipped := false
		for _, kv := range resp.Kvs {
			name, _, nested := strings.Cut(string(kv.Key)[len(prefix):], nodepath.Separator)
			if nested {
				// every key below name sorts before name + "0"
				start = prefix + name + subtreeEnd
				skipped = true
				break
			}

			if name != "" {
				children = append(children, kv)
			}
			start = string(kv.Key) + "\x00"
		}

		if !skipped && !resp.More {
			break
		}
	}

	slices.SortFunc(children, func(a, b *mvccpb.KeyValue) int {
		return cmp.Compare(a.CreateRevision, b.CreateRevision)
	})

	names := make([]string, len(children))
	for i, kv := range children {
		names[i] = string(kv.Key)[len(prefix):]
	}
	return names, nil
}

func (s *Store) pageSize() int64 {
	if s.listPageSize > 0 {
		return s.listPageSize
	}
	return defaultListPageSize
}

// Close releases the etcd client. Close is idempotent.
func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	client := s.client
	s.client = nil
	return s.closeFunc(client)
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = s.config.Context
	}
	return context.WithTimeout(ctx, s.config.Timeout)
}
