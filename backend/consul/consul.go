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

// Package consul provides a backend.Backend on top of the Consul KV store.
package consul

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/hashicorp/consul/api"

	"github.com/tochemey/grayconf/backend"
	"github.com/tochemey/grayconf/internal/nodepath"
)

// Store keeps nodes in the Consul KV store of one datacenter.
//
// A node path "/a/b" maps to the key "<prefix>/a/b". Conditional creates use
// check-and-set with index 0, and children are ordered by their CreateIndex,
// which Consul keeps unchanged across overwrites.
type Store struct {
	config *Config
	client *api.Client
	kv     *api.KV
}

var _ backend.Backend = (*Store)(nil)

// New creates a Consul client and checks the agent is reachable.
func New(config *Config) (*Store, error) {
	if config == nil {
		return nil, errors.New("backend/consul: config is nil")
	}

	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("consul backend config is invalid: %w", err)
	}

	consulConfig := api.DefaultConfig()
	consulConfig.Address = config.Address
	consulConfig.Datacenter = config.Datacenter
	consulConfig.Token = config.Token

	client, err := api.NewClient(consulConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}

	if _, err := client.Agent().Self(); err != nil {
		return nil, fmt.Errorf("failed to connect to consul: %w", err)
	}

	return &Store{
		config: config,
		client: client,
		kv:     client.KV(),
	}, nil
}

// Get returns the value stored at key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	pair, _, err := s.kv.Get(s.consulKey(key), s.queryOptions(opCtx))
	if err != nil {
		return nil, false, fmt.Errorf("backend/consul: failed to get %s: %w", key, err)
	}

	if pair == nil {
		return nil, false, nil
	}
	return pair.Value, true, nil
}

// Put creates or overwrites key.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	pair := &api.KVPair{Key: s.consulKey(key), Value: value}
	if _, err := s.kv.Put(pair, s.writeOptions(opCtx)); err != nil {
		return fmt.Errorf("backend/consul: failed to put %s: %w", key, err)
	}
	return nil
}

// Create stores value at key when key does not exist.
func (s *Store) Create(ctx context.Context, key string, value []byte) (bool, error) {
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	// a check-and-set with index 0 only succeeds when the key is absent
	pair := &api.KVPair{Key: s.consulKey(key), Value: value, ModifyIndex: 0}
	created, _, err := s.kv.CAS(pair, s.writeOptions(opCtx))
	if err != nil {
		return false, fmt.Errorf("backend/consul: failed to create %s: %w", key, err)
	}
	return created, nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	consulKey := s.consulKey(key)
	pair, _, err := s.kv.Get(consulKey, s.queryOptions(opCtx))
	if err != nil {
		return false, fmt.Errorf("backend/consul: failed to delete %s: %w", key, err)
	}

	if pair == nil {
		return false, nil
	}

	if _, err := s.kv.Delete(consulKey, s.writeOptions(opCtx)); err != nil {
		return false, fmt.Errorf("backend/consul: failed to delete %s: %w", key, err)
	}
	return true, nil
}

// Children returns the direct children of key ordered by CreateIndex.
func (s *Store) Children(ctx context.Context, key string) ([]string, error) {
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	pairs, _, err := s.kv.List(s.consulKey(nodepath.ChildPrefix(key)), s.queryOptions(opCtx))
	if err != nil {
		return nil, fmt.Errorf("backend/consul: failed to list %s: %w", key, err)
	}

	slices.SortFunc(pairs, func(a, b *api.KVPair) int {
		switch {
		case a.CreateIndex < b.CreateIndex:
			return -1
		case a.CreateIndex > b.CreateIndex:
			return 1
		default:
			return 0
		}
	})

	names := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		if name, ok := nodepath.ChildName(key, s.nodePath(pair.Key)); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

// Close is a no-op: the Consul client holds no long-lived connection.
func (s *Store) Close() error {
	return nil
}

func (s *Store) consulKey(path string) string {
	return s.config.Prefix + path
}

func (s *Store) nodePath(consulKey string) string {
	return consulKey[len(s.config.Prefix):]
}

func (s *Store) queryOptions(ctx context.Context) *api.QueryOptions {
	opts := &api.QueryOptions{
		Datacenter:        s.config.Datacenter,
		RequireConsistent: true,
	}
	return opts.WithContext(ctx)
}

func (s *Store) writeOptions(ctx context.Context) *api.WriteOptions {
	opts := &api.WriteOptions{Datacenter: s.config.Datacenter}
	return opts.WithContext(ctx)
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = s.config.Context
	}
	return context.WithTimeout(ctx, s.config.Timeout)
}
