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

// Package backend defines the boundary between the registry and the
// coordination store that holds its nodes.
//
// Keys are canonical node paths ("/a/b"). A backend does not enforce the
// hierarchy: callers create parents before children and refuse to delete a
// node that still has children. What a backend must guarantee is:
//
//   - linearizable reads and writes per key;
//   - Create is a conditional create that succeeds for exactly one caller;
//   - Children lists direct children in creation order, and Put on an
//     existing key keeps its position.
package backend

import (
	"context"
)

// Backend is a hierarchical key-value store.
type Backend interface {
	// Get returns the value stored at key. The boolean is false when the key
	// does not exist.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Put creates or overwrites the value stored at key.
	Put(ctx context.Context, key string, value []byte) error
	// Create stores value at key only if key does not exist. It reports
	// whether the key was created.
	Create(ctx context.Context, key string, value []byte) (bool, error)
	// Delete removes key. It reports whether the key existed.
	Delete(ctx context.Context, key string) (bool, error)
	// Children returns the names of the direct children of key, oldest first.
	Children(ctx context.Context, key string) ([]string, error)
	// Close releases the resources held by the backend.
	Close() error
}

// Kind names a backend implementation
type Kind string

const (
	// KindMemory keeps nodes in process memory
	KindMemory Kind = "memory"
	// KindEtcd stores nodes in etcd
	KindEtcd Kind = "etcd"
	// KindConsul stores nodes in the Consul KV store
	KindConsul Kind = "consul"
	// KindBoltDB stores nodes in a local bbolt file
	KindBoltDB Kind = "boltdb"
	// KindRedis stores nodes in Redis
	KindRedis Kind = "redis"
	// KindNatsKV stores nodes in a NATS JetStream key-value bucket
	KindNatsKV Kind = "natskv"
)

// Kinds lists every supported backend kind
func Kinds() []Kind {
	return []Kind{KindMemory, KindEtcd, KindConsul, KindBoltDB, KindRedis, KindNatsKV}
}

// IsValid reports whether k names a supported backend
func (k Kind) IsValid() bool {
	for _, kind := range Kinds() {
		if kind == k {
			return true
		}
	}
	return false
}
