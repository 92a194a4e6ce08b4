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

// Package redis provides a backend.Backend on top of Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/tochemey/grayconf/backend"
	"github.com/tochemey/grayconf/internal/nodepath"
	"github.com/tochemey/grayconf/internal/validation"
)

const (
	defaultPrefix  = "grayconf"
	defaultTimeout = 5 * time.Second
)

// Every mutation touches the node key, the children sorted set of its
// parent and the sequence counter. The scripts keep the three consistent.
var (
	putScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  local seq = redis.call('INCR', KEYS[3])
  redis.call('ZADD', KEYS[2], seq, ARGV[2])
end
redis.call('SET', KEYS[1], ARGV[1])
return 1
`)

	createScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
local seq = redis.call('INCR', KEYS[3])
redis.call('ZADD', KEYS[2], seq, ARGV[2])
redis.call('SET', KEYS[1], ARGV[1])
return 1
`)

	deleteScript = goredis.NewScript(`
if redis.call('DEL', KEYS[1]) == 1 then
  redis.call('ZREM', KEYS[2], ARGV[1])
  return 1
end
return 0
`)
)

// Config defines the Redis backend settings
type Config struct {
	// Addr is the host:port of the Redis server.
	Addr string
	// Username and Password authenticate the connection when set.
	Username string
	Password string
	// DB selects the logical database.
	DB int
	// Prefix namespaces every key. It is used as a hash tag so that all the
	// keys land in the same cluster slot.
	Prefix string
	// Timeout bounds every operation.
	Timeout time.Duration
}

// Sanitize applies defaults to unset fields
func (c *Config) Sanitize() {
	c.Addr = strings.TrimSpace(c.Addr)
	if c.Prefix == "" {
		c.Prefix = defaultPrefix
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	return validation.New(validation.FailFast()).
		AddValidator(validation.NewTCPAddressValidator(c.Addr)).
		AddAssertion(c.DB >= 0, "redis db must not be negative").
		Validate()
}

// Store keeps every node in a Redis string and the creation order of
// children in one sorted set per parent, scored by a global counter.
type Store struct {
	config *Config
	client *goredis.Client
}

var _ backend.Backend = (*Store)(nil)

// New connects to Redis and returns a Store.
func New(ctx context.Context, config *Config) (*Store, error) {
	if config == nil {
		return nil, errors.New("backend/redis: config is nil")
	}

	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     config.Addr,
		Username: config.Username,
		Password: config.Password,
		DB:       config.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		if cerr := client.Close(); cerr != nil {
			return nil, errors.Join(err, fmt.Errorf("failed to close redis client: %w", cerr))
		}
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Store{config: config, client: client}, nil
}

// Get returns the value stored at key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	value, err := s.client.Get(opCtx, s.nodeKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("backend/redis: failed to get %s: %w", key, err)
	}
	return value, true, nil
}

// Put creates or overwrites key.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	opCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	if err := putScript.Run(opCtx, s.client, s.scriptKeys(key), value, nodepath.Base(key)).Err(); err != nil {
		return fmt.Errorf("backend/redis: failed to put %s: %w", key, err)
	}
	return nil
}

// Create stores value at key when key does not exist.
func (s *Store) Create(ctx context.Context, key string, value []byte) (bool, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	created, err := createScript.Run(opCtx, s.client, s.scriptKeys(key), value, nodepath.Base(key)).Int()
	if err != nil {
		return false, fmt.Errorf("backend/redis: failed to create %s: %w", key, err)
	}
	return created == 1, nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	deleted, err := deleteScript.Run(opCtx, s.client, s.scriptKeys(key)[:2], nodepath.Base(key)).Int()
	if err != nil {
		return false, fmt.Errorf("backend/redis: failed to delete %s: %w", key, err)
	}
	return deleted == 1, nil
}

// Children returns the direct children of key ordered by creation.
func (s *Store) Children(ctx context.Context, key string) ([]string, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	names, err := s.client.ZRange(opCtx, s.childrenKey(key), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("backend/redis: failed to list %s: %w", key, err)
	}
	return names, nil
}

// Close closes the Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) scriptKeys(key string) []string {
	return []string{s.nodeKey(key), s.childrenKey(nodepath.Parent(key)), s.seqKey()}
}

func (s *Store) nodeKey(path string) string {
	return "{" + s.config.Prefix + "}:node:" + path
}

func (s *Store) childrenKey(path string) string {
	return "{" + s.config.Prefix + "}:children:" + path
}

func (s *Store) seqKey() string {
	return "{" + s.config.Prefix + "}:seq"
}
