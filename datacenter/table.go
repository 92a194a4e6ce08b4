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

// Package datacenter resolves datacenter (IDC) names to the backend that
// stores their nodes. The table is built once from configuration and never
// changes afterwards.
package datacenter

import (
	"context"
	"fmt"
	"slices"

	"github.com/tochemey/grayconf/backend"
	"github.com/tochemey/grayconf/backend/boltdb"
	"github.com/tochemey/grayconf/backend/consul"
	"github.com/tochemey/grayconf/backend/etcd"
	"github.com/tochemey/grayconf/backend/memory"
	"github.com/tochemey/grayconf/backend/natskv"
	"github.com/tochemey/grayconf/backend/redis"
	gerrors "github.com/tochemey/grayconf/errors"
	"github.com/tochemey/grayconf/internal/errorschain"
	"github.com/tochemey/grayconf/log"
)

// Factory opens the backend described by config
type Factory func(ctx context.Context, config *Config) (backend.Backend, error)

var factories = map[backend.Kind]Factory{
	backend.KindMemory: func(context.Context, *Config) (backend.Backend, error) {
		return memory.New(), nil
	},
	backend.KindEtcd: func(ctx context.Context, config *Config) (backend.Backend, error) {
		config.Etcd.Context = ctx
		return etcd.New(config.Etcd)
	},
	backend.KindConsul: func(ctx context.Context, config *Config) (backend.Backend, error) {
		config.Consul.Context = ctx
		return consul.New(config.Consul)
	},
	backend.KindBoltDB: func(_ context.Context, config *Config) (backend.Backend, error) {
		return boltdb.New(config.BoltDB)
	},
	backend.KindRedis: func(ctx context.Context, config *Config) (backend.Backend, error) {
		return redis.New(ctx, config.Redis)
	},
	backend.KindNatsKV: func(_ context.Context, config *Config) (backend.Backend, error) {
		return natskv.New(config.NatsKV)
	},
}

// Table maps datacenter names to their backend
type Table struct {
	names    []string
	backends map[string]backend.Backend
	logger   log.Logger
}

// NewTable opens the backend of every datacenter. When one fails to open,
// the ones already opened are closed.
func NewTable(ctx context.Context, configs []*Config, logger log.Logger) (*Table, error) {
	return newTable(ctx, configs, factories, logger)
}

func newTable(ctx context.Context, configs []*Config, factories map[backend.Kind]Factory, logger log.Logger) (*Table, error) {
	if logger == nil {
		logger = log.DefaultLogger
	}

	if len(configs) == 0 {
		return nil, fmt.Errorf("no datacenter configured: %w", gerrors.ErrEmptyInput)
	}

	table := &Table{
		names:    make([]string, 0, len(configs)),
		backends: make(map[string]backend.Backend, len(configs)),
		logger:   logger,
	}

	for _, config := range configs {
		config.Sanitize()
		if err := config.Validate(); err != nil {
			return nil, table.abort(err)
		}

		if _, ok := table.backends[config.Name]; ok {
			return nil, table.abort(fmt.Errorf("datacenter %q is configured twice", config.Name))
		}

		factory, ok := factories[config.Backend]
		if !ok {
			return nil, table.abort(fmt.Errorf("datacenter %q: unsupported backend %q", config.Name, config.Backend))
		}

		b, err := factory(ctx, config)
		if err != nil {
			return nil, table.abort(fmt.Errorf("datacenter %q: failed to open %s backend: %w", config.Name, config.Backend, err))
		}

		table.names = append(table.names, config.Name)
		table.backends[config.Name] = b
		logger.Infof("datacenter %s served by %s backend", config.Name, config.Backend)
	}
	return table, nil
}

// Backend returns the backend of the named datacenter
func (t *Table) Backend(name string) (backend.Backend, error) {
	b, ok := t.backends[name]
	if !ok {
		return nil, gerrors.NewErrUnknownDataCenter(name)
	}
	return b, nil
}

// Names returns the datacenter names in configuration order
func (t *Table) Names() []string {
	return slices.Clone(t.names)
}

// Close closes every backend
func (t *Table) Close() error {
	chain := errorschain.New(errorschain.ReturnAll())
	for _, name := range t.names {
		chain.AddError(t.backends[name].Close())
	}
	return chain.Error()
}

// abort closes what was opened so far and returns err
func (t *Table) abort(err error) error {
	if cerr := t.Close(); cerr != nil {
		t.logger.Warnf("failed to close datacenters: %v", cerr)
	}
	return err
}
