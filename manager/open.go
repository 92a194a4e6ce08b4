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

package manager

import (
	"context"

	"github.com/tochemey/grayconf/broadcast"
	"github.com/tochemey/grayconf/config"
	"github.com/tochemey/grayconf/datacenter"
	"github.com/tochemey/grayconf/log"
)

// Open builds a Manager from a loaded configuration: it opens the backend
// of every datacenter and, when configured, the NATS event publisher.
// Options given explicitly take precedence over the configuration.
func Open(ctx context.Context, cfg *config.Config, logger log.Logger, opts ...Option) (*Manager, error) {
	if logger == nil {
		logger = log.DefaultLogger
	}

	dcs, err := cfg.DataCenters()
	if err != nil {
		return nil, err
	}

	table, err := datacenter.NewTable(ctx, dcs, logger)
	if err != nil {
		return nil, err
	}

	base := []Option{
		WithLogger(logger),
		WithMaxValueSize(cfg.MaxValueSize),
	}

	if natsConfig := cfg.BroadcastNATS(); natsConfig != nil {
		publisher, err := broadcast.NewNATS(natsConfig)
		if err != nil {
			_ = table.Close()
			return nil, err
		}
		base = append(base, WithBroadcaster(publisher))
	}

	manager, err := New(table, append(base, opts...)...)
	if err != nil {
		_ = table.Close()
		return nil, err
	}
	return manager, nil
}
