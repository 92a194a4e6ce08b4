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

package gray

import (
	"github.com/tochemey/grayconf/broadcast"
	"github.com/tochemey/grayconf/log"
)

// Option configures a Coordinator
type Option interface {
	// Apply sets the Option value of a Coordinator.
	Apply(*Coordinator)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(*Coordinator)

// Apply applies the option to the Coordinator
func (f OptionFunc) Apply(c *Coordinator) {
	f(c)
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	})
}

// WithBroadcaster sets the publisher of lifecycle events
func WithBroadcaster(broadcaster broadcast.Broadcaster) Option {
	return OptionFunc(func(c *Coordinator) {
		if broadcaster != nil {
			c.broadcaster = broadcaster
		}
	})
}

// WithDatacenter sets the datacenter name carried by lifecycle events
func WithDatacenter(name string) Option {
	return OptionFunc(func(c *Coordinator) {
		c.datacenter = name
	})
}

// WithChunkSize sets the size of the chunks a transaction record is split
// into. It is capped by the store's maximum value size.
func WithChunkSize(size int) Option {
	return OptionFunc(func(c *Coordinator) {
		if size > 0 {
			c.chunkSize = size
		}
	})
}
