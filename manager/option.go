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
	"github.com/tochemey/grayconf/broadcast"
	"github.com/tochemey/grayconf/log"
	"github.com/tochemey/grayconf/telemetry"
)

// Option configures a Manager
type Option interface {
	// Apply sets the Option value of a Manager.
	Apply(*Manager)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(*Manager)

// Apply applies the option to the Manager
func (f OptionFunc) Apply(m *Manager) {
	f(m)
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	})
}

// WithTelemetry sets the telemetry used to record operations
func WithTelemetry(tel *telemetry.Telemetry) Option {
	return OptionFunc(func(m *Manager) {
		m.telemetry = tel
	})
}

// WithBroadcaster sets the publisher of gray lifecycle events
func WithBroadcaster(broadcaster broadcast.Broadcaster) Option {
	return OptionFunc(func(m *Manager) {
		if broadcaster != nil {
			m.broadcaster = broadcaster
		}
	})
}

// WithMaxValueSize sets the largest value, in bytes, a node may hold
func WithMaxValueSize(size int) Option {
	return OptionFunc(func(m *Manager) {
		if size > 0 {
			m.maxValueSize = size
		}
	})
}
