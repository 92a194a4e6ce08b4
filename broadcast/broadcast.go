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

// Package broadcast publishes gray transaction lifecycle events so that
// agents on the client machines can react without watching the store.
package broadcast

import (
	"context"
	"time"
)

// Kind is the lifecycle step an Event reports
type Kind string

const (
	// KindBegun is published once a gray transaction is live
	KindBegun Kind = "begun"
	// KindCommitted is published once a gray transaction is committed
	KindCommitted Kind = "committed"
	// KindRolledBack is published once a gray transaction is rolled back
	KindRolledBack Kind = "rolled_back"
)

// Event describes a gray transaction lifecycle step
type Event struct {
	Kind       Kind      `json:"kind"`
	GrayID     string    `json:"gray_id"`
	Datacenter string    `json:"datacenter,omitempty"`
	Machines   []string  `json:"machines"`
	Paths      []string  `json:"paths"`
	Time       time.Time `json:"time"`
}

// Broadcaster publishes events. Publishing is best effort: callers log a
// failure and carry on.
type Broadcaster interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// NoOp drops every event
type NoOp struct{}

var _ Broadcaster = NoOp{}

// Publish implements Broadcaster
func (NoOp) Publish(context.Context, *Event) error { return nil }

// Close implements Broadcaster
func (NoOp) Close() error { return nil }
