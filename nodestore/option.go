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

package nodestore

import (
	"time"

	"github.com/tochemey/grayconf/log"
)

// Option configures a Store
type Option interface {
	// Apply sets the Option value of a Store.
	Apply(*Store)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(*Store)

// Apply applies the option to the Store
func (f OptionFunc) Apply(s *Store) {
	f(s)
}

// WithMaxValueSize sets the largest value, in bytes, a node may hold.
func WithMaxValueSize(size int) Option {
	return OptionFunc(func(s *Store) {
		if size > 0 {
			s.maxValueSize = size
		}
	})
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	})
}

// WithRetry sets how many times a failing store call is attempted and the
// delay bounds between attempts.
func WithRetry(attempts int, initialDelay, maxDelay time.Duration) Option {
	return OptionFunc(func(s *Store) {
		if attempts > 0 {
			s.attempts = attempts
		}
		if initialDelay > 0 {
			s.initialDelay = initialDelay
		}
		if maxDelay >= s.initialDelay {
			s.maxDelay = maxDelay
		}
	})
}
