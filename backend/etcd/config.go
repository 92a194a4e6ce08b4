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

package etcd

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/tochemey/grayconf/internal/validation"
)

const (
	defaultNamespace   = "grayconf/"
	defaultDialTimeout = 5 * time.Second
	defaultTimeout     = 5 * time.Second
)

// Config defines the etcd backend settings
type Config struct {
	// Context is used for the connection handshake. Defaults to context.Background.
	Context context.Context
	// Endpoints lists the etcd client URLs.
	Endpoints []string
	// Namespace prefixes every key written by the backend.
	Namespace string
	// DialTimeout bounds the initial connection.
	DialTimeout time.Duration
	// Timeout bounds every operation.
	Timeout time.Duration
	// Username and Password enable etcd authentication when set.
	Username string
	Password string
	// TLS enables a secured connection when set.
	TLS *tls.Config
}

var _ validation.Validator = (*Config)(nil)

// Sanitize applies defaults to unset fields
func (c *Config) Sanitize() {
	if c.Context == nil {
		c.Context = context.Background()
	}
	c.Namespace = strings.TrimSpace(c.Namespace)
	if c.Namespace == "" {
		c.Namespace = defaultNamespace
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = defaultDialTimeout
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	chain := validation.New(validation.AllErrors()).
		AddAssertion(len(c.Endpoints) > 0, "etcd endpoints are required").
		AddAssertion(c.DialTimeout > 0, "etcd dial timeout must be positive").
		AddAssertion(c.Timeout > 0, "etcd timeout must be positive")
	for _, endpoint := range c.Endpoints {
		chain.AddValidator(validation.NewEmptyStringValidator("etcd endpoint", strings.TrimSpace(endpoint)))
	}
	return chain.Validate()
}
