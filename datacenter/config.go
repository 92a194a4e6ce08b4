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

package datacenter

import (
	"fmt"

	"github.com/tochemey/grayconf/backend"
	"github.com/tochemey/grayconf/backend/boltdb"
	"github.com/tochemey/grayconf/backend/consul"
	"github.com/tochemey/grayconf/backend/etcd"
	"github.com/tochemey/grayconf/backend/natskv"
	"github.com/tochemey/grayconf/backend/redis"
	"github.com/tochemey/grayconf/internal/validation"
)

// Config describes one datacenter (IDC) and the store holding its nodes.
// Only the section matching Backend is used.
type Config struct {
	// Name identifies the datacenter in every call.
	Name string
	// Backend selects the store implementation.
	Backend backend.Kind
	Etcd    *etcd.Config
	Consul  *consul.Config
	BoltDB  *boltdb.Config
	Redis   *redis.Config
	NatsKV  *natskv.Config
}

var _ validation.Validator = (*Config)(nil)

// Sanitize applies defaults to the section of the selected backend
func (c *Config) Sanitize() {
	if c.Backend == "" {
		c.Backend = backend.KindMemory
	}

	switch c.Backend {
	case backend.KindEtcd:
		if c.Etcd != nil {
			c.Etcd.Sanitize()
		}
	case backend.KindConsul:
		if c.Consul != nil {
			c.Consul.Sanitize()
		}
	case backend.KindRedis:
		if c.Redis != nil {
			c.Redis.Sanitize()
		}
	case backend.KindNatsKV:
		if c.NatsKV != nil {
			c.NatsKV.Sanitize()
		}
	}
}

// Validate implements validation.Validator.
func (c *Config) Validate() error {
	if err := validation.New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("Name", c.Name)).
		AddValidator(validation.NewIdentifierValidator("Name", c.Name)).
		AddAssertion(c.Backend.IsValid(), fmt.Sprintf("unsupported backend %q", c.Backend)).
		Validate(); err != nil {
		return fmt.Errorf("datacenter %q: %w", c.Name, err)
	}

	var section validation.Validator
	switch c.Backend {
	case backend.KindEtcd:
		section = nilable(c.Etcd != nil, c.Etcd)
	case backend.KindConsul:
		section = nilable(c.Consul != nil, c.Consul)
	case backend.KindBoltDB:
		section = nilable(c.BoltDB != nil, validation.NewBooleanValidator(c.BoltDB != nil && c.BoltDB.Path != "", "boltdb path is required"))
	case backend.KindRedis:
		section = nilable(c.Redis != nil, c.Redis)
	case backend.KindNatsKV:
		section = nilable(c.NatsKV != nil, c.NatsKV)
	default:
		return nil
	}

	if section == nil {
		return fmt.Errorf("datacenter %q: the %s section is required", c.Name, c.Backend)
	}

	if err := section.Validate(); err != nil {
		return fmt.Errorf("datacenter %q: %w", c.Name, err)
	}
	return nil
}

func nilable(present bool, v validation.Validator) validation.Validator {
	if !present {
		return nil
	}
	return v
}
