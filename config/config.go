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

// Package config loads the service configuration from a YAML or JSON file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"

	"github.com/tochemey/grayconf/backend"
	"github.com/tochemey/grayconf/backend/boltdb"
	"github.com/tochemey/grayconf/backend/consul"
	"github.com/tochemey/grayconf/backend/etcd"
	"github.com/tochemey/grayconf/backend/natskv"
	"github.com/tochemey/grayconf/backend/redis"
	"github.com/tochemey/grayconf/broadcast"
	"github.com/tochemey/grayconf/datacenter"
	"github.com/tochemey/grayconf/internal/validation"
	"github.com/tochemey/grayconf/log"
	"github.com/tochemey/grayconf/nodestore"
)

const (
	defaultLogLevel = "info"
	defaultBindAddr = ":7070"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config is the content of the configuration file
type Config struct {
	LogLevel          string             `yaml:"log_level" json:"log_level"`
	MaxValueSize      int                `yaml:"max_value_size" json:"max_value_size"`
	DefaultDatacenter string             `yaml:"default_datacenter" json:"default_datacenter"`
	Datacenters       []DatacenterConfig `yaml:"datacenters" json:"datacenters"`
	Broadcast         BroadcastConfig    `yaml:"broadcast" json:"broadcast"`
	HTTP              HTTPConfig         `yaml:"http" json:"http"`
}

// DatacenterConfig describes one datacenter
type DatacenterConfig struct {
	Name    string        `yaml:"name" json:"name"`
	Backend string        `yaml:"backend" json:"backend"`
	Timeout string        `yaml:"timeout" json:"timeout"`
	Etcd    *EtcdConfig   `yaml:"etcd" json:"etcd"`
	Consul  *ConsulConfig `yaml:"consul" json:"consul"`
	BoltDB  *BoltDBConfig `yaml:"boltdb" json:"boltdb"`
	Redis   *RedisConfig  `yaml:"redis" json:"redis"`
	NatsKV  *NatsKVConfig `yaml:"natskv" json:"natskv"`
}

// EtcdConfig is the etcd section of a datacenter
type EtcdConfig struct {
	Endpoints   []string `yaml:"endpoints" json:"endpoints"`
	DialTimeout string   `yaml:"dial_timeout" json:"dial_timeout"`
	Namespace   string   `yaml:"namespace" json:"namespace"`
	Username    string   `yaml:"username" json:"username"`
	Password    string   `yaml:"password" json:"password"`
}

// ConsulConfig is the Consul section of a datacenter
type ConsulConfig struct {
	Address    string `yaml:"address" json:"address"`
	Datacenter string `yaml:"datacenter" json:"datacenter"`
	Token      string `yaml:"token" json:"token"`
	Prefix     string `yaml:"prefix" json:"prefix"`
}

// BoltDBConfig is the bbolt section of a datacenter
type BoltDBConfig struct {
	Path string `yaml:"path" json:"path"`
}

// RedisConfig is the Redis section of a datacenter
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	Prefix   string `yaml:"prefix" json:"prefix"`
}

// NatsKVConfig is the NATS key-value section of a datacenter
type NatsKVConfig struct {
	URL    string `yaml:"url" json:"url"`
	Bucket string `yaml:"bucket" json:"bucket"`
}

// BroadcastConfig selects where gray lifecycle events are published
type BroadcastConfig struct {
	NATS *BroadcastNATSConfig `yaml:"nats" json:"nats"`
}

// BroadcastNATSConfig is the NATS publisher section
type BroadcastNATSConfig struct {
	URL           string `yaml:"url" json:"url"`
	SubjectPrefix string `yaml:"subject_prefix" json:"subject_prefix"`
}

// HTTPConfig is the admin API section
type HTTPConfig struct {
	BindAddr string `yaml:"bind_addr" json:"bind_addr"`
}

var _ validation.Validator = (*Config)(nil)

// LoadFile reads the configuration file at path. The format follows the
// file extension: .yaml, .yml or .json. The result is sanitized and
// validated.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := new(Config)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Default returns a configuration with one in-memory datacenter named
// "default".
func Default() *Config {
	config := &Config{
		Datacenters: []DatacenterConfig{{Name: "default", Backend: string(backend.KindMemory)}},
	}
	config.Sanitize()
	return config
}

// Sanitize fills zero-value fields with defaults
func (c *Config) Sanitize() {
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = defaultLogLevel
	}

	if c.MaxValueSize <= 0 {
		c.MaxValueSize = nodestore.DefaultMaxValueSize
	}

	if c.DefaultDatacenter == "" && len(c.Datacenters) > 0 {
		c.DefaultDatacenter = c.Datacenters[0].Name
	}

	for i := range c.Datacenters {
		if c.Datacenters[i].Backend == "" {
			c.Datacenters[i].Backend = string(backend.KindMemory)
		}
	}

	if strings.TrimSpace(c.HTTP.BindAddr) == "" {
		c.HTTP.BindAddr = defaultBindAddr
	}
}

// Validate implements validation.Validator.
func (c *Config) Validate() error {
	_, levelErr := log.ParseLevel(c.LogLevel)

	names := make(map[string]struct{}, len(c.Datacenters))
	for _, dc := range c.Datacenters {
		names[dc.Name] = struct{}{}
	}
	_, known := names[c.DefaultDatacenter]

	chain := validation.New(validation.AllErrors()).
		AddAssertion(levelErr == nil, fmt.Sprintf("invalid log_level %q", c.LogLevel)).
		AddAssertion(c.MaxValueSize > 0, "max_value_size must be greater than 0").
		AddAssertion(len(c.Datacenters) > 0, "at least one datacenter is required").
		AddAssertion(len(names) == len(c.Datacenters), "datacenter names must be unique").
		AddAssertion(known, fmt.Sprintf("default_datacenter %q is not configured", c.DefaultDatacenter)).
		AddValidator(validation.NewTCPAddressValidator(c.HTTP.BindAddr))

	if err := chain.Validate(); err != nil {
		return err
	}

	if _, err := c.DataCenters(); err != nil {
		return err
	}

	if c.Broadcast.NATS != nil {
		return c.broadcastConfig().Validate()
	}
	return nil
}

// Level returns the parsed log level
func (c *Config) Level() log.Level {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// DataCenters converts the datacenter sections into datacenter.Config values
func (c *Config) DataCenters() ([]*datacenter.Config, error) {
	configs := make([]*datacenter.Config, 0, len(c.Datacenters))
	for _, dc := range c.Datacenters {
		config, err := dc.toDataCenter()
		if err != nil {
			return nil, err
		}

		config.Sanitize()
		if err := config.Validate(); err != nil {
			return nil, err
		}
		configs = append(configs, config)
	}
	return configs, nil
}

// BroadcastNATS returns the NATS publisher settings or nil when events are
// not published.
func (c *Config) BroadcastNATS() *broadcast.NATSConfig {
	if c.Broadcast.NATS == nil {
		return nil
	}
	return c.broadcastConfig()
}

func (c *Config) broadcastConfig() *broadcast.NATSConfig {
	config := &broadcast.NATSConfig{
		URL:           c.Broadcast.NATS.URL,
		SubjectPrefix: c.Broadcast.NATS.SubjectPrefix,
	}
	config.Sanitize()
	return config
}

func (dc DatacenterConfig) toDataCenter() (*datacenter.Config, error) {
	timeout, err := parseDuration(dc.Timeout)
	if err != nil {
		return nil, fmt.Errorf("datacenter %q: invalid timeout: %w", dc.Name, err)
	}

	config := &datacenter.Config{
		Name:    dc.Name,
		Backend: backend.Kind(strings.ToLower(dc.Backend)),
	}

	if dc.Etcd != nil {
		dialTimeout, err := parseDuration(dc.Etcd.DialTimeout)
		if err != nil {
			return nil, fmt.Errorf("datacenter %q: invalid etcd dial_timeout: %w", dc.Name, err)
		}

		config.Etcd = &etcd.Config{
			Endpoints:   dc.Etcd.Endpoints,
			Namespace:   dc.Etcd.Namespace,
			DialTimeout: dialTimeout,
			Timeout:     timeout,
			Username:    dc.Etcd.Username,
			Password:    dc.Etcd.Password,
		}
	}

	if dc.Consul != nil {
		config.Consul = &consul.Config{
			Address:    dc.Consul.Address,
			Datacenter: dc.Consul.Datacenter,
			Token:      dc.Consul.Token,
			Prefix:     dc.Consul.Prefix,
			Timeout:    timeout,
		}
	}

	if dc.BoltDB != nil {
		config.BoltDB = &boltdb.Config{Path: dc.BoltDB.Path}
	}

	if dc.Redis != nil {
		config.Redis = &redis.Config{
			Addr:     dc.Redis.Addr,
			Username: dc.Redis.Username,
			Password: dc.Redis.Password,
			DB:       dc.Redis.DB,
			Prefix:   dc.Redis.Prefix,
			Timeout:  timeout,
		}
	}

	if dc.NatsKV != nil {
		config.NatsKV = &natskv.Config{
			URL:            dc.NatsKV.URL,
			Bucket:         dc.NatsKV.Bucket,
			ConnectTimeout: timeout,
		}
	}

	return config, nil
}

func parseDuration(value string) (time.Duration, error) {
	if strings.TrimSpace(value) == "" {
		return 0, nil
	}
	return time.ParseDuration(value)
}
