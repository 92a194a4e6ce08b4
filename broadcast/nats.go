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

package broadcast

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/nats-io/nats.go"
	"go.uber.org/atomic"

	"github.com/tochemey/grayconf/internal/errorschain"
	"github.com/tochemey/grayconf/internal/validation"
)

const defaultSubjectPrefix = "grayconf"

var (
	json          = jsoniter.ConfigCompatibleWithStandardLibrary
	tokenEscaper  = strings.NewReplacer(".", "=2E", "*", "=2A", ">", "=3E")
	errNATSClosed = errors.New("broadcast: nats publisher is closed")

	subjectPrefixPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+(\.[A-Za-z0-9_-]+)*$`)
)

// NATSConfig defines the NATS publisher settings
type NATSConfig struct {
	// URL is the NATS server URL.
	URL string
	// SubjectPrefix is the first token of every subject. Defaults to "grayconf".
	SubjectPrefix string
	// ConnectTimeout bounds the initial connection.
	ConnectTimeout time.Duration
}

var _ validation.Validator = (*NATSConfig)(nil)

// Sanitize sets defaults for empty fields.
func (c *NATSConfig) Sanitize() {
	if strings.TrimSpace(c.SubjectPrefix) == "" {
		c.SubjectPrefix = defaultSubjectPrefix
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 5 * time.Second
	}
}

// Validate implements validation.Validator.
func (c *NATSConfig) Validate() error {
	return validation.New(validation.FailFast()).
		AddAssertion(strings.TrimSpace(c.URL) != "", "URL must not be empty").
		AddValidator(validation.NewPatternValidator(subjectPrefixPattern, c.SubjectPrefix,
			fmt.Errorf("SubjectPrefix %q must be a plain subject", c.SubjectPrefix))).
		Validate()
}

// NATS publishes events as JSON on NATS subjects:
//
//	<prefix>.gray.events               every event
//	<prefix>.gray.machine.<machine>    events concerning one machine
type NATS struct {
	conn    *nats.Conn
	prefix  string
	timeout time.Duration
	closed  atomic.Bool
}

var _ Broadcaster = (*NATS)(nil)

// NewNATS connects to the configured NATS server
func NewNATS(config *NATSConfig) (*NATS, error) {
	if config == nil {
		return nil, errors.New("broadcast: nats config is nil")
	}

	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	conn, err := nats.Connect(config.URL,
		nats.Name("grayconf-broadcast"),
		nats.Timeout(config.ConnectTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("broadcast: connect: %w", err)
	}
	return &NATS{conn: conn, prefix: config.SubjectPrefix, timeout: config.ConnectTimeout}, nil
}

// Publish implements Broadcaster
func (n *NATS) Publish(ctx context.Context, event *Event) error {
	if n.closed.Load() {
		return errNATSClosed
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("broadcast: failed to encode event: %w", err)
	}

	chain := errorschain.New(errorschain.ReturnAll()).
		AddError(n.conn.Publish(EventsSubject(n.prefix), payload))
	for _, machine := range event.Machines {
		chain.AddError(n.conn.Publish(MachineSubject(n.prefix, machine), payload))
	}

	if err := chain.Error(); err != nil {
		return err
	}
	return n.conn.FlushTimeout(n.timeout)
}

// Close drains the connection
func (n *NATS) Close() error {
	if !n.closed.CompareAndSwap(false, true) {
		return nil
	}
	return n.conn.Drain()
}

// EventsSubject returns the subject carrying every event
func EventsSubject(prefix string) string {
	return prefix + ".gray.events"
}

// MachineSubject returns the subject carrying the events of one machine
func MachineSubject(prefix, machine string) string {
	return prefix + ".gray.machine." + tokenEscaper.Replace(machine)
}

// Decode parses an event payload
func Decode(payload []byte) (*Event, error) {
	event := new(Event)
	if err := json.Unmarshal(payload, event); err != nil {
		return nil, err
	}
	return event, nil
}
