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

package registry

import (
	"fmt"
	"strconv"
	"strings"

	gerrors "github.com/tochemey/grayconf/errors"
)

// Status is the health status of a service entry
type Status int

const (
	// StatusUp marks a service that receives traffic
	StatusUp Status = 0
	// StatusOffline marks a service taken out of rotation by an operator
	StatusOffline Status = 1
	// StatusDown marks a service reported unhealthy
	StatusDown Status = 2
)

// String returns the name of the status
func (s Status) String() string {
	switch s {
	case StatusUp:
		return "UP"
	case StatusOffline:
		return "OFFLINE"
	case StatusDown:
		return "DOWN"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// IsValid reports whether s is one of the known statuses
func (s Status) IsValid() bool {
	return s == StatusUp || s == StatusOffline || s == StatusDown
}

// ParseStatus parses the decimal form of a status as stored in a service
// node. Negative, out of range, overflowing and non numeric input is
// rejected with errors.ErrInvalidStatus.
func ParseStatus(value string) (Status, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("status=(%s) %w", value, gerrors.ErrInvalidStatus)
	}

	status := Status(n)
	if !status.IsValid() {
		return 0, fmt.Errorf("status=(%s) %w", value, gerrors.ErrInvalidStatus)
	}
	return status, nil
}

// ParseStatusName parses a status given either by name (case insensitive)
// or in decimal form.
func ParseStatusName(value string) (Status, error) {
	switch strings.ToUpper(value) {
	case "UP":
		return StatusUp, nil
	case "OFFLINE":
		return StatusOffline, nil
	case "DOWN":
		return StatusDown, nil
	default:
		return ParseStatus(value)
	}
}

func (s Status) encode() []byte {
	return []byte(strconv.Itoa(int(s)))
}
