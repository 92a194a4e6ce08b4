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

package errors

import (
	"errors"
	"fmt"
)

// Status codes reported to operators and scripts. They mirror the error
// categories below and are stable across releases.
const (
	CodeOK           = 0
	CodeInvalidPath  = 1
	CodeInvalidValue = 2
	CodeConflict     = 3
	CodeNotFound     = 4
	CodeStoreFailure = 5
)

// Categories. Every error returned by the library wraps exactly one of them.
var (
	// ErrInvalidPath is returned when a path is empty, the root, contains
	// characters outside [A-Za-z0-9_:/.-] or names a reserved node.
	ErrInvalidPath = errors.New("invalid path")

	// ErrInvalidValue is returned when an input value is malformed.
	ErrInvalidValue = errors.New("invalid value")

	// ErrConflict is returned when the store state forbids the operation.
	ErrConflict = errors.New("conflict")

	// ErrNotFound is returned when a required entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStoreFailure is returned when the coordination store fails or is
	// unreachable. Callers may retry.
	ErrStoreFailure = errors.New("store failure")
)

var (
	// ErrValueTooLarge is returned when a value exceeds the configured maximum size.
	ErrValueTooLarge = fmt.Errorf("value too large: %w", ErrInvalidValue)
	// ErrInvalidStatus is returned for a service status outside UP, OFFLINE and DOWN.
	ErrInvalidStatus = fmt.Errorf("invalid service status: %w", ErrInvalidValue)
	// ErrInvalidMachine is returned for an empty, malformed or duplicated machine identifier.
	ErrInvalidMachine = fmt.Errorf("invalid machine: %w", ErrInvalidValue)
	// ErrInvalidHost is returned for an empty or malformed service host.
	ErrInvalidHost = fmt.Errorf("invalid host: %w", ErrInvalidValue)
	// ErrDuplicateHost is returned when a service list names the same host twice.
	ErrDuplicateHost = fmt.Errorf("duplicate host: %w", ErrInvalidValue)
	// ErrEmptyInput is returned when a list argument that must carry items is empty.
	ErrEmptyInput = fmt.Errorf("empty input: %w", ErrInvalidValue)

	// ErrDuplicatePath is returned when two gray changes address the same node.
	ErrDuplicatePath = fmt.Errorf("duplicate path: %w", ErrConflict)
	// ErrMachineClaimed is returned when a machine already belongs to a live gray transaction.
	ErrMachineClaimed = fmt.Errorf("machine already in a gray release: %w", ErrConflict)
	// ErrNotEmpty is returned when deleting a node that still has children.
	ErrNotEmpty = fmt.Errorf("node has children: %w", ErrConflict)

	// ErrNodeNotFound is returned when a node required by the operation does not exist.
	ErrNodeNotFound = fmt.Errorf("node %w", ErrNotFound)
	// ErrGrayNotFound is returned when no live gray transaction has the given id.
	ErrGrayNotFound = fmt.Errorf("gray transaction %w", ErrNotFound)
	// ErrGroupNotFound is returned when a path is not a registered service group.
	ErrGroupNotFound = fmt.Errorf("service group %w", ErrNotFound)
	// ErrServiceNotFound is returned when a host is not a member of the service group.
	ErrServiceNotFound = fmt.Errorf("service %w", ErrNotFound)
	// ErrUnknownDataCenter is returned when the datacenter (IDC) is not configured.
	ErrUnknownDataCenter = fmt.Errorf("datacenter %w", ErrNotFound)
)

// NewErrInvalidPath formats an ErrInvalidPath with the offending path.
func NewErrInvalidPath(path string) error {
	return fmt.Errorf("path=(%s) %w", path, ErrInvalidPath)
}

// NewErrNodeNotFound formats an ErrNodeNotFound with the given path.
func NewErrNodeNotFound(path string) error {
	return fmt.Errorf("path=(%s) %w", path, ErrNodeNotFound)
}

// NewErrGrayNotFound formats an ErrGrayNotFound with the given id.
func NewErrGrayNotFound(id string) error {
	return fmt.Errorf("gray=(%s) %w", id, ErrGrayNotFound)
}

// NewErrMachineClaimed formats an ErrMachineClaimed with the given machine.
func NewErrMachineClaimed(machine string) error {
	return fmt.Errorf("machine=(%s) %w", machine, ErrMachineClaimed)
}

// NewErrUnknownDataCenter formats an ErrUnknownDataCenter with the given name.
func NewErrUnknownDataCenter(name string) error {
	return fmt.Errorf("idc=(%s) %w", name, ErrUnknownDataCenter)
}

// NewErrStoreFailure wraps a store error with ErrStoreFailure.
func NewErrStoreFailure(err error) error {
	if err == nil || errors.Is(err, ErrStoreFailure) {
		return err
	}
	return errors.Join(ErrStoreFailure, err)
}

// Code maps an error to its status code. Errors that do not belong to a
// known category are reported as store failures.
func Code(err error) int {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrInvalidPath):
		return CodeInvalidPath
	case errors.Is(err, ErrInvalidValue):
		return CodeInvalidValue
	case errors.Is(err, ErrConflict):
		return CodeConflict
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	default:
		return CodeStoreFailure
	}
}

// CodeName returns the category name of a status code.
func CodeName(code int) string {
	switch code {
	case CodeOK:
		return "OK"
	case CodeInvalidPath:
		return "InvalidPath"
	case CodeInvalidValue:
		return "InvalidValue"
	case CodeConflict:
		return "Conflict"
	case CodeNotFound:
		return "NotFound"
	default:
		return "StoreFailure"
	}
}
