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

// Package notification maintains the gray notification index: one pointer
// per machine naming the gray transaction that currently owns it, and one
// backlink per transaction listing its machines.
//
// Both live in ordinary nodes so that downstream watchers observe them:
//
//	/grayconf/notify/client/<machine>  = <gray id>
//	/grayconf/notify/backlink/<gray id> = m1;m2;...;
package notification

import (
	"context"
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	gerrors "github.com/tochemey/grayconf/errors"
	"github.com/tochemey/grayconf/internal/errorschain"
	"github.com/tochemey/grayconf/internal/nodepath"
	"github.com/tochemey/grayconf/internal/validation"
	"github.com/tochemey/grayconf/log"
	"github.com/tochemey/grayconf/nodestore"
)

const backlinkDelimiter = ";"

// Index reads and writes the notification index
type Index struct {
	store  *nodestore.Store
	logger log.Logger
}

// New creates an Index over store
func New(store *nodestore.Store, opts ...Option) *Index {
	index := &Index{store: store, logger: log.DefaultLogger}
	for _, opt := range opts {
		opt.Apply(index)
	}
	return index
}

// ValidateMachines checks that machines is a non-empty list of plain,
// pairwise distinct identifiers.
func ValidateMachines(machines []string) error {
	if len(machines) == 0 {
		return fmt.Errorf("no machines given: %w", gerrors.ErrInvalidMachine)
	}

	seen := mapset.NewThreadUnsafeSetWithSize[string](len(machines))
	for _, machine := range machines {
		if err := validation.NewIdentifierValidator("machine", machine).Validate(); err != nil {
			return fmt.Errorf("machine=(%s) %w", machine, gerrors.ErrInvalidMachine)
		}
		if !seen.Add(machine) {
			return fmt.Errorf("machine=(%s) listed twice: %w", machine, gerrors.ErrInvalidMachine)
		}
	}
	return nil
}

// Claim points every machine at id. A machine is claimed only when no
// pointer exists for it or when its pointer already names id. When any
// machine is owned by another transaction, or the store fails, the claims
// made by this call are undone before returning, so no machine is left
// pointing at id.
func (x *Index) Claim(ctx context.Context, id string, machines []string) error {
	if err := ValidateMachines(machines); err != nil {
		return err
	}

	claimed := make([]string, 0, len(machines))
	for _, machine := range machines {
		created, err := x.store.Create(ctx, pointerPath(machine), []byte(id))
		if err != nil {
			// the pointer may have been written before the failure
			x.undo(ctx, id, append(claimed, machine))
			return err
		}

		if !created {
			owner, ok, err := x.Pointer(ctx, machine)
			if err != nil {
				x.undo(ctx, id, append(claimed, machine))
				return err
			}

			if !ok || owner != id {
				x.undo(ctx, id, claimed)
				return gerrors.NewErrMachineClaimed(machine)
			}
		}
		claimed = append(claimed, machine)
	}

	x.logger.Debugf("gray %s claimed %d machine(s)", id, len(claimed))
	return nil
}

func (x *Index) undo(ctx context.Context, id string, machines []string) {
	if err := x.Release(ctx, id, machines); err != nil {
		x.logger.Errorf("failed to undo claims of gray %s: %v", id, err)
	}
}

// Release removes the pointers of machines that still name id. Pointers
// owned by another transaction are left untouched.
func (x *Index) Release(ctx context.Context, id string, machines []string) error {
	chain := errorschain.New(errorschain.ReturnAll())
	for _, machine := range machines {
		chain.AddErrorFn(func() error {
			owner, ok, err := x.Pointer(ctx, machine)
			if err != nil || !ok || owner != id {
				return err
			}
			return x.store.Delete(ctx, pointerPath(machine))
		})
	}
	return chain.Error()
}

// Pointer returns the id of the gray transaction that owns machine.
func (x *Index) Pointer(ctx context.Context, machine string) (string, bool, error) {
	if err := nodepath.ValidateSegment(machine); err != nil {
		return "", false, fmt.Errorf("machine=(%s) %w", machine, gerrors.ErrInvalidMachine)
	}

	value, ok, err := x.store.Get(ctx, pointerPath(machine))
	if err != nil || !ok {
		return "", false, err
	}
	return string(value), true, nil
}

// WriteBacklink records the machines of id in their original order.
func (x *Index) WriteBacklink(ctx context.Context, id string, machines []string) error {
	return x.store.Set(ctx, backlinkPath(id), EncodeBacklink(machines))
}

// Backlink returns the machines recorded for id. The boolean is false when
// id has no backlink, that is when it is not a live transaction.
func (x *Index) Backlink(ctx context.Context, id string) ([]string, bool, error) {
	if err := nodepath.ValidateSegment(id); err != nil {
		return nil, false, nil
	}

	value, ok, err := x.store.Get(ctx, backlinkPath(id))
	if err != nil || !ok {
		return nil, false, err
	}
	return DecodeBacklink(value), true, nil
}

// DeleteBacklink removes the backlink of id
func (x *Index) DeleteBacklink(ctx context.Context, id string) error {
	return x.store.Delete(ctx, backlinkPath(id))
}

// EncodeBacklink serializes machines as a delimiter terminated list
func EncodeBacklink(machines []string) []byte {
	var sb strings.Builder
	for _, machine := range machines {
		sb.WriteString(machine)
		sb.WriteString(backlinkDelimiter)
	}
	return []byte(sb.String())
}

// DecodeBacklink parses a value written by EncodeBacklink
func DecodeBacklink(value []byte) []string {
	machines := make([]string, 0)
	for _, machine := range strings.Split(string(value), backlinkDelimiter) {
		if machine != "" {
			machines = append(machines, machine)
		}
	}
	return machines
}

func pointerPath(machine string) string {
	return nodepath.Join(nodepath.ClientRoot, machine)
}

func backlinkPath(id string) string {
	return nodepath.Join(nodepath.BacklinkRoot, id)
}
