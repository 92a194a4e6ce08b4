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

// Package gray coordinates gray releases: multi-path configuration changes
// that are applied immediately but announced first to a chosen set of
// client machines, then either committed or rolled back as a whole.
//
// A transaction is ACTIVE from a successful Begin until exactly one of
// Commit or Rollback. Both end states remove every trace of it: the machine
// pointers, the stored record and the backlink. The backlink is written
// last on Begin and removed last on end, so a transaction is live exactly
// while its backlink exists.
package gray

import (
	"context"
	"fmt"
	"slices"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"

	"github.com/tochemey/grayconf/broadcast"
	gerrors "github.com/tochemey/grayconf/errors"
	"github.com/tochemey/grayconf/internal/codec"
	"github.com/tochemey/grayconf/internal/errorschain"
	"github.com/tochemey/grayconf/internal/nodepath"
	"github.com/tochemey/grayconf/log"
	"github.com/tochemey/grayconf/nodestore"
	"github.com/tochemey/grayconf/notification"
)

const (
	// ContentChunkSize is the default size of a stored record chunk
	ContentChunkSize = 100 * 1024

	idPrefix = "GRAYID-"
)

// ID identifies a gray transaction
type ID string

// NoID is returned when no transaction was created
const NoID ID = ""

// String returns the textual form of the id
func (id ID) String() string {
	return string(id)
}

// Change is a node path and a value
type Change struct {
	Path  string
	Value []byte
}

// Transaction is a live gray transaction
type Transaction struct {
	ID       ID
	Changes  []Change
	Prior    []Change
	Machines []string
}

// Coordinator begins and ends gray transactions
type Coordinator struct {
	store       *nodestore.Store
	index       *notification.Index
	broadcaster broadcast.Broadcaster
	logger      log.Logger
	datacenter  string
	chunkSize   int
}

// New creates a Coordinator over store
func New(store *nodestore.Store, opts ...Option) *Coordinator {
	coordinator := &Coordinator{
		store:       store,
		broadcaster: broadcast.NoOp{},
		logger:      log.DefaultLogger,
		chunkSize:   ContentChunkSize,
	}

	for _, opt := range opts {
		opt.Apply(coordinator)
	}

	coordinator.chunkSize = min(coordinator.chunkSize, store.MaxValueSize())
	coordinator.index = notification.New(store, notification.WithLogger(coordinator.logger))
	return coordinator
}

// Begin applies changes and notifies machines of them. Every input is
// validated before anything is written: the paths must exist, be distinct
// and lie outside the bookkeeping tree, and none of the machines may belong
// to another live transaction. On any failure NoID is returned and nothing
// the call wrote remains.
func (c *Coordinator) Begin(ctx context.Context, changes []Change, machines []string) (ID, error) {
	canonical, err := c.validateChanges(changes)
	if err != nil {
		return NoID, err
	}

	if err := notification.ValidateMachines(machines); err != nil {
		return NoID, err
	}

	prior := make([]Change, len(canonical))
	for i, change := range canonical {
		value, ok, err := c.store.Get(ctx, change.Path)
		if err != nil {
			return NoID, err
		}

		if !ok {
			return NoID, gerrors.NewErrNodeNotFound(change.Path)
		}
		prior[i] = Change{Path: change.Path, Value: value}
	}

	id := ID(idPrefix + uuid.NewString())
	if err := c.index.Claim(ctx, id.String(), machines); err != nil {
		return NoID, err
	}

	machines = slices.Clone(machines)
	chunks, applied, err := c.apply(ctx, id, canonical, prior, machines)
	if err != nil {
		c.undo(ctx, id, prior[:applied], chunks, machines)
		return NoID, err
	}

	c.logger.Infof("gray %s begun on %d path(s) for %d machine(s)", id, len(canonical), len(machines))
	c.publish(ctx, broadcast.KindBegun, id, canonical, machines)
	return id, nil
}

// Commit ends the transaction keeping the values written by Begin.
func (c *Coordinator) Commit(ctx context.Context, id ID) error {
	tx, err := c.mustLookup(ctx, id)
	if err != nil {
		return err
	}

	if err := c.cleanup(ctx, tx); err != nil {
		return err
	}

	c.logger.Infof("gray %s committed", id)
	c.publish(ctx, broadcast.KindCommitted, id, tx.Changes, tx.Machines)
	return nil
}

// Rollback ends the transaction restoring every value it changed. Values
// written to those paths by other callers since Begin are overwritten.
func (c *Coordinator) Rollback(ctx context.Context, id ID) error {
	tx, err := c.mustLookup(ctx, id)
	if err != nil {
		return err
	}

	for _, prior := range tx.Prior {
		if err := c.store.Set(ctx, prior.Path, prior.Value); err != nil {
			return err
		}
	}

	if err := c.cleanup(ctx, tx); err != nil {
		return err
	}

	c.logger.Infof("gray %s rolled back", id)
	c.publish(ctx, broadcast.KindRolledBack, id, tx.Changes, tx.Machines)
	return nil
}

// Lookup returns the live transaction id. The boolean is false when there
// is none.
func (c *Coordinator) Lookup(ctx context.Context, id ID) (*Transaction, bool, error) {
	machines, ok, err := c.index.Backlink(ctx, id.String())
	if err != nil || !ok {
		return nil, false, err
	}

	record, err := c.readRecord(ctx, id)
	if err != nil {
		return nil, false, err
	}

	tx := &Transaction{
		ID:       id,
		Changes:  fromEntries(record.Changes),
		Prior:    fromEntries(record.Prior),
		Machines: machines,
	}
	return tx, true, nil
}

// MachineGray returns the transaction machine currently belongs to
func (c *Coordinator) MachineGray(ctx context.Context, machine string) (ID, bool, error) {
	id, ok, err := c.index.Pointer(ctx, machine)
	if err != nil || !ok {
		return NoID, false, err
	}
	return ID(id), true, nil
}

// validateChanges checks the changes of a Begin call and returns them with
// canonical paths
func (c *Coordinator) validateChanges(changes []Change) ([]Change, error) {
	if len(changes) == 0 {
		return nil, fmt.Errorf("no changes given: %w", gerrors.ErrEmptyInput)
	}

	seen := mapset.NewThreadUnsafeSetWithSize[string](len(changes))
	canonical := make([]Change, len(changes))
	for i, change := range changes {
		path, err := nodepath.Normalize(change.Path)
		if err != nil {
			return nil, err
		}

		if nodepath.IsInternal(path) {
			return nil, gerrors.NewErrInvalidPath(path)
		}

		if err := c.store.CheckValue(change.Value); err != nil {
			return nil, fmt.Errorf("path=(%s): %w", path, err)
		}

		if !seen.Add(path) {
			return nil, fmt.Errorf("path=(%s) %w", path, gerrors.ErrDuplicatePath)
		}
		canonical[i] = Change{Path: path, Value: change.Value}
	}
	return canonical, nil
}

// apply persists the record, writes the new values and finally the
// backlink. It reports how many record chunks and values may have been
// written so that a failure can be undone. A failed write counts as written:
// the store may have committed it before reporting the error.
func (c *Coordinator) apply(ctx context.Context, id ID, changes, prior []Change, machines []string) (chunks, applied int, err error) {
	record := &codec.Record{
		Changes:  toEntries(changes),
		Prior:    toEntries(prior),
		Machines: machines,
	}

	for _, chunk := range codec.Split(codec.EncodeRecord(record), c.chunkSize) {
		chunks++
		if err := c.store.Set(ctx, contentPath(id, chunks-1), chunk); err != nil {
			return chunks, applied, err
		}
	}

	for _, change := range changes {
		applied++
		if err := c.store.Set(ctx, change.Path, change.Value); err != nil {
			return chunks, applied, err
		}
	}

	return chunks, applied, c.index.WriteBacklink(ctx, id.String(), machines)
}

// undo reverts a failed Begin. It runs every step regardless of failures.
func (c *Coordinator) undo(ctx context.Context, id ID, prior []Change, chunks int, machines []string) {
	chain := errorschain.New(errorschain.ReturnAll())
	for i := len(prior) - 1; i >= 0; i-- {
		chain.AddErrorFn(func() error { return c.store.Set(ctx, prior[i].Path, prior[i].Value) })
	}

	for n := range chunks {
		chain.AddErrorFn(func() error { return c.store.Delete(ctx, contentPath(id, n)) })
	}

	chain.AddErrorFn(func() error { return c.index.DeleteBacklink(ctx, id.String()) })
	chain.AddErrorFn(func() error { return c.index.Release(ctx, id.String(), machines) })

	if err := chain.Error(); err != nil {
		c.logger.Errorf("failed to undo gray %s: %v", id, err)
	}
}

// cleanup removes the bookkeeping of an ended transaction. The backlink goes
// last so that a failed cleanup can be retried.
func (c *Coordinator) cleanup(ctx context.Context, tx *Transaction) error {
	if err := c.index.Release(ctx, tx.ID.String(), tx.Machines); err != nil {
		return err
	}

	for n := 0; ; n++ {
		path := contentPath(tx.ID, n)
		exists, err := c.store.Exists(ctx, path)
		if err != nil {
			return err
		}

		if !exists {
			break
		}

		if err := c.store.Delete(ctx, path); err != nil {
			return err
		}
	}

	return c.index.DeleteBacklink(ctx, tx.ID.String())
}

func (c *Coordinator) mustLookup(ctx context.Context, id ID) (*Transaction, error) {
	tx, ok, err := c.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, gerrors.NewErrGrayNotFound(id.String())
	}
	return tx, nil
}

// readRecord reassembles the record of id from its chunks
func (c *Coordinator) readRecord(ctx context.Context, id ID) (*codec.Record, error) {
	var payload []byte
	for n := 0; ; n++ {
		chunk, ok, err := c.store.Get(ctx, contentPath(id, n))
		if err != nil {
			return nil, err
		}

		if !ok {
			if n == 0 {
				return nil, gerrors.NewErrStoreFailure(fmt.Errorf("record of gray %s is missing", id))
			}
			break
		}
		payload = append(payload, chunk...)
	}

	record, err := codec.DecodeRecord(payload)
	if err != nil {
		return nil, gerrors.NewErrStoreFailure(fmt.Errorf("record of gray %s: %w", id, err))
	}
	return record, nil
}

func (c *Coordinator) publish(ctx context.Context, kind broadcast.Kind, id ID, changes []Change, machines []string) {
	paths := make([]string, len(changes))
	for i, change := range changes {
		paths[i] = change.Path
	}

	event := &broadcast.Event{
		Kind:       kind,
		GrayID:     id.String(),
		Datacenter: c.datacenter,
		Machines:   machines,
		Paths:      paths,
		Time:       time.Now().UTC(),
	}

	if err := c.broadcaster.Publish(ctx, event); err != nil {
		c.logger.Warnf("failed to publish %s event of gray %s: %v", kind, id, err)
	}
}

func contentPath(id ID, n int) string {
	return nodepath.Join(nodepath.ContentRoot, fmt.Sprintf("%s_%d", id, n))
}

func toEntries(changes []Change) []codec.Entry {
	entries := make([]codec.Entry, len(changes))
	for i, change := range changes {
		entries[i] = codec.Entry{Path: change.Path, Value: change.Value}
	}
	return entries
}

func fromEntries(entries []codec.Entry) []Change {
	changes := make([]Change, len(entries))
	for i, entry := range entries {
		changes[i] = Change{Path: entry.Path, Value: entry.Value}
	}
	return changes
}
