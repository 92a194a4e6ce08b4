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

// Package registry manages service groups. A service group is a node whose
// children are its members: each child is named after a host and holds the
// decimal status of that host. Member order is the order in which hosts
// joined the group and is preserved by every operation.
//
// A group is registered with the health monitor through a marker node
// under /grayconf/monitor named after the MD5 digest of the group path.
package registry

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"

	gerrors "github.com/tochemey/grayconf/errors"
	"github.com/tochemey/grayconf/internal/errorschain"
	"github.com/tochemey/grayconf/internal/nodepath"
	"github.com/tochemey/grayconf/internal/validation"
	"github.com/tochemey/grayconf/log"
	"github.com/tochemey/grayconf/nodestore"
)

// ServiceEntry is a member of a service group
type ServiceEntry struct {
	Host   string
	Status Status
}

// Registry reads and writes service groups
type Registry struct {
	store  *nodestore.Store
	logger log.Logger
}

// New creates a Registry over store
func New(store *nodestore.Store, opts ...Option) *Registry {
	registry := &Registry{store: store, logger: log.DefaultLogger}
	for _, opt := range opts {
		opt.Apply(registry)
	}
	return registry
}

// SetServices replaces the members of the group at path with entries.
//
// The whole input is validated before anything is written: a rejected call
// leaves the group untouched. Hosts already in the group keep their
// relative order, new hosts are appended in input order and hosts missing
// from entries are removed. The writes themselves are not atomic; a failure
// midway can leave a membership that is neither the old nor the new one.
func (r *Registry) SetServices(ctx context.Context, path string, entries []ServiceEntry) error {
	group, err := groupPath(path)
	if err != nil {
		return err
	}

	if err := validateEntries(entries); err != nil {
		return err
	}

	current, _, err := r.store.List(ctx, group)
	if err != nil {
		return err
	}

	wanted := mapset.NewThreadUnsafeSetWithSize[string](len(entries))
	for _, entry := range entries {
		wanted.Add(entry.Host)
	}

	for _, host := range current {
		if !wanted.Contains(host) {
			if err := r.store.Delete(ctx, nodepath.Join(group, host)); err != nil {
				return err
			}
		}
	}

	for _, entry := range entries {
		if err := r.store.Set(ctx, nodepath.Join(group, entry.Host), entry.Status.encode()); err != nil {
			return err
		}
	}

	if err := r.register(ctx, group); err != nil {
		return err
	}

	r.logger.Infof("service group %s set with %d member(s)", group, len(entries))
	return nil
}

// Services returns the hosts of the group at path in member order. The
// boolean is false when path is not a registered group.
func (r *Registry) Services(ctx context.Context, path string) ([]string, bool, error) {
	group, err := groupPath(path)
	if err != nil {
		return nil, false, err
	}

	if ok, err := r.registered(ctx, group); err != nil || !ok {
		return nil, false, err
	}

	hosts, ok, err := r.store.List(ctx, group)
	if err != nil || !ok {
		return nil, false, err
	}
	return hosts, true, nil
}

// ServicesWithStatus returns the members of the group at path in member
// order. The boolean is false when path is not a registered group.
func (r *Registry) ServicesWithStatus(ctx context.Context, path string) ([]ServiceEntry, bool, error) {
	group, err := groupPath(path)
	if err != nil {
		return nil, false, err
	}

	if ok, err := r.registered(ctx, group); err != nil || !ok {
		return nil, false, err
	}

	children, ok, err := r.store.ListWithValues(ctx, group)
	if err != nil || !ok {
		return nil, false, err
	}

	entries := make([]ServiceEntry, 0, len(children))
	for _, child := range children {
		status, err := ParseStatus(child.Value)
		if err != nil {
			return nil, false, fmt.Errorf("host=(%s) group=(%s): %w", child.Name, group, err)
		}
		entries = append(entries, ServiceEntry{Host: child.Name, Status: status})
	}
	return entries, true, nil
}

// Up marks host as up
func (r *Registry) Up(ctx context.Context, path, host string) error {
	return r.update(ctx, path, host, StatusUp)
}

// Down marks host as down
func (r *Registry) Down(ctx context.Context, path, host string) error {
	return r.update(ctx, path, host, StatusDown)
}

// Offline takes host out of rotation
func (r *Registry) Offline(ctx context.Context, path, host string) error {
	return r.update(ctx, path, host, StatusOffline)
}

// Add adds host to the group at path, registering the group when needed.
// A host already in the group keeps its position and takes the new status.
func (r *Registry) Add(ctx context.Context, path, host string, status Status) error {
	group, err := groupPath(path)
	if err != nil {
		return err
	}

	if err := validateEntry(ServiceEntry{Host: host, Status: status}); err != nil {
		return err
	}

	if err := r.store.Set(ctx, nodepath.Join(group, host), status.encode()); err != nil {
		return err
	}

	if err := r.register(ctx, group); err != nil {
		return err
	}

	r.logger.Infof("service %s added to %s as %s", host, group, status)
	return nil
}

// Delete removes host from the group at path. The remaining members keep
// their order.
func (r *Registry) Delete(ctx context.Context, path, host string) error {
	group, err := r.member(ctx, path, host)
	if err != nil {
		return err
	}

	if err := r.store.Delete(ctx, nodepath.Join(group, host)); err != nil {
		return err
	}

	r.logger.Infof("service %s deleted from %s", host, group)
	return nil
}

// Clear removes every member of the group at path. The group node and its
// monitor registration remain.
func (r *Registry) Clear(ctx context.Context, path string) error {
	group, err := groupPath(path)
	if err != nil {
		return err
	}

	if err := r.mustBeRegistered(ctx, group); err != nil {
		return err
	}

	hosts, _, err := r.store.List(ctx, group)
	if err != nil {
		return err
	}

	chain := errorschain.New(errorschain.ReturnFirst())
	for _, host := range hosts {
		chain.AddErrorFn(func() error { return r.store.Delete(ctx, nodepath.Join(group, host)) })
	}

	if err := chain.Error(); err != nil {
		return err
	}

	r.logger.Infof("service group %s cleared", group)
	return nil
}

// MonitorPath returns the path of the monitor marker of a group
func MonitorPath(group string) string {
	digest := md5.Sum([]byte(group))
	return nodepath.Join(nodepath.MonitorRoot, hex.EncodeToString(digest[:]))
}

func (r *Registry) update(ctx context.Context, path, host string, status Status) error {
	group, err := r.member(ctx, path, host)
	if err != nil {
		return err
	}

	if err := r.store.Set(ctx, nodepath.Join(group, host), status.encode()); err != nil {
		return err
	}

	r.logger.Infof("service %s of %s is now %s", host, group, status)
	return nil
}

// member checks that host belongs to the registered group at path and
// returns the canonical group path
func (r *Registry) member(ctx context.Context, path, host string) (string, error) {
	group, err := groupPath(path)
	if err != nil {
		return "", err
	}

	if err := validation.NewIdentifierValidator("host", host).Validate(); err != nil {
		return "", fmt.Errorf("host=(%s) %w", host, gerrors.ErrInvalidHost)
	}

	if err := r.mustBeRegistered(ctx, group); err != nil {
		return "", err
	}

	ok, err := r.store.Exists(ctx, nodepath.Join(group, host))
	if err != nil {
		return "", err
	}

	if !ok {
		return "", fmt.Errorf("host=(%s) group=(%s) %w", host, group, gerrors.ErrServiceNotFound)
	}
	return group, nil
}

func (r *Registry) register(ctx context.Context, group string) error {
	marker := MonitorPath(group)
	value, ok, err := r.store.Get(ctx, marker)
	if err != nil {
		return err
	}

	if ok && string(value) == group {
		return nil
	}
	return r.store.Set(ctx, marker, []byte(group))
}

func (r *Registry) registered(ctx context.Context, group string) (bool, error) {
	value, ok, err := r.store.Get(ctx, MonitorPath(group))
	if err != nil || !ok {
		return false, err
	}
	return string(value) == group, nil
}

func (r *Registry) mustBeRegistered(ctx context.Context, group string) error {
	ok, err := r.registered(ctx, group)
	if err != nil {
		return err
	}

	if !ok {
		return fmt.Errorf("group=(%s) %w", group, gerrors.ErrGroupNotFound)
	}
	return nil
}

// groupPath normalizes a group path. Groups cannot live inside the
// bookkeeping tree.
func groupPath(path string) (string, error) {
	group, err := nodepath.Normalize(path)
	if err != nil {
		return "", err
	}

	if nodepath.IsInternal(group) {
		return "", gerrors.NewErrInvalidPath(group)
	}
	return group, nil
}

func validateEntries(entries []ServiceEntry) error {
	if len(entries) == 0 {
		return fmt.Errorf("no services given: %w", gerrors.ErrEmptyInput)
	}

	hosts := mapset.NewThreadUnsafeSetWithSize[string](len(entries))
	for _, entry := range entries {
		if err := validateEntry(entry); err != nil {
			return err
		}

		if !hosts.Add(entry.Host) {
			return fmt.Errorf("host=(%s) %w", entry.Host, gerrors.ErrDuplicateHost)
		}
	}
	return nil
}

func validateEntry(entry ServiceEntry) error {
	if err := validation.NewIdentifierValidator("host", entry.Host).Validate(); err != nil {
		return fmt.Errorf("host=(%s) %w", entry.Host, gerrors.ErrInvalidHost)
	}

	if !entry.Status.IsValid() {
		return fmt.Errorf("host=(%s) status=(%d) %w", entry.Host, int(entry.Status), gerrors.ErrInvalidStatus)
	}
	return nil
}
