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

// Package manager is the entry point of the registry. It serves several
// datacenters (IDCs) at once; every call names the datacenter it targets.
package manager

import (
	"context"
	"time"

	"github.com/tochemey/grayconf/broadcast"
	"github.com/tochemey/grayconf/datacenter"
	gerrors "github.com/tochemey/grayconf/errors"
	"github.com/tochemey/grayconf/gray"
	"github.com/tochemey/grayconf/internal/errorschain"
	"github.com/tochemey/grayconf/internal/nodepath"
	"github.com/tochemey/grayconf/log"
	"github.com/tochemey/grayconf/nodestore"
	"github.com/tochemey/grayconf/registry"
	"github.com/tochemey/grayconf/telemetry"
)

// site groups the components serving one datacenter
type site struct {
	store    *nodestore.Store
	registry *registry.Registry
	gray     *gray.Coordinator
}

// Manager serves node, service and gray operations across datacenters
type Manager struct {
	table        *datacenter.Table
	sites        map[string]*site
	logger       log.Logger
	telemetry    *telemetry.Telemetry
	broadcaster  broadcast.Broadcaster
	maxValueSize int
}

// New creates a Manager over the datacenters of table. The Manager owns
// table and the broadcaster: Close releases both.
func New(table *datacenter.Table, opts ...Option) (*Manager, error) {
	manager := &Manager{
		table:        table,
		sites:        make(map[string]*site),
		logger:       log.DefaultLogger,
		broadcaster:  broadcast.NoOp{},
		maxValueSize: nodestore.DefaultMaxValueSize,
	}

	for _, opt := range opts {
		opt.Apply(manager)
	}

	if manager.telemetry == nil {
		tel, err := telemetry.New()
		if err != nil {
			return nil, err
		}
		manager.telemetry = tel
	}

	for _, name := range table.Names() {
		b, err := table.Backend(name)
		if err != nil {
			return nil, err
		}

		logger := manager.logger.With("idc", name)
		store := nodestore.New(b,
			nodestore.WithLogger(logger),
			nodestore.WithMaxValueSize(manager.maxValueSize),
		)

		manager.sites[name] = &site{
			store:    store,
			registry: registry.New(store, registry.WithLogger(logger)),
			gray: gray.New(store,
				gray.WithLogger(logger),
				gray.WithBroadcaster(manager.broadcaster),
				gray.WithDatacenter(name),
			),
		}
	}
	return manager, nil
}

// Datacenters returns the names of the served datacenters
func (m *Manager) Datacenters() []string {
	return m.table.Names()
}

// NodeSet creates or overwrites a node
func (m *Manager) NodeSet(ctx context.Context, idc, path string, value []byte) (err error) {
	defer m.record(ctx, "node.set", idc, time.Now(), &err)
	s, err := m.site(idc)
	if err != nil {
		return err
	}

	if err := writable(path); err != nil {
		return err
	}
	return s.store.Set(ctx, path, value)
}

// NodeGet returns the value of a node
func (m *Manager) NodeGet(ctx context.Context, idc, path string) (value []byte, ok bool, err error) {
	defer m.record(ctx, "node.get", idc, time.Now(), &err)
	s, err := m.site(idc)
	if err != nil {
		return nil, false, err
	}
	return s.store.Get(ctx, path)
}

// NodeDelete removes a node
func (m *Manager) NodeDelete(ctx context.Context, idc, path string) (err error) {
	defer m.record(ctx, "node.delete", idc, time.Now(), &err)
	s, err := m.site(idc)
	if err != nil {
		return err
	}

	if err := writable(path); err != nil {
		return err
	}
	return s.store.Delete(ctx, path)
}

// List returns the children of a node in creation order
func (m *Manager) List(ctx context.Context, idc, path string) (children []string, ok bool, err error) {
	defer m.record(ctx, "node.list", idc, time.Now(), &err)
	s, err := m.site(idc)
	if err != nil {
		return nil, false, err
	}
	return s.store.List(ctx, path)
}

// ListWithValues returns the children of a node with their values
func (m *Manager) ListWithValues(ctx context.Context, idc, path string) (children []nodestore.Child, ok bool, err error) {
	defer m.record(ctx, "node.list_values", idc, time.Now(), &err)
	s, err := m.site(idc)
	if err != nil {
		return nil, false, err
	}
	return s.store.ListWithValues(ctx, path)
}

// ServicesSet replaces the members of a service group
func (m *Manager) ServicesSet(ctx context.Context, idc, path string, entries []registry.ServiceEntry) (err error) {
	defer m.record(ctx, "services.set", idc, time.Now(), &err)
	s, err := m.site(idc)
	if err != nil {
		return err
	}
	return s.registry.SetServices(ctx, path, entries)
}

// ServicesGet returns the hosts of a service group
func (m *Manager) ServicesGet(ctx context.Context, idc, path string) (hosts []string, ok bool, err error) {
	defer m.record(ctx, "services.get", idc, time.Now(), &err)
	s, err := m.site(idc)
	if err != nil {
		return nil, false, err
	}
	return s.registry.Services(ctx, path)
}

// ServicesGetWithStatus returns the members of a service group
func (m *Manager) ServicesGetWithStatus(ctx context.Context, idc, path string) (entries []registry.ServiceEntry, ok bool, err error) {
	defer m.record(ctx, "services.get_status", idc, time.Now(), &err)
	s, err := m.site(idc)
	if err != nil {
		return nil, false, err
	}
	return s.registry.ServicesWithStatus(ctx, path)
}

// ServiceUp marks a service as up
func (m *Manager) ServiceUp(ctx context.Context, idc, path, host string) (err error) {
	defer m.record(ctx, "service.up", idc, time.Now(), &err)
	s, err := m.site(idc)
	if err != nil {
		return err
	}
	return s.registry.Up(ctx, path, host)
}

// ServiceDown marks a service as down
func (m *Manager) ServiceDown(ctx context.Context, idc, path, host string) (err error) {
	defer m.record(ctx, "service.down", idc, time.Now(), &err)
	s, err := m.site(idc)
	if err != nil {
		return err
	}
	return s.registry.Down(ctx, path, host)
}

// ServiceOffline takes a service out of rotation
func (m *Manager) ServiceOffline(ctx context.Context, idc, path, host string) (err error) {
	defer m.record(ctx, "service.offline", idc, time.Now(), &err)
	s, err := m.site(idc)
	if err != nil {
		return err
	}
	return s.registry.Offline(ctx, path, host)
}

// ServiceAdd adds a service to a group or updates its status
func (m *Manager) ServiceAdd(ctx context.Context, idc, path, host string, status registry.Status) (err error) {
	defer m.record(ctx, "service.add", idc, time.Now(), &err)
	s, err := m.site(idc)
	if err != nil {
		return err
	}
	return s.registry.Add(ctx, path, host, status)
}

// ServiceDelete removes a service from a group
func (m *Manager) ServiceDelete(ctx context.Context, idc, path, host string) (err error) {
	defer m.record(ctx, "service.delete", idc, time.Now(), &err)
	s, err := m.site(idc)
	if err != nil {
		return err
	}
	return s.registry.Delete(ctx, path, host)
}

// ServiceClear removes every service of a group
func (m *Manager) ServiceClear(ctx context.Context, idc, path string) (err error) {
	defer m.record(ctx, "service.clear", idc, time.Now(), &err)
	s, err := m.site(idc)
	if err != nil {
		return err
	}
	return s.registry.Clear(ctx, path)
}

// GrayBegin starts a gray release. It returns gray.NoID on failure.
func (m *Manager) GrayBegin(ctx context.Context, idc string, changes []gray.Change, machines []string) (id gray.ID, err error) {
	defer m.record(ctx, "gray.begin", idc, time.Now(), &err)
	s, err := m.site(idc)
	if err != nil {
		return gray.NoID, err
	}

	if id, err = s.gray.Begin(ctx, changes, machines); err == nil {
		m.telemetry.GrayBegun(ctx, idc)
	}
	return id, err
}

// GrayCommit ends a gray release keeping its values
func (m *Manager) GrayCommit(ctx context.Context, idc string, id gray.ID) (err error) {
	defer m.record(ctx, "gray.commit", idc, time.Now(), &err)
	s, err := m.site(idc)
	if err != nil {
		return err
	}

	if err = s.gray.Commit(ctx, id); err == nil {
		m.telemetry.GrayEnded(ctx, idc)
	}
	return err
}

// GrayRollback ends a gray release restoring the previous values
func (m *Manager) GrayRollback(ctx context.Context, idc string, id gray.ID) (err error) {
	defer m.record(ctx, "gray.rollback", idc, time.Now(), &err)
	s, err := m.site(idc)
	if err != nil {
		return err
	}

	if err = s.gray.Rollback(ctx, id); err == nil {
		m.telemetry.GrayEnded(ctx, idc)
	}
	return err
}

// GrayLookup returns a live gray release
func (m *Manager) GrayLookup(ctx context.Context, idc string, id gray.ID) (tx *gray.Transaction, ok bool, err error) {
	defer m.record(ctx, "gray.lookup", idc, time.Now(), &err)
	s, err := m.site(idc)
	if err != nil {
		return nil, false, err
	}
	return s.gray.Lookup(ctx, id)
}

// MachineGray returns the gray release a machine belongs to
func (m *Manager) MachineGray(ctx context.Context, idc, machine string) (id gray.ID, ok bool, err error) {
	defer m.record(ctx, "gray.machine", idc, time.Now(), &err)
	s, err := m.site(idc)
	if err != nil {
		return gray.NoID, false, err
	}
	return s.gray.MachineGray(ctx, machine)
}

// Close releases the broadcaster and every datacenter backend
func (m *Manager) Close() error {
	return errorschain.New(errorschain.ReturnAll()).
		AddError(m.broadcaster.Close()).
		AddError(m.table.Close()).
		Error()
}

// writable rejects paths inside the bookkeeping tree, which only the gray
// coordinator and the service registry maintain
func writable(path string) error {
	canonical, err := nodepath.Normalize(path)
	if err != nil {
		return err
	}

	if nodepath.IsInternal(canonical) {
		return gerrors.NewErrInvalidPath(canonical)
	}
	return nil
}

func (m *Manager) site(idc string) (*site, error) {
	s, ok := m.sites[idc]
	if !ok {
		return nil, gerrors.NewErrUnknownDataCenter(idc)
	}
	return s, nil
}

func (m *Manager) record(ctx context.Context, op, idc string, start time.Time, err *error) {
	m.telemetry.RecordOperation(ctx, op, idc, start, *err)
	if *err != nil {
		m.logger.Debugf("%s on %s failed: %v", op, idc, *err)
	}
}
