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

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	gerrors "github.com/tochemey/grayconf/errors"
	"github.com/tochemey/grayconf/manager"
	"github.com/tochemey/grayconf/registry"
)

func (c *cli) serviceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage service groups and the status of their members",
	}

	var status string
	add := &cobra.Command{
		Use:   "add GROUP HOST",
		Short: "Add a host to a group or change its status",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := registry.ParseStatusName(status)
			if err != nil {
				return err
			}
			return c.with(cmd, func(ctx context.Context, m *manager.Manager, idc string) error {
				return m.ServiceAdd(ctx, idc, args[0], args[1], parsed)
			})
		},
	}
	add.Flags().StringVar(&status, "status", registry.StatusUp.String(), "status of the host: UP, OFFLINE or DOWN")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set GROUP HOST[=STATUS]...",
			Short: "Replace the members of a group",
			Long:  "Replace the members of a group. A host without a status is UP.",
			Args:  minimumArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				entries, err := parseServiceEntries(args[1:])
				if err != nil {
					return err
				}
				return c.with(cmd, func(ctx context.Context, m *manager.Manager, idc string) error {
					return m.ServicesSet(ctx, idc, args[0], entries)
				})
			},
		},
		&cobra.Command{
			Use:   "get GROUP",
			Short: "Print the members of a group with their status",
			Args:  exactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.with(cmd, func(ctx context.Context, m *manager.Manager, idc string) error {
					entries, ok, err := m.ServicesGetWithStatus(ctx, idc, args[0])
					if err != nil {
						return err
					}
					if !ok {
						return fmt.Errorf("group=(%s) %w", args[0], gerrors.ErrGroupNotFound)
					}
					for _, entry := range entries {
						c.println(fmt.Sprintf("%s\t%s", entry.Host, entry.Status))
					}
					return nil
				})
			},
		},
		add,
		c.statusCommand("up", "Mark a host UP", (*manager.Manager).ServiceUp),
		c.statusCommand("down", "Mark a host DOWN", (*manager.Manager).ServiceDown),
		c.statusCommand("offline", "Mark a host OFFLINE", (*manager.Manager).ServiceOffline),
		&cobra.Command{
			Use:   "delete GROUP HOST",
			Short: "Remove a host from a group",
			Args:  exactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.with(cmd, func(ctx context.Context, m *manager.Manager, idc string) error {
					return m.ServiceDelete(ctx, idc, args[0], args[1])
				})
			},
		},
		&cobra.Command{
			Use:   "clear GROUP",
			Short: "Remove every host of a group",
			Args:  exactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.with(cmd, func(ctx context.Context, m *manager.Manager, idc string) error {
					return m.ServiceClear(ctx, idc, args[0])
				})
			},
		},
	)
	return cmd
}

type statusUpdate func(m *manager.Manager, ctx context.Context, idc, path, host string) error

func (c *cli) statusCommand(use, short string, update statusUpdate) *cobra.Command {
	return &cobra.Command{
		Use:   use + " GROUP HOST",
		Short: short,
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.with(cmd, func(ctx context.Context, m *manager.Manager, idc string) error {
				return update(m, ctx, idc, args[0], args[1])
			})
		},
	}
}

func parseServiceEntries(args []string) ([]registry.ServiceEntry, error) {
	entries := make([]registry.ServiceEntry, 0, len(args))
	for _, arg := range args {
		host, name, found := splitPair(arg)
		status := registry.StatusUp
		if found {
			parsed, err := registry.ParseStatusName(name)
			if err != nil {
				return nil, err
			}
			status = parsed
		}
		entries = append(entries, registry.ServiceEntry{Host: host, Status: status})
	}
	return entries, nil
}
