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
	"strings"

	"github.com/spf13/cobra"

	gerrors "github.com/tochemey/grayconf/errors"
	"github.com/tochemey/grayconf/gray"
	"github.com/tochemey/grayconf/manager"
)

func (c *cli) grayCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gray",
		Short: "Run gray releases",
	}

	var machines []string
	begin := &cobra.Command{
		Use:   "begin PATH=VALUE...",
		Short: "Apply changes for a set of machines and print the transaction id",
		Args:  minimumArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			changes := make([]gray.Change, 0, len(args))
			for _, arg := range args {
				path, value, found := splitPair(arg)
				if !found {
					return fmt.Errorf("change %q is not PATH=VALUE: %w", arg, gerrors.ErrInvalidValue)
				}
				changes = append(changes, gray.Change{Path: path, Value: []byte(value)})
			}

			return c.with(cmd, func(ctx context.Context, m *manager.Manager, idc string) error {
				id, err := m.GrayBegin(ctx, idc, changes, machines)
				if err != nil {
					return err
				}
				c.println(id.String())
				return nil
			})
		},
	}
	begin.Flags().StringSliceVarP(&machines, "machine", "m", nil, "machine taking part in the release (repeatable)")

	cmd.AddCommand(
		begin,
		&cobra.Command{
			Use:   "commit ID",
			Short: "Keep the new values and end the transaction",
			Args:  exactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.with(cmd, func(ctx context.Context, m *manager.Manager, idc string) error {
					return m.GrayCommit(ctx, idc, gray.ID(args[0]))
				})
			},
		},
		&cobra.Command{
			Use:   "rollback ID",
			Short: "Restore the prior values and end the transaction",
			Args:  exactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.with(cmd, func(ctx context.Context, m *manager.Manager, idc string) error {
					return m.GrayRollback(ctx, idc, gray.ID(args[0]))
				})
			},
		},
		&cobra.Command{
			Use:   "show ID",
			Short: "Describe a live transaction",
			Args:  exactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.with(cmd, func(ctx context.Context, m *manager.Manager, idc string) error {
					tx, ok, err := m.GrayLookup(ctx, idc, gray.ID(args[0]))
					if err != nil {
						return err
					}
					if !ok {
						return gerrors.NewErrGrayNotFound(args[0])
					}

					c.println("id\t" + tx.ID.String())
					c.println("machines\t" + strings.Join(tx.Machines, ","))
					for i, change := range tx.Changes {
						c.println(fmt.Sprintf("change\t%s\t%s -> %s", change.Path, tx.Prior[i].Value, change.Value))
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "machine MACHINE",
			Short: "Print the transaction a machine belongs to",
			Args:  exactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.with(cmd, func(ctx context.Context, m *manager.Manager, idc string) error {
					id, ok, err := m.MachineGray(ctx, idc, args[0])
					if err != nil {
						return err
					}
					if !ok {
						return fmt.Errorf("machine=(%s) %w", args[0], gerrors.ErrGrayNotFound)
					}
					c.println(id.String())
					return nil
				})
			},
		},
	)
	return cmd
}
