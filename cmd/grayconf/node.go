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
)

func (c *cli) nodeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Read and write configuration nodes",
	}

	var withValues bool
	list := &cobra.Command{
		Use:   "list PATH",
		Short: "List the children of a node",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.with(cmd, func(ctx context.Context, m *manager.Manager, idc string) error {
				if withValues {
					children, ok, err := m.ListWithValues(ctx, idc, args[0])
					if err != nil || !ok {
						return absent(args[0], err)
					}
					for _, child := range children {
						c.println(fmt.Sprintf("%s\t%s", child.Name, child.Value))
					}
					return nil
				}

				names, ok, err := m.List(ctx, idc, args[0])
				if err != nil || !ok {
					return absent(args[0], err)
				}
				for _, name := range names {
					c.println(name)
				}
				return nil
			})
		},
	}
	list.Flags().BoolVar(&withValues, "values", false, "print the value of every child")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set PATH VALUE",
			Short: "Create or overwrite a node",
			Args:  exactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.with(cmd, func(ctx context.Context, m *manager.Manager, idc string) error {
					return m.NodeSet(ctx, idc, args[0], []byte(args[1]))
				})
			},
		},
		&cobra.Command{
			Use:   "get PATH",
			Short: "Print the value of a node",
			Args:  exactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.with(cmd, func(ctx context.Context, m *manager.Manager, idc string) error {
					value, ok, err := m.NodeGet(ctx, idc, args[0])
					if err != nil || !ok {
						return absent(args[0], err)
					}
					c.println(string(value))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "delete PATH",
			Short: "Delete a node without children",
			Args:  exactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.with(cmd, func(ctx context.Context, m *manager.Manager, idc string) error {
					return m.NodeDelete(ctx, idc, args[0])
				})
			},
		},
		list,
	)
	return cmd
}

func absent(path string, err error) error {
	if err != nil {
		return err
	}
	return gerrors.NewErrNodeNotFound(path)
}
