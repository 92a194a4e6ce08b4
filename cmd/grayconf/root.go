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
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tochemey/grayconf/config"
	gerrors "github.com/tochemey/grayconf/errors"
	"github.com/tochemey/grayconf/log"
	"github.com/tochemey/grayconf/manager"
)

// cli carries the global flags shared by every command
type cli struct {
	configPath string
	idc        string
	stdout     io.Writer
	stderr     io.Writer
}

// run executes the command line and returns the process exit code
func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)

	err := root.Execute()
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
	}
	return gerrors.Code(err)
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "grayconf",
		Short:         "Distributed configuration registry with gray releases",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return invalidInput(err)
	})

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "configuration file (.yaml, .yml or .json)")
	root.PersistentFlags().StringVar(&c.idc, "idc", "", "datacenter to operate on (defaults to default_datacenter)")

	root.AddCommand(
		c.serveCommand(),
		c.nodeCommand(),
		c.serviceCommand(),
		c.grayCommand(),
	)
	return root
}

func (c *cli) loadConfig() (*config.Config, error) {
	if c.configPath == "" {
		return config.Default(), nil
	}

	cfg, err := config.LoadFile(c.configPath)
	if err != nil {
		return nil, invalidInput(err)
	}
	return cfg, nil
}

// open builds a Manager from the configuration and resolves the target
// datacenter. The caller closes the Manager.
func (c *cli) open(ctx context.Context) (*manager.Manager, string, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, "", err
	}

	idc := c.idc
	if idc == "" {
		idc = cfg.DefaultDatacenter
	}

	m, err := manager.Open(ctx, cfg, log.NewZap(cfg.Level(), c.stderr))
	if err != nil {
		return nil, "", err
	}
	return m, idc, nil
}

// with opens a Manager, runs fn against the target datacenter and closes
// the Manager.
func (c *cli) with(cmd *cobra.Command, fn func(ctx context.Context, m *manager.Manager, idc string) error) error {
	ctx := cmd.Context()
	m, idc, err := c.open(ctx)
	if err != nil {
		return err
	}

	err = fn(ctx, m, idc)
	if closeErr := m.Close(); closeErr != nil && err == nil {
		err = gerrors.NewErrStoreFailure(closeErr)
	}
	return err
}

func (c *cli) println(values ...any) {
	_, _ = fmt.Fprintln(c.stdout, values...)
}

// exactArgs is cobra.ExactArgs reporting an invalid input
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return invalidInput(cobra.ExactArgs(n)(cmd, args))
	}
}

// minimumArgs is cobra.MinimumNArgs reporting an invalid input
func minimumArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return invalidInput(cobra.MinimumNArgs(n)(cmd, args))
	}
}

func invalidInput(err error) error {
	if err == nil || gerrors.Code(err) != gerrors.CodeStoreFailure {
		return err
	}
	return fmt.Errorf("%w: %v", gerrors.ErrInvalidValue, err)
}

// splitPair splits "key=value" at the first equal sign
func splitPair(arg string) (string, string, bool) {
	key, value, found := strings.Cut(arg, "=")
	return key, value, found
}
