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

package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tochemey/grayconf/backend/backendtest"
)

func TestStore(t *testing.T) {
	addr := startRedis(t)

	t.Run("With backend contract", func(t *testing.T) {
		store, err := New(t.Context(), &Config{
			Addr:   addr,
			Prefix: fmt.Sprintf("contract-%d", time.Now().UnixNano()),
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })

		backendtest.Run(t, store)
	})

	t.Run("With unreachable server", func(t *testing.T) {
		store, err := New(t.Context(), &Config{Addr: "127.0.0.1:1", Timeout: time.Second})
		require.Error(t, err)
		require.Nil(t, store)
	})

	t.Run("With invalid config", func(t *testing.T) {
		_, err := New(t.Context(), &Config{Addr: "nope"})
		require.Error(t, err)
		_, err = New(t.Context(), nil)
		require.Error(t, err)
	})
}

func TestConfig(t *testing.T) {
	config := &Config{Addr: " 127.0.0.1:6379 "}
	config.Sanitize()
	assert.Equal(t, "127.0.0.1:6379", config.Addr)
	assert.Equal(t, defaultPrefix, config.Prefix)
	assert.Equal(t, defaultTimeout, config.Timeout)
	assert.NoError(t, config.Validate())

	config.DB = -1
	assert.Error(t, config.Validate())
}

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, testcontainers.TerminateContainer(container))
	})

	endpoint, err := container.PortEndpoint(ctx, "6379/tcp", "")
	require.NoError(t, err)
	return endpoint
}
