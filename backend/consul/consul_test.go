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

package consul

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/consul"

	"github.com/tochemey/grayconf/backend/backendtest"
)

func TestStore(t *testing.T) {
	agent := startConsulAgent(t)

	t.Run("With backend contract", func(t *testing.T) {
		endpoint, err := agent.ApiEndpoint(t.Context())
		require.NoError(t, err)

		store, err := New(&Config{
			Address: endpoint,
			Prefix:  fmt.Sprintf("contract-%d", time.Now().UnixNano()),
		})
		require.NoError(t, err)
		t.Cleanup(func() { require.NoError(t, store.Close()) })

		backendtest.Run(t, store)
	})

	t.Run("With unreachable agent", func(t *testing.T) {
		store, err := New(&Config{Address: "127.0.0.1:1", Timeout: time.Second})
		require.Error(t, err)
		require.Nil(t, store)
	})

	t.Run("With nil config", func(t *testing.T) {
		store, err := New(nil)
		require.Error(t, err)
		require.Nil(t, store)
	})
}

func TestConfig(t *testing.T) {
	config := &Config{Prefix: "/kv/grayconf/"}
	config.Sanitize()
	assert.NotNil(t, config.Context)
	assert.Equal(t, defaultAddress, config.Address)
	assert.Equal(t, "kv/grayconf", config.Prefix)
	assert.Equal(t, defaultTimeout, config.Timeout)
	assert.NoError(t, config.Validate())

	assert.Error(t, (&Config{}).Validate())
}

func startConsulAgent(t *testing.T) *consul.ConsulContainer {
	t.Helper()
	consulContainer, err := consul.Run(t.Context(), "hashicorp/consul:1.15")
	require.NoError(t, err)
	t.Cleanup(func() {
		err := consulContainer.Terminate(context.Background())
		require.NoError(t, err)
	})
	return consulContainer
}
