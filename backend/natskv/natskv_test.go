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

package natskv

import (
	"fmt"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tochemey/grayconf/backend/backendtest"
)

func TestStore(t *testing.T) {
	srv := startNatsServer(t)

	t.Run("With backend contract", func(t *testing.T) {
		store, err := New(&Config{
			URL:    srv.ClientURL(),
			Bucket: fmt.Sprintf("contract-%d", time.Now().UnixNano()),
		})
		require.NoError(t, err)
		t.Cleanup(func() { require.NoError(t, store.Close()) })

		backendtest.Run(t, store)
	})

	t.Run("With existing bucket", func(t *testing.T) {
		config := &Config{URL: srv.ClientURL(), Bucket: "shared"}
		first, err := New(config)
		require.NoError(t, err)
		t.Cleanup(func() { _ = first.Close() })

		require.NoError(t, first.Put(t.Context(), "/app/db", []byte("v1")))

		second, err := New(config)
		require.NoError(t, err)
		t.Cleanup(func() { _ = second.Close() })

		value, ok, err := second.Get(t.Context(), "/app/db")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("v1"), value)
	})

	t.Run("With unreachable server", func(t *testing.T) {
		store, err := New(&Config{URL: "nats://127.0.0.1:1", ConnectTimeout: 200 * time.Millisecond})
		require.Error(t, err)
		require.Nil(t, store)
	})

	t.Run("With invalid config", func(t *testing.T) {
		_, err := New(&Config{})
		require.Error(t, err)
		_, err = New(nil)
		require.Error(t, err)
	})
}

func TestKeyMapping(t *testing.T) {
	testCases := [][2]string{
		{"/app", "app"},
		{"/app/db", "app.db"},
		{"/svc/10.0.0.1:80", "svc.10=2E0=2E0=2E1=3A80"},
		{"/grayconf/notify/client/m", "grayconf.notify.client.m"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc[1], toKey(tc[0]))
		assert.Equal(t, tc[0], fromKey(tc[1]))
	}
}

func startNatsServer(t *testing.T) *natsserver.Server {
	t.Helper()

	serv, err := natsserver.NewServer(&natsserver.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	})
	require.NoError(t, err)

	ready := make(chan bool)
	go func() {
		ready <- true
		serv.Start()
	}()
	<-ready

	if !serv.ReadyForConnections(2 * time.Second) {
		t.Fatalf("nats-io server failed to start")
	}

	t.Cleanup(serv.Shutdown)
	return serv
}
