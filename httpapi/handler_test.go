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

package httpapi

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/tochemey/grayconf/backend"
	"github.com/tochemey/grayconf/datacenter"
	gerrors "github.com/tochemey/grayconf/errors"
	"github.com/tochemey/grayconf/log"
	"github.com/tochemey/grayconf/manager"
	"github.com/tochemey/grayconf/telemetry"
)

func TestHealth(t *testing.T) {
	server := newTestServer(t)

	status, body := do(t, server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestNodeRoutes(t *testing.T) {
	server := newTestServer(t)
	node := "/v1/corp/node?path=" + url.QueryEscape("/app/db")

	status, _ := do(t, server, http.MethodPut, node, NodeRequest{Value: "v1"})
	require.Equal(t, http.StatusNoContent, status)

	status, body := do(t, server, http.MethodGet, node, nil)
	require.Equal(t, http.StatusOK, status)
	var got NodeResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, NodeResponse{Path: "/app/db", Value: "v1"}, got)

	status, body = do(t, server, http.MethodGet, "/v1/corp/children?values=true&path=/app", nil)
	require.Equal(t, http.StatusOK, status)
	var children []ChildResponse
	require.NoError(t, json.Unmarshal(body, &children))
	require.Len(t, children, 1)
	assert.Equal(t, "db", children[0].Name)
	require.NotNil(t, children[0].Value)
	assert.Equal(t, "v1", *children[0].Value)

	status, body = do(t, server, http.MethodGet, "/v1/corp/children?path=/app", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[{"name":"db"}]`, string(body))

	t.Run("With other datacenter isolated", func(t *testing.T) {
		status, body := do(t, server, http.MethodGet, "/v1/edge/node?path=/app/db", nil)
		assert.Equal(t, http.StatusNotFound, status)
		assertErrorCode(t, body, gerrors.CodeNotFound)
	})

	t.Run("With unknown datacenter", func(t *testing.T) {
		status, body := do(t, server, http.MethodGet, "/v1/mars/node?path=/app/db", nil)
		assert.Equal(t, http.StatusNotFound, status)
		assertErrorCode(t, body, gerrors.CodeNotFound)
	})

	t.Run("With invalid path", func(t *testing.T) {
		status, body := do(t, server, http.MethodPut, "/v1/corp/node?path="+url.QueryEscape("/bad path"), NodeRequest{Value: "x"})
		assert.Equal(t, http.StatusBadRequest, status)
		assertErrorCode(t, body, gerrors.CodeInvalidPath)
	})

	t.Run("With malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, node, bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assertErrorCode(t, rec.Body.Bytes(), gerrors.CodeInvalidValue)
	})

	t.Run("With delete of parent refused", func(t *testing.T) {
		status, body := do(t, server, http.MethodDelete, "/v1/corp/node?path=/app", nil)
		assert.Equal(t, http.StatusConflict, status)
		assertErrorCode(t, body, gerrors.CodeConflict)
	})

	status, _ = do(t, server, http.MethodDelete, node, nil)
	require.Equal(t, http.StatusNoContent, status)
	status, _ = do(t, server, http.MethodGet, node, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestServiceRoutes(t *testing.T) {
	server := newTestServer(t)
	group := "?path=" + url.QueryEscape("/svc/api")

	status, _ := do(t, server, http.MethodPut, "/v1/corp/services"+group, ServicesRequest{Services: []ServiceModel{
		{Host: "10.0.0.1:80", Status: 0},
		{Host: "10.0.0.2:80", Status: 2},
	}})
	require.Equal(t, http.StatusNoContent, status)

	status, _ = do(t, server, http.MethodPost, "/v1/corp/services/10.0.0.3:80"+group, ServiceRequest{Status: 1})
	require.Equal(t, http.StatusNoContent, status)

	status, _ = do(t, server, http.MethodPut, "/v1/corp/services/10.0.0.2:80/up"+group, nil)
	require.Equal(t, http.StatusNoContent, status)

	status, body := do(t, server, http.MethodGet, "/v1/corp/services"+group, nil)
	require.Equal(t, http.StatusOK, status)
	var got ServicesResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, []ServiceModel{
		{Host: "10.0.0.1:80", Status: 0},
		{Host: "10.0.0.2:80", Status: 0},
		{Host: "10.0.0.3:80", Status: 1},
	}, got.Services)

	t.Run("With unknown action", func(t *testing.T) {
		status, body := do(t, server, http.MethodPut, "/v1/corp/services/10.0.0.2:80/sideways"+group, nil)
		assert.Equal(t, http.StatusBadRequest, status)
		assertErrorCode(t, body, gerrors.CodeInvalidValue)
	})

	t.Run("With missing member", func(t *testing.T) {
		status, body := do(t, server, http.MethodPut, "/v1/corp/services/10.0.0.9:80/down"+group, nil)
		assert.Equal(t, http.StatusNotFound, status)
		assertErrorCode(t, body, gerrors.CodeNotFound)
	})

	t.Run("With unregistered group", func(t *testing.T) {
		status, _ := do(t, server, http.MethodGet, "/v1/corp/services?path=/svc/none", nil)
		assert.Equal(t, http.StatusNotFound, status)
	})

	status, _ = do(t, server, http.MethodDelete, "/v1/corp/services/10.0.0.1:80"+group, nil)
	require.Equal(t, http.StatusNoContent, status)
	status, _ = do(t, server, http.MethodDelete, "/v1/corp/services"+group, nil)
	require.Equal(t, http.StatusNoContent, status)

	status, body = do(t, server, http.MethodGet, "/v1/corp/services"+group, nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Empty(t, got.Services)
}

func TestGrayRoutes(t *testing.T) {
	server := newTestServer(t)

	status, _ := do(t, server, http.MethodPut, "/v1/corp/node?path=/app/db", NodeRequest{Value: "old"})
	require.Equal(t, http.StatusNoContent, status)

	begin := GrayRequest{
		Changes:  []ChangeModel{{Path: "/app/db", Value: "new"}},
		Machines: []string{"m1", "m2"},
	}
	status, body := do(t, server, http.MethodPost, "/v1/corp/gray", begin)
	require.Equal(t, http.StatusCreated, status)
	var created GrayResponse
	require.NoError(t, json.Unmarshal(body, &created))
	require.NotEmpty(t, created.ID)

	status, body = do(t, server, http.MethodGet, "/v1/corp/machines/m2/gray", nil)
	require.Equal(t, http.StatusOK, status)
	var claimed GrayResponse
	require.NoError(t, json.Unmarshal(body, &claimed))
	assert.Equal(t, created.ID, claimed.ID)

	status, body = do(t, server, http.MethodGet, "/v1/corp/gray/"+created.ID, nil)
	require.Equal(t, http.StatusOK, status)
	var tx TransactionResponse
	require.NoError(t, json.Unmarshal(body, &tx))
	assert.Equal(t, []ChangeModel{{Path: "/app/db", Value: "new"}}, tx.Changes)
	assert.Equal(t, []ChangeModel{{Path: "/app/db", Value: "old"}}, tx.Prior)
	assert.ElementsMatch(t, []string{"m1", "m2"}, tx.Machines)

	t.Run("With machine already claimed", func(t *testing.T) {
		status, body := do(t, server, http.MethodPost, "/v1/corp/gray", begin)
		assert.Equal(t, http.StatusConflict, status)
		assertErrorCode(t, body, gerrors.CodeConflict)
	})

	status, _ = do(t, server, http.MethodPost, "/v1/corp/gray/"+created.ID+"/rollback", nil)
	require.Equal(t, http.StatusNoContent, status)

	status, body = do(t, server, http.MethodGet, "/v1/corp/node?path=/app/db", nil)
	require.Equal(t, http.StatusOK, status)
	var node NodeResponse
	require.NoError(t, json.Unmarshal(body, &node))
	assert.Equal(t, "old", node.Value)

	status, _ = do(t, server, http.MethodGet, "/v1/corp/machines/m1/gray", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = do(t, server, http.MethodPost, "/v1/corp/gray/"+created.ID+"/commit", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assertErrorCode(t, body, gerrors.CodeNotFound)

	status, _ = do(t, server, http.MethodGet, "/v1/corp/gray/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHTTPStatus(t *testing.T) {
	testCases := map[int]int{
		gerrors.CodeOK:           http.StatusOK,
		gerrors.CodeInvalidPath:  http.StatusBadRequest,
		gerrors.CodeInvalidValue: http.StatusBadRequest,
		gerrors.CodeConflict:     http.StatusConflict,
		gerrors.CodeNotFound:     http.StatusNotFound,
		gerrors.CodeStoreFailure: http.StatusServiceUnavailable,
	}
	for code, expected := range testCases {
		assert.Equal(t, expected, HTTPStatus(code), gerrors.CodeName(code))
	}
}

func TestServe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, "127.0.0.1:0", newTestServer(t), log.DiscardLogger)
	}()

	cancel()
	require.NoError(t, <-done)
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	table, err := datacenter.NewTable(context.Background(), []*datacenter.Config{
		{Name: "corp", Backend: backend.KindMemory},
		{Name: "edge", Backend: backend.KindMemory},
	}, log.DiscardLogger)
	require.NoError(t, err)

	tel, err := telemetry.New(telemetry.WithMeterProvider(noop.NewMeterProvider()))
	require.NoError(t, err)

	m, err := manager.New(table, manager.WithLogger(log.DiscardLogger), manager.WithTelemetry(tel))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, m.Close()) })

	return NewHandler(m, log.DiscardLogger)
}

func do(t *testing.T, handler http.Handler, method, target string, payload any) (int, []byte) {
	t.Helper()

	var body io.Reader = http.NoBody
	if payload != nil {
		encoded, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, target, body)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec.Code, rec.Body.Bytes()
}

func assertErrorCode(t *testing.T, body []byte, code int) {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, code, resp.Code)
	assert.NotEmpty(t, resp.Error)
}
