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

// Package httpapi exposes the registry over HTTP. Node paths travel in the
// "path" query parameter; every other identifier is a URL segment. Errors
// are JSON documents carrying the status code of the failure category.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"

	gerrors "github.com/tochemey/grayconf/errors"
	"github.com/tochemey/grayconf/gray"
	"github.com/tochemey/grayconf/log"
	"github.com/tochemey/grayconf/nodestore"
	"github.com/tochemey/grayconf/registry"
)

const maxBodySize = 8 << 20

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Manager is the set of registry operations served over HTTP
type Manager interface {
	NodeSet(ctx context.Context, idc, path string, value []byte) error
	NodeGet(ctx context.Context, idc, path string) ([]byte, bool, error)
	NodeDelete(ctx context.Context, idc, path string) error
	List(ctx context.Context, idc, path string) ([]string, bool, error)
	ListWithValues(ctx context.Context, idc, path string) ([]nodestore.Child, bool, error)
	ServicesSet(ctx context.Context, idc, path string, entries []registry.ServiceEntry) error
	ServicesGetWithStatus(ctx context.Context, idc, path string) ([]registry.ServiceEntry, bool, error)
	ServiceUp(ctx context.Context, idc, path, host string) error
	ServiceDown(ctx context.Context, idc, path, host string) error
	ServiceOffline(ctx context.Context, idc, path, host string) error
	ServiceAdd(ctx context.Context, idc, path, host string, status registry.Status) error
	ServiceDelete(ctx context.Context, idc, path, host string) error
	ServiceClear(ctx context.Context, idc, path string) error
	GrayBegin(ctx context.Context, idc string, changes []gray.Change, machines []string) (gray.ID, error)
	GrayCommit(ctx context.Context, idc string, id gray.ID) error
	GrayRollback(ctx context.Context, idc string, id gray.ID) error
	GrayLookup(ctx context.Context, idc string, id gray.ID) (*gray.Transaction, bool, error)
	MachineGray(ctx context.Context, idc, machine string) (gray.ID, bool, error)
}

type handler struct {
	manager Manager
	logger  log.Logger
}

// NewHandler creates the HTTP handler serving manager
func NewHandler(manager Manager, logger log.Logger) http.Handler {
	if logger == nil {
		logger = log.DefaultLogger
	}

	h := &handler{manager: manager, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/v1/{idc}", func(r chi.Router) {
		r.Get("/node", h.getNode)
		r.Put("/node", h.setNode)
		r.Delete("/node", h.deleteNode)
		r.Get("/children", h.listChildren)

		r.Get("/services", h.getServices)
		r.Put("/services", h.setServices)
		r.Delete("/services", h.clearServices)
		r.Post("/services/{host}", h.addService)
		r.Delete("/services/{host}", h.deleteService)
		r.Put("/services/{host}/{action}", h.updateService)

		r.Post("/gray", h.beginGray)
		r.Get("/gray/{id}", h.getGray)
		r.Post("/gray/{id}/commit", h.commitGray)
		r.Post("/gray/{id}/rollback", h.rollbackGray)
		r.Get("/machines/{machine}/gray", h.machineGray)
	})

	return r
}

// Serve runs an HTTP server on bindAddr until ctx is done
func Serve(ctx context.Context, bindAddr string, handler http.Handler, logger log.Logger) error {
	server := &http.Server{
		Addr:              bindAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("failed to shutdown http server: %v", err)
		}
	}()

	logger.Infof("http server listening on %s", bindAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (h *handler) getNode(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	value, ok, err := h.manager.NodeGet(r.Context(), idc(r), path)
	if err != nil {
		h.fail(w, err)
		return
	}

	if !ok {
		h.fail(w, gerrors.NewErrNodeNotFound(path))
		return
	}
	h.respond(w, http.StatusOK, NodeResponse{Path: path, Value: string(value)})
}

func (h *handler) setNode(w http.ResponseWriter, r *http.Request) {
	var req NodeRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.manager.NodeSet(r.Context(), idc(r), r.URL.Query().Get("path"), []byte(req.Value)); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) deleteNode(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.NodeDelete(r.Context(), idc(r), r.URL.Query().Get("path")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) listChildren(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")

	var children []ChildResponse
	if r.URL.Query().Get("values") == "true" {
		values, ok, err := h.manager.ListWithValues(r.Context(), idc(r), path)
		if err != nil || !ok {
			h.failAbsent(w, path, err)
			return
		}

		children = make([]ChildResponse, len(values))
		for i, child := range values {
			children[i] = ChildResponse{Name: child.Name, Value: &values[i].Value}
		}
	} else {
		names, ok, err := h.manager.List(r.Context(), idc(r), path)
		if err != nil || !ok {
			h.failAbsent(w, path, err)
			return
		}

		children = make([]ChildResponse, len(names))
		for i, name := range names {
			children[i] = ChildResponse{Name: name}
		}
	}
	h.respond(w, http.StatusOK, children)
}

func (h *handler) getServices(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	entries, ok, err := h.manager.ServicesGetWithStatus(r.Context(), idc(r), path)
	if err != nil {
		h.fail(w, err)
		return
	}

	if !ok {
		h.fail(w, fmt.Errorf("group=(%s) %w", path, gerrors.ErrGroupNotFound))
		return
	}
	h.respond(w, http.StatusOK, ServicesResponse{Path: path, Services: toServiceModels(entries)})
}

func (h *handler) setServices(w http.ResponseWriter, r *http.Request) {
	var req ServicesRequest
	if !h.decode(w, r, &req) {
		return
	}

	entries := make([]registry.ServiceEntry, len(req.Services))
	for i, service := range req.Services {
		entries[i] = registry.ServiceEntry{Host: service.Host, Status: registry.Status(service.Status)}
	}

	if err := h.manager.ServicesSet(r.Context(), idc(r), r.URL.Query().Get("path"), entries); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) clearServices(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.ServiceClear(r.Context(), idc(r), r.URL.Query().Get("path")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) addService(w http.ResponseWriter, r *http.Request) {
	var req ServiceRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.manager.ServiceAdd(r.Context(), idc(r), r.URL.Query().Get("path"), chi.URLParam(r, "host"), registry.Status(req.Status))
	if err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) deleteService(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.ServiceDelete(r.Context(), idc(r), r.URL.Query().Get("path"), chi.URLParam(r, "host")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) updateService(w http.ResponseWriter, r *http.Request) {
	var update func(ctx context.Context, idc, path, host string) error
	switch chi.URLParam(r, "action") {
	case "up":
		update = h.manager.ServiceUp
	case "down":
		update = h.manager.ServiceDown
	case "offline":
		update = h.manager.ServiceOffline
	default:
		h.fail(w, fmt.Errorf("action=(%s) %w", chi.URLParam(r, "action"), gerrors.ErrInvalidStatus))
		return
	}

	if err := update(r.Context(), idc(r), r.URL.Query().Get("path"), chi.URLParam(r, "host")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) beginGray(w http.ResponseWriter, r *http.Request) {
	var req GrayRequest
	if !h.decode(w, r, &req) {
		return
	}

	changes := make([]gray.Change, len(req.Changes))
	for i, change := range req.Changes {
		changes[i] = gray.Change{Path: change.Path, Value: []byte(change.Value)}
	}

	id, err := h.manager.GrayBegin(r.Context(), idc(r), changes, req.Machines)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusCreated, GrayResponse{ID: id.String()})
}

func (h *handler) getGray(w http.ResponseWriter, r *http.Request) {
	id := gray.ID(chi.URLParam(r, "id"))
	tx, ok, err := h.manager.GrayLookup(r.Context(), idc(r), id)
	if err != nil {
		h.fail(w, err)
		return
	}

	if !ok {
		h.fail(w, gerrors.NewErrGrayNotFound(id.String()))
		return
	}

	h.respond(w, http.StatusOK, TransactionResponse{
		ID:       tx.ID.String(),
		Changes:  toChangeModels(tx.Changes),
		Prior:    toChangeModels(tx.Prior),
		Machines: tx.Machines,
	})
}

func (h *handler) commitGray(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.GrayCommit(r.Context(), idc(r), gray.ID(chi.URLParam(r, "id"))); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) rollbackGray(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.GrayRollback(r.Context(), idc(r), gray.ID(chi.URLParam(r, "id"))); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) machineGray(w http.ResponseWriter, r *http.Request) {
	machine := chi.URLParam(r, "machine")
	id, ok, err := h.manager.MachineGray(r.Context(), idc(r), machine)
	if err != nil {
		h.fail(w, err)
		return
	}

	if !ok {
		h.fail(w, fmt.Errorf("machine=(%s) %w", machine, gerrors.ErrGrayNotFound))
		return
	}
	h.respond(w, http.StatusOK, GrayResponse{ID: id.String()})
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err == nil {
		err = json.Unmarshal(body, v)
	}

	if err != nil {
		h.fail(w, fmt.Errorf("malformed request body: %w: %v", gerrors.ErrInvalidValue, err))
		return false
	}
	return true
}

func (h *handler) failAbsent(w http.ResponseWriter, path string, err error) {
	if err == nil {
		err = gerrors.NewErrNodeNotFound(path)
	}
	h.fail(w, err)
}

func (h *handler) fail(w http.ResponseWriter, err error) {
	code := gerrors.Code(err)
	if code == gerrors.CodeStoreFailure {
		h.logger.Errorf("request failed: %v", err)
	}
	h.respond(w, HTTPStatus(code), ErrorResponse{Code: code, Error: err.Error()})
}

func (h *handler) respond(w http.ResponseWriter, status int, body any) {
	payload, err := json.Marshal(body)
	if err != nil {
		h.logger.Errorf("failed to encode response: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

// HTTPStatus maps a status code to the HTTP status of a failed request
func HTTPStatus(code int) int {
	switch code {
	case gerrors.CodeOK:
		return http.StatusOK
	case gerrors.CodeInvalidPath, gerrors.CodeInvalidValue:
		return http.StatusBadRequest
	case gerrors.CodeConflict:
		return http.StatusConflict
	case gerrors.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusServiceUnavailable
	}
}

func idc(r *http.Request) string {
	return chi.URLParam(r, "idc")
}
