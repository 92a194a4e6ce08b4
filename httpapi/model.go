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
	"github.com/tochemey/grayconf/gray"
	"github.com/tochemey/grayconf/registry"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Code  int    `json:"code"`
	Error string `json:"error"`
}

// NodeRequest is the body of a node write
type NodeRequest struct {
	Value string `json:"value"`
}

// NodeResponse is a node and its value
type NodeResponse struct {
	Path  string `json:"path"`
	Value string `json:"value"`
}

// ChildResponse is a child node, with its value when requested
type ChildResponse struct {
	Name  string  `json:"name"`
	Value *string `json:"value,omitempty"`
}

// ServiceModel is a member of a service group
type ServiceModel struct {
	Host   string `json:"host"`
	Status int    `json:"status"`
}

// ServicesRequest is the body of a service group replace
type ServicesRequest struct {
	Services []ServiceModel `json:"services"`
}

// ServicesResponse lists the members of a service group
type ServicesResponse struct {
	Path     string         `json:"path"`
	Services []ServiceModel `json:"services"`
}

// ServiceRequest is the body of a service add
type ServiceRequest struct {
	Status int `json:"status"`
}

// ChangeModel is a gray change
type ChangeModel struct {
	Path  string `json:"path"`
	Value string `json:"value"`
}

// GrayRequest is the body of a gray begin
type GrayRequest struct {
	Changes  []ChangeModel `json:"changes"`
	Machines []string      `json:"machines"`
}

// GrayResponse identifies a gray transaction
type GrayResponse struct {
	ID string `json:"id"`
}

// TransactionResponse describes a live gray transaction
type TransactionResponse struct {
	ID       string        `json:"id"`
	Changes  []ChangeModel `json:"changes"`
	Prior    []ChangeModel `json:"prior"`
	Machines []string      `json:"machines"`
}

func toServiceModels(entries []registry.ServiceEntry) []ServiceModel {
	models := make([]ServiceModel, len(entries))
	for i, entry := range entries {
		models[i] = ServiceModel{Host: entry.Host, Status: int(entry.Status)}
	}
	return models
}

func toChangeModels(changes []gray.Change) []ChangeModel {
	models := make([]ChangeModel, len(changes))
	for i, change := range changes {
		models[i] = ChangeModel{Path: change.Path, Value: string(change.Value)}
	}
	return models
}
