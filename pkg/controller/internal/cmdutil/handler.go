/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package cmdutil

import (
	"net/http"
)

const contentTypeJSON = "application/json"

// NewHTTPHandler binds handle to a route. Replies are JSON documents.
func NewHTTPHandler(path, method string, handle http.HandlerFunc) *HTTPHandler {
	return &HTTPHandler{path: path, method: method, handle: handle}
}

// HTTPHandler is one REST route.
type HTTPHandler struct {
	path   string
	method string
	handle http.HandlerFunc
}

// Path of the route.
func (h *HTTPHandler) Path() string { return h.path }

// Method of the route.
func (h *HTTPHandler) Method() string { return h.method }

// Handle returns the handler with the JSON content type set on the reply.
func (h *HTTPHandler) Handle() http.HandlerFunc {
	return func(rw http.ResponseWriter, req *http.Request) {
		rw.Header().Set("Content-Type", contentTypeJSON)
		h.handle(rw, req)
	}
}
