/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package controller assembles the REST surface of the proof service.
package controller

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	keysetcmd "github.com/gl-zkPass/zkpass-sdk-sub001/pkg/controller/command/keyset"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/controller/rest"
	keysetrest "github.com/gl-zkPass/zkpass-sdk-sub001/pkg/controller/rest/keyset"
)

type allOpts struct {
	allowedOrigins []string
	token          string
}

// Opt represents a controller option.
type Opt func(opts *allOpts)

// WithAllowedOrigins restricts cross origin requests to origins. All origins are allowed by default.
func WithAllowedOrigins(origins ...string) Opt {
	return func(opts *allOpts) {
		opts.allowedOrigins = origins
	}
}

// WithAuthToken requires "Authorization: Bearer <token>" on every request.
func WithAuthToken(token string) Opt {
	return func(opts *allOpts) {
		opts.token = token
	}
}

// GetRESTHandlers returns all REST handlers provided by controller.
func GetRESTHandlers(keys keysetcmd.KeySource) []rest.Handler {
	return keysetrest.New(keys).GetRESTHandlers()
}

// NewRouter routes handlers and wraps the router with CORS handling.
func NewRouter(handlers []rest.Handler, opts ...Opt) http.Handler {
	o := &allOpts{}

	for _, opt := range opts {
		opt(o)
	}

	router := mux.NewRouter()

	if o.token != "" {
		router.Use(authorizationMiddleware(o.token))
	}

	for _, handler := range handlers {
		router.HandleFunc(handler.Path(), handler.Handle()).Methods(handler.Method())
	}

	return cors.New(
		cors.Options{
			AllowedOrigins: o.allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodHead},
			AllowedHeaders: []string{"Origin", "Accept", "Content-Type", "X-Requested-With", "Authorization"},
		},
	).Handler(router)
}

func authorizationMiddleware(token string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer "+token {
				w.WriteHeader(http.StatusUnauthorized)

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
