/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package rest serves controller commands over HTTP.
package rest

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/common/log"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/controller/command"
)

var logger = log.New("zkpass/controller/rest")

// Handler http handler for each controller API endpoint.
type Handler interface {
	Path() string
	Method() string
	Handle() http.HandlerFunc
}

// genericErrorBody is the reply body of failed requests.
type genericErrorBody struct {
	Code    command.Code `json:"code"`
	Message string       `json:"message"`
}

// Execute runs exec with the request body and turns a command error into an HTTP error reply.
func Execute(exec command.Exec, rw http.ResponseWriter, req io.Reader) {
	if err := exec(rw, req); err != nil {
		SendHTTPStatusError(rw, httpStatus(err.Type()), err.Code(), err)
	}
}

// SendHTTPStatusError writes httpStatus with a JSON body carrying code and the error message.
func SendHTTPStatusError(rw http.ResponseWriter, httpStatus int, code command.Code, err error) {
	rw.WriteHeader(httpStatus)

	if e := json.NewEncoder(rw).Encode(genericErrorBody{Code: code, Message: err.Error()}); e != nil {
		logger.Errorf("Unable to send error response, %s", e)
	}
}

func httpStatus(t command.Type) int {
	switch t {
	case command.ValidationError:
		return http.StatusBadRequest
	case command.UnavailableError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
