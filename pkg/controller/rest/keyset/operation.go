/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package keyset

import (
	"net/http"

	keysetcmd "github.com/gl-zkPass/zkpass-sdk-sub001/pkg/controller/command/keyset"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/controller/internal/cmdutil"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/controller/rest"
	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/doc/jose"
)

// Paths of the keyset documents.
const (
	ServiceKeysPath   = "/" + jose.JWKSPath
	SigningKeysetPath = "/zkpass/jwks"
)

// Operation contains the keyset REST operations.
type Operation struct {
	handlers []rest.Handler
	command  *keysetcmd.Command
}

// New returns the keyset REST controller publishing the keys of source.
func New(source keysetcmd.KeySource) *Operation {
	op := &Operation{command: keysetcmd.New(source)}
	op.registerHandlers()

	return op
}

func (o *Operation) registerHandlers() {
	o.handlers = []rest.Handler{
		cmdutil.NewHTTPHandler(ServiceKeysPath, http.MethodGet, o.GetServiceKeys),
		cmdutil.NewHTTPHandler(SigningKeysetPath, http.MethodGet, o.GetSigningKeyset),
	}
}

// GetRESTHandlers gets all controller API handlers available for this service.
func (o *Operation) GetRESTHandlers() []rest.Handler {
	return o.handlers
}

// GetServiceKeys swagger:route GET /.well-known/jwks.json keyset serviceKeys
//
// Lists the proof service signing and encryption keys.
//
// Responses:
//    default: genericError
func (o *Operation) GetServiceKeys(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(o.command.GetServiceKeys, rw, req.Body)
}

// GetSigningKeyset swagger:route GET /zkpass/jwks keyset signingKeyset
//
// Returns the keyset proof tokens point at.
//
// Responses:
//    default: genericError
func (o *Operation) GetSigningKeyset(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(o.command.GetSigningKeyset, rw, req.Body)
}
