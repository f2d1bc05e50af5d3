/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package command

import (
	"encoding/json"
	"io"

	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/common/log"
)

// WriteJSON encodes v to w without HTML escaping; a nil v is written as {}.
// Encoding failures can only be logged since the response may already be partly written.
func WriteJSON(w io.Writer, v interface{}, l log.Logger) {
	if v == nil {
		v = struct{}{}
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(v); err != nil {
		l.Errorf("write command response: %v", err)
	}
}
