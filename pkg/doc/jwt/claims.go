/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package jwt

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v3/json"
	"github.com/go-jose/go-jose/v3/jwt"
	"github.com/mitchellh/mapstructure"
)

// jsonNumberToNumericDate is a mapstructure hook decoding json.Number into jwt.NumericDate.
func jsonNumberToNumericDate() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.String() != "json.Number" || !strings.Contains("jwt.NumericDate", t.String()) {
			return data, nil
		}

		parsed, err := strconv.ParseFloat(fmt.Sprint(data), 64)
		if err != nil {
			return nil, err
		}

		date := jwt.NewNumericDate(time.Unix(int64(parsed), 0))

		if t.String() == "jwt.NumericDate" {
			return *date, nil
		}

		return date, nil
	}
}

func claimsMap(raw []byte) (map[string]interface{}, error) {
	d := json.NewDecoder(bytes.NewReader(raw))
	d.UseNumber()

	var m map[string]interface{}

	if err := d.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: claims are not a JSON object: %w", ErrMalformedToken, err)
	}

	return m, nil
}

func validateTimes(raw []byte, leeway time.Duration, now time.Time) error {
	m, err := claimsMap(raw)
	if err != nil {
		return err
	}

	var claims jwt.Claims

	d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &claims,
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       jsonNumberToNumericDate(),
	})
	if err != nil {
		return fmt.Errorf("mapstruct claims: %w", err)
	}

	if err := d.Decode(m); err != nil {
		return fmt.Errorf("%w: time claims: %w", ErrMalformedToken, err)
	}

	err = claims.ValidateWithLeeway(jwt.Expected{Time: now}, leeway)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrExpired):
		return fmt.Errorf("%w: %w", ErrExpiredToken, err)
	default:
		return fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}
}

// DecodeData decodes the raw "data" claim into v, which is usually a pointer to a struct with json tags.
// Numbers are kept exact.
func DecodeData(data []byte, v interface{}) error {
	d := json.NewDecoder(bytes.NewReader(data))
	d.UseNumber()

	var raw interface{}

	if err := d.Decode(&raw); err != nil {
		return fmt.Errorf("%w: data claim: %w", ErrMalformedToken, err)
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           v,
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.ComposeDecodeHookFunc(jsonNumberToNumericDate(), unmarshalerHook()),
	})
	if err != nil {
		return fmt.Errorf("mapstruct data: %w", err)
	}

	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("%w: data claim: %w", ErrMalformedToken, err)
	}

	return nil
}

// unmarshalerHook hands values over to types that implement json.Unmarshaler.
func unmarshalerHook() mapstructure.DecodeHookFuncType {
	unmarshaler := reflect.TypeOf((*json.Unmarshaler)(nil)).Elem()

	return func(_ reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if !reflect.PointerTo(t).Implements(unmarshaler) {
			return data, nil
		}

		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}

		out := reflect.New(t)
		if err := out.Interface().(json.Unmarshaler).UnmarshalJSON(raw); err != nil { //nolint:forcetypeassert
			return nil, err
		}

		return out.Elem().Interface(), nil
	}
}
