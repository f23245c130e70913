// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/service"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/constants"
	lfxerrors "github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/errors"

	goahttp "goa.design/goa/v3/http"
)

// decodePayload reads a JSON or form encoded body into the normalized
// key/value payload. An empty body is an empty payload.
func decodePayload(r *http.Request) (map[string]string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		return decodeFormPayload(r)
	}

	raw := map[string]any{}
	if err := goahttp.RequestDecoder(r).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, lfxerrors.NewValidation("invalid request body", err)
	}
	return service.NormalizePayload(raw), nil
}

func decodeFormPayload(r *http.Request) (map[string]string, error) {
	body, ok := r.Context().Value(constants.RequestBodyContextKey).([]byte)
	if !ok {
		var err error
		if body, err = io.ReadAll(r.Body); err != nil {
			return nil, lfxerrors.NewValidation("invalid request body", err)
		}
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, lfxerrors.NewValidation("invalid form body", err)
	}

	raw := make(map[string]any, len(values))
	for key, vals := range values {
		if len(vals) > 0 {
			raw[key] = vals[len(vals)-1]
		}
	}
	return service.NormalizePayload(raw), nil
}

// requestOrigin is the caller address recorded as opt-in provenance
func requestOrigin(r *http.Request) string {
	origin, _ := r.Context().Value(constants.ClientOriginContextKey).(string)
	return origin
}
