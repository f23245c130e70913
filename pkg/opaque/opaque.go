// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package opaque generates the short public codes used for subscriber cids
// and confirmation tokens.
package opaque

import (
	"github.com/akamensky/base58"
	"github.com/google/uuid"
)

// New returns a base58 rendering of a random UUID.
func New() string {
	id := uuid.New()
	return base58.Encode(id[:])
}

// Valid reports whether code decodes as a base58 UUID.
func Valid(code string) bool {
	raw, err := base58.Decode(code)
	if err != nil || len(raw) != 16 {
		return false
	}
	_, err = uuid.FromBytes(raw)
	return err == nil
}
