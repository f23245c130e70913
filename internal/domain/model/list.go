// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package model defines the domain models and entities for the subscriber service.
package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/constants"
	errs "github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/errors"
)

// List is a mailing list that subscribers belong to. Lists are owned by the
// platform catalog and are only read here.
type List struct {
	ID        int64     `json:"id" yaml:"id"`
	CID       string    `json:"cid" yaml:"cid"`
	Name      string    `json:"name" yaml:"name"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// ListRef is a list reference taken from the request path.
type ListRef struct {
	CID  string
	ID   int64
	ByID bool
}

// NewListRef interprets raw as a numeric list id when idType is "id" and as
// the public list code otherwise.
func NewListRef(raw, idType string) (ListRef, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ListRef{}, errs.NewForbidden("missing list reference")
	}
	if idType != constants.IDTypeNumeric {
		return ListRef{CID: raw}, nil
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return ListRef{}, errs.NewForbidden(fmt.Sprintf("invalid list id %q", raw))
	}
	return ListRef{ID: id, ByID: true}, nil
}

// String renders the reference for logs.
func (r ListRef) String() string {
	if r.ByID {
		return "id:" + strconv.FormatInt(r.ID, 10)
	}
	return "cid:" + r.CID
}
