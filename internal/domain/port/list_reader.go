// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package port defines the interfaces for external dependencies and adapters.
package port

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/model"
)

// ListReader resolves list references. Both methods return NotFound when the
// list does not exist.
type ListReader interface {
	GetListByCID(ctx context.Context, cid string) (*model.List, error)
	GetListByID(ctx context.Context, id int64) (*model.List, error)
}

// FieldReader returns the ordered custom field schema of a list.
type FieldReader interface {
	ListFields(ctx context.Context, listID int64) ([]model.FieldDefinition, error)
}

// CatalogReader is the read side of the list catalog.
type CatalogReader interface {
	ListReader
	FieldReader
}
