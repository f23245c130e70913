// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package nats

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/constants"
)

// GetListByCID retrieves a list by its public code
func (s *storage) GetListByCID(ctx context.Context, cid string) (*model.List, error) {
	slog.DebugContext(ctx, "nats storage: getting list", "list_cid", cid)

	list := &model.List{}
	rev, err := s.get(ctx, constants.KVBucketNameLists, cid, list)
	if err != nil {
		return nil, storageError(err, "list not found", "failed to get list")
	}

	slog.DebugContext(ctx, "nats storage: list retrieved",
		"list_cid", cid,
		"list_id", list.ID,
		"revision", rev)

	return list, nil
}

// GetListByID resolves the numeric id through its lookup key
func (s *storage) GetListByID(ctx context.Context, id int64) (*model.List, error) {
	lookupKey := fmt.Sprintf(constants.KVLookupListIDPrefix, id)

	cid, err := s.getValue(ctx, constants.KVBucketNameLists, lookupKey)
	if err != nil {
		return nil, storageError(err, "list not found", "failed to look up list id")
	}

	return s.GetListByCID(ctx, cid)
}

// ListFields returns the field schema stored for a list
func (s *storage) ListFields(ctx context.Context, listID int64) ([]model.FieldDefinition, error) {
	schema := &model.ListFields{}
	if _, err := s.get(ctx, constants.KVBucketNameListFields, strconv.FormatInt(listID, 10), schema); err != nil {
		return nil, storageError(err, "list fields not found", "failed to get list fields")
	}

	slog.DebugContext(ctx, "nats storage: list fields retrieved",
		"list_id", listID,
		"fields", len(schema.Fields))

	return schema.Fields, nil
}
