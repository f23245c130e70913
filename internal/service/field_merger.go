// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import "github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/model"

// MergeFields maps a normalized payload onto a list's field schema and
// returns column values. Plain fields copy the value verbatim; grouped
// fields merge each present sub-option, coercing boolean options. Fields
// without a column and without sub-options are skipped.
func MergeFields(payload map[string]string, fields []model.FieldDefinition) map[string]string {
	merged := make(map[string]string)

	for _, field := range fields {
		if value, ok := payload[field.PayloadKey()]; ok && field.Kind() == model.FieldKindPlain {
			merged[field.Column] = value
			continue
		}
		if field.Kind() == model.FieldKindDecorative {
			continue
		}

		for _, option := range field.Options {
			value, ok := payload[option.PayloadKey()]
			if !ok || option.Column == "" {
				continue
			}
			if option.IsBooleanOption() {
				value = model.CoerceOption(value)
			}
			merged[option.Column] = value
		}
	}

	return merged
}
