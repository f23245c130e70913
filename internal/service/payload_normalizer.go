// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/constants"
)

// Recognized payload keys. Anything else is matched against list fields.
const (
	KeyEmail               = "EMAIL"
	KeyFirstName           = "FIRST_NAME"
	KeyLastName            = "LAST_NAME"
	KeyTimezone            = "TIMEZONE"
	KeyForceSubscribe      = "FORCE_SUBSCRIBE"
	KeyRequireConfirmation = "REQUIRE_CONFIRMATION"
	KeyEmailOld            = "EMAILOLD"
	KeyEmailNew            = "EMAILNEW"
)

// NormalizePayload canonicalizes a submitted body: keys are trimmed and
// upper-cased, values become trimmed strings. Falsy values (nil, false,
// numeric zero) become "". When two keys collide after normalization the one
// sorting last wins.
func NormalizePayload(raw map[string]any) map[string]string {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	normalized := make(map[string]string, len(raw))
	for _, k := range keys {
		normalized[strings.ToUpper(strings.TrimSpace(k))] = strings.TrimSpace(stringValue(raw[k]))
	}
	return normalized
}

func stringValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if !val {
			return ""
		}
		return "true"
	case float64:
		if val == 0 {
			return ""
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		if f, err := val.Float64(); err == nil && f == 0 {
			return ""
		}
		return val.String()
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = stringValue(item)
		}
		return strings.Join(parts, ",")
	case map[string]any:
		data, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(data)
	default:
		return fmt.Sprint(val)
	}
}

// optional returns nil for an absent or blank value so a blank field never
// overwrites a stored attribute.
func optional(payload map[string]string, key string) *string {
	if v := payload[key]; v != "" {
		return &v
	}
	return nil
}

// SubscribeInput is a parsed subscribe request.
type SubscribeInput struct {
	ListID              string
	IDType              string
	Email               string
	FirstName           *string
	LastName            *string
	Timezone            *string
	ForceSubscribe      bool
	RequireConfirmation bool
	Origin              string
	// Payload is the full normalized body; list fields are merged from it.
	Payload map[string]string
}

// NewSubscribeInput builds a SubscribeInput from a normalized payload.
func NewSubscribeInput(listID string, payload map[string]string, origin string) *SubscribeInput {
	return &SubscribeInput{
		ListID:              listID,
		IDType:              payload[constants.IDTypeField],
		Email:               payload[KeyEmail],
		FirstName:           optional(payload, KeyFirstName),
		LastName:            optional(payload, KeyLastName),
		Timezone:            optional(payload, KeyTimezone),
		ForceSubscribe:      model.IsAffirmative(payload[KeyForceSubscribe]),
		RequireConfirmation: model.IsAffirmative(payload[KeyRequireConfirmation]),
		Origin:              origin,
		Payload:             payload,
	}
}

// AddressInput is a parsed unsubscribe or delete request.
type AddressInput struct {
	ListID string
	IDType string
	Email  string
}

// NewAddressInput builds an AddressInput from a normalized payload.
func NewAddressInput(listID string, payload map[string]string) *AddressInput {
	return &AddressInput{
		ListID: listID,
		IDType: payload[constants.IDTypeField],
		Email:  payload[KeyEmail],
	}
}

// ChangeAddressInput is a parsed change-email request.
type ChangeAddressInput struct {
	ListID              string
	IDType              string
	OldEmail            string
	NewEmail            string
	RequireConfirmation bool
	Origin              string
}

// NewChangeAddressInput builds a ChangeAddressInput from a normalized payload.
func NewChangeAddressInput(listID string, payload map[string]string, origin string) *ChangeAddressInput {
	return &ChangeAddressInput{
		ListID:              listID,
		IDType:              payload[constants.IDTypeField],
		OldEmail:            payload[KeyEmailOld],
		NewEmail:            payload[KeyEmailNew],
		RequireConfirmation: model.IsAffirmative(payload[KeyRequireConfirmation]),
		Origin:              origin,
	}
}
