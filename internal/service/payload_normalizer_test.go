// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePayload(t *testing.T) {
	testCases := []struct {
		name     string
		input    map[string]any
		expected map[string]string
	}{
		{
			name:     "keys are upper-cased and trimmed",
			input:    map[string]any{" email ": "a@example.org", "first_name": "Ann"},
			expected: map[string]string{"EMAIL": "a@example.org", "FIRST_NAME": "Ann"},
		},
		{
			name:     "string values are trimmed",
			input:    map[string]any{"EMAIL": "  a@example.org\t"},
			expected: map[string]string{"EMAIL": "a@example.org"},
		},
		{
			name:     "falsy values become empty",
			input:    map[string]any{"A": nil, "B": false, "C": float64(0), "D": ""},
			expected: map[string]string{"A": "", "B": "", "C": "", "D": ""},
		},
		{
			name:     "numbers and booleans are stringified",
			input:    map[string]any{"A": true, "B": float64(42), "C": 1.5, "D": json.Number("7")},
			expected: map[string]string{"A": "true", "B": "42", "C": "1.5", "D": "7"},
		},
		{
			name:     "arrays are joined",
			input:    map[string]any{"TAGS": []any{"a", float64(2), true}},
			expected: map[string]string{"TAGS": "a,2,true"},
		},
		{
			name:     "empty payload",
			input:    map[string]any{},
			expected: map[string]string{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, NormalizePayload(tc.input))
		})
	}
}

func TestNormalizePayload_CollisionIsDeterministic(t *testing.T) {
	input := map[string]any{"email": "lower@example.org", "EMAIL": "upper@example.org"}
	for range 20 {
		// "email" sorts after "EMAIL" and wins
		assert.Equal(t, "lower@example.org", NormalizePayload(input)["EMAIL"])
	}
}

func TestNewSubscribeInput(t *testing.T) {
	payload := NormalizePayload(map[string]any{
		"email":                "a@example.org",
		"first_name":           "Ann",
		"timezone":             "",
		"force_subscribe":      "YES",
		"require_confirmation": "no",
		"id_type":              "id",
	})

	in := NewSubscribeInput("12", payload, "203.0.113.9")

	assert.Equal(t, "12", in.ListID)
	assert.Equal(t, "id", in.IDType)
	assert.Equal(t, "a@example.org", in.Email)
	require.NotNil(t, in.FirstName)
	assert.Equal(t, "Ann", *in.FirstName)
	assert.Nil(t, in.LastName)
	assert.Nil(t, in.Timezone)
	assert.True(t, in.ForceSubscribe)
	assert.False(t, in.RequireConfirmation)
	assert.Equal(t, "203.0.113.9", in.Origin)
}

func TestNewChangeAddressInput(t *testing.T) {
	payload := NormalizePayload(map[string]any{
		"emailold":             "old@example.org",
		"emailnew":             "new@example.org",
		"require_confirmation": float64(1),
	})

	in := NewChangeAddressInput("news", payload, "")

	assert.Equal(t, "old@example.org", in.OldEmail)
	assert.Equal(t, "new@example.org", in.NewEmail)
	assert.True(t, in.RequireConfirmation)
	assert.Empty(t, in.IDType)
}
