// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package model

import "strings"

// IsAffirmative matches yes, true or 1 in any case. It decides the
// FORCE_SUBSCRIBE and REQUIRE_CONFIRMATION flags.
func IsAffirmative(value string) bool {
	switch strings.ToLower(value) {
	case "yes", "true", "1":
		return true
	}
	return false
}

// CoerceOption maps a boolean option value to its stored form: "" for
// false, no, 0 or empty (any case), "1" for everything else.
func CoerceOption(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "false", "no", "0", "":
		return ""
	}
	return "1"
}
