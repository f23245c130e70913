// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package model

import "strings"

// FieldType is the type tag of a custom field definition.
type FieldType string

// Field types. Grouped types carry sub-options; FieldTypeOption marks a
// boolean sub-option.
const (
	FieldTypeText     FieldType = "text"
	FieldTypeLongText FieldType = "longtext"
	FieldTypeNumber   FieldType = "number"
	FieldTypeWebsite  FieldType = "website"
	FieldTypeDate     FieldType = "date"
	FieldTypeCheckbox FieldType = "checkbox"
	FieldTypeRadio    FieldType = "radio"
	FieldTypeDropdown FieldType = "dropdown"
	FieldTypeOption   FieldType = "option"
)

// FieldKind classifies how a definition takes part in a merge.
type FieldKind int

const (
	// FieldKindDecorative definitions have no column and are never merged.
	FieldKindDecorative FieldKind = iota
	// FieldKindPlain definitions copy the payload value into their column.
	FieldKindPlain
	// FieldKindGrouped definitions merge each of their sub-options.
	FieldKindGrouped
)

// FieldDefinition is a per-list custom attribute. Sub-options are themselves
// definitions with their own key, column and type.
type FieldDefinition struct {
	Key     string            `json:"key" yaml:"key"`
	Name    string            `json:"name,omitempty" yaml:"name,omitempty"`
	Column  string            `json:"column,omitempty" yaml:"column,omitempty"`
	Type    FieldType         `json:"type" yaml:"type"`
	Options []FieldDefinition `json:"options,omitempty" yaml:"options,omitempty"`
}

// Kind reports the merge behavior of the definition. A column takes
// precedence over sub-options.
func (f FieldDefinition) Kind() FieldKind {
	switch {
	case f.Column != "":
		return FieldKindPlain
	case len(f.Options) > 0:
		return FieldKindGrouped
	default:
		return FieldKindDecorative
	}
}

// PayloadKey is the normalized key the definition is matched against.
func (f FieldDefinition) PayloadKey() string {
	return strings.ToUpper(strings.TrimSpace(f.Key))
}

// IsBooleanOption reports whether values for this definition are coerced
// through CoerceOption.
func (f FieldDefinition) IsBooleanOption() bool {
	return f.Type == FieldTypeOption
}

// ListFields is the ordered field schema stored for a list.
type ListFields struct {
	ListID int64             `json:"list_id" yaml:"list_id"`
	Fields []FieldDefinition `json:"fields" yaml:"fields"`
}
