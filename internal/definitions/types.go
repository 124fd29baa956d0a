package definitions

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"

	"pagewright/internal/domain"
)

// FieldType tags the shape of a property value.
type FieldType string

const (
	FieldText      FieldType = "text"
	FieldTextArray FieldType = "text-array"
	FieldNumber    FieldType = "number"
	FieldEnum      FieldType = "enum"
	FieldPage      FieldType = "page"
)

// FieldDefinition declares one property field. Options is only meaningful
// for enum fields and AllowedPageTypes only for page fields.
type FieldDefinition struct {
	Label            domain.Localized `json:"label" yaml:"label"`
	Type             FieldType        `json:"type" yaml:"type" enum:"text,text-array,number,enum,page"`
	DefaultValue     any              `json:"default_value" yaml:"default_value"`
	Options          []any            `json:"options,omitempty" yaml:"options"`
	AllowedPageTypes []string         `json:"allowed_page_types,omitempty" yaml:"allowed_page_types"`
}

type PropertyGroup struct {
	Label       domain.Localized           `json:"label" yaml:"label"`
	DefaultOpen bool                       `json:"default_open" yaml:"default_open"`
	Fields      map[string]FieldDefinition `json:"fields" yaml:"fields"`
}

// PageDefinition describes a page type. It must not be mutated once registered.
type PageDefinition struct {
	TypeLabelKey  string                   `json:"type_label_key" yaml:"type_label_key"`
	Properties    map[string]PropertyGroup `json:"properties" yaml:"properties"`
	InitialBlocks func() []domain.Block    `json:"-" yaml:"-"`
}

// Validate checks that the default value has the shape its type demands.
func (f FieldDefinition) Validate() error {
	switch f.Type {
	case FieldText, FieldTextArray, FieldNumber, FieldPage:
		if err := checkValue(f, f.DefaultValue); err != nil {
			return fmt.Errorf("default value: %w", err)
		}
	case FieldEnum:
		if len(f.Options) == 0 {
			return fmt.Errorf("enum field requires options")
		}
		if err := checkValue(f, f.DefaultValue); err != nil {
			return fmt.Errorf("default value: %w", err)
		}
	default:
		return fmt.Errorf("unknown field type %q", f.Type)
	}
	return nil
}

// Validate checks every field of every group.
func (d PageDefinition) Validate() error {
	if d.TypeLabelKey == "" {
		return fmt.Errorf("type_label_key is required")
	}
	for groupKey, group := range d.Properties {
		if groupKey == "" {
			return fmt.Errorf("empty property group key")
		}
		for fieldKey, field := range group.Fields {
			if fieldKey == "" {
				return fmt.Errorf("group %s: empty field key", groupKey)
			}
			if err := field.Validate(); err != nil {
				return fmt.Errorf("field %s.%s: %w", groupKey, fieldKey, err)
			}
		}
	}
	return nil
}

// Blocks returns a fresh initial block list for a new page of this type.
func (d PageDefinition) Blocks() []domain.Block {
	if d.InitialBlocks == nil {
		return []domain.Block{}
	}
	blocks := d.InitialBlocks()
	if blocks == nil {
		return []domain.Block{}
	}
	return blocks
}

func checkValue(f FieldDefinition, v any) error {
	switch f.Type {
	case FieldText:
		if !isText(v) {
			return fmt.Errorf("expected text, got %T", v)
		}
	case FieldTextArray:
		if !isTextArray(v) {
			return fmt.Errorf("expected array of text, got %T", v)
		}
	case FieldNumber:
		if !isNumber(v) {
			return fmt.Errorf("expected number, got %T", v)
		}
	case FieldPage:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("expected page id, got %T", v)
		}
	case FieldEnum:
		for _, opt := range f.Options {
			if valueEqual(opt, v) {
				return nil
			}
		}
		return fmt.Errorf("value is not one of the enum options")
	default:
		return fmt.Errorf("unknown field type %q", f.Type)
	}
	return nil
}

func isText(v any) bool {
	switch t := v.(type) {
	case string, domain.Localized, map[string]string:
		return true
	case map[string]any:
		for _, s := range t {
			if _, ok := s.(string); !ok {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func isTextArray(v any) bool {
	switch t := v.(type) {
	case []string, []domain.Localized:
		return true
	case []any:
		for _, item := range t {
			if !isText(item) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		return false
	}
}

// valueEqual compares two JSON-shaped values by their encoded form, so a
// domain.Localized equals the map[string]any decoded from storage.
func valueEqual(a, b any) bool {
	ab, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}
