package definitions

import (
	"fmt"

	"github.com/tiendc/go-deepcopy"

	"pagewright/internal/domain"
)

// PropertyError reports a stored property value that does not match its field.
type PropertyError struct {
	Group  string
	Field  string
	Reason string
}

func (e PropertyError) Error() string {
	return fmt.Sprintf("properties.%s.%s: %s", e.Group, e.Field, e.Reason)
}

// Sync projects stored properties onto a definition. Every declared field is
// present in the result, taking the stored value when it is set and the
// field default otherwise. Undeclared groups and fields are dropped. The
// result shares no memory with stored or def.
func Sync(stored domain.Properties, def PageDefinition) domain.Properties {
	raw := make(domain.Properties, len(def.Properties))
	for groupKey, group := range def.Properties {
		fields := make(map[string]any, len(group.Fields))
		storedGroup := stored[groupKey]
		for fieldKey, field := range group.Fields {
			v, ok := storedGroup[fieldKey]
			if !ok || v == nil {
				v = field.DefaultValue
			}
			fields[fieldKey] = v
		}
		raw[groupKey] = fields
	}
	var out domain.Properties
	if err := deepcopy.Copy(&out, &raw); err != nil {
		// same source and destination types; not reachable
		panic(fmt.Sprintf("definitions: copy synced properties: %v", err))
	}
	if out == nil {
		out = domain.Properties{}
	}
	return out
}

// SyncPage returns the page with its properties synced against def.
func SyncPage(p domain.Page, def PageDefinition) domain.Page {
	p.Content.Properties = Sync(p.Content.Properties, def)
	if p.Content.Blocks == nil {
		p.Content.Blocks = []domain.Block{}
	}
	return p
}

// ValidateProperties checks that every declared field holding a value has
// the shape of its type. Undeclared fields are accepted; Sync drops them.
func ValidateProperties(props domain.Properties, def PageDefinition) error {
	for _, groupKey := range sortedKeys(props) {
		group, ok := def.Properties[groupKey]
		if !ok {
			continue
		}
		values := props[groupKey]
		for _, fieldKey := range sortedKeys(values) {
			field, ok := group.Fields[fieldKey]
			v := values[fieldKey]
			if !ok || v == nil {
				continue
			}
			if err := checkValue(field, v); err != nil {
				return PropertyError{Group: groupKey, Field: fieldKey, Reason: err.Error()}
			}
		}
	}
	return nil
}

// PageRef is a non-empty page reference held by a page field.
type PageRef struct {
	Group        string
	Field        string
	PageID       string
	AllowedTypes []string
}

// PageRefs lists the page references set in props, in stable order.
func PageRefs(props domain.Properties, def PageDefinition) []PageRef {
	var refs []PageRef
	for _, groupKey := range sortedKeys(def.Properties) {
		group := def.Properties[groupKey]
		for _, fieldKey := range sortedKeys(group.Fields) {
			field := group.Fields[fieldKey]
			if field.Type != FieldPage {
				continue
			}
			id, _ := props[groupKey][fieldKey].(string)
			if id == "" {
				continue
			}
			refs = append(refs, PageRef{
				Group:        groupKey,
				Field:        fieldKey,
				PageID:       id,
				AllowedTypes: field.AllowedPageTypes,
			})
		}
	}
	return refs
}
