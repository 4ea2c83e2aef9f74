package rules

import (
	"maps"
	"slices"
)

// Well-known metadata keys.
const (
	// MetadataParentID is the parent entity (e.g. product attribute) a rule type filters by.
	MetadataParentID = "ParentId"
	// MetadataPrecision is the number of decimal places an aggregate is rounded to.
	MetadataPrecision = "Precision"
)

// Metadata is the extension bag of a descriptor. Well-known keys have typed
// accessors; plugins may attach custom keys through MetadataBuilder.Set.
// A Metadata value is read-only once built.
type Metadata struct {
	values map[string]any
}

// ParentID returns the ParentId entry and whether it was set.
func (m Metadata) ParentID() (int64, bool) {
	return m.Int64(MetadataParentID)
}

// Precision returns the Precision entry and whether it was set.
func (m Metadata) Precision() (int32, bool) {
	p, ok := m.Int64(MetadataPrecision)
	return int32(p), ok
}

// Value returns the raw entry for key.
func (m Metadata) Value(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Int64 returns an integer entry. Other integer widths are widened.
func (m Metadata) Int64(key string) (int64, bool) {
	switch v := m.values[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	default:
		return 0, false
	}
}

// String returns a string entry.
func (m Metadata) String(key string) (string, bool) {
	s, ok := m.values[key].(string)
	return s, ok
}

// Bool returns a boolean entry.
func (m Metadata) Bool(key string) (bool, bool) {
	b, ok := m.values[key].(bool)
	return b, ok
}

// Keys returns the entry keys in sorted order.
func (m Metadata) Keys() []string {
	return slices.Sorted(maps.Keys(m.values))
}

// Len returns the number of entries.
func (m Metadata) Len() int {
	return len(m.values)
}

// MetadataBuilder assembles a Metadata value.
type MetadataBuilder struct {
	values map[string]any
}

// NewMetadata starts an empty builder.
func NewMetadata() *MetadataBuilder {
	return &MetadataBuilder{values: make(map[string]any)}
}

// ParentID sets the ParentId entry.
func (b *MetadataBuilder) ParentID(id int64) *MetadataBuilder {
	b.values[MetadataParentID] = id
	return b
}

// Precision sets the Precision entry.
func (b *MetadataBuilder) Precision(places int32) *MetadataBuilder {
	b.values[MetadataPrecision] = int64(places)
	return b
}

// Set attaches a custom entry.
func (b *MetadataBuilder) Set(key string, value any) *MetadataBuilder {
	b.values[key] = value
	return b
}

// Build returns an immutable snapshot of the entries.
func (b *MetadataBuilder) Build() Metadata {
	return Metadata{values: maps.Clone(b.values)}
}
