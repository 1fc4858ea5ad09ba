package registry

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"
)

// FieldKind is the wire-level kind of a component field.
type FieldKind uint8

const (
	KindAny FieldKind = iota
	KindNumber
	KindString
	KindBool
	KindObject
	KindArray
)

// FieldSchema describes one field of a component kind. Numeric bounds are
// inclusive; nil means unbounded.
type FieldSchema struct {
	Name     string
	Kind     FieldKind
	Required bool
	Min      *float64
	Max      *float64
}

// Schema carries everything the persistence layer needs to know about a
// component kind: structural validation, a default constructor for
// backward-compatibility synthesis, and an optional typed decode hook.
type Schema struct {
	Fields []FieldSchema

	// Default builds a fresh default-valued payload for this kind.
	// Kinds without a Default cannot be synthesized during load.
	Default func() map[string]any

	// Decode converts a validated raw payload into a typed value. When nil,
	// components of this kind stay as map[string]any after load.
	Decode func(raw json.RawMessage) (any, error)
}

// ComponentType is the descriptor bound to a type tag. It acts purely as a
// lookup key, never as a value container.
type ComponentType struct {
	Name   string
	schema *Schema
}

func (t *ComponentType) Schema() *Schema { return t.schema }

// Registry binds string tags to component kinds. Registering an existing tag
// returns the existing descriptor: two registrations with the same tag are the
// same type no matter where they were declared.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*ComponentType
}

func New() *Registry {
	return &Registry{types: make(map[string]*ComponentType)}
}

// Register binds name to a component kind. A nil schema registers a
// schemaless kind whose payloads pass validation untouched. Re-registering a
// name with a different schema is a caller bug and fails.
func (r *Registry) Register(name string, schema *Schema) (*ComponentType, error) {
	if name == "" {
		return nil, fmt.Errorf("registry: empty component type name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.types[name]; ok {
		if schema == nil || existing.schema == schema {
			return existing, nil
		}
		if existing.schema == nil {
			existing.schema = schema
			return existing, nil
		}
		return nil, fmt.Errorf("registry: component type %q already registered with a different schema", name)
	}
	t := &ComponentType{Name: name, schema: schema}
	r.types[name] = t
	return t, nil
}

// MustRegister is Register for package-level component declarations, where a
// conflict is unrecoverable.
func (r *Registry) MustRegister(name string, schema *Schema) *ComponentType {
	t, err := r.Register(name, schema)
	if err != nil {
		panic(err)
	}
	return t
}

func (r *Registry) Type(name string) (*ComponentType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

func (r *Registry) ListTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.types))
	for name := range r.types {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Validate checks a decoded payload against the schema: required fields
// present, field kinds matching, numeric values finite and in range.
// A nil schema accepts anything.
func (s *Schema) Validate(data map[string]any) error {
	if s == nil {
		return nil
	}
	for _, f := range s.Fields {
		value, present := data[f.Name]
		if !present {
			if f.Required {
				return fmt.Errorf("missing required field %q", f.Name)
			}
			continue
		}
		if err := f.validate(value); err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}
	}
	return nil
}

// DefaultValue builds the default payload for this kind, or nil when the kind
// declares no default.
func (s *Schema) DefaultValue() map[string]any {
	if s == nil || s.Default == nil {
		return nil
	}
	return s.Default()
}

func (f *FieldSchema) validate(value any) error {
	switch f.Kind {
	case KindAny:
		return nil
	case KindNumber:
		n, ok := asNumber(value)
		if !ok {
			return fmt.Errorf("expected number, got %T", value)
		}
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return fmt.Errorf("non-finite value %v", n)
		}
		if f.Min != nil && n < *f.Min {
			return fmt.Errorf("value %v below minimum %v", n, *f.Min)
		}
		if f.Max != nil && n > *f.Max {
			return fmt.Errorf("value %v above maximum %v", n, *f.Max)
		}
		return nil
	case KindString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
		return nil
	case KindBool:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected bool, got %T", value)
		}
		return nil
	case KindObject:
		if _, ok := value.(map[string]any); !ok {
			return fmt.Errorf("expected object, got %T", value)
		}
		return nil
	case KindArray:
		if _, ok := value.([]any); !ok {
			return fmt.Errorf("expected array, got %T", value)
		}
		return nil
	default:
		return fmt.Errorf("unknown field kind %d", f.Kind)
	}
}

// asNumber widens any Go numeric into float64. JSON payloads only carry
// float64, but in-memory defaults may use native int types.
func asNumber(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Bound is a convenience for inline Min/Max bounds in schema literals.
func Bound(v float64) *float64 { return &v }
