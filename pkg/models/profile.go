package models

import (
	"fmt"
	"strconv"
)

// FieldKind is the value type of a profile field.
type FieldKind string

const (
	FieldKindEnum       FieldKind = "enum"
	FieldKindString     FieldKind = "string"
	FieldKindNumber     FieldKind = "number"
	FieldKindStringList FieldKind = "string_list"
)

// FieldSpec declares a profile field: its kind and, for enum fields,
// the closed set of valid values.
type FieldSpec struct {
	Name     string    `yaml:"name" json:"name"`
	Kind     FieldKind `yaml:"kind" json:"kind"`
	Domain   []string  `yaml:"domain,omitempty" json:"domain,omitempty"`
	Required bool      `yaml:"required" json:"required"`
	Prompt   string    `yaml:"prompt,omitempty" json:"prompt,omitempty"`
}

// Validate checks a candidate value against the field's declared domain.
// A nil value is always invalid; callers represent "unset" by omission.
func (f FieldSpec) Validate(value any) error {
	if value == nil {
		return fmt.Errorf("field %s: nil value", f.Name)
	}
	switch f.Kind {
	case FieldKindEnum:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("field %s: expected string, got %T", f.Name, value)
		}
		for _, allowed := range f.Domain {
			if s == allowed {
				return nil
			}
		}
		return fmt.Errorf("field %s: value %q outside domain %v", f.Name, s, f.Domain)
	case FieldKindNumber:
		switch v := value.(type) {
		case float64, int, int64, float32:
			return nil
		case string:
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				return fmt.Errorf("field %s: %q is not numeric", f.Name, v)
			}
			return nil
		default:
			return fmt.Errorf("field %s: expected number, got %T", f.Name, value)
		}
	case FieldKindStringList:
		switch v := value.(type) {
		case []string:
			if len(v) == 0 {
				return fmt.Errorf("field %s: empty list", f.Name)
			}
			return nil
		case []any:
			if len(v) == 0 {
				return fmt.Errorf("field %s: empty list", f.Name)
			}
			for _, item := range v {
				if _, ok := item.(string); !ok {
					return fmt.Errorf("field %s: list item %T is not a string", f.Name, item)
				}
			}
			return nil
		default:
			return fmt.Errorf("field %s: expected string list, got %T", f.Name, value)
		}
	case FieldKindString:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("field %s: expected string, got %T", f.Name, value)
		}
		if s == "" {
			return fmt.Errorf("field %s: empty string", f.Name)
		}
		return nil
	default:
		return fmt.Errorf("field %s: unknown kind %q", f.Name, f.Kind)
	}
}

// Profile holds the collected user attributes. Fields absent from Values
// are "unset". Deferred lists fields the user explicitly skipped; the
// pipeline proceeds but synthesis must flag them.
type Profile struct {
	UserID   string         `json:"user_id"`
	Values   map[string]any `json:"values"`
	Deferred []string       `json:"deferred,omitempty"`
}

// NewProfile returns an empty profile for the given user.
func NewProfile(userID string) *Profile {
	return &Profile{UserID: userID, Values: make(map[string]any)}
}

// IsSet reports whether the named field holds a value.
func (p *Profile) IsSet(name string) bool {
	if p == nil || p.Values == nil {
		return false
	}
	v, ok := p.Values[name]
	if !ok || v == nil {
		return false
	}
	if s, isStr := v.(string); isStr && s == "" {
		return false
	}
	return true
}

// IsDeferred reports whether the user explicitly skipped the named field.
func (p *Profile) IsDeferred(name string) bool {
	for _, d := range p.Deferred {
		if d == name {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to hand across goroutine boundaries.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	out := &Profile{UserID: p.UserID, Values: make(map[string]any, len(p.Values))}
	for k, v := range p.Values {
		out.Values[k] = v
	}
	out.Deferred = append(out.Deferred, p.Deferred...)
	return out
}
