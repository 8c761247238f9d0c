// Package resource describes resource kinds and the records stored for them.
package resource

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// FieldType is the storage and wire type of a field.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeFloat  FieldType = "float"
	TypeInt    FieldType = "int"
	TypeBool   FieldType = "bool"
)

func (t FieldType) valid() bool {
	switch t {
	case TypeString, TypeFloat, TypeInt, TypeBool:
		return true
	}
	return false
}

// Field is one business field of a kind.
// Rules use validator tag syntax, e.g. "required,min=2". Messages maps a
// rule tag to the text reported when that rule fails.
type Field struct {
	Name     string
	Type     FieldType
	Rules    string
	Messages map[string]string
}

// Kind is the schema of one resource class.
type Kind struct {
	Name   string // singular, used in messages ("Book")
	Route  string // plural path segment ("books")
	Table  string
	Fields []Field
}

var (
	identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
	routeRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)
)

var ErrInvalidKind = errors.New("invalid resource kind")

// Validate checks the kind definition itself, not a record.
func (k *Kind) Validate() error {
	if strings.TrimSpace(k.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidKind)
	}
	if !routeRe.MatchString(k.Route) {
		return fmt.Errorf("%w: %s: route %q must be lowercase letters, digits, '-' or '_'", ErrInvalidKind, k.Name, k.Route)
	}
	if !identRe.MatchString(k.Table) {
		return fmt.Errorf("%w: %s: table %q is not a valid identifier", ErrInvalidKind, k.Name, k.Table)
	}
	if len(k.Fields) == 0 {
		return fmt.Errorf("%w: %s: at least one field is required", ErrInvalidKind, k.Name)
	}
	seen := make(map[string]struct{}, len(k.Fields))
	for _, f := range k.Fields {
		if !identRe.MatchString(f.Name) || f.Name == "id" {
			return fmt.Errorf("%w: %s: invalid field name %q", ErrInvalidKind, k.Name, f.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("%w: %s: duplicate field %q", ErrInvalidKind, k.Name, f.Name)
		}
		seen[f.Name] = struct{}{}
		if !f.Type.valid() {
			return fmt.Errorf("%w: %s.%s: unknown field type %q", ErrInvalidKind, k.Name, f.Name, f.Type)
		}
		if err := checkRules(f); err != nil {
			return fmt.Errorf("%w: %s.%s: %v", ErrInvalidKind, k.Name, f.Name, err)
		}
	}
	return nil
}

// Field returns the named field.
func (k *Kind) Field(name string) (Field, bool) {
	for _, f := range k.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldNames returns the field names in declared order.
func (k *Kind) FieldNames() []string {
	names := make([]string, len(k.Fields))
	for i, f := range k.Fields {
		names[i] = f.Name
	}
	return names
}

// New returns a transient record holding the zero value of every field.
func (k *Kind) New() Record {
	r := Record{Fields: make([]FieldValue, len(k.Fields))}
	for i, f := range k.Fields {
		r.Fields[i] = FieldValue{Name: f.Name, Value: f.Type.zero()}
	}
	return r
}

// NotFoundMessage is the caller-facing text for a missing record.
func (k *Kind) NotFoundMessage(id int64) string {
	return fmt.Sprintf("%s with ID %d not found", k.Name, id)
}

// DeletedMessage is the caller-facing text for a successful delete.
func (k *Kind) DeletedMessage(id int64) string {
	return fmt.Sprintf("%s with ID %d deleted successfully", k.Name, id)
}

// Noun returns the lower-case singular name ("book").
func (k *Kind) Noun() string { return strings.ToLower(k.Name) }

func (t FieldType) zero() any {
	switch t {
	case TypeFloat:
		return float64(0)
	case TypeInt:
		return int64(0)
	case TypeBool:
		return false
	default:
		return ""
	}
}
