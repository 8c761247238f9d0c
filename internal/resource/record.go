package resource

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FieldValue is one named value of a record.
type FieldValue struct {
	Name  string
	Value any
}

// Record is an instance of a kind. ID is nil until the record is first
// saved. Fields keep the kind's declared order.
type Record struct {
	ID     *int64
	Fields []FieldValue
}

// Persisted reports whether the record has been assigned an identity.
func (r Record) Persisted() bool { return r.ID != nil }

// Get returns the value of the named field.
func (r Record) Get(name string) (any, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Set replaces the named field or appends it when absent.
func (r *Record) Set(name string, v any) {
	for i := range r.Fields {
		if r.Fields[i].Name == name {
			r.Fields[i].Value = v
			return
		}
	}
	r.Fields = append(r.Fields, FieldValue{Name: name, Value: v})
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	out := Record{Fields: make([]FieldValue, len(r.Fields))}
	copy(out.Fields, r.Fields)
	if r.ID != nil {
		id := *r.ID
		out.ID = &id
	}
	return out
}

// WithID returns a copy carrying the given identity.
func (r Record) WithID(id int64) Record {
	out := r.Clone()
	out.ID = &id
	return out
}

// WithoutID returns a transient copy.
func (r Record) WithoutID() Record {
	out := r.Clone()
	out.ID = nil
	return out
}

// Assign copies every business field of incoming onto a copy of r.
// The identity of r is kept; incoming.ID is ignored.
func (r Record) Assign(incoming Record) Record {
	out := r.Clone()
	for _, f := range incoming.Fields {
		out.Set(f.Name, f.Value)
	}
	return out
}

// Values returns the field values as a map, without the id.
func (r Record) Values() map[string]any {
	m := make(map[string]any, len(r.Fields))
	for _, f := range r.Fields {
		m[f.Name] = f.Value
	}
	return m
}

// MarshalJSON writes the id first and then the fields in declared order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"id":`)
	if r.ID == nil {
		buf.WriteString("null")
	} else {
		fmt.Fprintf(&buf, "%d", *r.ID)
	}
	for _, f := range r.Fields {
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		buf.WriteByte(',')
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object keeping key order. Integral numbers become
// int64, other numbers float64. It performs no schema checks; use
// Kind.Decode for input that must be validated.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("record: expected object, got %v", tok)
	}
	out := Record{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("record field %s: %w", key, err)
		}
		v = normalizeNumber(v)
		if key == "id" {
			switch id := v.(type) {
			case nil:
			case int64:
				out.ID = &id
			default:
				return fmt.Errorf("record: id must be an integer, got %v", v)
			}
			continue
		}
		out.Fields = append(out.Fields, FieldValue{Name: key, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = out
	return nil
}

func normalizeNumber(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
