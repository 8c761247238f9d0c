package resource

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/loykin/curator/internal/apperr"
)

var validate = validator.New()

const msgNotObject = "Invalid input: request body must be a JSON object"

// DecodeJSON parses a request body and decodes it with Decode.
// Malformed input is an InvalidArgument error.
func (k *Kind) DecodeJSON(body []byte) (Record, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return Record{}, apperr.InvalidArgument("Invalid input: request body is required")
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil || raw == nil {
		return Record{}, apperr.InvalidArgument(msgNotObject)
	}
	// Exactly one value: trailing data makes the body malformed.
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Record{}, apperr.InvalidArgument(msgNotObject)
	}
	return k.Decode(raw)
}

// Decode builds a transient record from raw values and validates every
// field. Unknown keys and "id" are ignored, absent fields take their zero
// value, and strings are trimmed. All violations are reported together as a
// single ValidationFailure.
func (k *Kind) Decode(raw map[string]any) (Record, error) {
	rec := Record{Fields: make([]FieldValue, 0, len(k.Fields))}
	var msgs []string
	for _, f := range k.Fields {
		v, err := coerce(f, raw[f.Name])
		if err != nil {
			msgs = append(msgs, err.Error())
			rec.Fields = append(rec.Fields, FieldValue{Name: f.Name, Value: f.Type.zero()})
			continue
		}
		msgs = append(msgs, check(f, v)...)
		rec.Fields = append(rec.Fields, FieldValue{Name: f.Name, Value: v})
	}
	if len(msgs) > 0 {
		return Record{}, apperr.Validation(msgs)
	}
	return rec, nil
}

// Restore rebuilds a stored record from loosely typed values, such as a
// decoded JSON payload. No rules are checked.
func (k *Kind) Restore(id *int64, values map[string]any) (Record, error) {
	rec := Record{Fields: make([]FieldValue, len(k.Fields))}
	if id != nil {
		v := *id
		rec.ID = &v
	}
	for i, f := range k.Fields {
		v, err := coerce(f, values[f.Name])
		if err != nil {
			return Record{}, fmt.Errorf("restore %s: %w", k.Name, err)
		}
		rec.Fields[i] = FieldValue{Name: f.Name, Value: v}
	}
	return rec, nil
}

func coerce(f Field, v any) (any, error) {
	if v == nil {
		return f.Type.zero(), nil
	}
	switch f.Type {
	case TypeString:
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s), nil
		}
		return nil, fmt.Errorf("%s must be a string", f.Name)
	case TypeFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int64:
			return float64(n), nil
		case int:
			return float64(n), nil
		case json.Number:
			if x, err := n.Float64(); err == nil {
				return x, nil
			}
		}
		return nil, fmt.Errorf("%s must be a number", f.Name)
	case TypeInt:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case float64:
			if n == math.Trunc(n) && n >= math.MinInt64 && n < math.MaxInt64 {
				return int64(n), nil
			}
		case json.Number:
			if x, err := n.Int64(); err == nil {
				return x, nil
			}
		}
		return nil, fmt.Errorf("%s must be an integer", f.Name)
	case TypeBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("%s must be a boolean", f.Name)
	}
	return nil, fmt.Errorf("%s has unknown type %q", f.Name, f.Type)
}

func check(f Field, v any) []string {
	if f.Rules == "" {
		return nil
	}
	err := validate.Var(v, f.Rules)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{fmt.Sprintf("%s is invalid", f.Name)}
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if m, ok := f.Messages[fe.Tag()]; ok && m != "" {
			msgs = append(msgs, m)
			continue
		}
		msgs = append(msgs, defaultMessage(f, fe.Tag(), fe.Param()))
	}
	return msgs
}

func defaultMessage(f Field, tag, param string) string {
	text := f.Type == TypeString
	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", f.Name)
	case "min":
		if text {
			return fmt.Sprintf("%s must have at least %s characters", f.Name, param)
		}
		return fmt.Sprintf("%s must be at least %s", f.Name, param)
	case "max":
		if text {
			return fmt.Sprintf("%s must have at most %s characters", f.Name, param)
		}
		return fmt.Sprintf("%s must be at most %s", f.Name, param)
	case "len":
		if text {
			return fmt.Sprintf("%s must have exactly %s characters", f.Name, param)
		}
		return fmt.Sprintf("%s must be %s", f.Name, param)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", f.Name, param)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", f.Name, param)
	case "lt":
		return fmt.Sprintf("%s must be less than %s", f.Name, param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", f.Name, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", f.Name, param)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", f.Name)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", f.Name)
	}
	return fmt.Sprintf("%s failed the %q rule", f.Name, tag)
}

// checkRules rejects rule strings the validator cannot parse. The validator
// panics on unknown tags, so the check runs under recover.
func checkRules(f Field) (err error) {
	if f.Rules == "" {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid rules %q: %v", f.Rules, r)
		}
	}()
	_ = validate.Var(f.Type.zero(), f.Rules)
	return nil
}
