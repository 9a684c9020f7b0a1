// Package schema declares request body shapes and validates decoded JSON
// against them. Validation always reports the complete list of field
// violations, not just the first, so clients can fix a payload in one round
// trip.
package schema

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// FieldError is one violation at a specific path ("title",
// "metadata.difficulty", "tags[2]").
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	if len(e) == 0 {
		return "valid"
	}
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fe.Path + ": " + fe.Message
	}
	return strings.Join(parts, "; ")
}

// Type validates one value. Parse returns the canonical value (coerced,
// trimmed, defaults applied) or the violations found.
type Type interface {
	Parse(path string, v any) (any, FieldErrors)

	optional() bool
	defaultValue() (any, bool)
}

type base struct {
	opt    bool
	def    any
	hasDef bool
}

func (b base) optional() bool            { return b.opt }
func (b base) defaultValue() (any, bool) { return b.def, b.hasDef }

func errAt(path, format string, args ...any) FieldErrors {
	return FieldErrors{{Path: path, Message: fmt.Sprintf(format, args...)}}
}

// StringType

type StringType struct {
	base
	minSet, maxSet bool
	min, max       int
	enum           []string
	url            bool
	trim           bool
}

func String() *StringType { return &StringType{} }

func (t *StringType) Min(n int) *StringType  { t.min, t.minSet = n, true; return t }
func (t *StringType) Max(n int) *StringType  { t.max, t.maxSet = n, true; return t }
func (t *StringType) Trim() *StringType      { t.trim = true; return t }
func (t *StringType) URL() *StringType       { t.url = true; return t }
func (t *StringType) Optional() *StringType  { t.opt = true; return t }
func (t *StringType) Enum(vals ...string) *StringType {
	t.enum = vals
	return t
}
func (t *StringType) Default(v string) *StringType {
	t.def, t.hasDef = v, true
	return t
}

func (t *StringType) Parse(path string, v any) (any, FieldErrors) {
	s, ok := v.(string)
	if !ok {
		return nil, errAt(path, "must be a string")
	}
	if t.trim {
		s = strings.TrimSpace(s)
	}
	if t.minSet && len(s) < t.min {
		return nil, errAt(path, "must be at least %d characters", t.min)
	}
	if t.maxSet && len(s) > t.max {
		return nil, errAt(path, "must be at most %d characters", t.max)
	}
	if len(t.enum) > 0 {
		found := false
		for _, e := range t.enum {
			if s == e {
				found = true
				break
			}
		}
		if !found {
			return nil, errAt(path, "must be one of: %s", strings.Join(t.enum, ", "))
		}
	}
	if t.url {
		u, err := url.Parse(s)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, errAt(path, "must be a valid URL")
		}
	}
	return s, nil
}

// NumberType

type NumberType struct {
	base
	minSet, maxSet bool
	min, max       float64
	coerce         bool
}

func Number() *NumberType { return &NumberType{} }

func (t *NumberType) Min(n float64) *NumberType { t.min, t.minSet = n, true; return t }
func (t *NumberType) Max(n float64) *NumberType { t.max, t.maxSet = n, true; return t }
func (t *NumberType) Optional() *NumberType     { t.opt = true; return t }

// Coerce additionally accepts numeric strings, the way query parameters
// arrive.
func (t *NumberType) Coerce() *NumberType { t.coerce = true; return t }

func (t *NumberType) Default(v float64) *NumberType {
	t.def, t.hasDef = v, true
	return t
}

func (t *NumberType) Parse(path string, v any) (any, FieldErrors) {
	var n float64
	switch x := v.(type) {
	case float64:
		n = x
	case int:
		n = float64(x)
	case string:
		if !t.coerce {
			return nil, errAt(path, "must be a number")
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil, errAt(path, "must be a number")
		}
		n = parsed
	default:
		return nil, errAt(path, "must be a number")
	}
	if t.minSet && n < t.min {
		return nil, errAt(path, "must be at least %v", t.min)
	}
	if t.maxSet && n > t.max {
		return nil, errAt(path, "must be at most %v", t.max)
	}
	return n, nil
}

// BoolType

type BoolType struct {
	base
}

func Bool() *BoolType { return &BoolType{} }

func (t *BoolType) Optional() *BoolType { t.opt = true; return t }
func (t *BoolType) Default(v bool) *BoolType {
	t.def, t.hasDef = v, true
	return t
}

func (t *BoolType) Parse(path string, v any) (any, FieldErrors) {
	b, ok := v.(bool)
	if !ok {
		return nil, errAt(path, "must be a boolean")
	}
	return b, nil
}

// ArrayType

type ArrayType struct {
	base
	elem Type
}

func Array(elem Type) *ArrayType { return &ArrayType{elem: elem} }

func (t *ArrayType) Optional() *ArrayType { t.opt = true; return t }

func (t *ArrayType) Parse(path string, v any) (any, FieldErrors) {
	arr, ok := v.([]any)
	if !ok {
		return nil, errAt(path, "must be an array")
	}
	out := make([]any, len(arr))
	var errs FieldErrors
	for i, e := range arr {
		parsed, elemErrs := t.elem.Parse(fmt.Sprintf("%s[%d]", path, i), e)
		if len(elemErrs) > 0 {
			errs = append(errs, elemErrs...)
			continue
		}
		out[i] = parsed
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}

// ObjectType

type ObjectType struct {
	base
	fields map[string]Type
}

func Object(fields map[string]Type) *ObjectType { return &ObjectType{fields: fields} }

func (t *ObjectType) Optional() *ObjectType { t.opt = true; return t }

func (t *ObjectType) Parse(path string, v any) (any, FieldErrors) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, errAt(path, "must be an object")
	}

	// deterministic error ordering
	names := make([]string, 0, len(t.fields))
	for name := range t.fields {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]any, len(t.fields))
	var errs FieldErrors
	for _, name := range names {
		field := t.fields[name]
		fieldPath := name
		if path != "" {
			fieldPath = path + "." + name
		}

		raw, present := m[name]
		if !present || raw == nil {
			if def, has := field.defaultValue(); has {
				out[name] = def
				continue
			}
			if field.optional() {
				continue
			}
			errs = append(errs, FieldError{Path: fieldPath, Message: "required"})
			continue
		}

		parsed, fieldErrs := field.Parse(fieldPath, raw)
		if len(fieldErrs) > 0 {
			errs = append(errs, fieldErrs...)
			continue
		}
		out[name] = parsed
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}

// Parse validates a decoded JSON value at the top level.
func Parse(t Type, v any) (any, FieldErrors) {
	return t.Parse("", v)
}
