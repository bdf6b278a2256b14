package intake

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	ErrUnknownField   = errors.New("unknown field")
	ErrUnknownSection = errors.New("unknown section")
	ErrInvalidValue   = errors.New("invalid value")
)

// UploadedFile is the metadata of one stored document. Descriptors are
// appended and removed, never edited in place.
type UploadedFile struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// AnswerSet maps answer keys to values. It is persisted as one document.
type AnswerSet map[string]any

// Clone returns a copy safe to hand to another goroutine. Slice values are
// copied one level deep; answers are replaced wholesale, never mutated.
func (a AnswerSet) Clone() AnswerSet {
	out := make(AnswerSet, len(a))
	for k, v := range a {
		switch t := v.(type) {
		case []UploadedFile:
			out[k] = append([]UploadedFile(nil), t...)
		case []map[string]any:
			out[k] = append([]map[string]any(nil), t...)
		case []any:
			out[k] = append([]any(nil), t...)
		default:
			out[k] = v
		}
	}
	return out
}

// Files returns the documents attached to a section.
func (a AnswerSet) Files(sectionID string) []UploadedFile {
	return filesFrom(a[FilesKey(sectionID)])
}

// filesFrom accepts both the in-memory form and the JSON-decoded form.
func filesFrom(v any) []UploadedFile {
	switch t := v.(type) {
	case []UploadedFile:
		return t
	case []any:
		out := make([]UploadedFile, 0, len(t))
		for _, item := range t {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			f := UploadedFile{}
			f.Name, _ = m["name"].(string)
			f.Path, _ = m["path"].(string)
			if n, ok := toFloat(m["size"]); ok {
				f.Size = int64(n)
			}
			if f.Path != "" {
				out = append(out, f)
			}
		}
		return out
	}
	return nil
}

// StrictEqual compares two answer values without type coercion: "1" and 1
// differ, "A" and "a" differ. All numeric kinds compare as float64. Slices
// and maps are never equal.
func StrictEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	}
	return false
}

// Truthy reports whether v counts as present: non-empty strings, non-zero
// numbers, true, and any collection.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	}
	if f, ok := toFloat(v); ok {
		return f != 0 && !math.IsNaN(f)
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// Coerce converts a raw JSON-decoded value into the canonical representation
// for key: numbers and currency as float64, booleans as bool, dates as
// YYYY-MM-DD strings, file lists as []UploadedFile, groups as []map[string]any.
// An empty string clears a scalar answer and is kept as "".
func (s *Schema) Coerce(key string, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	if s.IsGatingID(key) {
		return coerceBool(key, raw)
	}
	if _, ok := s.FileSection(key); ok {
		return coerceFiles(key, raw)
	}
	f, ok := s.Field(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, key)
	}
	return coerceField(f, raw)
}

func coerceField(f FieldDefinition, raw any) (any, error) {
	switch f.Type {
	case FieldNumber, FieldCurrency:
		return coerceNumber(f.ID, raw)
	case FieldBoolean:
		return coerceBool(f.ID, raw)
	case FieldDate:
		s, ok := raw.(string)
		if !ok {
			return nil, invalid(f.ID, "expected date string")
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return "", nil
		}
		if _, err := time.Parse(time.DateOnly, s); err != nil {
			return nil, invalid(f.ID, "expected YYYY-MM-DD")
		}
		return s, nil
	case FieldSelect:
		s, ok := raw.(string)
		if !ok {
			return nil, invalid(f.ID, "expected string option")
		}
		if s == "" {
			return "", nil
		}
		for _, opt := range f.Options {
			if opt == s {
				return s, nil
			}
		}
		return nil, invalid(f.ID, fmt.Sprintf("%q is not an option", s))
	case FieldGroup:
		return coerceGroup(f, raw)
	default:
		s, ok := raw.(string)
		if !ok {
			return nil, invalid(f.ID, "expected string")
		}
		return s, nil
	}
}

func coerceNumber(key string, raw any) (any, error) {
	if f, ok := toFloat(raw); ok {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, invalid(key, "not a finite number")
		}
		return f, nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil, invalid(key, "expected number")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	s = strings.ReplaceAll(strings.TrimPrefix(s, "$"), ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, invalid(key, "expected number")
	}
	return f, nil
}

func coerceBool(key string, raw any) (any, error) {
	switch t := raw.(type) {
	case bool:
		return t, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes":
			return true, nil
		case "false", "no":
			return false, nil
		}
	}
	return nil, invalid(key, "expected boolean")
}

func coerceFiles(key string, raw any) (any, error) {
	switch t := raw.(type) {
	case []UploadedFile:
		return append([]UploadedFile(nil), t...), nil
	case []any:
		files := filesFrom(t)
		if len(files) != len(t) {
			return nil, invalid(key, "malformed file descriptor")
		}
		return files, nil
	}
	return nil, invalid(key, "expected file list")
}

func coerceGroup(f FieldDefinition, raw any) (any, error) {
	var rows []map[string]any
	switch t := raw.(type) {
	case []map[string]any:
		rows = t
	case []any:
		rows = make([]map[string]any, 0, len(t))
		for _, item := range t {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, invalid(f.ID, "expected list of records")
			}
			rows = append(rows, m)
		}
	default:
		return nil, invalid(f.ID, "expected list of records")
	}

	sub := make(map[string]FieldDefinition, len(f.Fields))
	for _, sf := range f.Fields {
		sub[sf.ID] = sf
	}
	out := make([]map[string]any, 0, len(rows))
	for i, row := range rows {
		rec := make(map[string]any, len(row))
		for k, v := range row {
			sf, ok := sub[k]
			if !ok {
				return nil, invalid(f.ID, fmt.Sprintf("row %d: unknown column %q", i, k))
			}
			if v == nil {
				continue
			}
			cv, err := coerceField(sf, v)
			if err != nil {
				return nil, fmt.Errorf("%s row %d: %w", f.ID, i, err)
			}
			rec[k] = cv
		}
		out = append(out, rec)
	}
	return out, nil
}

func invalid(key, msg string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidValue, key, msg)
}
