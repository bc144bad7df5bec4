package schema

import (
	"math"
	"time"
)

// fields reads typed values out of a schemaless record and remembers which
// fields were present with the wrong shape.
type fields struct {
	doc map[string]any
	bad []string
}

func newFields(doc map[string]any) *fields {
	return &fields{doc: doc}
}

func (f *fields) fail(key string) {
	f.bad = append(f.bad, key)
}

func (f *fields) ok() bool {
	return len(f.bad) == 0
}

// str returns the string at key, or def when the key is absent or null.
func (f *fields) str(key, def string) string {
	v, present := f.doc[key]
	if !present || v == nil {
		return def
	}
	s, isStr := v.(string)
	if !isStr {
		f.fail(key)
		return def
	}
	return s
}

// firstStr returns the first of keys holding a string, for fields stored under two names.
func (f *fields) firstStr(keys ...string) string {
	for _, k := range keys {
		if v, present := f.doc[k]; present && v != nil {
			return f.str(k, "")
		}
	}
	return ""
}

func (f *fields) boolean(key string) bool {
	v, present := f.doc[key]
	if !present || v == nil {
		return false
	}
	b, isBool := v.(bool)
	if !isBool {
		f.fail(key)
	}
	return b
}

// integer accepts the numeric shapes produced by JSON, Firestore and Go callers.
// The second result is false when the key is absent or null.
func (f *fields) integer(key string) (int, bool) {
	v, present := f.doc[key]
	if !present || v == nil {
		return 0, false
	}
	n, isInt := toInt(v)
	if !isInt {
		f.fail(key)
		return 0, false
	}
	return n, true
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

// timestamp accepts time.Time or an RFC 3339 string. Absent yields the zero time.
func (f *fields) timestamp(key string) time.Time {
	v, present := f.doc[key]
	if !present || v == nil {
		return time.Time{}
	}
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			f.fail(key)
			return time.Time{}
		}
		return parsed
	}
	f.fail(key)
	return time.Time{}
}
