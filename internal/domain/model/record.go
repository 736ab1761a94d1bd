package model

// Record is one JSON object decoded from the upstream API, kept verbatim.
// Domain fields are interpreted by callers, not by the client.
type Record map[string]any

// String returns the string stored at key, or "" if it is absent or not a string.
func (r Record) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// Int returns the numeric value stored at key as an int. Upstream numbers
// decode as float64.
func (r Record) Int(key string) (int, bool) {
	switch v := r[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	default:
		return 0, false
	}
}

// Object returns the nested object stored at key, or nil.
func (r Record) Object(key string) Record {
	switch v := r[key].(type) {
	case map[string]any:
		return Record(v)
	case Record:
		return v
	default:
		return nil
	}
}

// Records returns the array of objects stored at key. Non-object elements are
// skipped. The result is never nil.
func (r Record) Records(key string) []Record {
	return RecordsFrom(r[key])
}

// RecordsFrom converts a decoded JSON array into Records. Anything that is not
// an array yields an empty slice.
func RecordsFrom(v any) []Record {
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case []Record:
		return t
	default:
		return []Record{}
	}

	out := make([]Record, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, Record(obj))
		}
	}
	return out
}
