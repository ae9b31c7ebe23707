package logging

import (
	"encoding/json"
	"strings"
)

// RedactionMarker replaces the value of any field whose key looks sensitive.
const RedactionMarker = "[REDACTED]"

// TruncationMarker is appended to string values cut at MaxStringLength.
const TruncationMarker = "...[TRUNCATED]"

// MaxStringLength caps string values (raw HTTP bodies and the like) before
// emission.
const MaxStringLength = 1000

// sensitiveSubstrings are matched against the lowercase form of every map
// key. A key containing any of them has its value replaced wholesale.
var sensitiveSubstrings = []string{
	"authorization",
	"apikey",
	"accesstoken",
	"token",
	"password",
	"secret",
	"key",
}

// Redact deep-clones v and replaces the value of every sensitive key,
// recursively through nested maps and slices. It never fails: values that
// cannot be cloned through JSON (cycles, channels) are replaced with their
// string form, and non-container values pass through unchanged apart from
// truncation.
func Redact(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return truncate(val)
	case error:
		return truncate(val.Error())
	case bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return val
	case map[string]interface{}:
		return redactMap(val)
	case []interface{}:
		return redactSlice(val)
	default:
		// Structs and typed maps go through a JSON round trip so nested
		// sensitive keys are still caught.
		cloned, ok := jsonClone(val)
		if !ok {
			return truncate(stringify(val))
		}
		return Redact(cloned)
	}
}

// RedactFields applies Redact to every field value.
func RedactFields(fields []Field) []Field {
	if len(fields) == 0 {
		return fields
	}
	out := make([]Field, len(fields))
	for i, f := range fields {
		if isSensitiveKey(f.Key) {
			out[i] = Field{Key: f.Key, Value: RedactionMarker}
			continue
		}
		out[i] = Field{Key: f.Key, Value: Redact(f.Value)}
	}
	return out
}

func redactMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if isSensitiveKey(k) {
			out[k] = RedactionMarker
			continue
		}
		out[k] = Redact(v)
	}
	return out
}

func redactSlice(s []interface{}) []interface{} {
	out := make([]interface{}, len(s))
	for i, v := range s {
		out[i] = Redact(v)
	}
	return out
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveSubstrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

func truncate(s string) string {
	if len(s) <= MaxStringLength {
		return s
	}
	return s[:MaxStringLength] + TruncationMarker
}

// jsonClone converts a value to plain maps/slices via JSON. Cyclic input
// fails to marshal and reports ok=false.
func jsonClone(v interface{}) (interface{}, bool) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false
	}
	return out, true
}

func stringify(v interface{}) string {
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "<unloggable>"
	}
	return string(data)
}
