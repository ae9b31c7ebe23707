package logging

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedact_SensitiveKeys(t *testing.T) {
	input := map[string]interface{}{
		"email":         "user@example.com",
		"apiKey":        "sk-12345",
		"Authorization": "Bearer abc",
		"access_token":  "tok",
		"password":      "hunter2",
		"clientSecret":  "shh",
		"name":          "Jane",
	}

	result := Redact(input).(map[string]interface{})

	assert.Equal(t, "user@example.com", result["email"])
	assert.Equal(t, "Jane", result["name"])
	assert.Equal(t, RedactionMarker, result["apiKey"])
	assert.Equal(t, RedactionMarker, result["Authorization"])
	assert.Equal(t, RedactionMarker, result["access_token"])
	assert.Equal(t, RedactionMarker, result["password"])
	assert.Equal(t, RedactionMarker, result["clientSecret"])
}

func TestRedact_NestedObjects(t *testing.T) {
	input := map[string]interface{}{
		"request": map[string]interface{}{
			"headers": map[string]interface{}{
				"Authorization": "Bearer abc",
				"Content-Type":  "application/json",
			},
		},
		"items": []interface{}{
			map[string]interface{}{"token": "t1", "id": float64(1)},
		},
	}

	result := Redact(input).(map[string]interface{})
	headers := result["request"].(map[string]interface{})["headers"].(map[string]interface{})
	assert.Equal(t, RedactionMarker, headers["Authorization"])
	assert.Equal(t, "application/json", headers["Content-Type"])

	item := result["items"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, RedactionMarker, item["token"])
	assert.Equal(t, float64(1), item["id"])
}

func TestRedact_NonObjectPassthrough(t *testing.T) {
	assert.Equal(t, "plain string", Redact("plain string"))
	assert.Equal(t, 42, Redact(42))
	assert.Nil(t, Redact(nil))
}

func TestRedact_DoesNotMutateInput(t *testing.T) {
	input := map[string]interface{}{"apiKey": "secret-value"}

	_ = Redact(input)

	assert.Equal(t, "secret-value", input["apiKey"])
}

func TestRedact_TruncatesLongStrings(t *testing.T) {
	long := strings.Repeat("a", MaxStringLength+500)
	input := map[string]interface{}{"body": long}

	result := Redact(input).(map[string]interface{})
	value := result["body"].(string)

	assert.True(t, strings.HasSuffix(value, TruncationMarker))
	assert.Less(t, len(value), len(long))
}

func TestRedactFields(t *testing.T) {
	fields := []Field{
		{Key: "api_key", Value: "secret"},
		{Key: "payload", Value: map[string]interface{}{"token": "t"}},
		{Key: "count", Value: 3},
	}

	redacted := RedactFields(fields)

	assert.Equal(t, RedactionMarker, redacted[0].Value)
	payload := redacted[1].Value.(map[string]interface{})
	assert.Equal(t, RedactionMarker, payload["token"])
	assert.Equal(t, 3, redacted[2].Value)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLevel("WARNING"))
	assert.Equal(t, ErrorLevel, ParseLevel("error"))
	assert.Equal(t, InfoLevel, ParseLevel(""))
	assert.Equal(t, InfoLevel, ParseLevel("bogus"))
}
