package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// IsLargeNumber reports whether s is a decimal integer outside the safe
// integer range: more than 20 digits unsigned, or more than 21 characters
// with a leading minus sign.
func IsLargeNumber(s string) bool {
	digits := s
	limit := 20
	if strings.HasPrefix(s, "-") {
		digits = s[1:]
		limit = 21
	}
	if digits == "" {
		return false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return false
		}
	}
	return len(s) > limit
}

// wrapLargeNumber trims the value and wraps u128/u256-range integers in JSON
// string quotes so their precision survives a JSON round-trip.
func wrapLargeNumber(value string) string {
	trimmed := strings.TrimSpace(value)
	if IsLargeNumber(trimmed) {
		return `"` + trimmed + `"`
	}
	return trimmed
}

// DecodeJSONBytes parses raw bytes as a single JSON value. Numbers decode as
// json.Number and large integers are preserved as JSON strings.
func DecodeJSONBytes(data []byte) (interface{}, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("invalid UTF-8 in data")
	}
	adjusted := wrapLargeNumber(string(data))
	decoder := json.NewDecoder(strings.NewReader(adjusted))
	decoder.UseNumber()
	var value interface{}
	if err := decoder.Decode(&value); err != nil {
		return nil, fmt.Errorf("malformed JSON: %w", err)
	}
	return value, nil
}

// EncodeJSONValue is the inverse of DecodeJSONBytes.
func EncodeJSONValue(value interface{}) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(value); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
