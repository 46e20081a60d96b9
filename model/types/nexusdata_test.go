package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNexusData_WireForm(t *testing.T) {
	testCases := []struct {
		description string
		data        *NexusData
		expect      string
	}{
		{
			description: "inline single value",
			data:        NewInline(map[string]interface{}{"key": "value"}),
			expect:      `{"storage":[105,110,108,105,110,101],"one":[123,34,107,101,121,34,58,34,118,97,108,117,101,34,125],"many":[],"encryption_mode":0}`,
		},
		{
			description: "inline encrypted array",
			data: NewInlineEncrypted([]interface{}{
				map[string]interface{}{"key": "value"},
				map[string]interface{}{"key": "value"},
			}),
			expect: `{"storage":[105,110,108,105,110,101],"one":[],"many":[[123,34,107,101,121,34,58,34,118,97,108,117,101,34,125],[123,34,107,101,121,34,58,34,118,97,108,117,101,34,125]],"encryption_mode":1}`,
		},
		{
			description: "walrus single value",
			data:        NewWalrus(map[string]interface{}{"key": "value"}),
			expect:      `{"storage":[119,97,108,114,117,115],"one":[123,34,107,101,121,34,58,34,118,97,108,117,101,34,125],"many":[],"encryption_mode":0}`,
		},
	}

	for _, testCase := range testCases {
		serialized, err := json.Marshal(testCase.data)
		if !assert.Nil(t, err, testCase.description) {
			continue
		}
		assert.Equal(t, testCase.expect, string(serialized), testCase.description)

		var actual NexusData
		err = json.Unmarshal(serialized, &actual)
		if !assert.Nil(t, err, testCase.description) {
			continue
		}
		assert.Equal(t, testCase.data.Kind, actual.Kind, testCase.description)
		assert.Equal(t, testCase.data.Mode, actual.Mode, testCase.description)
	}
}

func TestNexusData_RoundTrip(t *testing.T) {
	testCases := []struct {
		description string
		data        *NexusData
		expect      interface{}
	}{
		{
			description: "single object",
			data:        NewInline(map[string]interface{}{"key": "value"}),
			expect:      map[string]interface{}{"key": "value"},
		},
		{
			description: "array of objects",
			data: NewWalrusEncrypted([]interface{}{
				map[string]interface{}{"a": json.Number("1")},
				map[string]interface{}{"b": json.Number("2")},
			}),
			expect: []interface{}{
				map[string]interface{}{"a": json.Number("1")},
				map[string]interface{}{"b": json.Number("2")},
			},
		},
		{
			description: "empty array",
			data:        NewInline([]interface{}{}),
			expect:      []interface{}{},
		},
		{
			description: "limited persistent mode",
			data:        &NexusData{Kind: StorageInline, Mode: EncryptionLimitedPersistent, Value: "x"},
			expect:      "x",
		},
	}

	for _, testCase := range testCases {
		serialized, err := json.Marshal(testCase.data)
		if !assert.Nil(t, err, testCase.description) {
			continue
		}
		var actual NexusData
		err = json.Unmarshal(serialized, &actual)
		if !assert.Nil(t, err, testCase.description) {
			continue
		}
		assert.Equal(t, testCase.expect, actual.Value, testCase.description)
		assert.Equal(t, testCase.data.Kind, actual.Kind, testCase.description)
		assert.Equal(t, testCase.data.Mode, actual.Mode, testCase.description)
	}
}

func TestNexusData_LargeNumberPrecision(t *testing.T) {
	large := "105792089237316195563853351929625371316844592863025172891227567439681422591090"
	data := NewInline(large)

	serialized, err := json.Marshal(data)
	assert.Nil(t, err)

	var actual NexusData
	err = json.Unmarshal(serialized, &actual)
	assert.Nil(t, err)
	assert.Equal(t, large, actual.Value)
}

func TestNexusData_DecodeFailures(t *testing.T) {
	testCases := []struct {
		description string
		input       string
	}{
		{
			description: "unknown storage tag",
			input:       `{"storage":[120],"one":[49],"many":[],"encryption_mode":0}`,
		},
		{
			description: "invalid encryption mode",
			input:       `{"storage":[105,110,108,105,110,101],"one":[49],"many":[],"encryption_mode":3}`,
		},
		{
			description: "malformed JSON payload",
			input:       `{"storage":[105,110,108,105,110,101],"one":[123],"many":[],"encryption_mode":0}`,
		},
		{
			description: "byte out of range",
			input:       `{"storage":[105,110,108,105,110,101],"one":[300],"many":[],"encryption_mode":0}`,
		},
	}

	for _, testCase := range testCases {
		var actual NexusData
		err := json.Unmarshal([]byte(testCase.input), &actual)
		assert.NotNil(t, err, testCase.description)
	}
}

func TestIsLargeNumber(t *testing.T) {
	testCases := []struct {
		description string
		input       string
		expect      bool
	}{
		{description: "short unsigned", input: "12345678901234567890", expect: false},
		{description: "21 digit unsigned", input: "123456789012345678901", expect: true},
		{description: "negative below threshold", input: "-12345678901234567890", expect: false},
		{description: "negative above threshold", input: "-123456789012345678901", expect: true},
		{description: "not a number", input: "12a45", expect: false},
		{description: "empty", input: "", expect: false},
		{description: "lone minus", input: "-", expect: false},
	}
	for _, testCase := range testCases {
		assert.Equal(t, testCase.expect, IsLargeNumber(testCase.input), testCase.description)
	}
}
