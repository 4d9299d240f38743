package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQRPayload(t *testing.T) {
	testCases := []struct {
		name      string
		code      string
		expected  string
		expectErr bool
	}{
		{name: "Standard code", code: "2021-00123", expected: "ATT-2021-00123"},
		{name: "Lower case and spaces", code: "  ab 1234 ", expected: "ATT-AB1234"},
		{name: "Too short", code: "A1", expectErr: true},
		{name: "Illegal characters", code: "2021/00123", expectErr: true},
		{name: "Empty", code: "", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			payload, err := QRPayload(tc.code)
			if tc.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expected, payload)
			}
		})
	}
}

func TestQRPayload_Deterministic(t *testing.T) {
	a, _ := QRPayload("2021-00123")
	b, _ := QRPayload("2021-00123")
	assert.Equal(t, a, b)
}

func TestDecodedText(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		expected  string
		expectErr bool
	}{
		{name: "Exact payload", raw: "ATT-2021-00123", expected: "ATT-2021-00123"},
		{name: "Trailing CRLF", raw: "ATT-2021-00123\r\n", expected: "ATT-2021-00123"},
		{name: "BOM prefix", raw: "\ufeffatt-2021-00123", expected: "ATT-2021-00123"},
		{name: "Bare code", raw: "2021-00123", expected: "ATT-2021-00123"},
		{name: "Whitespace only", raw: " \n ", expectErr: true},
		{name: "Prefix without code", raw: "ATT-", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodedText(tc.raw)
			if tc.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expected, got)
			}
		})
	}
}

func TestStudentCode(t *testing.T) {
	code, err := StudentCode("ATT-2021-00123")
	assert.NoError(t, err)
	assert.Equal(t, "2021-00123", code)
}
