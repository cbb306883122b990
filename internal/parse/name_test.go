package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMachineName(t *testing.T) {
	testCases := []struct {
		name     string
		code     string
		expected string
	}{
		{name: "Prefix and number", code: "SVN-12", expected: "#12"},
		{name: "Leading zeros", code: "SVN-007", expected: "#7"},
		{name: "Extra segments", code: "SVN-3-B", expected: "#3"},
		{name: "Surrounding spaces", code: "  SVN-4 ", expected: "#4"},
		{name: "Non numeric suffix", code: "SVN-A1", expected: "SVN-A1"},
		{name: "Mixed suffix", code: "SVN-12A", expected: "SVN-12A"},
		{name: "No dash", code: "PRESS01", expected: "PRESS01"},
		{name: "Empty", code: "", expected: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, MachineName(tc.code))
		})
	}
}
