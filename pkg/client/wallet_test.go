package client

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsWalletAddress(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{
			name:     "valid base58 address",
			input:    "4k3Rv8oGSe6PJWCsfGuDLLVvBnrPfMyRaKZxwWt2fGh1",
			expected: true,
		},
		{
			name:     "too short",
			input:    "4k3Rv8oGSe6PJWCs",
			expected: false,
		},
		{
			name:     "too long",
			input:    strings.Repeat("a", 45),
			expected: false,
		},
		{
			name:     "contains zero",
			input:    "0k3Rv8oGSe6PJWCsfGuDLLVvBnrPfMyRaKZxwWt2fGh1",
			expected: false,
		},
		{
			name:     "contains capital O",
			input:    "Ok3Rv8oGSe6PJWCsfGuDLLVvBnrPfMyRaKZxwWt2fGh1",
			expected: false,
		},
		{
			name:     "contains capital I",
			input:    "Ik3Rv8oGSe6PJWCsfGuDLLVvBnrPfMyRaKZxwWt2fGh1",
			expected: false,
		},
		{
			name:     "contains lowercase l",
			input:    "lk3Rv8oGSe6PJWCsfGuDLLVvBnrPfMyRaKZxwWt2fGh1",
			expected: false,
		},
		{
			name:     "plain username",
			input:    "alice",
			expected: false,
		},
		{
			name:     "empty",
			input:    "",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsWalletAddress(tt.input))
		})
	}
}

func TestFormatWalletAddress(t *testing.T) {
	addr := "4k3Rv8oGSe6PJWCsfGuDLLVvBnrPfMyRaKZxwWt2fGh1"
	assert.Equal(t, "4k3R...fGh1", FormatWalletAddress(addr))

	// Non-addresses pass through untouched.
	assert.Equal(t, "alice", FormatWalletAddress("alice"))
	assert.Equal(t, "", FormatWalletAddress(""))
}
