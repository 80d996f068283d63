package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndParseToken(t *testing.T) {
	secret := []byte("test-secret")

	token := SignToken(secret, 42)
	userID, ok := ParseToken(secret, token)

	require.True(t, ok)
	assert.Equal(t, int64(42), userID)
}

func TestParseToken_Invalid(t *testing.T) {
	secret := []byte("test-secret")
	valid := SignToken(secret, 42)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "no separator", token: "42"},
		{name: "empty id", token: ".abcdef"},
		{name: "tampered id", token: strings.Replace(valid, "42.", "43.", 1)},
		{name: "tampered signature", token: valid[:len(valid)-1] + "0"},
		{name: "wrong secret", token: SignToken([]byte("other-secret"), 42)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := ParseToken(secret, tt.token)
			assert.False(t, ok)
		})
	}
}
