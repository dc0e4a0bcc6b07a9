// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	hexPattern    = `^[0-9a-f]+$`
	base62Pattern = `^[0-9a-zA-Z]+$`
	urlSafe       = `^[A-Za-z0-9_-]+$`
)

func TestGenerateID(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		id, err := GenerateID()
		require.NoError(t, err)
		assert.Len(t, id, 32)
		assert.Regexp(t, hexPattern, id)
		assert.NotContains(t, seen, id)
		seen[id] = struct{}{}
	}
}

func TestAdminKey(t *testing.T) {
	const pollID, salt = "7c1f0e9a", "admin-salt"
	key := GenerateAdminKey(pollID, salt)

	t.Run("shape", func(t *testing.T) {
		assert.Regexp(t, urlSafe, key, "no padding or reserved characters")
		assert.Equal(t, key, GenerateAdminKey(pollID, salt))
		assert.NotEqual(t, key, GenerateAdminKey(pollID+"x", salt))
		assert.NotEqual(t, key, GenerateAdminKey(pollID, salt+"x"))
		assert.NotEmpty(t, GenerateAdminKey("", ""))
	})

	tests := []struct {
		name   string
		pollID string
		key    string
		salt   string
		ok     bool
	}{
		{"valid", pollID, key, salt, true},
		{"wrong key", pollID, "wrong-key", salt, false},
		{"key for another poll", "other", key, salt, false},
		{"rotated salt", pollID, key, "rotated", false},
		{"empty key", pollID, "", salt, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAdminKey(tt.pollID, tt.key, tt.salt)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidAdminKey)
			}
		})
	}
}

func TestValidateSiteAdminToken(t *testing.T) {
	tests := []struct {
		name       string
		provided   string
		configured string
		wantErr    error
	}{
		{"matching token", "s3cret", "s3cret", nil},
		{"wrong token", "guess", "s3cret", ErrInvalidSiteAdminKey},
		{"empty token", "", "s3cret", ErrInvalidSiteAdminKey},
		{"not configured", "", "", ErrSiteAdminDisabled},
		{"not configured with token", "anything", "", ErrSiteAdminDisabled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSiteAdminToken(tt.provided, tt.configured)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestGenerateVoterToken(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		token, err := GenerateVoterToken()
		require.NoError(t, err)
		// 24 random bytes in unpadded base64
		assert.Len(t, token, 32)
		assert.Regexp(t, urlSafe, token)
		assert.NotContains(t, seen, token)
		seen[token] = struct{}{}
	}
}

func TestGenerateShareSlug(t *testing.T) {
	slug := GenerateShareSlug("poll-abc-123", "slug-salt")

	assert.Regexp(t, base62Pattern, slug)
	assert.LessOrEqual(t, len(slug), 11)
	assert.Equal(t, slug, GenerateShareSlug("poll-abc-123", "slug-salt"))
	assert.NotEqual(t, slug, GenerateShareSlug("poll-xyz-456", "slug-salt"))
	assert.NotEqual(t, slug, GenerateShareSlug("poll-abc-123", "other-salt"))
}

func TestBase62Encode(t *testing.T) {
	tests := []struct {
		input []byte
		want  string
	}{
		{[]byte{0, 0, 0, 0}, "0"},
		{[]byte{0, 0, 0, 1}, "1"},
		{[]byte{0, 0, 0, 10}, "a"},
		{[]byte{0, 0, 0, 61}, "Z"},
		{[]byte{0, 0, 0, 62}, "10"},
		{[]byte{0, 0, 1, 0}, "48"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, base62Encode(tt.input), "input %v", tt.input)
	}

	full := base62Encode([]byte{255, 255, 255, 255, 255, 255, 255, 255})
	assert.Len(t, full, 11)
	assert.Regexp(t, base62Pattern, full)
}

func TestHashIP(t *testing.T) {
	for _, ip := range []string{"192.168.1.1", "2001:0db8:85a3::8a2e:0370:7334", "127.0.0.1"} {
		hash := HashIP(ip, "ip-salt")
		assert.Len(t, hash, 16)
		assert.Regexp(t, hexPattern, hash)
		assert.Equal(t, hash, HashIP(ip, "ip-salt"))
	}

	assert.NotEqual(t, HashIP("192.168.1.1", "salt"), HashIP("192.168.1.2", "salt"))
	assert.NotEqual(t, HashIP("192.168.1.1", "salt1"), HashIP("192.168.1.1", "salt2"))
}

func TestInputsHash(t *testing.T) {
	h := InputsHash([]string{"a", "b"})

	assert.Len(t, h, 64)
	assert.Equal(t, h, InputsHash([]string{"a", "b"}))
	assert.NotEqual(t, h, InputsHash([]string{"ab"}), "ID boundaries are part of the hash")
	assert.NotEqual(t, h, InputsHash(nil))
}

func BenchmarkGenerateAdminKey(b *testing.B) {
	for i := 0; i < b.N; i++ {
		GenerateAdminKey("7c1f0e9a", "admin-salt")
	}
}

func BenchmarkGenerateShareSlug(b *testing.B) {
	for i := 0; i < b.N; i++ {
		GenerateShareSlug("7c1f0e9a", "slug-salt")
	}
}
