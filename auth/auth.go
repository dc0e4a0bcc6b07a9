// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrInvalidAdminKey     = errors.New("invalid admin key")
	ErrSiteAdminDisabled   = errors.New("site admin token not configured")
	ErrInvalidSiteAdminKey = errors.New("invalid site admin token")
)

const (
	voterTokenBytes = 24
	slugBytes       = 8
	ipHashBytes     = 8
	base62Alphabet  = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

var rawURL = base64.RawURLEncoding

func mac(salt, msg string) []byte {
	m := hmac.New(sha256.New, []byte(salt))
	m.Write([]byte(msg))
	return m.Sum(nil)
}

// GenerateID returns a 32-char hex record ID (a dashless v4 UUID).
func GenerateID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return strings.ReplaceAll(id.String(), "-", ""), nil
}

// GenerateAdminKey derives a poll's admin key. Nothing is stored; the key is
// recomputed on every admin request.
func GenerateAdminKey(pollID, salt string) string {
	return rawURL.EncodeToString(mac(salt, pollID))
}

func ValidateAdminKey(pollID, adminKey, salt string) error {
	if !hmac.Equal([]byte(adminKey), []byte(GenerateAdminKey(pollID, salt))) {
		return ErrInvalidAdminKey
	}
	return nil
}

// ValidateSiteAdminToken guards /admin. An empty configured token locks it.
func ValidateSiteAdminToken(provided, configured string) error {
	switch {
	case configured == "":
		return ErrSiteAdminDisabled
	case !hmac.Equal([]byte(provided), []byte(configured)):
		return ErrInvalidSiteAdminKey
	}
	return nil
}

// GenerateVoterToken mints the secret handed out with a username claim.
func GenerateVoterToken() (string, error) {
	b := make([]byte, voterTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate voter token: %w", err)
	}
	return rawURL.EncodeToString(b), nil
}

// GenerateShareSlug derives the public slug a published poll is reached by.
func GenerateShareSlug(pollID, salt string) string {
	return base62Encode(mac(salt, pollID)[:slugBytes])
}

// base62Encode reads up to the first 8 bytes as a big-endian uint64.
func base62Encode(data []byte) string {
	var n uint64
	for i := 0; i < len(data) && i < 8; i++ {
		n = n<<8 | uint64(data[i])
	}
	if n == 0 {
		return "0"
	}

	var buf [11]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = base62Alphabet[n%62]
		n /= 62
	}
	return string(buf[i:])
}

// HashIP returns a salted 16-hex-char digest; raw addresses are never stored.
func HashIP(ip, salt string) string {
	return hex.EncodeToString(mac(salt, ip)[:ipHashBytes])
}

// InputsHash fingerprints the set of ballots a result was computed from.
// ids must already be sorted.
func InputsHash(ids []string) string {
	h := sha256.New()
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
