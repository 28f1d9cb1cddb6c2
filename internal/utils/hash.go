// Package utils holds small helpers shared by the auth layers.
package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"unicode/utf8"
)

// HashToken returns the SHA-256 hex digest of a bearer token. Refresh tokens
// are stored and looked up by this digest only, so a leaked table row cannot
// be replayed as a cookie.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// RandomString returns n bytes of crypto-random data encoded as unpadded
// URL-safe base64.
func RandomString(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Truncate returns s cut to at most n characters, dropping invalid UTF-8
// first. MySQL VARCHAR limits count characters, and a strict-mode utf8mb4
// column rejects a split rune.
func Truncate(s string, n int) string {
	s = strings.ToValidUTF8(s, "")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
