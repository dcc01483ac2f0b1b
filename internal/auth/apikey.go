package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
)

// APIKeyScheme is the leading segment of every raw API key.
const APIKeyScheme = "hdk"

const (
	apiKeyPrefixBytes = 4
	apiKeySecretBytes = 24
)

// ErrMalformedAPIKey is returned for keys not shaped like hdk_<prefix>_<secret>.
var ErrMalformedAPIKey = errors.New("malformed api key")

// GeneratedAPIKey is a freshly minted key. Raw is shown to the caller once.
type GeneratedAPIKey struct {
	Raw    string
	Prefix string
	Hash   string
}

// GenerateAPIKey mints a new random key.
func GenerateAPIKey() (GeneratedAPIKey, error) {
	prefix := make([]byte, apiKeyPrefixBytes)
	if _, err := rand.Read(prefix); err != nil {
		return GeneratedAPIKey{}, err
	}
	secret := make([]byte, apiKeySecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return GeneratedAPIKey{}, err
	}
	p := hex.EncodeToString(prefix)
	raw := APIKeyScheme + "_" + p + "_" + hex.EncodeToString(secret)
	return GeneratedAPIKey{Raw: raw, Prefix: p, Hash: HashToken(raw)}, nil
}

// ParseAPIKeyPrefix extracts the lookup prefix of a raw key.
func ParseAPIKeyPrefix(raw string) (string, error) {
	parts := strings.Split(strings.TrimSpace(raw), "_")
	if len(parts) != 3 || parts[0] != APIKeyScheme || parts[1] == "" || parts[2] == "" {
		return "", ErrMalformedAPIKey
	}
	return parts[1], nil
}

// VerifyAPIKey compares a raw key against the stored hash in constant time.
func VerifyAPIKey(raw, storedHash string) bool {
	computed := HashToken(strings.TrimSpace(raw))
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}
