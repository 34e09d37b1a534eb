package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	keyPrefix     = "sk"
	keyVersion    = "v1"
	secretIDLen   = 32
	randomDataLen = 64
)

// ParseAPIKey extracts secret_id and random_data from an API key.
// Format: sk-v1-<secret_id>-<random_data>, both parts lowercase hex.
func ParseAPIKey(key string) (secretID, randomData string, err error) {
	parts := strings.Split(key, "-")
	if len(parts) != 4 || parts[0] != keyPrefix || parts[1] != keyVersion {
		return "", "", ErrInvalidKeyFormat
	}

	secretID, randomData = parts[2], parts[3]
	if len(secretID) != secretIDLen || len(randomData) != randomDataLen {
		return "", "", ErrInvalidKeyFormat
	}
	if !isLowerHex(secretID) || !isLowerHex(randomData) {
		return "", "", ErrInvalidKeyFormat
	}

	return secretID, randomData, nil
}

func isLowerHex(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}

// ComputeHMAC computes the HMAC-SHA256 of apiKey under secret.
func ComputeHMAC(secret []byte, apiKey string) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(apiKey))
	return h.Sum(nil)
}

// VerifyHMAC compares two hashes in constant time.
func VerifyHMAC(expectedHash, computedHash []byte) bool {
	return hmac.Equal(expectedHash, computedHash)
}

// FormatAPIKey constructs an API key from its components.
func FormatAPIKey(secretID, randomData string) string {
	return fmt.Sprintf("%s-%s-%s-%s", keyPrefix, keyVersion, secretID, randomData)
}

// GenerateAPIKey returns a new key bound to secretID with 256 random bits.
func GenerateAPIKey(secretID string) (string, error) {
	buf := make([]byte, randomDataLen/2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate key material: %w", err)
	}
	return FormatAPIKey(secretID, hex.EncodeToString(buf)), nil
}
