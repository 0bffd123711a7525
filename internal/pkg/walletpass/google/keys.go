package google

import (
	"crypto/rsa"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// NormalizePrivateKey undoes the "\n" escaping keys get when they are stored
// in a single-line environment variable.
func NormalizePrivateKey(raw string) string {
	key := strings.TrimSpace(raw)
	key = strings.Trim(key, `"`)
	return strings.ReplaceAll(key, `\n`, "\n")
}

// ParsePrivateKey parses a PEM encoded RSA key (PKCS#1 or PKCS#8).
func ParsePrivateKey(raw string) (*rsa.PrivateKey, error) {
	key := NormalizePrivateKey(raw)
	if !strings.Contains(key, "-----BEGIN") || !strings.Contains(key, "PRIVATE KEY-----") {
		return nil, ErrInvalidPrivateKey
	}

	parsed, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(key))
	if err != nil {
		return nil, ErrInvalidPrivateKey
	}
	return parsed, nil
}
