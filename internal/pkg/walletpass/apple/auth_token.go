package apple

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"io"

	"golang.org/x/crypto/hkdf"
)

const authTokenInfo = "rewardjar/passkit-auth/v1"

// AuthTokens derives the per-pass authentication token devices echo back in
// "Authorization: ApplePass <token>". Tokens are derived from the serial so
// nothing extra has to be stored.
type AuthTokens struct {
	secret []byte
}

func NewAuthTokens(secret string) *AuthTokens {
	return &AuthTokens{secret: []byte(secret)}
}

// Enabled reports whether a secret is configured.
func (a *AuthTokens) Enabled() bool {
	return a != nil && len(a.secret) > 0
}

// Token returns the token for serial, or "" when no secret is configured.
func (a *AuthTokens) Token(serial string) string {
	if !a.Enabled() {
		return ""
	}
	r := hkdf.New(sha256.New, a.secret, []byte(serial), []byte(authTokenInfo))
	buf := make([]byte, 24)
	if _, err := io.ReadFull(r, buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}

// Verify compares token against the expected token in constant time.
func (a *AuthTokens) Verify(serial, token string) bool {
	expected := a.Token(serial)
	if expected == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(token)) == 1
}
