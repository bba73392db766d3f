// Package obscipher implements the two token-shaped transforms the OBS
// portal ecosystem requires: the reversible password encoding the login
// form expects in txtParamT1, and the short-lived signed token that
// authorizes requests to the captcha solver.
package obscipher

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// the portal decodes this server side, so the encoding must match
// exactly. an incorrect encoding fails login with a generic error
// panel rather than anything diagnosable.
const shift = 3

// EncryptPassword applies the portal's password obfuscation: each byte
// shifted by a fixed offset, the sequence reversed, then base64.
func EncryptPassword(plain string) string {
	raw := []byte(plain)
	out := make([]byte, len(raw))
	for i, b := range raw {
		out[len(raw)-1-i] = b + shift
	}
	return base64.StdEncoding.EncodeToString(out)
}

// DecryptPassword inverts EncryptPassword. only used in tests, the raw
// password is never persisted.
func DecryptPassword(cipherText string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(cipherText)
	if err != nil {
		return "", fmt.Errorf("decode password cipher: %w", err)
	}
	out := make([]byte, len(raw))
	for i, b := range raw {
		out[len(raw)-1-i] = b - shift
	}
	return string(out), nil
}

var MissingSecret = fmt.Errorf("solver token secret is empty")

// SignSolverToken produces an HS256 token with a short expiry used to
// authorize a single captcha-solve request.
func SignSolverToken(secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", MissingSecret
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign solver token: %w", err)
	}
	return signed, nil
}
