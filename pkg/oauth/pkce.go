package oauth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/oauth2"
)

// GenerateCodeVerifier creates a cryptographically random PKCE code verifier
// (RFC 7636).
func GenerateCodeVerifier() string {
	return oauth2.GenerateVerifier()
}

// ChallengeFromVerifier derives the S256 code challenge for a verifier
// (RFC 7636).
func ChallengeFromVerifier(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// GenerateState creates a random CSRF state parameter.
func GenerateState() string {
	b := make([]byte, 32) // 32 bytes = 43 base64url chars
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms
		panic(fmt.Sprintf("failed to generate random state: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
