package oauth

import (
	"crypto/rand"
	"crypto/subtle"

	"golang.org/x/oauth2"
)

// NewState returns an unguessable value binding a callback to the browser
// that started the flow.
func NewState() string {
	return rand.Text()
}

// NewVerifier returns a fresh PKCE code verifier.
func NewVerifier() string {
	return oauth2.GenerateVerifier()
}

// StateMatches compares the state echoed by the provider with the one
// stored at the start of the flow. Empty values never match.
func StateMatches(stored, returned string) bool {
	if stored == "" || returned == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(returned)) == 1
}
