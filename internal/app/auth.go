package app

import "crypto/subtle"

// Authenticator checks the API key header against the configured secret.
type Authenticator struct{ secret []byte }

func NewAuthenticator(secret string) Authenticator { return Authenticator{secret: []byte(secret)} }

// Authenticate is a constant-time comparison; an empty secret admits nobody.
func (a Authenticator) Authenticate(header string) bool {
	if len(a.secret) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(header), a.secret) == 1
}
