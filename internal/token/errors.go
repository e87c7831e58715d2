package token

import "errors"

// Errors returned by the token engine. Callers match them with errors.Is;
// the wrapped message carries the detail for logs only.
var (
	ErrMalformedSignature = errors.New("token: malformed DER signature")
	ErrMalformedToken     = errors.New("token: malformed compact token")
	ErrInvalidClaims      = errors.New("token: invalid claims")
	ErrInvalidSignature   = errors.New("token: invalid signature")
	ErrSigningFailure     = errors.New("token: signing failed")
	ErrKeyNotFound        = errors.New("token: key not found")
	ErrMissingCredential  = errors.New("token: missing bearer credential")
	ErrUnknownKey         = errors.New("token: unknown signing key")
	ErrMalformedMethodARN = errors.New("token: malformed method ARN")
)

// IsRejection reports whether err means the presented credential should be
// treated as unauthenticated rather than as a server fault.
func IsRejection(err error) bool {
	for _, target := range []error{
		ErrMalformedToken,
		ErrInvalidClaims,
		ErrInvalidSignature,
		ErrMissingCredential,
		ErrUnknownKey,
		ErrKeyNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
