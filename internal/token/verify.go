package token

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"

	jwt "github.com/golang-jwt/jwt/v5"
)

// claimsPointer constrains Verify to pointer claim types that golang-jwt can
// decode into.
type claimsPointer[T any] interface {
	*T
	jwt.Claims
}

// ParsePublicKey decodes a PEM encoded P-256 public key.
func ParsePublicKey(pemBytes []byte) (*ecdsa.PublicKey, error) {
	key, err := jwt.ParseECPublicKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return key, nil
}

// Verify checks the ES256 signature of raw against key and decodes its claims
// into a T. Time based claims (exp, nbf, iat) are deliberately not validated;
// interpreting them is the caller's job.
func Verify[T any, PT claimsPointer[T]](raw string, key *ecdsa.PublicKey) (*T, error) {
	claims := PT(new(T))

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{AlgorithmES256}),
		jwt.WithoutClaimsValidation(),
		jwt.WithStrictDecoding(),
	)
	_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return key, nil
	})
	if err != nil {
		return nil, classifyParseError(err)
	}
	return (*T)(claims), nil
}

func classifyParseError(err error) error {
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &typeErr):
		return fmt.Errorf("%w: %s has wrong type", ErrInvalidClaims, typeErr.Field)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	default:
		// Signature mismatch, unexpected algorithm and unusable keys all
		// look the same to the caller.
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
}
