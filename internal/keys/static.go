package keys

import (
	"context"
	"fmt"
	"os"

	"github.com/spec-kit/entitlement-service/internal/token"
)

// StaticLookup serves public keys from a fixed table.
type StaticLookup map[string][]byte

// LoadStaticLookup pins the PEM public key at path to keyID. The key is
// parsed once so a bad file fails at startup rather than on first request.
func LoadStaticLookup(keyID, path string) (StaticLookup, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	if _, err := token.ParsePublicKey(content); err != nil {
		return nil, err
	}
	return StaticLookup{keyID: content}, nil
}

func (s StaticLookup) PublicKey(_ context.Context, keyID string) ([]byte, error) {
	pemBytes, ok := s[keyID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", token.ErrKeyNotFound, keyID)
	}
	return pemBytes, nil
}
