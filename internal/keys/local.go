package keys

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/entitlement-service/internal/token"
)

// LocalSigner signs with an EC private key held in process. It stands in
// for KMS in development and tests.
type LocalSigner struct {
	keyID     string
	key       *ecdsa.PrivateKey
	publicPEM []byte
}

// NewLocalSigner wraps key under keyID.
func NewLocalSigner(keyID string, key *ecdsa.PrivateKey) (*LocalSigner, error) {
	publicPEM, err := encodePublicKey(&key.PublicKey)
	if err != nil {
		return nil, err
	}
	return &LocalSigner{keyID: keyID, key: key, publicPEM: publicPEM}, nil
}

// LoadLocalSigner reads a PEM encoded EC private key (SEC 1 or PKCS #8).
func LoadLocalSigner(keyID, path string) (*LocalSigner, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signing key: %w", err)
	}
	key, err := jwt.ParseECPrivateKeyFromPEM(content)
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	return NewLocalSigner(keyID, key)
}

// Sign returns a DER encoded ES256 signature over message.
func (s *LocalSigner) Sign(ctx context.Context, keyID string, message []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if keyID != s.keyID {
		return nil, fmt.Errorf("%w: %s", token.ErrKeyNotFound, keyID)
	}
	digest := sha256.Sum256(message)
	return ecdsa.SignASN1(rand.Reader, s.key, digest[:])
}

// PublicKey serves the signer's own public key.
func (s *LocalSigner) PublicKey(ctx context.Context, keyID string) ([]byte, error) {
	if keyID != s.keyID {
		return nil, fmt.Errorf("%w: %s", token.ErrKeyNotFound, keyID)
	}
	return s.publicPEM, nil
}
