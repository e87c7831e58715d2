package token

import (
	"context"
	"encoding/json"
	"fmt"
)

// Signer produces an ASN.1 DER ECDSA-SHA-256 signature over message. The
// signer hashes the message itself.
type Signer interface {
	Sign(ctx context.Context, keyID string, message []byte) ([]byte, error)
}

// MinterConfig configures a Minter.
type MinterConfig struct {
	KeyID string
}

// Minter issues compact ES256 tokens for entitlement windows.
type Minter struct {
	signer Signer
	keyID  string
}

// NewMinter builds a minter that signs with keyID through signer.
func NewMinter(signer Signer, cfg MinterConfig) *Minter {
	return &Minter{signer: signer, keyID: cfg.KeyID}
}

// KeyID returns the identifier placed in the kid header.
func (m *Minter) KeyID() string {
	return m.keyID
}

// Mint signs a token whose nbf and exp are the window bounds in whole seconds.
func (m *Minter) Mint(ctx context.Context, window EntitlementWindow) (string, error) {
	header, err := json.Marshal(Header{Type: "JWT", Algorithm: AlgorithmES256, KeyID: m.keyID})
	if err != nil {
		return "", fmt.Errorf("encode header: %w", err)
	}
	payload, err := json.Marshal(SessionClaims{
		Subject:   window.Identity,
		NotBefore: window.Start.Unix(),
		ExpiresAt: window.End.Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("encode claims: %w", err)
	}

	signingInput := encodeSegment(header) + "." + encodeSegment(payload)

	der, err := m.signer.Sign(ctx, m.keyID, []byte(signingInput))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigningFailure, err)
	}
	raw, err := TranscodeDERToRaw(der)
	if err != nil {
		return "", err
	}

	return signingInput + "." + encodeSegment(raw), nil
}
