package keys

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

const pemPublicKeyType = "PUBLIC KEY"

// encodePublicKeyDER wraps a DER SubjectPublicKeyInfo in a PEM block.
func encodePublicKeyDER(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: pemPublicKeyType, Bytes: der})
}

func encodePublicKey(key *ecdsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}
	return encodePublicKeyDER(der), nil
}
