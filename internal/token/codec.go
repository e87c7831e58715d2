package token

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// AlgorithmES256 is the only algorithm issued or accepted.
const AlgorithmES256 = "ES256"

// Header is the JOSE header of a compact token.
type Header struct {
	Type      string `json:"typ"`
	Algorithm string `json:"alg"`
	KeyID     string `json:"kid"`
}

// Compact holds the three decoded segments of a compact token.
type Compact struct {
	Header    []byte
	Payload   []byte
	Signature []byte
}

// EncodeCompact serialises the segments as base64url without padding joined by '.'.
func EncodeCompact(c Compact) string {
	return encodeSegment(c.Header) + "." + encodeSegment(c.Payload) + "." + encodeSegment(c.Signature)
}

// DecodeCompact splits a compact token and decodes each segment. Segments must
// be canonical base64url: non-zero trailing bits are rejected so that every
// accepted token re-encodes to the same string. It performs no semantic
// validation.
func DecodeCompact(raw string) (Compact, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return Compact{}, fmt.Errorf("%w: expected 3 segments, got %d", ErrMalformedToken, len(parts))
	}

	segments := make([][]byte, len(parts))
	for i, part := range parts {
		decoded, err := segmentEncoding.DecodeString(part)
		if err != nil {
			return Compact{}, fmt.Errorf("%w: segment %d: %v", ErrMalformedToken, i, err)
		}
		segments[i] = decoded
	}

	return Compact{Header: segments[0], Payload: segments[1], Signature: segments[2]}, nil
}

// DecodeHeader reads the JOSE header of raw without checking its signature.
func DecodeHeader(raw string) (Header, error) {
	compact, err := DecodeCompact(raw)
	if err != nil {
		return Header{}, err
	}
	var header Header
	if err := json.Unmarshal(compact.Header, &header); err != nil {
		return Header{}, fmt.Errorf("%w: header: %v", ErrMalformedToken, err)
	}
	return header, nil
}

var segmentEncoding = base64.RawURLEncoding.Strict()

func encodeSegment(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}
