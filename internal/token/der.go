package token

import (
	"fmt"
	"math/big"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

const (
	derTagSequence = 0x30
	derTagInteger  = 0x02

	// derLongFormOneByte announces a single length byte after the prefix.
	derLongFormOneByte = 0x81

	minDERSignatureLen = 8

	// es256HalfWidth is the size of R and S for P-256.
	es256HalfWidth = 32
)

// derSignature is the parsed view of an ECDSA signature SEQUENCE. R and S
// hold the INTEGER contents exactly as encoded, sign padding included.
type derSignature struct {
	r []byte
	s []byte
}

// TranscodeDERToRaw converts an ASN.1 DER ECDSA signature into the fixed
// width R||S form used by compact tokens. The output is 64 bytes for P-256;
// integers wider than 32 significant bytes widen both halves instead of
// being truncated.
func TranscodeDERToRaw(der []byte) ([]byte, error) {
	sig, err := parseDERSignature(der)
	if err != nil {
		return nil, err
	}

	r := trimLeadingZeros(sig.r)
	s := trimLeadingZeros(sig.s)

	width := max(len(r), len(s), es256HalfWidth)
	raw := make([]byte, 2*width)
	copy(raw[width-len(r):width], r)
	copy(raw[2*width-len(s):], s)
	return raw, nil
}

// TranscodeRawToDER is the inverse of TranscodeDERToRaw.
func TranscodeRawToDER(raw []byte) ([]byte, error) {
	if len(raw) == 0 || len(raw)%2 != 0 {
		return nil, fmt.Errorf("%w: raw signature length %d is not even", ErrMalformedSignature, len(raw))
	}
	half := len(raw) / 2
	r := new(big.Int).SetBytes(raw[:half])
	s := new(big.Int).SetBytes(raw[half:])

	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(seq *cryptobyte.Builder) {
		seq.AddASN1BigInt(r)
		seq.AddASN1BigInt(s)
	})
	der, err := b.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	return der, nil
}

func parseDERSignature(der []byte) (derSignature, error) {
	if len(der) < minDERSignatureLen {
		return derSignature{}, fmt.Errorf("%w: %d bytes is too short", ErrMalformedSignature, len(der))
	}
	if der[0] != derTagSequence {
		return derSignature{}, fmt.Errorf("%w: expected SEQUENCE tag, got 0x%02x", ErrMalformedSignature, der[0])
	}

	input := cryptobyte.String(der[1:])
	seqLen, err := readSequenceLength(&input)
	if err != nil {
		return derSignature{}, err
	}
	if seqLen != len(input) {
		return derSignature{}, fmt.Errorf("%w: sequence length %d, %d bytes follow", ErrMalformedSignature, seqLen, len(input))
	}

	r, err := readInteger(&input, "R")
	if err != nil {
		return derSignature{}, err
	}
	s, err := readInteger(&input, "S")
	if err != nil {
		return derSignature{}, err
	}

	if want := 2 + len(r) + 2 + len(s); seqLen != want {
		return derSignature{}, fmt.Errorf("%w: sequence length %d, integers need %d", ErrMalformedSignature, seqLen, want)
	}

	return derSignature{r: r, s: s}, nil
}

// readSequenceLength accepts the short form (1..0x80) or a single long-form
// length byte after 0x81.
func readSequenceLength(input *cryptobyte.String) (int, error) {
	var prefix uint8
	if !input.ReadUint8(&prefix) {
		return 0, fmt.Errorf("%w: missing sequence length", ErrMalformedSignature)
	}

	switch {
	case prefix > 0 && prefix < derLongFormOneByte:
		return int(prefix), nil
	case prefix == derLongFormOneByte:
		var length uint8
		if !input.ReadUint8(&length) {
			return 0, fmt.Errorf("%w: truncated long-form length", ErrMalformedSignature)
		}
		return int(length), nil
	default:
		return 0, fmt.Errorf("%w: unsupported length prefix 0x%02x", ErrMalformedSignature, prefix)
	}
}

func readInteger(input *cryptobyte.String, name string) ([]byte, error) {
	var tag, length uint8
	if !input.ReadUint8(&tag) {
		return nil, fmt.Errorf("%w: missing %s tag", ErrMalformedSignature, name)
	}
	if tag != derTagInteger {
		return nil, fmt.Errorf("%w: expected INTEGER tag for %s, got 0x%02x", ErrMalformedSignature, name, tag)
	}
	if !input.ReadUint8(&length) {
		return nil, fmt.Errorf("%w: missing %s length", ErrMalformedSignature, name)
	}

	var value []byte
	if !input.ReadBytes(&value, int(length)) {
		return nil, fmt.Errorf("%w: %s length %d exceeds input", ErrMalformedSignature, name, length)
	}
	return value, nil
}

func trimLeadingZeros(b []byte) []byte {
	for len(b) > 0 && b[0] == 0 {
		b = b[1:]
	}
	return b
}
