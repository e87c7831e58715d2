package token

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// EntitlementWindow is the period a subscriber is entitled to access.
type EntitlementWindow struct {
	Identity string
	Start    time.Time
	End      time.Time
}

// ReceiptConfig configures a ReceiptVerifier.
type ReceiptConfig struct {
	// PublicKeyPEM is the vendor key receipts are signed with.
	PublicKeyPEM []byte
	// Now defaults to time.Now.
	Now func() time.Time
}

// ReceiptVerifier validates vendor purchase receipts.
type ReceiptVerifier struct {
	key *ecdsa.PublicKey
	now func() time.Time
}

// NewReceiptVerifier parses the configured vendor key.
func NewReceiptVerifier(cfg ReceiptConfig) (*ReceiptVerifier, error) {
	key, err := ParsePublicKey(cfg.PublicKeyPEM)
	if err != nil {
		return nil, err
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &ReceiptVerifier{key: key, now: now}, nil
}

// Verify checks the receipt signature and extracts the entitlement window.
// The window starts now; if the entitlement already ended the start is
// pulled back to the end so the window is never inverted.
func (v *ReceiptVerifier) Verify(receipt string) (EntitlementWindow, error) {
	claims, err := Verify[ReceiptClaims](receipt, v.key)
	if err != nil {
		return EntitlementWindow{}, err
	}
	if claims.AppAccountToken == "" {
		return EntitlementWindow{}, fmt.Errorf("%w: appAccountToken missing", ErrInvalidClaims)
	}

	endMillis, err := millisFromDecimal(claims.ExpiresDate)
	if err != nil {
		return EntitlementWindow{}, err
	}

	end := time.UnixMilli(endMillis)
	start := v.now()
	if start.After(end) {
		start = end
	}

	return EntitlementWindow{
		Identity: claims.AppAccountToken,
		Start:    start,
		End:      end,
	}, nil
}

// millisFromDecimal rounds a fractional millisecond timestamp to whole
// milliseconds by dropping the fraction.
func millisFromDecimal(n json.Number) (int64, error) {
	if n == "" {
		return 0, fmt.Errorf("%w: expiresDate missing", ErrInvalidClaims)
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return 0, fmt.Errorf("%w: expiresDate %q: %v", ErrInvalidClaims, n, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: expiresDate %s is negative", ErrInvalidClaims, n)
	}

	whole := d.Truncate(0).BigInt()
	if !whole.IsUint64() || whole.Uint64() > math.MaxInt64 {
		return 0, fmt.Errorf("%w: expiresDate %s out of range", ErrInvalidClaims, n)
	}
	return whole.Int64(), nil
}
