package token

import (
	"encoding/json"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the claim set of tokens minted by this service.
type SessionClaims struct {
	Subject   string `json:"sub"`
	NotBefore int64  `json:"nbf"`
	ExpiresAt int64  `json:"exp"`
}

func (c SessionClaims) GetExpirationTime() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.ExpiresAt, 0)), nil
}

func (c SessionClaims) GetNotBefore() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.NotBefore, 0)), nil
}

func (c SessionClaims) GetIssuedAt() (*jwt.NumericDate, error) { return nil, nil }
func (c SessionClaims) GetIssuer() (string, error)             { return "", nil }
func (c SessionClaims) GetSubject() (string, error)            { return c.Subject, nil }
func (c SessionClaims) GetAudience() (jwt.ClaimStrings, error) { return nil, nil }

// ReceiptClaims is the payload of a signed App Store transaction. Dates are
// fractional milliseconds since the epoch.
type ReceiptClaims struct {
	ProductID                   string      `json:"productId"`
	Environment                 string      `json:"environment"`
	Quantity                    int         `json:"quantity"`
	BundleID                    string      `json:"bundleId"`
	AppAccountToken             string      `json:"appAccountToken"`
	OriginalTransactionID       string      `json:"originalTransactionId"`
	TransactionID               string      `json:"transactionId"`
	WebOrderLineItemID          string      `json:"webOrderLineItemId"`
	SubscriptionGroupIdentifier string      `json:"subscriptionGroupIdentifier"`
	Type                        string      `json:"type"`
	InAppOwnershipType          string      `json:"inAppOwnershipType"`
	IsUpgraded                  bool        `json:"isUpgraded"`
	ExpiresDate                 json.Number `json:"expiresDate"`
	PurchaseDate                json.Number `json:"purchaseDate"`
	OriginalPurchaseDate        json.Number `json:"originalPurchaseDate"`
	SignedDate                  json.Number `json:"signedDate"`
}

// Receipts carry no registered claims that matter here; the receipt's own
// expiry is not the entitlement boundary.
func (c ReceiptClaims) GetExpirationTime() (*jwt.NumericDate, error) { return nil, nil }
func (c ReceiptClaims) GetNotBefore() (*jwt.NumericDate, error)      { return nil, nil }
func (c ReceiptClaims) GetIssuedAt() (*jwt.NumericDate, error)       { return nil, nil }
func (c ReceiptClaims) GetIssuer() (string, error)                   { return "", nil }
func (c ReceiptClaims) GetSubject() (string, error)                  { return c.AppAccountToken, nil }
func (c ReceiptClaims) GetAudience() (jwt.ClaimStrings, error)       { return nil, nil }
