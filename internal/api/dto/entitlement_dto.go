package dto

// IssueEntitlementRequest carries a signed purchase transaction.
type IssueEntitlementRequest struct {
	TransactionJWS string `json:"transaction_jws"`
}

// IssueEntitlementResponse returns the minted bearer token.
type IssueEntitlementResponse struct {
	Token string `json:"token"`
}
