package token

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

const bearerPrefix = "Bearer "

// KeyLookup resolves the PEM encoded public key for a key identifier.
type KeyLookup interface {
	PublicKey(ctx context.Context, keyID string) ([]byte, error)
}

// AuthorizerRequest is the gateway's custom authorizer input.
type AuthorizerRequest struct {
	Type               string `json:"type"`
	AuthorizationToken string `json:"authorizationToken"`
	MethodARN          string `json:"methodArn"`
}

// AuthorizerContext is attached to the request by the gateway.
type AuthorizerContext struct {
	ID  string `json:"id"`
	Exp string `json:"exp"`
}

// AuthorizerResponse is the decision returned to the gateway.
type AuthorizerResponse struct {
	PrincipalID    string            `json:"principalId"`
	PolicyDocument PolicyDocument    `json:"policyDocument"`
	Context        AuthorizerContext `json:"context"`
}

// Authorizer turns bearer tokens into access policies.
type Authorizer struct {
	keys KeyLookup
}

// NewAuthorizer builds an authorizer resolving keys through keys.
func NewAuthorizer(keys KeyLookup) *Authorizer {
	return &Authorizer{keys: keys}
}

// Authorize verifies the bearer token and grants the invoked method. Expiry
// is reported in the context, not enforced.
func (a *Authorizer) Authorize(ctx context.Context, req AuthorizerRequest) (AuthorizerResponse, error) {
	raw, ok := strings.CutPrefix(req.AuthorizationToken, bearerPrefix)
	if !ok {
		return AuthorizerResponse{}, ErrMissingCredential
	}

	header, err := DecodeHeader(raw)
	if err != nil {
		return AuthorizerResponse{}, err
	}
	if header.KeyID == "" {
		return AuthorizerResponse{}, fmt.Errorf("%w: no kid in header", ErrUnknownKey)
	}

	pemBytes, err := a.keys.PublicKey(ctx, header.KeyID)
	if err != nil {
		return AuthorizerResponse{}, fmt.Errorf("%w: %s: %v", ErrUnknownKey, header.KeyID, err)
	}
	key, err := ParsePublicKey(pemBytes)
	if err != nil {
		return AuthorizerResponse{}, fmt.Errorf("%w: %s: %v", ErrUnknownKey, header.KeyID, err)
	}

	claims, err := Verify[SessionClaims](raw, key)
	if err != nil {
		return AuthorizerResponse{}, err
	}
	if claims.Subject == "" {
		return AuthorizerResponse{}, fmt.Errorf("%w: sub missing", ErrInvalidClaims)
	}

	arn, err := ParseMethodARN(req.MethodARN)
	if err != nil {
		return AuthorizerResponse{}, err
	}

	policy := NewPolicyBuilderFor(arn).
		AddMethodARN(EffectAllow, req.MethodARN).
		Build()

	return AuthorizerResponse{
		PrincipalID:    claims.Subject,
		PolicyDocument: policy,
		Context: AuthorizerContext{
			ID:  claims.Subject,
			Exp: strconv.FormatInt(claims.ExpiresAt, 10),
		},
	}, nil
}
