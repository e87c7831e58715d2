// Package token issues and checks the ES256 bearer tokens that gate the
// subscription API: receipt verification, minting through a remote signer,
// and turning a presented token into a gateway access policy.
package token
