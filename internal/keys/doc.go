// Package keys provides the signing and public key capabilities the token
// engine depends on: AWS KMS, a local PEM key for development, a static
// lookup table and a Redis read-through cache.
package keys
