package keys

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"

	"github.com/spec-kit/entitlement-service/internal/config"
	"github.com/spec-kit/entitlement-service/internal/token"
)

type kmsAPI interface {
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
}

// KMS signs and resolves public keys through AWS KMS. It satisfies both
// token.Signer and token.KeyLookup.
type KMS struct {
	client kmsAPI
}

// NewKMS builds a client from the default AWS credential chain.
func NewKMS(ctx context.Context, cfg config.AWSConfig) (*KMS, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := kms.NewFromConfig(awsCfg, func(o *kms.Options) {
		if cfg.KMSEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.KMSEndpoint)
		}
	})
	return &KMS{client: client}, nil
}

// Sign asks KMS for an ECDSA_SHA_256 signature over the raw message. KMS
// returns the signature DER encoded.
func (k *KMS) Sign(ctx context.Context, keyID string, message []byte) ([]byte, error) {
	out, err := k.client.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(keyID),
		Message:          message,
		MessageType:      types.MessageTypeRaw,
		SigningAlgorithm: types.SigningAlgorithmSpecEcdsaSha256,
	})
	if err != nil {
		return nil, mapKMSError(keyID, err)
	}
	if len(out.Signature) == 0 {
		return nil, fmt.Errorf("kms returned no signature for %s", keyID)
	}
	return out.Signature, nil
}

// PublicKey fetches the public half of keyID as PEM.
func (k *KMS) PublicKey(ctx context.Context, keyID string) ([]byte, error) {
	out, err := k.client.GetPublicKey(ctx, &kms.GetPublicKeyInput{KeyId: aws.String(keyID)})
	if err != nil {
		return nil, mapKMSError(keyID, err)
	}
	if len(out.PublicKey) == 0 {
		return nil, fmt.Errorf("%w: %s has no public key", token.ErrKeyNotFound, keyID)
	}
	return encodePublicKeyDER(out.PublicKey), nil
}

func mapKMSError(keyID string, err error) error {
	var notFound *types.NotFoundException
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: %s: %v", token.ErrKeyNotFound, keyID, err)
	}
	return fmt.Errorf("kms %s: %w", keyID, err)
}
