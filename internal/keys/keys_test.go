package keys

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/entitlement-service/internal/token"
)

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func TestLocalSignerRoundTrip(t *testing.T) {
	key := newKey(t)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "signing.pem")
	if err := os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	signer, err := LoadLocalSigner("local-1", path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	minter := token.NewMinter(signer, token.MinterConfig{KeyID: "local-1"})
	now := time.Unix(1_700_000_000, 0)
	raw, err := minter.Mint(context.Background(), token.EntitlementWindow{Identity: "user-1", Start: now, End: now.Add(time.Hour)})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	resp, err := token.NewAuthorizer(signer).Authorize(context.Background(), token.AuthorizerRequest{
		Type:               "TOKEN",
		AuthorizationToken: "Bearer " + raw,
		MethodARN:          "arn:aws:execute-api:us-east-1:1:api/dev/GET/items",
	})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if resp.PrincipalID != "user-1" {
		t.Errorf("principal = %s", resp.PrincipalID)
	}

	if _, err := signer.Sign(context.Background(), "other", []byte("x")); !errors.Is(err, token.ErrKeyNotFound) {
		t.Errorf("sign with unknown key err = %v", err)
	}
	if _, err := signer.PublicKey(context.Background(), "other"); !errors.Is(err, token.ErrKeyNotFound) {
		t.Errorf("lookup unknown key err = %v", err)
	}
}

func TestLoadLocalSignerErrors(t *testing.T) {
	if _, err := LoadLocalSigner("k", filepath.Join(t.TempDir(), "missing.pem")); err == nil {
		t.Error("expected error for missing file")
	}
	path := filepath.Join(t.TempDir(), "junk.pem")
	if err := os.WriteFile(path, []byte("not a key"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadLocalSigner("k", path); err == nil {
		t.Error("expected error for junk key")
	}
}

func TestStaticLookup(t *testing.T) {
	lookup := StaticLookup{"a": []byte("pem-a")}
	got, err := lookup.PublicKey(context.Background(), "a")
	if err != nil || string(got) != "pem-a" {
		t.Fatalf("got %q, %v", got, err)
	}
	if _, err := lookup.PublicKey(context.Background(), "b"); !errors.Is(err, token.ErrKeyNotFound) {
		t.Fatalf("missing key err = %v", err)
	}
}

func TestLoadStaticLookup(t *testing.T) {
	key := newKey(t)
	publicPEM, err := encodePublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	path := filepath.Join(t.TempDir(), "signing.pub.pem")
	if err := os.WriteFile(path, publicPEM, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	lookup, err := LoadStaticLookup("alias/tokens", path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got, err := lookup.PublicKey(context.Background(), "alias/tokens")
	if err != nil || string(got) != string(publicPEM) {
		t.Fatalf("got %q, %v", got, err)
	}
	if _, err := lookup.PublicKey(context.Background(), "other"); !errors.Is(err, token.ErrKeyNotFound) {
		t.Fatalf("other key err = %v", err)
	}

	if _, err := LoadStaticLookup("k", filepath.Join(t.TempDir(), "missing.pem")); err == nil {
		t.Error("expected error for missing file")
	}
	junk := filepath.Join(t.TempDir(), "junk.pem")
	if err := os.WriteFile(junk, []byte("not a key"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadStaticLookup("k", junk); err == nil {
		t.Error("expected error for junk key")
	}
}

type fakeKMS struct {
	key       *ecdsa.PrivateKey
	signInput *kms.SignInput
	err       error
}

func (f *fakeKMS) Sign(_ context.Context, in *kms.SignInput, _ ...func(*kms.Options)) (*kms.SignOutput, error) {
	f.signInput = in
	if f.err != nil {
		return nil, f.err
	}
	digest := sha256.Sum256(in.Message)
	sig, err := ecdsa.SignASN1(rand.Reader, f.key, digest[:])
	if err != nil {
		return nil, err
	}
	return &kms.SignOutput{KeyId: in.KeyId, Signature: sig}, nil
}

func (f *fakeKMS) GetPublicKey(_ context.Context, in *kms.GetPublicKeyInput, _ ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	der, err := x509.MarshalPKIXPublicKey(&f.key.PublicKey)
	if err != nil {
		return nil, err
	}
	return &kms.GetPublicKeyOutput{KeyId: in.KeyId, PublicKey: der}, nil
}

func TestKMSSignAndLookup(t *testing.T) {
	fake := &fakeKMS{key: newKey(t)}
	client := &KMS{client: fake}

	minter := token.NewMinter(client, token.MinterConfig{KeyID: "alias/tokens"})
	now := time.Unix(1_700_000_000, 0)
	raw, err := minter.Mint(context.Background(), token.EntitlementWindow{Identity: "sub", Start: now, End: now.Add(time.Minute)})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	if fake.signInput.MessageType != types.MessageTypeRaw || fake.signInput.SigningAlgorithm != types.SigningAlgorithmSpecEcdsaSha256 {
		t.Errorf("sign input = %+v", fake.signInput)
	}
	if aws.ToString(fake.signInput.KeyId) != "alias/tokens" {
		t.Errorf("key id = %s", aws.ToString(fake.signInput.KeyId))
	}

	pemBytes, err := client.PublicKey(context.Background(), "alias/tokens")
	if err != nil {
		t.Fatalf("public key: %v", err)
	}
	if !strings.HasPrefix(string(pemBytes), "-----BEGIN PUBLIC KEY-----") {
		t.Errorf("pem = %s", pemBytes)
	}
	key, err := token.ParsePublicKey(pemBytes)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := token.Verify[token.SessionClaims](raw, key); err != nil {
		t.Fatalf("verify minted token: %v", err)
	}
}

func TestKMSErrors(t *testing.T) {
	notFound := &KMS{client: &fakeKMS{err: &types.NotFoundException{Message: aws.String("gone")}}}
	if _, err := notFound.PublicKey(context.Background(), "k"); !errors.Is(err, token.ErrKeyNotFound) {
		t.Errorf("not found err = %v", err)
	}

	boom := errors.New("throttled")
	failing := &KMS{client: &fakeKMS{err: boom}}
	_, err := failing.Sign(context.Background(), "k", []byte("m"))
	if !errors.Is(err, boom) || errors.Is(err, token.ErrKeyNotFound) {
		t.Errorf("sign err = %v", err)
	}

	minter := token.NewMinter(failing, token.MinterConfig{KeyID: "k"})
	if _, err := minter.Mint(context.Background(), token.EntitlementWindow{Identity: "s"}); !errors.Is(err, token.ErrSigningFailure) {
		t.Errorf("mint err = %v", err)
	}
}

type fakeStore struct {
	values  map[string]string
	getErr  error
	setErr  error
	setTTLs []time.Duration
}

func (f *fakeStore) Get(_ context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	val, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(val, nil)
}

func (f *fakeStore) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	f.setTTLs = append(f.setTTLs, ttl)
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.values[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

type countingLookup struct {
	StaticLookup
	calls int
}

func (c *countingLookup) PublicKey(ctx context.Context, keyID string) ([]byte, error) {
	c.calls++
	return c.StaticLookup.PublicKey(ctx, keyID)
}

func TestCachedLookup(t *testing.T) {
	store := &fakeStore{values: map[string]string{}}
	next := &countingLookup{StaticLookup: StaticLookup{"k": []byte("pem")}}
	cache := NewCachedLookup(store, next, time.Minute, nil)

	for i := 0; i < 3; i++ {
		got, err := cache.PublicKey(context.Background(), "k")
		if err != nil || string(got) != "pem" {
			t.Fatalf("lookup %d: %q, %v", i, got, err)
		}
	}
	if next.calls != 1 {
		t.Errorf("underlying lookups = %d, want 1", next.calls)
	}
	if store.values["pubkey:k"] != "pem" || store.setTTLs[0] != time.Minute {
		t.Errorf("store = %+v ttls = %v", store.values, store.setTTLs)
	}

	if _, err := cache.PublicKey(context.Background(), "missing"); !errors.Is(err, token.ErrKeyNotFound) {
		t.Errorf("missing err = %v", err)
	}
	if _, ok := store.values["pubkey:missing"]; ok {
		t.Error("failed lookups must not be cached")
	}
}

func TestCachedLookupDegradesWhenRedisFails(t *testing.T) {
	store := &fakeStore{values: map[string]string{}, getErr: errors.New("connection refused"), setErr: errors.New("connection refused")}
	next := &countingLookup{StaticLookup: StaticLookup{"k": []byte("pem")}}
	cache := NewCachedLookup(store, next, 0, nil)

	for i := 0; i < 2; i++ {
		if got, err := cache.PublicKey(context.Background(), "k"); err != nil || string(got) != "pem" {
			t.Fatalf("lookup: %q, %v", got, err)
		}
	}
	if next.calls != 2 {
		t.Errorf("underlying lookups = %d, want 2", next.calls)
	}
}
