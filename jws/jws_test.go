package jws

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/forestrie/go-dwn/did"
	"github.com/forestrie/go-dwn/dwn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signEdDSA(t *testing.T, priv ed25519.PrivateKey, kid string, payload dwn.AuthPayload) dwn.Authorization {
	t.Helper()

	payloadJSON, err := json.Marshal(payload)
	require.NoError(t, err)
	payloadB64 := base64.RawURLEncoding.EncodeToString(payloadJSON)

	protected := map[string]any{"alg": "EdDSA", "kid": kid}
	protectedJSON, err := json.Marshal(protected)
	require.NoError(t, err)
	protectedB64 := base64.RawURLEncoding.EncodeToString(protectedJSON)

	sig := ed25519.Sign(priv, []byte(protectedB64+"."+payloadB64))

	return dwn.Authorization{
		Payload: payload,
		Signatures: []dwn.JWSSignature{
			{Protected: protected, Signature: sig},
		},
	}
}

func buildResolver(t *testing.T, subject string, pub ed25519.PublicKey) did.Resolver {
	t.Helper()
	jwk := map[string]any{
		"kty": "OKP",
		"crv": "Ed25519",
		"x":   base64.RawURLEncoding.EncodeToString(pub),
	}
	doc := &did.Document{
		ID: subject,
		VerificationMethod: []did.VerificationMethod{
			{ID: subject + "#key-1", Type: "JsonWebKey2020", Controller: subject, PublicKeyJWK: jwk},
		},
	}
	return did.NewStaticResolver(doc)
}

func TestVerifyMessageSuccess(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	subject := "did:example:alice"
	kid := subject + "#key-1"
	resolver := buildResolver(t, subject, pub)

	descriptor := dwn.Descriptor{
		dwn.FieldInterface: string(dwn.InterfaceRecords),
		dwn.FieldMethod:    string(dwn.MethodWrite),
	}
	descriptorCID, err := dwn.DescriptorCID(descriptor)
	require.NoError(t, err)

	auth := signEdDSA(t, priv, kid, dwn.AuthPayload{DescriptorCID: descriptorCID.String()})
	msg := dwn.Message{Descriptor: descriptor, Authorization: &auth}

	v := NewVerifier(nil)
	author, err := v.VerifyMessage(context.Background(), resolver, msg)
	require.NoError(t, err)
	assert.Equal(t, subject, author)
}

func TestVerifyMessageRejectsDescriptorCidMismatch(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	subject := "did:example:alice"
	kid := subject + "#key-1"
	resolver := buildResolver(t, subject, pub)

	descriptor := dwn.Descriptor{
		dwn.FieldInterface: string(dwn.InterfaceRecords),
		dwn.FieldMethod:    string(dwn.MethodWrite),
	}

	auth := signEdDSA(t, priv, kid, dwn.AuthPayload{DescriptorCID: "bafyreibogus"})
	msg := dwn.Message{Descriptor: descriptor, Authorization: &auth}

	v := NewVerifier(nil)
	_, err = v.VerifyMessage(context.Background(), resolver, msg)
	assert.ErrorIs(t, err, ErrDescriptorCidMismatch)
}

func TestVerifyMessageRejectsTamperedSignature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	subject := "did:example:alice"
	kid := subject + "#key-1"
	resolver := buildResolver(t, subject, pub)

	descriptor := dwn.Descriptor{
		dwn.FieldInterface: string(dwn.InterfaceRecords),
		dwn.FieldMethod:    string(dwn.MethodWrite),
	}
	descriptorCID, err := dwn.DescriptorCID(descriptor)
	require.NoError(t, err)

	auth := signEdDSA(t, priv, kid, dwn.AuthPayload{DescriptorCID: descriptorCID.String()})
	auth.Signatures[0].Signature[0] ^= 0xFF
	msg := dwn.Message{Descriptor: descriptor, Authorization: &auth}

	v := NewVerifier(nil)
	_, err = v.VerifyMessage(context.Background(), resolver, msg)
	assert.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestVerifyMessageRejectsMissingAuthorization(t *testing.T) {
	msg := dwn.Message{Descriptor: dwn.Descriptor{}}
	v := NewVerifier(nil)
	_, err := v.VerifyMessage(context.Background(), did.NewStaticResolver(), msg)
	assert.ErrorIs(t, err, ErrMissingAuthorization)
}

func TestVerifyMessageRejectsUnknownKey(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	subject := "did:example:alice"
	kid := subject + "#key-1"
	resolver := did.NewStaticResolver() // no documents registered

	descriptor := dwn.Descriptor{dwn.FieldInterface: string(dwn.InterfaceRecords)}
	descriptorCID, err := dwn.DescriptorCID(descriptor)
	require.NoError(t, err)

	auth := signEdDSA(t, priv, kid, dwn.AuthPayload{DescriptorCID: descriptorCID.String()})
	msg := dwn.Message{Descriptor: descriptor, Authorization: &auth}

	v := NewVerifier(nil)
	_, err = v.VerifyMessage(context.Background(), resolver, msg)
	assert.ErrorIs(t, err, ErrKeyNotFound)
}
