// Package dwntesting is the conformance-test harness shared by every
// component's test suite and by pipeline/scenarios_test.go: construct a
// logger, a fixed set of test identities and a fully-wired in-memory stack
// once per test, rather than re-deriving it inline in every _test.go file.
package dwntesting

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/stretchr/testify/require"

	"github.com/forestrie/go-dwn/did"
	"github.com/forestrie/go-dwn/dstore"
	"github.com/forestrie/go-dwn/dwn"
	"github.com/forestrie/go-dwn/eventlog"
	"github.com/forestrie/go-dwn/jws"
	"github.com/forestrie/go-dwn/kv/memkv"
	"github.com/forestrie/go-dwn/messageops"
	"github.com/forestrie/go-dwn/mstore"
	"github.com/forestrie/go-dwn/permissions"
	"github.com/forestrie/go-dwn/protocolauth"
	"github.com/forestrie/go-dwn/protocols"
	"github.com/forestrie/go-dwn/records"
	"github.com/forestrie/go-dwn/validator"
)

// TestContext bundles one tenant's fully-wired in-memory stack plus the
// synthetic identities used to sign its messages: real component wiring
// over in-memory backing stores, built once per test rather than stubbed.
type TestContext struct {
	Log logger.Logger

	Store    *mstore.Store
	Data     *dstore.Store
	Events   *eventlog.Store
	Grants   *permissions.Index
	Ancestry protocolauth.AncestryResolver

	Records     *records.Handler
	Protocols   *protocols.Handler
	Permissions *permissions.Handler
	MessageOps  *messageops.Handler

	Validator *validator.Validator
	Verifier  *jws.Verifier
	Resolver  *did.StaticResolver
}

// NewTestContext builds a TestContext over fresh in-memory backing stores,
// per-test, so tests never share state through a package-level fixture.
func NewTestContext(t *testing.T) *TestContext {
	t.Helper()

	logger.New("NOOP")
	lg := logger.Sugar.WithServiceName("dwntesting")

	store := mstore.New(memkv.New())
	data := dstore.New(memkv.New())
	elog := eventlog.New(memkv.New())
	ancestry := protocolauth.NewAncestryResolver(store)
	grants := permissions.NewIndex(store)
	protocolsHandler := protocols.NewHandler(store, elog)

	tc := &TestContext{
		Log:         lg,
		Store:       store,
		Data:        data,
		Events:      elog,
		Grants:      grants,
		Ancestry:    ancestry,
		Protocols:   protocolsHandler,
		Permissions: permissions.NewHandler(store, elog),
		MessageOps:  messageops.NewHandler(store, elog, grants),
		Validator:   validator.New(nil),
		Verifier:    jws.NewVerifier(nil),
		Resolver:    did.NewStaticResolver(),
	}
	tc.Records = records.NewHandler(store, data, elog, grants, protocolsHandler.Lookup, ancestry)

	return tc
}

// Identity is a synthetic DID plus its Ed25519 keypair, registered in a
// TestContext's resolver so messages it signs verify.
type Identity struct {
	DID     string
	KeyID   string
	Private ed25519.PrivateKey
	Public  ed25519.PublicKey
}

// NewIdentity generates a fresh Ed25519 identity for subject, registers its
// public key in tc's resolver under subject+"#key-1", and returns it.
func (tc *TestContext) NewIdentity(t *testing.T, subject string) Identity {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	kid := subject + "#key-1"
	jwk := map[string]any{
		"kty": "OKP",
		"crv": "Ed25519",
		"x":   base64.RawURLEncoding.EncodeToString(pub),
	}
	doc := &did.Document{
		ID: subject,
		VerificationMethod: []did.VerificationMethod{
			{ID: kid, Type: "JsonWebKey2020", Controller: subject, PublicKeyJWK: jwk},
		},
	}
	tc.Resolver.Put(doc)

	return Identity{DID: subject, KeyID: kid, Private: priv, Public: pub}
}

// Sign wraps descriptor in a Message signed by id, computing its
// authorization payload's descriptorCid as jws.Verifier expects.
func (id Identity) Sign(t *testing.T, descriptor dwn.Descriptor) dwn.Message {
	t.Helper()
	descriptorCID, err := dwn.DescriptorCID(descriptor)
	require.NoError(t, err)

	payload := dwn.AuthPayload{DescriptorCID: descriptorCID.String()}
	payloadJSON, err := json.Marshal(payload)
	require.NoError(t, err)
	payloadB64 := base64.RawURLEncoding.EncodeToString(payloadJSON)

	protected := map[string]any{"alg": "EdDSA", "kid": id.KeyID}
	protectedJSON, err := json.Marshal(protected)
	require.NoError(t, err)
	protectedB64 := base64.RawURLEncoding.EncodeToString(protectedJSON)

	sig := ed25519.Sign(id.Private, []byte(protectedB64+"."+payloadB64))

	return dwn.Message{
		Descriptor: descriptor,
		Authorization: &dwn.Authorization{
			Payload:    payload,
			Signatures: []dwn.JWSSignature{{Protected: protected, Signature: sig}},
		},
	}
}
