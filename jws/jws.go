// Package jws implements the detached general-JWS authorization envelope
// and its verifier: parsed signature envelopes, a pluggable Algorithm
// registry, and the verification procedure that binds a signature to the
// exact descriptor it covers.
package jws

import (
	"context"
	"crypto"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/forestrie/go-dwn/did"
	"github.com/forestrie/go-dwn/dwn"
)

// Header is the decoded JWS protected header. Only the fields the
// authorization envelope requires are modeled; unknown fields are ignored on
// decode and never round-tripped.
type Header struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
}

// Envelope is a parsed general-serialization detached JWS: the shared
// payload plus one-or-more signatures, mirroring dwn.Authorization but
// retaining the base64url-encoded protected headers needed to recompute the
// signing input.
type Envelope struct {
	PayloadB64 string
	Signatures []Signature
}

// Signature is one entry of a general JWS's "signatures" array.
type Signature struct {
	ProtectedB64 string
	Header       Header
	Signature    []byte
}

// SigningInput returns the bytes actually signed: "<protectedB64>.<payloadB64>".
func (s Signature) SigningInput(payloadB64 string) []byte {
	return []byte(s.ProtectedB64 + "." + payloadB64)
}

// Algorithm verifies a signature for one JOSE `alg` value. Real signature
// verification is an external collaborator concern; this repository owns
// the interface and reference implementations used for conformance
// testing, not a production-hardened crypto library.
type Algorithm interface {
	// Name is the JOSE `alg` value this implementation handles.
	Name() string
	// Verify checks sig over signingInput using pub, returning a non-nil
	// error on any failure: one wrapping ErrSignatureMismatch when the
	// signature does not verify, or a key-type or length error otherwise.
	Verify(pub crypto.PublicKey, signingInput, sig []byte) error
}

// Registry resolves a JOSE `alg` name to its Algorithm implementation.
type Registry struct {
	algs map[string]Algorithm
}

// NewRegistry builds a Registry over the given algorithms, keyed by Name().
func NewRegistry(algs ...Algorithm) *Registry {
	r := &Registry{algs: make(map[string]Algorithm, len(algs))}
	for _, a := range algs {
		r.algs[a.Name()] = a
	}
	return r
}

// DefaultRegistry returns a Registry over the three allow-listed
// algorithms: Ed25519, ES256K (secp256k1), ES256 (P-256).
func DefaultRegistry() *Registry {
	return NewRegistry(EdDSA{}, ES256{}, ES256K{})
}

func (r *Registry) lookup(name string) (Algorithm, bool) {
	a, ok := r.algs[name]
	return a, ok
}

// ParseEnvelope decodes a dwn.Authorization into the working Envelope form,
// re-deriving each signature's protected header.
func ParseEnvelope(auth *dwn.Authorization) (*Envelope, error) {
	if auth == nil || len(auth.Signatures) == 0 {
		return nil, ErrMissingAuthorization
	}

	payload, err := json.Marshal(auth.Payload)
	if err != nil {
		return nil, fmt.Errorf("jws: marshal payload: %w", err)
	}
	payloadB64 := base64.RawURLEncoding.EncodeToString(payload)

	sigs := make([]Signature, len(auth.Signatures))
	for i, s := range auth.Signatures {
		protected, err := json.Marshal(s.Protected)
		if err != nil {
			return nil, fmt.Errorf("jws: marshal protected header: %w", err)
		}
		var h Header
		if err := json.Unmarshal(protected, &h); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKid, err)
		}
		if h.Alg == "" || h.Kid == "" {
			return nil, ErrInvalidKid
		}
		sigs[i] = Signature{
			ProtectedB64: base64.RawURLEncoding.EncodeToString(protected),
			Header:       h,
			Signature:    s.Signature,
		}
	}

	return &Envelope{PayloadB64: payloadB64, Signatures: sigs}, nil
}

// Verifier authenticates a message's authorization envelope.
type Verifier struct {
	registry *Registry
}

// NewVerifier builds a Verifier over the given algorithm registry. A nil
// registry defaults to DefaultRegistry().
func NewVerifier(registry *Registry) *Verifier {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Verifier{registry: registry}
}

// VerifyMessage authenticates msg's authorization envelope against resolver,
// returning the author DID on success:
// parse signatures and protected headers, resolve each kid's DID document,
// select the matching verification method, verify signature bytes, check
// descriptorCid binding, and enforce exactly one author signature (the
// signature at index 0 is the author's; any further signature is accepted
// only as an attestation, which requires the payload's attestationCid to be
// set).
func (v *Verifier) VerifyMessage(ctx context.Context, resolver did.Resolver, msg dwn.Message) (string, error) {
	env, err := ParseEnvelope(msg.Authorization)
	if err != nil {
		return "", err
	}

	descriptorCID, err := dwn.DescriptorCID(msg.Descriptor)
	if err != nil {
		return "", fmt.Errorf("jws: computing descriptor cid: %w", err)
	}
	if msg.Authorization.Payload.DescriptorCID != descriptorCID.String() {
		return "", ErrDescriptorCidMismatch
	}

	// Signature index 0 is always the author signature; any further
	// signatures are attestations bound by payload.attestationCid. A
	// message with more than one signature but no attestationCid is
	// rejected: the extra signatures would be unbound.
	if len(env.Signatures) > 1 && msg.Authorization.Payload.AttestationCID == "" {
		return "", fmt.Errorf("%w: %d signatures present but no attestationCid to bind them", ErrInvalidKid, len(env.Signatures))
	}

	var authorDID string

	for i, sig := range env.Signatures {
		subject, _ := did.ParseDIDURL(sig.Header.Kid)
		if subject == "" {
			return "", ErrInvalidKid
		}

		doc, err := resolver.Resolve(ctx, subject)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrKeyNotFound, err)
		}

		vm, err := doc.FindVerificationMethod(sig.Header.Kid)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrKeyNotFound, err)
		}

		alg, ok := v.registry.lookup(sig.Header.Alg)
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, sig.Header.Alg)
		}

		pub, err := PublicKeyFromVerificationMethod(vm)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrKeyNotFound, err)
		}

		if err := alg.Verify(pub, sig.SigningInput(env.PayloadB64), sig.Signature); err != nil {
			return "", fmt.Errorf("%w: %v", ErrSignatureMismatch, err)
		}

		if i == 0 {
			authorDID = subject
		}
	}

	return authorDID, nil
}
