package jws

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secp256k1ecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// EdDSA verifies JOSE `alg: "EdDSA"` signatures using stdlib Ed25519.
type EdDSA struct{}

func (EdDSA) Name() string { return "EdDSA" }

func (EdDSA) Verify(pub crypto.PublicKey, signingInput, sig []byte) error {
	key, ok := pub.(ed25519.PublicKey)
	if !ok {
		return fmt.Errorf("jws: EdDSA requires an ed25519.PublicKey, got %T", pub)
	}
	if !ed25519.Verify(key, signingInput, sig) {
		return ErrSignatureMismatch
	}
	return nil
}

// ES256 verifies JOSE `alg: "ES256"` signatures (ECDSA over P-256) using the
// stdlib crypto/ecdsa package. The signature is the JOSE fixed-length R||S
// concatenation, not ASN.1 DER.
type ES256 struct{}

func (ES256) Name() string { return "ES256" }

func (ES256) Verify(pub crypto.PublicKey, signingInput, sig []byte) error {
	key, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return fmt.Errorf("jws: ES256 requires an *ecdsa.PublicKey, got %T", pub)
	}
	if len(sig) != 64 {
		return fmt.Errorf("jws: ES256 signature must be 64 bytes, got %d", len(sig))
	}
	digest := sha256.Sum256(signingInput)
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])
	if !ecdsa.Verify(key, digest[:], r, s) {
		return ErrSignatureMismatch
	}
	return nil
}

// ES256K verifies JOSE `alg: "ES256K"` signatures (ECDSA over secp256k1).
// The standard library has no secp256k1 curve, so this delegates to
// decred/dcrd.
type ES256K struct{}

func (ES256K) Name() string { return "ES256K" }

func (ES256K) Verify(pub crypto.PublicKey, signingInput, sig []byte) error {
	key, ok := pub.(*secp256k1.PublicKey)
	if !ok {
		return fmt.Errorf("jws: ES256K requires a *secp256k1.PublicKey, got %T", pub)
	}
	if len(sig) != 64 {
		return fmt.Errorf("jws: ES256K signature must be 64 bytes, got %d", len(sig))
	}
	digest := sha256.Sum256(signingInput)
	r := new(secp256k1.ModNScalar)
	r.SetByteSlice(sig[:32])
	s := new(secp256k1.ModNScalar)
	s.SetByteSlice(sig[32:])
	signature := secp256k1ecdsa.NewSignature(r, s)
	if !signature.Verify(digest[:], key) {
		return ErrSignatureMismatch
	}
	return nil
}
