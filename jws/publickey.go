package jws

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"encoding/base64"
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/forestrie/go-dwn/did"
)

// PublicKeyFromVerificationMethod extracts a crypto.PublicKey from a DID
// Document verification method, dispatching on its JWK "kty" member. Key
// material is read from publicKeyJwk, mirroring the JWK extraction the
// pack's agntcy-dir authn package uses for Ed25519 and RSA.
func PublicKeyFromVerificationMethod(vm *did.VerificationMethod) (any, error) {
	if vm.PublicKeyJWK == nil {
		return nil, fmt.Errorf("jws: verification method %q has no publicKeyJwk", vm.ID)
	}

	kty, _ := vm.PublicKeyJWK["kty"].(string)
	switch kty {
	case "OKP":
		return okpPublicKey(vm.PublicKeyJWK)
	case "EC":
		return ecPublicKey(vm.PublicKeyJWK)
	default:
		return nil, fmt.Errorf("jws: unsupported JWK kty %q", kty)
	}
}

func okpPublicKey(jwk map[string]any) (ed25519.PublicKey, error) {
	crv, _ := jwk["crv"].(string)
	if crv != "Ed25519" {
		return nil, fmt.Errorf("jws: unsupported OKP curve %q", crv)
	}
	x, _ := jwk["x"].(string)
	raw, err := base64.RawURLEncoding.DecodeString(x)
	if err != nil {
		return nil, fmt.Errorf("jws: decoding OKP x: %w", err)
	}
	return ed25519.PublicKey(raw), nil
}

func ecPublicKey(jwk map[string]any) (any, error) {
	crv, _ := jwk["crv"].(string)
	xStr, _ := jwk["x"].(string)
	yStr, _ := jwk["y"].(string)

	x, err := base64.RawURLEncoding.DecodeString(xStr)
	if err != nil {
		return nil, fmt.Errorf("jws: decoding EC x: %w", err)
	}
	y, err := base64.RawURLEncoding.DecodeString(yStr)
	if err != nil {
		return nil, fmt.Errorf("jws: decoding EC y: %w", err)
	}

	switch crv {
	case "P-256":
		return &ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(x),
			Y:     new(big.Int).SetBytes(y),
		}, nil
	case "secp256k1":
		fx := new(secp256k1.FieldVal)
		fx.SetByteSlice(x)
		fy := new(secp256k1.FieldVal)
		fy.SetByteSlice(y)
		return secp256k1.NewPublicKey(fx, fy), nil
	default:
		return nil, fmt.Errorf("jws: unsupported EC curve %q", crv)
	}
}
