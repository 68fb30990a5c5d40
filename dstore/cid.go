package dstore

import (
	"fmt"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

// DataCID computes the content identifier for a raw data blob: a CIDv1
// using the "raw" multicodec (0x55) rather than cidcbor's DAG-CBOR codec,
// since record payloads are opaque bytes, not a CBOR structure to decode.
// This reuses the same go-cid/go-multihash libraries as cidcbor (both
// enriched from orbas1-Synnergy's storage subsystem) under a distinct codec,
// rather than overloading cidcbor.CID's DAG-CBOR-only contract. Exported so
// validator can check an inlined payload's hash against its descriptor's
// dataCid without duplicating the scheme.
func DataCID(raw []byte) (string, error) {
	digest, err := mh.Sum(raw, mh.SHA2_256, -1)
	if err != nil {
		return "", fmt.Errorf("dstore: hashing data: %w", err)
	}
	c := cid.NewCidV1(cid.Raw, digest)
	return c.String(), nil
}
