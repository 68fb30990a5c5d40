package cidcbor

import (
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multibase"
	mc "github.com/multiformats/go-multicodec"
	mh "github.com/multiformats/go-multihash"
)

// CID is a content identifier restricted to one form: CIDv1, DAG-CBOR
// codec, SHA-256 multihash.
type CID struct {
	c cid.Cid
}

// Undef is the zero-value, invalid CID.
var Undef = CID{}

// ComputeCID derives the CID for already-canonically-encoded bytes.
func ComputeCID(canonical []byte) (CID, error) {
	digest, err := mh.Sum(canonical, mh.SHA2_256, -1)
	if err != nil {
		return CID{}, fmt.Errorf("cidcbor: hashing canonical bytes: %w", err)
	}
	return CID{c: cid.NewCidV1(cid.DagCBOR, digest)}, nil
}

// CIDOf canonically encodes v and computes its CID in one step.
func CIDOf(v any) (CID, error) {
	encoded, err := Encode(v)
	if err != nil {
		return CID{}, err
	}
	return ComputeCID(encoded)
}

// Parse parses a base32-lower CIDv1 string back into a CID, verifying it
// uses the DAG-CBOR codec this package produces (the plain CBOR codec is
// also accepted) and a SHA-256 multihash.
func Parse(s string) (CID, error) {
	c, err := cid.Decode(s)
	if err != nil {
		return CID{}, fmt.Errorf("cidcbor: parsing %q: %w", s, err)
	}
	if c.Prefix().Codec != uint64(mc.Cbor) && c.Prefix().Codec != cid.DagCBOR {
		return CID{}, fmt.Errorf("cidcbor: %q is not a dag-cbor CID", s)
	}
	if c.Prefix().MhType != mh.SHA2_256 {
		return CID{}, fmt.Errorf("cidcbor: %q is not a sha2-256 CID", s)
	}
	return CID{c: c}, nil
}

// String renders the CID as a base32-lower CIDv1 string, the wire form
// used everywhere a CID appears in a message or index key.
func (id CID) String() string {
	if !id.c.Defined() {
		return ""
	}
	s, err := id.c.StringOfBase(multibase.Base32)
	if err != nil {
		// cid.Cid.String() already defaults to base32 for CIDv1; this path
		// is unreachable in practice but kept defensive rather than panicking.
		return id.c.String()
	}
	return s
}

// Bytes returns the raw multihash-wrapped CID bytes.
func (id CID) Bytes() []byte { return id.c.Bytes() }

// IsDefined reports whether this CID holds a value.
func (id CID) IsDefined() bool { return id.c.Defined() }

// Equal reports whether two CIDs identify the same content.
func (id CID) Equal(other CID) bool { return id.c.Equals(other.c) }

// Less provides the lexicographic-by-string ordering used to break ties
// between writes carrying identical timestamps.
func (id CID) Less(other CID) bool { return id.String() < other.String() }
