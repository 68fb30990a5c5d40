// Package cidcbor implements the canonical encoding layer: a deterministic
// DAG-CBOR encoder and the CIDv1/SHA-256 content identifier derived from
// it. One encoder is shared by the CID path and the signing path so no
// alternate encoding of the same value can ever yield a different
// identifier.
package cidcbor

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	// ErrFloatNotAllowed is returned when a value destined for canonical
	// encoding contains a floating point number; the canonical encoding
	// admits no floating point representations.
	ErrFloatNotAllowed = errors.New("cidcbor: floating point values are not permitted in canonical encoding")
)

var encMode = func() cbor.EncMode {
	// cbor.CoreDetEncOptions returns the "Core Deterministic Encoding"
	// preset from RFC 8949 §4.2.1: map keys sorted by their encoded bytes,
	// shortest-form integers, no indefinite length items.
	opts := cbor.CoreDetEncOptions()
	mode, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("cidcbor: invalid canonical encode options: %v", err))
	}
	return mode
}()

var decMode = func() cbor.DecMode {
	opts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
		IntDec:      cbor.IntDecConvertNone,
		TagsMd:      cbor.TagsForbidden,
	}
	mode, err := opts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("cidcbor: invalid canonical decode options: %v", err))
	}
	return mode
}()

// Encode canonically encodes v to DAG-CBOR bytes. v must not contain any
// floating point value anywhere in its structure (ErrFloatNotAllowed).
func Encode(v any) ([]byte, error) {
	if err := rejectFloats(reflect.ValueOf(v)); err != nil {
		return nil, err
	}
	return encMode.Marshal(v)
}

// Decode decodes canonical DAG-CBOR bytes into v.
func Decode(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Roundtrip re-encodes whatever data decodes into a generic value, verifying
// decode(encode(x)) == x in byte form. It is used by callers that accept
// encoded bytes from an untrusted source and must re-derive a CID only from
// the canonical form, so an alternate encoding of the same value can never
// produce a different identifier.
func Roundtrip(data []byte) ([]byte, error) {
	var generic any
	if err := decMode.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("cidcbor: decode for roundtrip: %w", err)
	}
	out, err := encMode.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("cidcbor: re-encode for roundtrip: %w", err)
	}
	return out, nil
}

func rejectFloats(v reflect.Value) error {
	if !v.IsValid() {
		return nil
	}
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return ErrFloatNotAllowed
	case reflect.Interface, reflect.Ptr:
		if v.IsNil() {
			return nil
		}
		return rejectFloats(v.Elem())
	case reflect.Map:
		for _, k := range v.MapKeys() {
			if err := rejectFloats(k); err != nil {
				return err
			}
			if err := rejectFloats(v.MapIndex(k)); err != nil {
				return err
			}
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := rejectFloats(v.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if !v.Field(i).CanInterface() {
				continue
			}
			if err := rejectFloats(v.Field(i)); err != nil {
				return err
			}
		}
	}
	return nil
}
