package dwn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDescriptor() Descriptor {
	return Descriptor{
		FieldInterface:        string(InterfaceRecords),
		FieldMethod:           string(MethodWrite),
		FieldSchema:           "schema-1",
		FieldDateCreated:      "2024-01-01T00:00:00Z",
		FieldMessageTimestamp: "2024-01-01T00:00:00Z",
	}
}

func TestEntryIDIsDeterministic(t *testing.T) {
	d := sampleDescriptor()
	a, err := EntryID(d, "did:example:alice")
	require.NoError(t, err)
	b, err := EntryID(d, "did:example:alice")
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
}

func TestEntryIDVariesByAuthor(t *testing.T) {
	d := sampleDescriptor()
	a, err := EntryID(d, "did:example:alice")
	require.NoError(t, err)
	b, err := EntryID(d, "did:example:bob")
	require.NoError(t, err)
	assert.False(t, a.Equal(b))
}

// TestEntryIDIgnoresRecordID is the regression check for the self-reference
// hazard this package used to have: recordId is minted from entryId, so
// EntryID must produce the same value whether or not the descriptor it is
// given already carries that recordId back in.
func TestEntryIDIgnoresRecordID(t *testing.T) {
	d := sampleDescriptor()
	before, err := EntryID(d, "did:example:alice")
	require.NoError(t, err)

	withRecordID := d.Clone()
	withRecordID[FieldRecordID] = before.String()
	after, err := EntryID(withRecordID, "did:example:alice")
	require.NoError(t, err)

	assert.True(t, before.Equal(after))
}

func TestMessageCIDIgnoresEncodedData(t *testing.T) {
	d := sampleDescriptor()
	msgInline := Message{Descriptor: d, EncodedData: []byte("payload")}
	msgReferenced := Message{Descriptor: d}

	a, err := MessageCID(msgInline)
	require.NoError(t, err)
	b, err := MessageCID(msgReferenced)
	require.NoError(t, err)
	assert.True(t, a.Equal(b), "messageCid must not depend on whether data is inlined")
}

func TestMessageCIDVariesByAuthorization(t *testing.T) {
	d := sampleDescriptor()
	plain := Message{Descriptor: d}
	signed := Message{
		Descriptor: d,
		Authorization: &Authorization{
			Payload:    AuthPayload{DescriptorCID: "some-cid"},
			Signatures: []JWSSignature{{Signature: []byte("sig")}},
		},
	}

	a, err := MessageCID(plain)
	require.NoError(t, err)
	b, err := MessageCID(signed)
	require.NoError(t, err)
	assert.False(t, a.Equal(b))
}

func TestDescriptorCIDIgnoresAuthorization(t *testing.T) {
	d := sampleDescriptor()
	a, err := DescriptorCID(d)
	require.NoError(t, err)

	signed := Message{
		Descriptor: d.Clone(),
		Authorization: &Authorization{
			Payload:    AuthPayload{DescriptorCID: "some-cid"},
			Signatures: []JWSSignature{{Signature: []byte("sig")}},
		},
	}
	b, err := DescriptorCID(signed.Descriptor)
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
}
