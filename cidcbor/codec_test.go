package cidcbor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundtripLaw(t *testing.T) {
	values := []map[string]any{
		{"b": "2", "a": "1", "z": map[string]any{"y": int64(1), "x": int64(2)}},
		{"café": "unicode key", "naïve": true},
		{"bytes": []byte{0x01, 0x02, 0x03}},
	}

	for _, v := range values {
		encoded, err := Encode(v)
		require.NoError(t, err)

		id1, err := ComputeCID(encoded)
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, Decode(encoded, &decoded))

		reEncoded, err := Encode(decoded)
		require.NoError(t, err)

		id2, err := ComputeCID(reEncoded)
		require.NoError(t, err)

		assert.True(t, id1.Equal(id2), "cid(x) must equal cid(decode(encode(x)))")
		assert.Equal(t, encoded, reEncoded, "canonical encoding must be stable across re-encode")
	}
}

func TestEncodeRejectsFloats(t *testing.T) {
	_, err := Encode(map[string]any{"x": 1.5})
	assert.ErrorIs(t, err, ErrFloatNotAllowed)
}

func TestMapKeyOrderDoesNotAffectCID(t *testing.T) {
	a, err := CIDOf(map[string]any{"a": int64(1), "b": int64(2)})
	require.NoError(t, err)
	b, err := CIDOf(map[string]any{"b": int64(2), "a": int64(1)})
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
}

func TestParseRoundtrip(t *testing.T) {
	id, err := CIDOf(map[string]any{"k": "v"})
	require.NoError(t, err)

	parsed, err := Parse(id.String())
	require.NoError(t, err)
	assert.True(t, id.Equal(parsed))
}
