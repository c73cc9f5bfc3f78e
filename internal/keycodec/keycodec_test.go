package keycodec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	t.Run("collection", func(t *testing.T) {
		key := EncodeCollection(7, 42)
		dbID, cid, err := DecodeCollection(key)
		require.NoError(t, err)
		require.Equal(t, uint64(7), dbID)
		require.Equal(t, uint64(42), cid)
	})

	t.Run("document", func(t *testing.T) {
		key := EncodeDocument(1, 99)
		objectID, revisionID, err := DecodeDocument(key)
		require.NoError(t, err)
		require.Equal(t, uint64(1), objectID)
		require.Equal(t, uint64(99), revisionID)
	})

	t.Run("counter_value", func(t *testing.T) {
		key := EncodeCounterValue(55)
		objectID, err := DecodeCounterValue(key)
		require.NoError(t, err)
		require.Equal(t, uint64(55), objectID)
	})

	t.Run("primary_index_value", func(t *testing.T) {
		key := EncodePrimaryIndexValue(123)
		id, err := DecodePrimaryIndexValue(key)
		require.NoError(t, err)
		require.Equal(t, uint64(123), id)
	})

	t.Run("edge_index_value_by_vertex", func(t *testing.T) {
		key := EncodeEdgeIndexValueByVertex(3, []byte("v/1"))
		indexID, vertexID, err := DecodeEdgeIndexValueByVertex(key)
		require.NoError(t, err)
		require.Equal(t, uint64(3), indexID)
		require.Equal(t, []byte("v/1"), vertexID)
	})

	t.Run("unique_index_value", func(t *testing.T) {
		key := EncodeUniqueIndexValue(9, []byte{0x04, 'x'})
		indexID, vpackKey, err := DecodeUniqueIndexValue(key)
		require.NoError(t, err)
		require.Equal(t, uint64(9), indexID)
		require.Equal(t, []byte{0x04, 'x'}, vpackKey)
	})
}

func TestNumericOrderingPreserved(t *testing.T) {
	a := EncodeDocument(1, 5)
	b := EncodeDocument(1, 6)
	require.Less(t, compareBytes(a, b), 0)

	c := EncodeCollection(1, 1)
	d := EncodeCollection(2, 0)
	require.Less(t, compareBytes(c, d), 0)
}

func TestNextPrefixBoundary(t *testing.T) {
	require.Equal(t, []byte{0xFF, 0xFF, 0x00}, NextPrefix([]byte{0xFF, 0xFF}))
	require.Equal(t, []byte{0x02}, NextPrefix([]byte{0x01, 0xFF}))
	require.Equal(t, []byte{0x06}, NextPrefix([]byte{0x05}))
}

func TestBoundsFormDisjointHalfOpenRanges(t *testing.T) {
	r := DocumentsBounds(1)
	key := EncodeDocument(1, 1)
	require.True(t, r.Contains(key))
	require.True(t, compareBytes(r.Start, key) <= 0)
	require.True(t, compareBytes(key, r.End) < 0)

	other := DocumentsBounds(2)
	require.False(t, other.Contains(key))
}

func TestDecodeRejectsWrongTag(t *testing.T) {
	_, _, err := DecodeDocument(EncodeCollection(1, 1))
	require.Error(t, err)
}
