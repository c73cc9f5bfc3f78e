// Package keycodec encodes logical entities (database, collection,
// document, index entry, counter) into lexicographically sortable LSM
// keys, and computes range bounds for iterating over one entity kind
// without observing another.
package keycodec

import (
	"encoding/binary"

	"github.com/Frrank1/arangodb/internal/storeerr"
)

// Tag is the single-byte entry-type discriminator every key begins with.
type Tag byte

const (
	TagDatabase         Tag = 1
	TagCollection       Tag = 2
	TagDocument         Tag = 3
	TagPrimaryIndexValue Tag = 4
	TagEdgeIndexValue    Tag = 5
	TagIndexValue        Tag = 6
	TagUniqueIndexValue  Tag = 7
	TagView              Tag = 8
	TagCounterValue      Tag = 9
	TagIndex             Tag = 10
)

const separator = 0x00

func putUint64(b []byte, v uint64) {
	binary.BigEndian.PutUint64(b, v)
}

// EncodeDatabase encodes the single Database key: just the tag.
func EncodeDatabase() []byte {
	return []byte{byte(TagDatabase)}
}

// EncodeCollection encodes `tag ‖ dbId ‖ cid`.
func EncodeCollection(dbID, cid uint64) []byte {
	buf := make([]byte, 1+8+8)
	buf[0] = byte(TagCollection)
	putUint64(buf[1:9], dbID)
	putUint64(buf[9:17], cid)
	return buf
}

// DecodeCollection decodes a Collection key back into (dbID, cid).
func DecodeCollection(key []byte) (dbID, cid uint64, err error) {
	if len(key) != 17 || Tag(key[0]) != TagCollection {
		return 0, 0, storeerr.NewBadParameter("keycodec: not a valid Collection key")
	}
	return binary.BigEndian.Uint64(key[1:9]), binary.BigEndian.Uint64(key[9:17]), nil
}

// EncodeDocument encodes `tag ‖ objectId ‖ revisionId`.
func EncodeDocument(objectID, revisionID uint64) []byte {
	buf := make([]byte, 1+8+8)
	buf[0] = byte(TagDocument)
	putUint64(buf[1:9], objectID)
	putUint64(buf[9:17], revisionID)
	return buf
}

// DecodeDocument decodes a Document key back into (objectID, revisionID).
func DecodeDocument(key []byte) (objectID, revisionID uint64, err error) {
	if len(key) != 17 || Tag(key[0]) != TagDocument {
		return 0, 0, storeerr.NewBadParameter("keycodec: not a valid Document key")
	}
	return binary.BigEndian.Uint64(key[1:9]), binary.BigEndian.Uint64(key[9:17]), nil
}

func encodeTaggedID(tag Tag, id uint64) []byte {
	buf := make([]byte, 1+8)
	buf[0] = byte(tag)
	putUint64(buf[1:9], id)
	return buf
}

func decodeTaggedID(tag Tag, key []byte) (uint64, error) {
	if len(key) != 9 || Tag(key[0]) != tag {
		return 0, storeerr.NewBadParameter("keycodec: key does not match expected tag")
	}
	return binary.BigEndian.Uint64(key[1:9]), nil
}

// EncodePrimaryIndexValue encodes `tag ‖ id64`.
func EncodePrimaryIndexValue(id uint64) []byte { return encodeTaggedID(TagPrimaryIndexValue, id) }

// DecodePrimaryIndexValue reverses EncodePrimaryIndexValue.
func DecodePrimaryIndexValue(key []byte) (uint64, error) {
	return decodeTaggedID(TagPrimaryIndexValue, key)
}

// EncodeEdgeIndexValue encodes `tag ‖ id64`, the non-vertex-lookup form.
func EncodeEdgeIndexValue(id uint64) []byte { return encodeTaggedID(TagEdgeIndexValue, id) }

// DecodeEdgeIndexValue reverses EncodeEdgeIndexValue.
func DecodeEdgeIndexValue(key []byte) (uint64, error) {
	return decodeTaggedID(TagEdgeIndexValue, key)
}

// EncodeEdgeIndexValueByVertex encodes the vertex-lookup form:
// `tag ‖ indexId ‖ vertexIdBytes ‖ 0x00`.
func EncodeEdgeIndexValueByVertex(indexID uint64, vertexID []byte) []byte {
	buf := make([]byte, 0, 1+8+len(vertexID)+1)
	buf = append(buf, byte(TagEdgeIndexValue))
	var idBuf [8]byte
	putUint64(idBuf[:], indexID)
	buf = append(buf, idBuf[:]...)
	buf = append(buf, vertexID...)
	buf = append(buf, separator)
	return buf
}

// DecodeEdgeIndexValueByVertex reverses EncodeEdgeIndexValueByVertex.
func DecodeEdgeIndexValueByVertex(key []byte) (indexID uint64, vertexID []byte, err error) {
	if len(key) < 1+8+1 || Tag(key[0]) != TagEdgeIndexValue || key[len(key)-1] != separator {
		return 0, nil, storeerr.NewBadParameter("keycodec: not a valid edge-by-vertex key")
	}
	indexID = binary.BigEndian.Uint64(key[1:9])
	vertexID = key[9 : len(key)-1]
	return indexID, vertexID, nil
}

// EncodeView encodes `tag ‖ id64`.
func EncodeView(id uint64) []byte { return encodeTaggedID(TagView, id) }

// DecodeView reverses EncodeView.
func DecodeView(key []byte) (uint64, error) { return decodeTaggedID(TagView, key) }

// EncodeIndex encodes `tag ‖ dbId ‖ cid`.
func EncodeIndex(dbID, cid uint64) []byte {
	buf := make([]byte, 1+8+8)
	buf[0] = byte(TagIndex)
	putUint64(buf[1:9], dbID)
	putUint64(buf[9:17], cid)
	return buf
}

// DecodeIndex reverses EncodeIndex.
func DecodeIndex(key []byte) (dbID, cid uint64, err error) {
	if len(key) != 17 || Tag(key[0]) != TagIndex {
		return 0, 0, storeerr.NewBadParameter("keycodec: not a valid Index key")
	}
	return binary.BigEndian.Uint64(key[1:9]), binary.BigEndian.Uint64(key[9:17]), nil
}

func encodeIndexValue(tag Tag, indexID uint64, vpackKey []byte) []byte {
	buf := make([]byte, 0, 1+8+len(vpackKey)+1)
	buf = append(buf, byte(tag))
	var idBuf [8]byte
	putUint64(idBuf[:], indexID)
	buf = append(buf, idBuf[:]...)
	buf = append(buf, vpackKey...)
	buf = append(buf, separator)
	return buf
}

func decodeIndexValue(tag Tag, key []byte) (indexID uint64, vpackKey []byte, err error) {
	if len(key) < 1+8+1 || Tag(key[0]) != tag || key[len(key)-1] != separator {
		return 0, nil, storeerr.NewBadParameter("keycodec: not a valid index-value key")
	}
	indexID = binary.BigEndian.Uint64(key[1:9])
	vpackKey = key[9 : len(key)-1]
	return indexID, vpackKey, nil
}

// EncodeIndexValue encodes a non-unique index entry: `tag ‖ indexId ‖ vpackKey ‖ 0x00`.
func EncodeIndexValue(indexID uint64, vpackKey []byte) []byte {
	return encodeIndexValue(TagIndexValue, indexID, vpackKey)
}

// DecodeIndexValue reverses EncodeIndexValue.
func DecodeIndexValue(key []byte) (indexID uint64, vpackKey []byte, err error) {
	return decodeIndexValue(TagIndexValue, key)
}

// EncodeUniqueIndexValue encodes a unique index entry: `tag ‖ indexId ‖ vpackKey ‖ 0x00`.
func EncodeUniqueIndexValue(indexID uint64, vpackKey []byte) []byte {
	return encodeIndexValue(TagUniqueIndexValue, indexID, vpackKey)
}

// DecodeUniqueIndexValue reverses EncodeUniqueIndexValue.
func DecodeUniqueIndexValue(key []byte) (indexID uint64, vpackKey []byte, err error) {
	return decodeIndexValue(TagUniqueIndexValue, key)
}

// EncodeCounterValue encodes `tag ‖ objectId`.
func EncodeCounterValue(objectID uint64) []byte { return encodeTaggedID(TagCounterValue, objectID) }

// DecodeCounterValue reverses EncodeCounterValue.
func DecodeCounterValue(key []byte) (uint64, error) { return decodeTaggedID(TagCounterValue, key) }

// NextPrefix computes the smallest key lexicographically greater than
// every key sharing `prefix`. Scans from the last byte: if it is 0xFF,
// moves one position left; otherwise increments that byte and truncates
// everything after it. If every byte was 0xFF, appends a single 0x00.
func NextPrefix(prefix []byte) []byte {
	out := make([]byte, len(prefix))
	copy(out, prefix)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] != 0xFF {
			out[i]++
			return out[:i+1]
		}
	}
	return append(out, 0x00)
}
