package collection

import (
	"github.com/Frrank1/arangodb/internal/keycodec"
	"github.com/Frrank1/arangodb/internal/storeerr"
	"github.com/Frrank1/arangodb/internal/txn"
	"github.com/Frrank1/arangodb/internal/vpack"
)

// ValueExtractor pulls the indexed value out of a raw document, e.g.
// looking up a field. Index implementations are extractor-agnostic so
// the same Unique/NonUnique machinery serves any field combination.
type ValueExtractor func(doc []byte) (vpack.Value, error)

// Unique is a secondary index that rejects a second document with the
// same indexed value. Uniqueness is decided solely by the
// transaction-isolated LSM Get below: it is the only state that is
// correctly scoped to a transaction's own writes and rolled back for
// free when that transaction aborts or a save-point unwinds, so no
// separate in-memory membership cache is kept alongside it.
type Unique struct {
	IndexID uint64
	Extract ValueExtractor
}

func NewUnique(indexID uint64, extract ValueExtractor) *Unique {
	return &Unique{IndexID: indexID, Extract: extract}
}

func (u *Unique) Insert(t *txn.State, objectID, revisionID uint64, doc []byte) error {
	val, err := u.Extract(doc)
	if err != nil {
		return err
	}
	encodedVal := vpack.Encode(val)
	key := keycodec.EncodeUniqueIndexValue(u.IndexID, encodedVal)

	if _, err := t.LSMTransaction().Get(key); err == nil {
		return storeerr.NewUniqueConstraintViolated(indexKeyName(u.IndexID), string(encodedVal))
	} else if !storeerr.Is(err, storeerr.NotFound) {
		return err
	}

	return t.LSMTransaction().Put(key, keycodec.EncodeDocument(objectID, revisionID))
}

func (u *Unique) Remove(t *txn.State, objectID, _ uint64, doc []byte) error {
	val, err := u.Extract(doc)
	if err != nil {
		return err
	}
	encodedVal := vpack.Encode(val)
	key := keycodec.EncodeUniqueIndexValue(u.IndexID, encodedVal)
	_ = objectID
	return t.LSMTransaction().Delete(key)
}

// NonUnique is a secondary index permitting any number of documents to
// share the same indexed value; the document's objectId/revisionId is
// appended to distinguish entries with identical values.
type NonUnique struct {
	IndexID uint64
	Extract ValueExtractor
}

func NewNonUnique(indexID uint64, extract ValueExtractor) *NonUnique {
	return &NonUnique{IndexID: indexID, Extract: extract}
}

func (n *NonUnique) Insert(t *txn.State, objectID, revisionID uint64, doc []byte) error {
	val, err := n.Extract(doc)
	if err != nil {
		return err
	}
	key := keycodec.EncodeIndexValue(n.IndexID, append(vpack.Encode(val), encodeDocSuffix(objectID, revisionID)...))
	return t.LSMTransaction().Put(key, nil)
}

func (n *NonUnique) Remove(t *txn.State, objectID, revisionID uint64, doc []byte) error {
	val, err := n.Extract(doc)
	if err != nil {
		return err
	}
	key := keycodec.EncodeIndexValue(n.IndexID, append(vpack.Encode(val), encodeDocSuffix(objectID, revisionID)...))
	return t.LSMTransaction().Delete(key)
}

func encodeDocSuffix(objectID, revisionID uint64) []byte {
	return keycodec.EncodeDocument(objectID, revisionID)
}

func indexKeyName(indexID uint64) string {
	return "index#" + itoa(indexID)
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
