// Package collection implements the Physical Collection: CRUD on one
// collection's documents and secondary indexes, routed through a
// Transaction State and encoded via the Key Codec.
package collection

import (
	"time"

	"github.com/Frrank1/arangodb/internal/keycodec"
	"github.com/Frrank1/arangodb/internal/storeerr"
	"github.com/Frrank1/arangodb/internal/txn"
)

// Type distinguishes document collections from edge collections, which
// additionally require `_from`/`_to` on every document.
type Type int

const (
	TypeDocument Type = iota
	TypeEdge
)

// Index is the abstraction every secondary index (unique or
// non-unique) implements: given a document's key and value, produce
// the index entries to insert or remove.
type Index interface {
	// Insert stages the index entries for doc under txn, returning
	// UniqueConstraintViolated if doc collides with an existing entry
	// on a unique index.
	Insert(t *txn.State, objectID, revisionID uint64, doc []byte) error
	Remove(t *txn.State, objectID, revisionID uint64, doc []byte) error
}

// Physical is the per-collection controller exposing CRUD. ObjectID is
// the collection's internal LSM identity; CID is its external
// collection ID.
type Physical struct {
	ObjectID uint64
	CID      uint64
	Kind     Type
	indexes  []Index
	guard    WriteGuard
}

// WriteGuard is consulted before a bulk write (currently only
// RestoreData) admits a document, so that a collection under disk
// pressure rejects restore traffic instead of filling the volume.
type WriteGuard interface {
	CheckBeforeWrite(estimatedBytes uint64) error
}

// New constructs a Physical collection controller. AddIndex registers
// additional secondary indexes to maintain on every write.
func New(objectID, cid uint64, kind Type) *Physical {
	return &Physical{ObjectID: objectID, CID: cid, Kind: kind}
}

func (p *Physical) AddIndex(idx Index) {
	p.indexes = append(p.indexes, idx)
}

// SetWriteGuard installs the guard RestoreData consults before each
// bulk insert. A nil guard (the default) admits every write.
func (p *Physical) SetWriteGuard(g WriteGuard) {
	p.guard = g
}

// Read fetches the document at revisionID, or the error NotFound maps
// to if it has been removed or never existed, scoped to t's read view.
//
// This always returns the value stored directly under the document
// key. Large values stored indirectly, with the document key holding a
// pointer to a separate blob rather than the content itself, are not
// followed here; this collection keeps every value inline.
func (p *Physical) Read(t *txn.State, revisionID uint64) ([]byte, error) {
	key := keycodec.EncodeDocument(p.ObjectID, revisionID)
	value, err := t.LSMTransaction().Get(key)
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Insert writes a new document at a freshly assigned revisionID,
// maintains every secondary index, and records the operation against
// t. On any index rejection the write is rolled back to a save-point
// taken before the document key was written and the rejection's error
// is returned unchanged.
func (p *Physical) Insert(t *txn.State, revisionID uint64, doc []byte) error {
	if err := p.validate(doc); err != nil {
		return err
	}

	sp := txn.OpenSavePoint(t)
	key := keycodec.EncodeDocument(p.ObjectID, revisionID)

	if err := t.LSMTransaction().Put(key, doc); err != nil {
		_ = sp.Close()
		return err
	}
	if err := p.insertIndexes(t, revisionID, doc); err != nil {
		_ = sp.Close()
		return err
	}
	sp.Commit()

	return t.AddOperation(p.ObjectID, revisionID, txn.OpInsert, int64(len(doc)))
}

// Replace overwrites an existing document's value at a new revisionID,
// removing the old index entries and inserting the new ones.
func (p *Physical) Replace(t *txn.State, oldRevisionID, newRevisionID uint64, oldDoc, newDoc []byte) error {
	sp := txn.OpenSavePoint(t)

	if err := p.removeIndexes(t, oldRevisionID, oldDoc); err != nil {
		_ = sp.Close()
		return err
	}
	if err := t.LSMTransaction().Delete(keycodec.EncodeDocument(p.ObjectID, oldRevisionID)); err != nil {
		_ = sp.Close()
		return err
	}
	if err := t.LSMTransaction().Put(keycodec.EncodeDocument(p.ObjectID, newRevisionID), newDoc); err != nil {
		_ = sp.Close()
		return err
	}
	if err := p.insertIndexes(t, newRevisionID, newDoc); err != nil {
		_ = sp.Close()
		return err
	}
	sp.Commit()

	return t.AddOperation(p.ObjectID, newRevisionID, txn.OpUpdate, int64(len(newDoc)))
}

// Remove deletes a document and its index entries.
func (p *Physical) Remove(t *txn.State, revisionID uint64, doc []byte) error {
	sp := txn.OpenSavePoint(t)

	if err := p.removeIndexes(t, revisionID, doc); err != nil {
		_ = sp.Close()
		return err
	}
	if err := t.LSMTransaction().Delete(keycodec.EncodeDocument(p.ObjectID, revisionID)); err != nil {
		_ = sp.Close()
		return err
	}
	sp.Commit()

	return t.AddOperation(p.ObjectID, revisionID, txn.OpRemove, int64(len(doc)))
}

func (p *Physical) insertIndexes(t *txn.State, revisionID uint64, doc []byte) error {
	for i, idx := range p.indexes {
		if err := idx.Insert(t, p.ObjectID, revisionID, doc); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = p.indexes[j].Remove(t, p.ObjectID, revisionID, doc)
			}
			return err
		}
	}
	return nil
}

func (p *Physical) removeIndexes(t *txn.State, revisionID uint64, doc []byte) error {
	for _, idx := range p.indexes {
		if err := idx.Remove(t, p.ObjectID, revisionID, doc); err != nil {
			return err
		}
	}
	return nil
}

// NextRevisionID derives a fresh monotonic revision ID. Collisions are
// astronomically unlikely at nanosecond resolution but callers that
// need a strict guarantee should source revisionIDs from a counter
// instead.
func NextRevisionID() uint64 {
	return uint64(time.Now().UnixNano())
}

// validate enforces the edge-collection invariant that every document
// carries `_from`/`_to` markers. Document collections impose no shape
// requirement here: `_key`/`_rev` injection is the caller's
// responsibility before building doc.
func (p *Physical) validate(doc []byte) error {
	if p.Kind != TypeEdge {
		return nil
	}
	if !containsMarker(doc, "_from") || !containsMarker(doc, "_to") {
		return storeerr.NewBadParameter("collection: edge document missing _from/_to")
	}
	return nil
}

func containsMarker(doc []byte, marker string) bool {
	m := []byte(marker)
	for i := 0; i+len(m) <= len(doc); i++ {
		if string(doc[i:i+len(m)]) == marker {
			return true
		}
	}
	return false
}
