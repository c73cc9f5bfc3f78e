package txn

import "github.com/Frrank1/arangodb/internal/lsmengine"

// SavePoint is a scoped rollback point: Close rolls back to the point
// it was opened at unless Commit was called first. This is how a
// Physical Collection recovers from a rejected write (e.g. a unique
// constraint violation during restore) without aborting the whole
// transaction.
type SavePoint struct {
	txn       lsmengine.Transaction
	id        lsmengine.SavePointID
	committed bool
}

// OpenSavePoint records the transaction's current write position.
func OpenSavePoint(s *State) *SavePoint {
	return &SavePoint{txn: s.lsmTxn, id: s.lsmTxn.SetSavePoint()}
}

// Commit releases the save-point without rolling back; writes made
// since it was opened remain part of the transaction.
func (sp *SavePoint) Commit() {
	sp.committed = true
}

// Close rolls back to the save-point unless Commit was called. Safe to
// call unconditionally via defer.
func (sp *SavePoint) Close() error {
	if sp.committed {
		return nil
	}
	return sp.txn.RollbackToSavePoint(sp.id)
}
