package collection

import (
	"bufio"
	"encoding/json"
	"io"
	"strconv"

	"github.com/Frrank1/arangodb/internal/storeerr"
	"github.com/Frrank1/arangodb/internal/txn"
)

// MarkerType is the restore-stream marker's wire-format `type` code.
type MarkerType int

const (
	// MarkerDocument is an insert/replace marker. Legacy edge markers
	// (2301) carry no information this collection treats differently
	// from a document marker, so parseMarkers folds them onto 2300.
	MarkerDocument   MarkerType = 2300
	markerEdgeLegacy MarkerType = 2301
	MarkerRemove     MarkerType = 2302
)

// Marker is one line of a restore-data stream: `{type, key, data?, rev?}`.
// Data is the document's JSON object, carried opaquely through to
// Insert/Replace; Rev, when present, is the revision the source
// assigned and is preserved rather than re-minted on restore.
type Marker struct {
	Type MarkerType      `json:"type"`
	Key  string          `json:"key"`
	Data json.RawMessage `json:"data,omitempty"`
	Rev  string          `json:"rev,omitempty"`
}

// RestoreData implements the three-phase idempotent restore algorithm:
// parse the newline-delimited marker stream, retain only the latest
// marker per key, partition into deletes and documents, bulk-remove
// the delete set (ignoring not-found), then bulk-insert the document
// set with ignoreRevs/isRestore semantics, retrying any
// UniqueConstraintViolated insert as a replace. Replaying the same
// stream twice reaches the same end state.
func (p *Physical) RestoreData(t *txn.State, r io.Reader) error {
	latest, err := parseMarkers(r)
	if err != nil {
		return err
	}

	var deletes []Marker
	var documents []Marker
	for _, m := range latest {
		if m.Type == MarkerRemove {
			deletes = append(deletes, m)
		} else {
			documents = append(documents, m)
		}
	}

	for _, m := range deletes {
		revisionID, doc, err := p.lookupForRemoval(t, m)
		if err != nil {
			if storeerr.Is(err, storeerr.NotFound) {
				continue
			}
			return err
		}
		if err := p.Remove(t, revisionID, doc); err != nil && !storeerr.Is(err, storeerr.NotFound) {
			return err
		}
	}

	for _, m := range documents {
		if p.guard != nil {
			if err := p.guard.CheckBeforeWrite(uint64(len(m.Data))); err != nil {
				return storeerr.New(storeerr.Internal, "collection: restore rejected by write guard", err)
			}
		}
		revisionID, err := markerRevisionID(m)
		if err != nil {
			return err
		}
		if err := p.Insert(t, revisionID, []byte(m.Data)); err != nil {
			if storeerr.Is(err, storeerr.UniqueConstraintViolated) {
				oldDoc, rerr := p.Read(t, revisionID)
				if rerr != nil {
					return err
				}
				if err := p.Replace(t, revisionID, revisionID, oldDoc, []byte(m.Data)); err != nil {
					return err
				}
				continue
			}
			return err
		}
	}
	return nil
}

// parseMarkers reads newline-delimited JSON markers and retains only
// the latest marker observed for each key, in stream order.
func parseMarkers(r io.Reader) (map[string]Marker, error) {
	latest := make(map[string]Marker)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var m Marker
		if err := json.Unmarshal(line, &m); err != nil {
			return nil, storeerr.NewCorruptedJson("collection: malformed restore marker", err)
		}
		if m.Type == markerEdgeLegacy {
			m.Type = MarkerDocument
		}
		if m.Key == "" {
			return nil, storeerr.NewBadParameter("collection: restore marker missing key")
		}
		latest[m.Key] = m
	}
	if err := scanner.Err(); err != nil {
		return nil, storeerr.NewInternal("collection: failed reading restore stream", err)
	}
	return latest, nil
}

// markerKey extracts the document's `_key` from a marker's data
// object, falling back to the marker's wire-format key when data is
// absent (remove markers carry no data).
func markerKey(m Marker) (string, error) {
	if len(m.Data) == 0 {
		return m.Key, nil
	}
	var fields struct {
		Key string `json:"_key"`
	}
	if err := json.Unmarshal(m.Data, &fields); err != nil {
		return "", storeerr.NewCorruptedJson("collection: malformed restore marker data", err)
	}
	if fields.Key == "" {
		return m.Key, nil
	}
	return fields.Key, nil
}

// markerRevisionID resolves the revision a document marker should be
// written at. A marker carrying an explicit `rev` (the source's
// assigned revision) is written at that exact revision, so a replayed
// stream always lands on the same slot. Absent that, the revision is
// derived deterministically from the document's `_key`: this package
// owns no persisted `_key`→revisionID index of its own, so a stable
// hash of the decoded key is the closest idempotent substitute
// available without one.
func markerRevisionID(m Marker) (uint64, error) {
	if m.Rev != "" {
		rev, err := strconv.ParseUint(m.Rev, 10, 64)
		if err != nil {
			return 0, storeerr.NewBadParameter("collection: restore marker has malformed rev")
		}
		return rev, nil
	}
	key, err := markerKey(m)
	if err != nil {
		return 0, err
	}
	return hashKey(key), nil
}

// lookupForRemoval resolves the revision and last-known document
// content a remove marker should act on, using the same derivation
// markerRevisionID uses for inserts so a remove addresses the slot an
// earlier insert of the same key would have landed on. A bare remove
// marker carries no `data` (2302), so the prior document is read back
// through Read and handed to index removal; a NotFound from Read is
// returned to the caller unchanged.
func (p *Physical) lookupForRemoval(t *txn.State, m Marker) (uint64, []byte, error) {
	revisionID, err := markerRevisionID(m)
	if err != nil {
		return 0, nil, err
	}
	doc, err := p.Read(t, revisionID)
	if err != nil {
		return 0, nil, err
	}
	return revisionID, doc, nil
}

// hashKey derives a stable, non-cryptographic 64-bit value from a
// document key string.
func hashKey(key string) uint64 {
	h := uint64(14695981039346656037) // FNV-1a offset basis
	for i := 0; i < len(key); i++ {
		h ^= uint64(key[i])
		h *= 1099511628211 // FNV-1a prime
	}
	return h
}
