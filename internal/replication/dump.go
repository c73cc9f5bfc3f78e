package replication

import (
	"github.com/Frrank1/arangodb/internal/collection"
	"github.com/Frrank1/arangodb/internal/storeerr"
)

// CollectionInventoryEntry describes one collection for getInventory.
type CollectionInventoryEntry struct {
	CID        uint64
	Name       string
	Type       collection.Type
	ObjectID   uint64
	System     bool
}

// Inventory is the response shape for getInventory: a status marker
// plus the set of collections visible to the caller.
type Inventory struct {
	Status      string
	Collections []CollectionInventoryEntry
}

// GetInventory returns every collection bound to the context's
// database, optionally excluding system collections.
func (c *Context) GetInventory(all []CollectionInventoryEntry, includeSystem bool) Inventory {
	inv := Inventory{Status: "ok"}
	for _, entry := range all {
		if entry.System && !includeSystem {
			continue
		}
		inv.Collections = append(inv.Collections, entry)
	}
	return inv
}

// DumpResult is the resumable-cursor shape `dump` returns: the highest
// tick represented in buffer, and whether more data remains past it.
type DumpResult struct {
	MaxTick uint64
	More    bool
}

// Dump copies up to chunkSize documents from p, starting after
// resumeAfterRevision (0 to start from the beginning), into buffer.
// Returning More=true means the caller should call Dump again with the
// last revision seen as the new resumeAfterRevision, making the dump
// resumable across multiple round trips rather than requiring the
// whole collection to fit in one response.
func (c *Context) Dump(p *collection.Physical, resumeAfterRevision uint64, chunkSize int, buffer *[]collection.ExportedDocument) (DumpResult, error) {
	if err := c.ensureBound(); err != nil {
		return DumpResult{}, err
	}

	export, err := p.BuildExport(c.snapshot, collection.FieldFilter{}, 0)
	if err != nil {
		return DumpResult{}, err
	}

	start := 0
	if resumeAfterRevision != 0 {
		for i, row := range export.Rows {
			if row.RevisionID == resumeAfterRevision {
				start = i + 1
				break
			}
		}
	}
	end := start + chunkSize
	if end > len(export.Rows) || chunkSize <= 0 {
		end = len(export.Rows)
	}

	*buffer = append(*buffer, export.Rows[start:end]...)

	var maxTick uint64
	for _, row := range export.Rows[start:end] {
		if row.RevisionID > maxTick {
			maxTick = row.RevisionID
		}
	}
	c.lastTick.Store(maxTick)
	more := end < len(export.Rows)
	c.moreAvailable.Store(more)

	return DumpResult{MaxTick: maxTick, More: more}, nil
}

func (c *Context) ensureBound() error {
	if c.snapshot == nil {
		return storeerr.NewInternal("replication: context has no bound snapshot", nil)
	}
	return nil
}
