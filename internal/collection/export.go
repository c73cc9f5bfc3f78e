package collection

import (
	"github.com/Frrank1/arangodb/internal/keycodec"
	"github.com/Frrank1/arangodb/internal/lsmengine"
	"github.com/Frrank1/arangodb/internal/storeerr"
)

// ExportedDocument is one row copied out of a collection for export.
type ExportedDocument struct {
	RevisionID uint64
	Payload    []byte
}

// FieldFilter lists fields to include in or exclude from an exported
// document. BuildExport records the filter in Export.Fields only:
// payload bytes are copied unchanged, and neither Cursor nor Page
// consults the filter, so every field of every row is passed through
// as stored.
type FieldFilter struct {
	Include []string
	Exclude []string
}

// Export holds a consistent, point-in-time copy of a collection's live
// documents, subject to an optional limit.
type Export struct {
	CID    uint64
	Fields FieldFilter
	Rows   []ExportedDocument
}

// BuildExport iterates every live document under p's ObjectID within
// snapshot's point-in-time view, copying payload bytes into an Export.
// limit caps the number of rows copied; 0 means unlimited. The
// snapshot is not closed by BuildExport — the caller (typically a
// ReplicationContext) owns its lifetime.
func (p *Physical) BuildExport(snapshot lsmengine.Snapshot, fields FieldFilter, limit int) (*Export, error) {
	bounds := keycodec.DocumentsBounds(p.ObjectID)
	it, err := snapshot.NewIterator(bounds.Start, bounds.End)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	result := &Export{CID: p.CID, Fields: fields}
	for it.First(); it.Valid(); it.Next() {
		if limit > 0 && len(result.Rows) >= limit {
			break
		}
		_, revisionID, err := keycodec.DecodeDocument(it.Key())
		if err != nil {
			continue
		}
		payload := make([]byte, len(it.Value()))
		copy(payload, it.Value())
		result.Rows = append(result.Rows, ExportedDocument{RevisionID: revisionID, Payload: payload})
	}
	return result, nil
}

// Cursor paginates an Export's rows.
type Cursor struct {
	export *Export
	offset int
	page   int
}

// NewCursor starts a cursor over export, paginating page rows at a
// time.
func NewCursor(export *Export, page int) *Cursor {
	if page <= 0 {
		page = 1000
	}
	return &Cursor{export: export, page: page}
}

// Page is one result page: the rows, whether more remain, and the row
// count. Next leaves ID empty.
type Page struct {
	Result  []ExportedDocument
	HasMore bool
	ID      string
	Count   int
}

// Next returns the next page, or CursorNotFound if the cursor has
// already been exhausted.
func (c *Cursor) Next() (Page, error) {
	if c.offset >= len(c.export.Rows) {
		return Page{}, storeerr.NewCursorNotFound(0)
	}
	end := c.offset + c.page
	if end > len(c.export.Rows) {
		end = len(c.export.Rows)
	}
	rows := c.export.Rows[c.offset:end]
	c.offset = end
	return Page{
		Result:  rows,
		HasMore: c.offset < len(c.export.Rows),
		Count:   len(rows),
	}, nil
}
