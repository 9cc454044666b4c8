// Package archive stores closed transaction records (with their timeline)
// as JSON objects in an S3-compatible bucket.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tradepost/internal/domain"
)

// Record is the archived form of a finished transaction.
type Record struct {
	Transaction domain.Transaction     `json:"transaction"`
	Payment     *domain.Payment        `json:"payment,omitempty"`
	Shipments   []domain.Shipment      `json:"shipments,omitempty"`
	Timeline    []domain.TimelineEvent `json:"timeline"`
	Reviews     []domain.Review        `json:"reviews,omitempty"`
	ArchivedAt  time.Time              `json:"archivedAt"`
}

// Archiver persists a record. Implementations must be safe for concurrent use.
type Archiver interface {
	Archive(ctx context.Context, rec Record) error
}

// Key is the object path: transactions/<yyyy>/<mm>/<id>.json
func Key(rec Record) string {
	t := rec.Transaction.UpdatedAt.UTC()
	return fmt.Sprintf("transactions/%04d/%02d/%s.json", t.Year(), int(t.Month()), rec.Transaction.ID)
}

// Putter is the slice of the S3 writer the archiver needs.
type Putter interface {
	Put(ctx context.Context, key string, body *bytes.Reader, contentType string) error
}

type BlobArchiver struct{ w Putter }

func NewBlobArchiver(w Putter) *BlobArchiver { return &BlobArchiver{w: w} }

func (a *BlobArchiver) Archive(ctx context.Context, rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("archive: encode %s: %w", rec.Transaction.ID, err)
	}
	return a.w.Put(ctx, Key(rec), bytes.NewReader(b), "application/json")
}

// Nop drops records; used when no bucket is configured.
type Nop struct{}

func (Nop) Archive(context.Context, Record) error { return nil }
