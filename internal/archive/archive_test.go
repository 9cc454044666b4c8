package archive_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"tradepost/internal/archive"
	"tradepost/internal/domain"
)

type memPutter struct {
	key, contentType string
	body             []byte
}

func (m *memPutter) Put(_ context.Context, key string, body *bytes.Reader, contentType string) error {
	b, err := io.ReadAll(body)
	m.key, m.contentType, m.body = key, contentType, b
	return err
}

func TestBlobArchiverWritesJSON(t *testing.T) {
	p := &memPutter{}
	a := archive.NewBlobArchiver(p)
	rec := archive.Record{
		Transaction: domain.Transaction{ID: "t-9", Status: "COMPLETED", UpdatedAt: time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)},
		Timeline:    []domain.TimelineEvent{{Seq: 1, Kind: domain.EventStatusChanged, ToStatus: "COMPLETED"}},
	}
	if err := a.Archive(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	if p.key != "transactions/2026/03/t-9.json" || p.contentType != "application/json" {
		t.Fatalf("key=%q type=%q", p.key, p.contentType)
	}
	var back archive.Record
	if err := json.Unmarshal(p.body, &back); err != nil {
		t.Fatal(err)
	}
	if back.Transaction.ID != "t-9" || len(back.Timeline) != 1 {
		t.Fatalf("decoded: %+v", back)
	}
}
