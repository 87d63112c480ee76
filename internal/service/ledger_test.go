package service

import (
	"errors"
	"testing"

	"bitodash/internal/domain"
)

type fakeJournal struct {
	entries   []domain.AssetEntry
	appendErr error
}

func (f *fakeJournal) AppendAsset(entry *domain.AssetEntry) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeJournal) ListAssets() ([]domain.AssetEntry, error) {
	return f.entries, nil
}

func TestLedger_Mirror(t *testing.T) {
	journal := &fakeJournal{}
	svc := NewLedgerService(journal)

	svc.Mirror(domain.AssetRecord{Target: "BTC", Date: "2024-01-01", Quantity: dec(t, "0.5"), Amount: dec(t, "15000")})

	if len(journal.entries) != 1 {
		t.Fatalf("Expected 1 journal entry, got %d", len(journal.entries))
	}
	entry := journal.entries[0]
	if entry.Target != "BTC" || entry.Quantity != "0.5" || entry.Amount != "15000" {
		t.Errorf("Entry lost data: %+v", entry)
	}
}

func TestLedger_MirrorSwallowsJournalFailure(t *testing.T) {
	journal := &fakeJournal{appendErr: errors.New("disk full")}
	svc := NewLedgerService(journal)

	// Must not panic and must not propagate: the remote write already happened.
	svc.Mirror(domain.AssetRecord{Target: "BTC", Quantity: dec(t, "1"), Amount: dec(t, "1")})
}

func TestLedger_LocalSummaries(t *testing.T) {
	journal := &fakeJournal{entries: []domain.AssetEntry{
		{ID: 1, Target: "BTC", Quantity: "1", Amount: "100"},
		{ID: 2, Target: "BTC", Quantity: "2", Amount: "200"},
		{ID: 3, Target: "VT", Quantity: "corrupt", Amount: "10"}, // skipped
		{ID: 4, Target: "VT", Quantity: "5", Amount: "50"},
	}}
	svc := NewLedgerService(journal)

	summaries, err := svc.LocalSummaries()
	if err != nil {
		t.Fatalf("LocalSummaries failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("Expected 2 summaries, got %d", len(summaries))
	}
	if !summaries[0].TotalQuantity.Equal(dec(t, "3")) {
		t.Errorf("BTC total: expected 3, got %s", summaries[0].TotalQuantity)
	}
	// The corrupt row contributes nothing but VT still aggregates
	if !summaries[1].TotalQuantity.Equal(dec(t, "5")) {
		t.Errorf("VT total: expected 5, got %s", summaries[1].TotalQuantity)
	}
}
