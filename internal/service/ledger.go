package service

import (
	"log/slog"

	"bitodash/internal/domain"
)

// LedgerService mirrors successfully synced asset records into the local
// journal, so the dashboard keeps a queryable history even when the remote
// ledger is unreachable.
type LedgerService struct {
	journal domain.AssetJournal
	logger  *slog.Logger
}

// NewLedgerService creates a ledger mirror over the given journal.
func NewLedgerService(journal domain.AssetJournal) *LedgerService {
	return &LedgerService{
		journal: journal,
		logger:  slog.Default().With("module", "ledger"),
	}
}

// Mirror appends one record to the local journal. Best effort: a journal
// failure is logged, never propagated, because the remote write already
// succeeded.
func (s *LedgerService) Mirror(rec domain.AssetRecord) {
	entry := &domain.AssetEntry{
		Target:   rec.Target,
		Date:     rec.Date,
		Quantity: rec.Quantity.String(),
		Amount:   rec.Amount.String(),
	}
	if err := s.journal.AppendAsset(entry); err != nil {
		s.logger.Warn("Asset journal append failed",
			slog.String("target", rec.Target), slog.Any("error", err))
	}
}

// LocalEntries returns the full local journal, newest first.
func (s *LedgerService) LocalEntries() ([]domain.AssetEntry, error) {
	return s.journal.ListAssets()
}

// LocalSummaries aggregates the local journal by target symbol.
func (s *LedgerService) LocalSummaries() ([]domain.AssetSummary, error) {
	entries, err := s.journal.ListAssets()
	if err != nil {
		return nil, err
	}

	records := make([]domain.AssetRecord, 0, len(entries))
	for _, e := range entries {
		rec, err := e.ToRecord()
		if err != nil {
			s.logger.Warn("Skipping corrupt journal entry",
				slog.Uint64("id", uint64(e.ID)), slog.Any("error", err))
			continue
		}
		records = append(records, rec)
	}
	return domain.SummarizeAssets(records), nil
}
