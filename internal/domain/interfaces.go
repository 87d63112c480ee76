package domain

// AssetJournal defines local persistence for ledger mirror entries
type AssetJournal interface {
	AppendAsset(entry *AssetEntry) error
	ListAssets() ([]AssetEntry, error)
}
