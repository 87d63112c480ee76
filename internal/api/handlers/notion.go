package handlers

import (
	"net/http"

	"bitodash/internal/domain"
	"bitodash/internal/infra"
	"bitodash/internal/infra/notion"
	"bitodash/internal/service"
)

// NotionHandler serves the asset-ledger routes. Like the exchange handler it
// builds a client per request so header credentials win over stored ones.
type NotionHandler struct {
	cfg       *infra.Config
	store     *infra.CredentialStore
	ledger    *service.LedgerService
	newClient func(creds domain.NotionCredentials) *notion.Client
}

// NewNotionHandler wires the asset-ledger routes. Every record created
// upstream is mirrored into the local journal.
func NewNotionHandler(cfg *infra.Config, store *infra.CredentialStore, ledger *service.LedgerService) *NotionHandler {
	return &NotionHandler{
		cfg:    cfg,
		store:  store,
		ledger: ledger,
		newClient: func(creds domain.NotionCredentials) *notion.Client {
			c := notion.NewClient(cfg.API.Notion.BaseURL, creds)
			if ledger != nil {
				c.SetOnRecordCreated(ledger.Mirror)
			}
			return c
		},
	}
}

func (h *NotionHandler) credentials(r *http.Request) domain.NotionCredentials {
	creds := domain.NotionCredentials{
		Token:      r.Header.Get("X-Notion-Token"),
		DatabaseID: r.Header.Get("X-Notion-Database-Id"),
	}
	if creds.IsConfigured() {
		return creds
	}
	if stored := h.store.LoadNotion(); stored.IsConfigured() {
		return stored
	}
	return domain.NotionCredentials{
		Token:      h.cfg.API.Notion.Token,
		DatabaseID: h.cfg.API.Notion.DatabaseID,
	}
}

func (h *NotionHandler) client(r *http.Request) *notion.Client {
	return h.newClient(h.credentials(r))
}

// Assets handles GET /api/notion/assets: every record in the remote ledger.
func (h *NotionHandler) Assets(w http.ResponseWriter, r *http.Request) {
	records, err := h.client(r).QueryAssets(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// AssetSummaries handles GET /api/notion/assets/summary: remote records
// grouped and totalled per target.
func (h *NotionHandler) AssetSummaries(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.client(r).QueryAssetSummaries(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

type addAssetsRequest struct {
	Records []domain.AssetRecord `json:"records"`
}

// AddAssets handles POST /api/notion/assets/add. Partial failures are
// reported in the batch result, not as an error status.
func (h *NotionHandler) AddAssets(w http.ResponseWriter, r *http.Request) {
	var req addAssetsRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if len(req.Records) == 0 {
		writeBadRequest(w, "records must not be empty")
		return
	}
	result, err := h.client(r).AddAssetRecords(r.Context(), req.Records)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// LocalAssets handles GET /api/notion/assets/local: the journal of records
// mirrored locally on every successful upstream create.
func (h *NotionHandler) LocalAssets(w http.ResponseWriter, r *http.Request) {
	entries, err := h.ledger.LocalEntries()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// LocalSummaries handles GET /api/notion/assets/local/summary.
func (h *NotionHandler) LocalSummaries(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.ledger.LocalSummaries()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}
