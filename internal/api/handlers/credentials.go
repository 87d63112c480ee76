package handlers

import (
	"net/http"

	"bitodash/internal/domain"
	"bitodash/internal/infra"
)

// CredentialsHandler manages stored API credentials. Responses only ever
// say whether credentials exist; key material is never echoed back.
type CredentialsHandler struct {
	store *infra.CredentialStore
}

// NewCredentialsHandler wires the credential routes.
func NewCredentialsHandler(store *infra.CredentialStore) *CredentialsHandler {
	return &CredentialsHandler{store: store}
}

type credentialStatus struct {
	Configured bool `json:"configured"`
}

// ExchangeStatus handles GET /api/credentials/exchange.
func (h *CredentialsHandler) ExchangeStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, credentialStatus{Configured: h.store.LoadExchange().IsConfigured()})
}

// SaveExchange handles POST /api/credentials/exchange.
func (h *CredentialsHandler) SaveExchange(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	if err := decodeBody(r, &creds); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if !creds.IsConfigured() {
		writeBadRequest(w, "apiKey, apiSecret and email are required")
		return
	}
	if err := h.store.SaveExchange(creds); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, credentialStatus{Configured: true})
}

// ClearExchange handles DELETE /api/credentials/exchange.
func (h *CredentialsHandler) ClearExchange(w http.ResponseWriter, r *http.Request) {
	if err := h.store.ClearExchange(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, credentialStatus{Configured: false})
}

// NotionStatus handles GET /api/credentials/notion.
func (h *CredentialsHandler) NotionStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, credentialStatus{Configured: h.store.LoadNotion().IsConfigured()})
}

// SaveNotion handles POST /api/credentials/notion.
func (h *CredentialsHandler) SaveNotion(w http.ResponseWriter, r *http.Request) {
	var creds domain.NotionCredentials
	if err := decodeBody(r, &creds); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if !creds.IsConfigured() {
		writeBadRequest(w, "token and databaseId are required")
		return
	}
	if err := h.store.SaveNotion(creds); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, credentialStatus{Configured: true})
}

// ClearNotion handles DELETE /api/credentials/notion.
func (h *CredentialsHandler) ClearNotion(w http.ResponseWriter, r *http.Request) {
	if err := h.store.ClearNotion(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, credentialStatus{Configured: false})
}
