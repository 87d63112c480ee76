package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"bitodash/internal/domain"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// errorBody is the envelope every failed request returns.
type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Response encode failed", slog.String("error", err.Error()))
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := domain.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", slog.String("error", err.Error()))
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("request body required")
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.New("invalid request body: " + err.Error())
	}
	return nil
}
