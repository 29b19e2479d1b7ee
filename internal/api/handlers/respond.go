package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/markdave123-py/railchat/internal/core"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("http: encode response: %v", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// writeError answers with the user-facing message for err and a status
// derived from its kind.
func writeError(w http.ResponseWriter, op, input string, err error) {
	status := statusFor(err)
	if status >= 500 {
		log.Printf("http: %s %q: %v", op, input, err)
	}
	writeJSON(w, status, errorBody{Error: core.UserMessage(op, input, err), Kind: core.Kind(err)})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Kind: "InvalidInput"})
}

func statusFor(err error) int {
	switch core.Kind(err) {
	case "ExtractionFailure":
		return http.StatusUnprocessableEntity
	case "EmbeddingFailure", "GenerationFailure":
		return http.StatusBadGateway
	case "PersistenceUnavailable":
		return http.StatusServiceUnavailable
	case "AuthFailure":
		return http.StatusUnauthorized
	case "Forbidden":
		return http.StatusForbidden
	case "NoDocuments", "AlreadyExists":
		return http.StatusConflict
	case "NoRelevantContext", "NotFound":
		return http.StatusNotFound
	case "EmptyQuery", "InvalidInput":
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
