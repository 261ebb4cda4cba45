package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// apiError is a structured error in the response envelope.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// response is the standard envelope for every gateway reply.
type response struct {
	Status    string    `json:"status"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     *apiError `json:"error,omitempty"`
}

// requestID generates a unique request identifier.
func requestID() string {
	return "req_" + uuid.New().String()[:8]
}

func respondOK(w http.ResponseWriter, reqID string, data any) {
	respondJSON(w, http.StatusOK, reqID, data, nil)
}

func respondAccepted(w http.ResponseWriter, reqID string, data any) {
	respondJSON(w, http.StatusAccepted, reqID, data, nil)
}

func respondError(w http.ResponseWriter, reqID string, status int, code, message string) {
	respondJSON(w, status, reqID, nil, &apiError{Code: code, Message: message})
}

func respondJSON(w http.ResponseWriter, status int, reqID string, data any, apiErr *apiError) {
	resp := response{
		RequestID: reqID,
		Timestamp: time.Now().UTC(),
		Data:      data,
		Error:     apiErr,
	}
	if apiErr != nil {
		resp.Status = "error"
	} else {
		resp.Status = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
