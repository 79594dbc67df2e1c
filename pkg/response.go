package pkg

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"
)

var ContentType = struct {
	JSON string
	Text string
}{
	JSON: "application/json",
	Text: "text/plain; charset=utf-8",
}

func WriteTextResponseOK(w http.ResponseWriter, message string) {
	WriteResponseBytes(w, ContentType.Text, []byte(message), http.StatusOK)
}

// WriteJSONResponse marshals v and writes it with the given status code.
func WriteJSONResponse(w http.ResponseWriter, statusCode int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Errorf("failed to marshal response: %s", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	WriteResponseBytes(w, ContentType.JSON, body, statusCode)
}

func WriteResponseBytes(w http.ResponseWriter, contentType string, message []byte, statusCode int) {
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.WriteHeader(statusCode)

	if _, err := w.Write(message); err != nil {
		log.Errorf("failed to write response [%s]: %s", message, err)
	}
}

// TransientFailureResponse is returned when a change was applied in memory
// but could not be persisted.
type TransientFailureResponse struct {
	Notice string `json:"notice"`
	Data   any    `json:"data,omitempty"`
}

const NotPersistedNotice = "Saved for this session, but storing it failed. Your next change will retry."

func WriteTransientFailure(w http.ResponseWriter, data any) {
	WriteJSONResponse(w, http.StatusServiceUnavailable, TransientFailureResponse{
		Notice: NotPersistedNotice,
		Data:   data,
	})
}
