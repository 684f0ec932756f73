package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/FelixNg1022/agent-workflow/internal/models"
)

// fallbackErrorResponse is pre-marshaled at startup so a broken payload can
// still produce a well-formed error body.
var fallbackErrorResponse = func() []byte {
	data, err := json.Marshal(models.Error("Internal server error"))
	if err != nil {
		panic("marshaling fallback error response: " + err.Error())
	}
	return data
}()

// writeJSONResponse marshals before touching the ResponseWriter so an
// encoding failure can still change the status code.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	jsonData, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server.writeJSONResponse: marshal failed", "error", err)
		jsonData = fallbackErrorResponse
		statusCode = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(jsonData); err != nil {
		slog.Error("Server.writeJSONResponse: write failed", "error", err)
	}
}
