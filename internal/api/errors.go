package api

import (
	"encoding/json"
	"net/http"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError emits the structured error envelope shared by every failure
// path: {"error": code, "message": detail, ...context}.
func writeError(w http.ResponseWriter, status int, code, message string, context map[string]interface{}) {
	body := map[string]interface{}{
		"error":   code,
		"message": message,
	}
	for k, v := range context {
		body[k] = v
	}
	writeJSON(w, status, body)
}
