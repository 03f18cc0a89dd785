package middleware

import (
	"encoding/json"
	"net/http"
)

// writeError writes the API's JSON error envelope. Handlers use the same
// envelope as the handlers package; middleware cannot import handlers.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
