package api

import "net/http"

// HandleHealthz returns the liveness handler for GET /healthz. It sits
// outside the authenticated mux and reports nothing about fleet readiness;
// GET /api/v1/status carries that.
func HandleHealthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
