package api

import (
	"net/http"

	"github.com/floatrig/floatrig/internal/inspectlog"
	"github.com/floatrig/floatrig/internal/metrics"
)

type metricsResponse struct {
	Global         metrics.CountersSnapshot            `json:"global"`
	Accounts       map[string]metrics.CountersSnapshot `json:"accounts"`
	LogRowsDropped int64                               `json:"logRowsDropped"`
}

// HandleMetrics returns a handler for GET /api/v1/metrics.
// logs may be nil when inspect logging is disabled.
func HandleMetrics(col *metrics.Collector, logs *inspectlog.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := metricsResponse{
			Global:   col.Snapshot(),
			Accounts: col.AccountSnapshots(),
		}
		if logs != nil {
			resp.LogRowsDropped = logs.Dropped()
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}
