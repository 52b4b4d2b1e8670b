package api

import (
	"net/http"
	"time"

	"github.com/floatrig/floatrig/internal/bot"
	"github.com/floatrig/floatrig/internal/buildinfo"
	"github.com/floatrig/floatrig/internal/config"
)

type statusResponse struct {
	Ready     bool            `json:"ready"`
	ReadyBots int             `json:"readyBots"`
	TotalBots int             `json:"totalBots"`
	Uptime    config.Duration `json:"uptime"`
	Version   string          `json:"version"`
	GitCommit string          `json:"gitCommit"`
	Bots      []bot.Snapshot  `json:"bots"`
}

// HandleStatus returns a handler for GET /api/v1/status.
func HandleStatus(d Dispatcher, startedAt time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, statusResponse{
			Ready:     d.IsServiceReady(),
			ReadyBots: d.ReadyCount(),
			TotalBots: d.BotCount(),
			Uptime:    config.Duration(time.Since(startedAt).Round(time.Second)),
			Version:   buildinfo.Version,
			GitCommit: buildinfo.GitCommit,
			Bots:      d.Status(),
		})
	}
}
