package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/floatrig/floatrig/internal/bot"
	"github.com/floatrig/floatrig/internal/controller"
	"github.com/floatrig/floatrig/internal/inspect"
	"github.com/floatrig/floatrig/internal/metrics"
)

// Dispatcher is the controller surface the API needs.
// *controller.Controller implements it.
type Dispatcher interface {
	LookupInspect(ctx context.Context, link inspect.Link) (inspect.ItemInfo, error)
	Status() []bot.Snapshot
	IsServiceReady() bool
	ReadyCount() int
	BotCount() int
}

type inspectRequest struct {
	URL string `json:"url"`
}

type inspectResponse struct {
	ItemInfo inspect.ItemInfo `json:"iteminfo"`
}

// HandleInspectPost returns a handler for POST /api/v1/inspect.
// Body: {"url": "steam://rungame/730/.../+csgo_econ_action_preview ..."}.
func HandleInspectPost(d Dispatcher, col *metrics.Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req inspectRequest
		if err := DecodeBody(r, &req); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		answerInspect(w, r, d, col, req.URL)
	}
}

// HandleInspectGet returns a handler for GET /api/v1/inspect?url=...
func HandleInspectGet(d Dispatcher, col *metrics.Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("url")
		if strings.TrimSpace(raw) == "" {
			writeInvalidArgument(w, "url: must be non-empty")
			return
		}
		answerInspect(w, r, d, col, raw)
	}
}

func answerInspect(w http.ResponseWriter, r *http.Request, d Dispatcher, col *metrics.Collector, rawURL string) {
	link, err := inspect.Parse(rawURL)
	if err != nil {
		if col != nil {
			col.IncInvalidLink()
		}
		writeInspectError(w, err)
		return
	}

	info, err := d.LookupInspect(r.Context(), link)
	if err != nil {
		if col != nil && errors.Is(err, controller.ErrNoBotsAvailable) {
			col.IncNoBots()
		}
		writeInspectError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, inspectResponse{ItemInfo: info})
}
