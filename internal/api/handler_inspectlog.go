package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/floatrig/floatrig/internal/inspectlog"
)

// HandleListInspectLogs handles GET /api/v1/inspect-logs.
// Query params: from, to (RFC3339Nano), limit, offset, username, link_hash, ok.
func HandleListInspectLogs(repo *inspectlog.Repo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pg, err := ParsePagination(r)
		if err != nil {
			writeInvalidArgument(w, err.Error())
			return
		}

		q := r.URL.Query()
		f := inspectlog.ListFilter{
			Username: q.Get("username"),
			LinkHash: q.Get("link_hash"),
			Limit:    pg.Limit,
			Offset:   pg.Offset,
		}

		if v := q.Get("from"); v != "" {
			t, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				writeInvalidArgument(w, "from: invalid RFC3339 timestamp")
				return
			}
			f.After = t.UnixNano()
		}
		if v := q.Get("to"); v != "" {
			t, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				writeInvalidArgument(w, "to: invalid RFC3339 timestamp")
				return
			}
			f.Before = t.UnixNano()
		}
		if f.After > 0 && f.Before > 0 && f.After >= f.Before {
			writeInvalidArgument(w, "from: must be before to")
			return
		}

		if v := q.Get("ok"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				writeInvalidArgument(w, "ok: must be true or false")
				return
			}
			n := 0
			if b {
				n = 1
			}
			f.OK = &n
		}

		rows, err := repo.List(f)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "INTERNAL", "failed to list inspect logs")
			return
		}
		if rows == nil {
			rows = []inspectlog.LogRow{}
		}
		WriteJSON(w, http.StatusOK, PageResponse[inspectlog.LogRow]{
			Items:  rows,
			Limit:  pg.Limit,
			Offset: pg.Offset,
		})
	}
}

// HandleGetInspectLog handles GET /api/v1/inspect-logs/{log_id}.
func HandleGetInspectLog(repo *inspectlog.Repo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := PathParam(r, "log_id")
		row, err := repo.GetByID(id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "INTERNAL", "failed to load inspect log")
			return
		}
		if row == nil {
			WriteError(w, http.StatusNotFound, "NOT_FOUND", "inspect log not found")
			return
		}
		WriteJSON(w, http.StatusOK, row)
	}
}
