package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/mind-engage/mindengage-assess/internal/eventlog"
)

// GET /logs?type=&after=&limit=
func ListActivityHandler(repo *eventlog.Repo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		after, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
		list, err := repo.List(r.Context(), eventlog.ListOpts{
			Type:  strings.TrimSpace(r.URL.Query().Get("type")),
			After: after,
			Limit: parseIntDefault(r.URL.Query().Get("limit"), 100),
		})
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}
