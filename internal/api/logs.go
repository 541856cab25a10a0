package api

import (
	"net/http"
	"strconv"

	"grimm.is/wanboard/internal/logging"
)

const defaultLogLimit = 200

// handleLogs returns the newest entries of the in-memory log buffer.
// Query: source=api|wan|routeros|..., limit=N.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	source := r.URL.Query().Get("source")
	writeSuccess(w, logging.Records().Recent(limit, source))
}
