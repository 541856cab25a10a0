package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"grimm.is/wanboard/internal/audit"
	"grimm.is/wanboard/internal/errors"
)

const defaultAuditLimit = 100

// recordMutation writes a prefer/refresh outcome to the audit log and the
// structured audit stream. Store failures are logged, never returned.
func (s *Server) recordMutation(r *http.Request, action, iface string, status int, message string, steps any) {
	evt := audit.Event{
		Timestamp: s.clock.Now(),
		Action:    action,
		Interface: iface,
		ClientIP:  getClientIP(r),
		RequestID: RequestID(r.Context()),
		Status:    status,
		Message:   message,
	}
	if steps != nil {
		if raw, err := json.Marshal(steps); err == nil {
			evt.Steps = raw
		}
	}

	s.logger.Audit(action, iface, map[string]any{
		"status":     status,
		"ip":         evt.ClientIP,
		"request_id": evt.RequestID,
	})

	if s.audit == nil {
		return
	}
	if err := s.audit.Write(evt); err != nil {
		s.logger.Error("failed to write audit event", "action", action, "interface", iface, "error", err)
	}
}

// handleAuditQuery returns recent mutations, newest first.
// Query: action=prefer|refresh, limit=N (default 100).
func (s *Server) handleAuditQuery(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeFail(w, r, errors.New(errors.KindNotFound, "Audit log disabled"), nil)
		return
	}

	q := r.URL.Query()
	limit := defaultAuditLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeFail(w, r, errors.Errorf(errors.KindValidation, "invalid limit %q", v), nil)
			return
		}
		limit = n
	}

	events, err := s.audit.Query(q.Get("action"), limit)
	if err != nil {
		writeFail(w, r, err, nil)
		return
	}
	writeSuccess(w, events)
}
