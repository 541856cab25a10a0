package api

import (
	"context"
	"net/http"

	"grimm.is/wanboard/internal/errors"
	"grimm.is/wanboard/internal/i18n"
)

// MessageData is the data of a successful mutation.
type MessageData struct {
	Message string `json:"message"`
}

// mutationContext keeps the request's values but not its cancellation, so a
// client that disconnects cannot stop a switch or refresh halfway. Router
// calls stay bounded by the router client's timeout.
func mutationContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func (s *Server) handleConnections(w http.ResponseWriter, r *http.Request) {
	conns, err := s.service.Connections(r.Context())
	if err != nil {
		writeFail(w, r, err, nil)
		return
	}
	writeSuccess(w, conns)
}

func (s *Server) handlePrefer(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("interfaceName")
	result, err := s.service.PreferConnection(mutationContext(r), name)
	if err != nil {
		// A partial switch returns its per-step outcome alongside the error.
		var data any
		if result != nil {
			data = result
		}
		s.recordMutation(r, "prefer", name, StatusForError(err), failMessage(r.Context(), err), data)
		writeFail(w, r, err, data)
		return
	}

	msg := i18n.Translate(r.Context(), i18n.MsgPreferred, result.Interface)
	s.recordMutation(r, "prefer", name, http.StatusOK, result.Message(), result.Steps)
	writeSuccess(w, MessageData{Message: msg})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("interfaceName")
	result, err := s.service.RefreshInterface(mutationContext(r), name)
	if err != nil {
		var data any
		if result != nil {
			data = result
		}
		s.recordMutation(r, "refresh", name, StatusForError(err), failMessage(r.Context(), err), data)
		writeFail(w, r, err, data)
		return
	}

	msg := i18n.Translate(r.Context(), i18n.MsgRefreshed, result.Interface)
	s.recordMutation(r, "refresh", name, http.StatusOK, result.Message(), result.Steps)
	writeSuccess(w, MessageData{Message: msg})
}

func (s *Server) handleThroughput(w http.ResponseWriter, r *http.Request) {
	tp, err := s.service.Throughput(r.Context())
	if err != nil {
		writeFail(w, r, err, nil)
		return
	}
	writeSuccess(w, tp)
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	if s.prober == nil {
		writeSuccess(w, []any{})
		return
	}
	devices, err := s.prober.Devices(r.Context())
	if err != nil {
		writeFail(w, r, err, nil)
		return
	}
	writeSuccess(w, devices)
}

func (s *Server) handlePowerStatus(w http.ResponseWriter, r *http.Request) {
	if s.prober == nil {
		writeFail(w, r, errors.New(errors.KindNotFound, "Power monitoring not configured"), nil)
		return
	}
	writeSuccess(w, s.prober.Power(r.Context()))
}

func (s *Server) handleGuestWifi(w http.ResponseWriter, r *http.Request) {
	if s.guest == nil {
		writeFail(w, r, errors.New(errors.KindNotFound, i18n.MsgGuestDisabled), nil)
		return
	}
	wifi, err := s.guest.GuestWifi(r.Context())
	if err != nil {
		writeFail(w, r, err, nil)
		return
	}
	writeSuccess(w, wifi)
}

func (s *Server) handleResetGuestPassword(w http.ResponseWriter, r *http.Request) {
	if s.guest == nil {
		writeFail(w, r, errors.New(errors.KindNotFound, i18n.MsgGuestDisabled), nil)
		return
	}
	wifi, err := s.guest.ResetPassword(r.Context())
	if err != nil {
		writeFail(w, r, err, nil)
		return
	}
	s.logger.Audit("guest_password_reset", wifi.Name, map[string]any{
		"ip":         getClientIP(r),
		"request_id": RequestID(r.Context()),
	})
	writeSuccess(w, wifi)
}
