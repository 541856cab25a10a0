package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"grimm.is/wanboard/internal/errors"
	"grimm.is/wanboard/internal/i18n"
	"grimm.is/wanboard/internal/logging"
)

// Envelope is the response body of every JSON endpoint.
type Envelope struct {
	Success bool   `json:"success"`
	Error   bool   `json:"error"`
	Data    any    `json:"data"`
	Message string `json:"message"`
}

type clientIPKey struct{}

// ClientIPMiddleware resolves the client address once per request.
// X-Forwarded-For and X-Real-IP are honoured only when the direct peer falls
// inside one of trusted; otherwise the TCP peer is the client.
func ClientIPMiddleware(trusted []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := resolveClientIP(r, trusted)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), clientIPKey{}, ip)))
		})
	}
}

// getClientIP returns the address resolved by ClientIPMiddleware, or the TCP
// peer when the middleware did not run.
func getClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey{}).(string); ok {
		return ip
	}
	return peerIP(r)
}

func resolveClientIP(r *http.Request, trusted []netip.Prefix) string {
	peer := peerIP(r)
	if !isTrusted(peer, trusted) {
		return peer
	}

	// Walk the chain right to left; the first hop we do not trust is the
	// client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		client := ""
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if _, err := netip.ParseAddr(hop); err != nil {
				break
			}
			client = hop
			if !isTrusted(hop, trusted) {
				break
			}
		}
		if client != "" {
			return client
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if _, err := netip.ParseAddr(xri); err == nil {
			return xri
		}
	}
	return peer
}

func peerIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func isTrusted(ip string, trusted []netip.Prefix) bool {
	if len(trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// WriteJSON sends a JSON response
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeSuccess sends a success envelope.
func writeSuccess(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, Envelope{Success: true, Data: data})
}

// writeFail sends a failure envelope for err. data may carry partial
// progress; nil becomes an empty object.
func writeFail(w http.ResponseWriter, r *http.Request, err error, data any) {
	status := StatusForError(err)
	if status >= http.StatusInternalServerError {
		logging.WithComponent("api").Error("request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
	}
	if data == nil {
		data = struct{}{}
	}
	WriteJSON(w, status, Envelope{
		Error:   true,
		Data:    data,
		Message: failMessage(r.Context(), err),
	})
}

// StatusForError maps an error kind to the HTTP status of its envelope.
func StatusForError(err error) int {
	switch errors.GetKind(err) {
	case errors.KindUnknownInterface:
		return http.StatusOK
	case errors.KindValidation:
		return http.StatusBadRequest
	case errors.KindNotFound:
		return http.StatusNotFound
	case errors.KindUpstreamUnavailable:
		return http.StatusBadGateway
	case errors.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func failMessage(ctx context.Context, err error) string {
	switch errors.GetKind(err) {
	case errors.KindUnknownInterface:
		return i18n.Translate(ctx, i18n.MsgInvalidInterface)
	case errors.KindNoDefaultRoute:
		return i18n.Translate(ctx, i18n.MsgNoDefaultRoute)
	case errors.KindRateLimited:
		secs, _ := errors.GetAttributes(err)["retry_after"].(int)
		return i18n.Translate(ctx, i18n.MsgRateLimited, secs)
	case errors.KindNotFound, errors.KindValidation:
		return i18n.Translate(ctx, errors.Message(err))
	case errors.KindUnknown, errors.KindInternal:
		return i18n.Translate(ctx, i18n.MsgServerError)
	default:
		return err.Error()
	}
}
