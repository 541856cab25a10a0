package api

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Same-origin only, plus localhost for development proxies.
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		switch u.Hostname() {
		case "localhost", "127.0.0.1", "::1":
			return true
		}
		return u.Host == r.Host
	},
}

// handleConnectionsWS pushes the connection view envelope on connect and
// then every poll interval until the client goes away. The stream is
// read-only; mutations go through the POST endpoints.
func (s *Server) handleConnectionsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reader: only needed to notice the close frame.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := s.clock.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		if err := s.pushConnections(ctx, conn); err != nil {
			s.logger.Debug("websocket closed", "error", err)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
		}
	}
}

func (s *Server) pushConnections(ctx context.Context, conn *websocket.Conn) error {
	env := Envelope{Success: true}
	conns, err := s.service.Connections(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		env = Envelope{Error: true, Data: struct{}{}, Message: failMessage(ctx, err)}
	} else {
		env.Data = conns
	}

	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(env)
}
