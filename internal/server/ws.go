// ABOUTME: Websocket transport for the signaling hub
// ABOUTME: Owns the upgrade, handshake auth, keepalive, and per-connection read loop

package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/misba031998/instantvideokyc/internal/auth"
)

const (
	wsWriteWait       = 10 * time.Second
	wsPongWait        = 60 * time.Second
	wsPingInterval    = 30 * time.Second
	wsMaxMessageBytes = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Browsers connect from arbitrary deployment origins; access control
	// happens via the handshake token, not the Origin header.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn adapts a websocket connection to the hub's Conn interface. The
// mutex serializes writes: the read loop and the hub both send, and gorilla
// permits only one concurrent writer.
type wsConn struct {
	mu     sync.Mutex
	ws     *websocket.Conn
	claims *auth.Claims
}

func (c *wsConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) AuthSubject() string { return c.claims.Subject }
func (c *wsConn) AuthRole() string    { return c.claims.Role }

// handleWS upgrades the request and pumps messages into the hub until the
// peer goes away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	claims, err := s.verifier.Verify(r.URL.Query().Get("token"))
	if err != nil {
		s.log.Warn("websocket handshake rejected", "remote_addr", r.RemoteAddr, "error", err)
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		s.log.Warn("websocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	conn := &wsConn{ws: ws, claims: claims}
	s.log.Debug("websocket connected", "remote_addr", r.RemoteAddr, "subject", claims.Subject)

	done := make(chan struct{})
	go s.pingLoop(ws, done)

	ws.SetReadLimit(wsMaxMessageBytes)
	_ = ws.SetReadDeadline(time.Now().Add(wsPongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		s.hub.HandleMessage(conn, data)
	}

	close(done)
	_ = ws.Close()
	s.hub.HandleDisconnect(conn)
}

// pingLoop keeps the connection alive through idle proxies. WriteControl is
// safe to call concurrently with WriteMessage.
func (s *Server) pingLoop(ws *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
