package http

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/autopeer-io/roverhub/internal/rentalhub/core"
	"github.com/autopeer-io/roverhub/internal/rentalhub/registry"
	"github.com/autopeer-io/roverhub/pkg/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096

	// A close frame carries at most 125 bytes, two of them the code.
	maxCloseReason = 123
)

// wsConn adapts a WebSocket to registry.Conn. All data frames go through the
// outbox so only the writer goroutine writes to the socket.
type wsConn struct {
	*registry.Outbox

	id string
	ws *websocket.Conn

	mu     sync.Mutex
	reason string
}

var _ registry.Conn = (*wsConn)(nil)

func newWSConn(ws *websocket.Conn) *wsConn {
	c := &wsConn{id: uuid.NewString(), ws: ws}
	c.Outbox = registry.NewOutbox(registry.DefaultOutboxSize, c.write, c.setReason)
	return c
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) write(msg []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, msg)
}

func (c *wsConn) setReason(reason string) {
	c.mu.Lock()
	c.reason = reason
	c.mu.Unlock()
}

func (c *wsConn) closeReason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.reason) > maxCloseReason {
		return c.reason[:maxCloseReason]
	}
	return c.reason
}

// writeLoop drains the outbox until the connection is closed, then says
// goodbye and tears the socket down, which unblocks the reader.
func (c *wsConn) writeLoop() {
	c.Run()
	c.Flush()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, c.closeReason())
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = c.ws.Close()
}

func (c *wsConn) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.Done():
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.Close("ping failed")
				return
			}
		}
	}
}

// readLoop hands every text frame to handle until the peer goes away or the
// connection is closed locally.
func (c *wsConn) readLoop(handle func(data []byte)) {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("WebSocket read failed", "conn", c.id, "error", err.Error())
			}
			c.Close("peer closed")
			return
		}
		if kind == websocket.TextMessage {
			handle(data)
		}
	}
}

func (s *Server) newUpgrader() *websocket.Upgrader {
	allowed := s.options.AllowedOrigins
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true
			}
			return slices.Contains(allowed, r.Header.Get("Origin"))
		},
	}
}

// serveWS upgrades the request and runs the connection until it ends. The
// upgrader has already written an HTTP error when it returns nil.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request, onOpen func(c *wsConn) bool, handle func(c *wsConn, data []byte), onClose func(c *wsConn)) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug("WebSocket upgrade failed", "path", r.URL.Path, "error", err.Error())
		return
	}

	c := newWSConn(ws)
	s.track(c)
	defer s.untrack(c)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writeLoop()
	}()
	go c.pingLoop()

	if onOpen(c) {
		c.readLoop(func(data []byte) { handle(c, data) })
	}
	if onClose != nil {
		onClose(c)
	}
	c.Close("connection closed")
	<-done
}

// handleCar serves the link of the vehicle with the given device id.
func (s *Server) handleCar(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["device_id"]
	ctx := r.Context()

	s.serveWS(w, r,
		func(c *wsConn) bool {
			if err := s.relay.VehicleConnected(ctx, deviceID, c); err != nil {
				if errors.Is(err, core.ErrNotFound) {
					c.Close("unknown device")
				} else {
					log.Error(err, "Failed to register vehicle", "device", deviceID)
					c.Close("internal error")
				}
				return false
			}
			return true
		},
		func(c *wsConn, data []byte) {
			if err := s.relay.HandleDeviceMessage(ctx, deviceID, data); err != nil {
				log.Debug("Bad device message", "device", deviceID, "error", err.Error())
			}
		},
		func(c *wsConn) {
			s.relay.VehicleDisconnected(context.WithoutCancel(ctx), deviceID, c)
		},
	)
}

// handleControl serves the controller link of a rented car. Authorization
// runs before the upgrade so a refused caller gets a plain HTTP error.
func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	carID, err := uuid.Parse(mux.Vars(r)["car_id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, string(core.CodeInvalidArgument), "invalid car id")
		return
	}
	car, err := s.service.AuthorizeControl(r.Context(), callerFrom(r.Context()), carID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	reg := s.relay.Registry()
	s.serveWS(w, r,
		func(c *wsConn) bool {
			reg.BindController(car.ID, c)
			return true
		},
		func(c *wsConn, data []byte) {
			if ack := s.relay.HandleControl(car, c, string(data)); ack != "" {
				_ = c.Send([]byte(ack))
			}
		},
		func(c *wsConn) {
			reg.UnbindController(car.ID, c)
		},
	)
}

// handleStatus serves an observer. Anything the observer sends is ignored.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s.serveWS(w, r,
		func(c *wsConn) bool {
			s.relay.AddObserver(ctx, c)
			return true
		},
		func(*wsConn, []byte) {},
		func(c *wsConn) {
			s.relay.RemoveObserver(c)
		},
	)
}
