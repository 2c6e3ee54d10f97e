package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/broadcast"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 512
)

type WSHandler struct {
	service  *app.QuizService
	hub      *broadcast.Hub
	logger   *zap.Logger
	upgrader websocket.Upgrader
	// per-connection inbound budget
	limit rate.Limit
	burst int
}

func NewWSHandler(service *app.QuizService, hub *broadcast.Hub, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		service: service,
		hub:     hub,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		limit: rate.Limit(5),
		burst: 10,
	}
}

type inboundMessage struct {
	Type string `json:"type"`
}

type outboundMessage struct {
	Type string `json:"type"`
}

// ServeWS upgrades the request, registers the connection with the hub and pushes
// the current quiz state before any broadcast.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sub, err := h.hub.Subscribe(r.Context())
	if err != nil {
		h.closeWith(conn, websocket.CloseTryAgainLater, "server shutting down")
		return
	}
	defer h.hub.Unsubscribe(sub)

	st, err := h.service.Settings(r.Context())
	if err != nil {
		h.logger.Error("ws initial state", zap.Error(err))
		h.closeWith(conn, websocket.CloseInternalServerErr, "state unavailable")
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(broadcast.NewStateEvent(st, time.Now())); err != nil {
		return
	}

	replies := make(chan outboundMessage, 4)
	readerDone := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		h.writePump(conn, sub, replies, readerDone)
	}()

	h.readPump(conn, sub, replies, writerDone)
	close(readerDone)
	<-writerDone
}

// readPump consumes client frames until the connection fails. Pongs and
// application pings count as liveness.
func (h *WSHandler) readPump(conn *websocket.Conn, sub *broadcast.Subscriber, replies chan<- outboundMessage, writerDone <-chan struct{}) {
	limiter := rate.NewLimiter(h.limit, h.burst)
	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		h.hub.Touch(sub.ID())
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Info("ws unexpected close", zap.String("subscriber", sub.ID()), zap.Error(err))
			}
			return
		}
		if !limiter.Allow() {
			continue
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		h.hub.Touch(sub.ID())
		if msg.Type != "ping" {
			continue
		}
		select {
		case replies <- outboundMessage{Type: "pong"}:
		case <-writerDone:
			return
		default:
			// a backlog of pongs is useless; the client will ping again
		}
	}
}

// writePump is the only writer after the initial state push. It exits when the hub
// drops the subscriber, a write fails, or the reader has stopped.
func (h *WSHandler) writePump(conn *websocket.Conn, sub *broadcast.Subscriber, replies <-chan outboundMessage, readerDone <-chan struct{}) {
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				h.closeWith(conn, websocket.CloseGoingAway, "heartbeat timeout")
				// unblock the reader
				_ = conn.Close()
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Debug("ws write failed", zap.String("subscriber", sub.ID()), zap.Error(err))
				_ = conn.Close()
				return
			}
		case <-sub.Probes():
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = conn.Close()
				return
			}
		case msg := <-replies:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				_ = conn.Close()
				return
			}
		case <-readerDone:
			return
		}
	}
}

func (h *WSHandler) closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
