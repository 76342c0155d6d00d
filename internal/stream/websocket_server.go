package stream

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"autoguard/internal/model"
)

const connectedMessage = "Connected to monitoring system"

type WebSocketOptions struct {
	OriginPatterns []string
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	Buffer         int
}

// WebSocketHandler upgrades dashboard clients and streams bus events to them
// as JSON text frames.
type WebSocketHandler struct {
	bus    *Bus
	logger *slog.Logger
	opts   WebSocketOptions
}

func NewWebSocketHandler(bus *Bus, opts WebSocketOptions, logger *slog.Logger) *WebSocketHandler {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 10 * time.Second
	}
	return &WebSocketHandler{bus: bus, logger: logger, opts: opts}
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.opts.OriginPatterns})
	if err != nil {
		h.logger.Warn("websocket accept failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusInternalError, "stream ended") }()

	sub := h.bus.Subscribe(h.opts.Buffer)
	defer sub.Close()

	// Clients never send; CloseRead handles control frames and cancels ctx
	// when the peer goes away.
	ctx := conn.CloseRead(r.Context())

	h.logger.Info("websocket client connected", "remote", r.RemoteAddr, "subscribers", h.bus.Subscribers())
	defer h.logger.Info("websocket client disconnected", "remote", r.RemoteAddr)

	hello := model.Envelope{
		ID:        uuid.NewString(),
		Event:     model.EventConnected,
		Timestamp: time.Now().UTC(),
		Payload:   model.Connected{Message: connectedMessage},
	}
	if err := h.write(ctx, conn, hello); err != nil {
		return
	}

	ping := time.NewTicker(h.opts.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case env, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := h.write(ctx, conn, env); err != nil {
				h.logger.Debug("websocket write failed", "remote", r.RemoteAddr, "error", err)
				return
			}
		case <-ping.C:
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				h.logger.Debug("websocket ping failed", "remote", r.RemoteAddr, "error", err)
				return
			}
		}
	}
}

func (h *WebSocketHandler) write(ctx context.Context, conn *websocket.Conn, env model.Envelope) error {
	payload, err := EncodeEnvelope(env)
	if err != nil {
		h.logger.Error("encode envelope failed", "event", env.Event, "error", err)
		return nil
	}
	wctx, cancel := context.WithTimeout(ctx, h.opts.WriteTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, payload)
}
