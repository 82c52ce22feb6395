// Package ws streams transcription progress to websocket clients.
package ws

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"vietscribe-go/internal/platform/logging"
	"vietscribe-go/internal/platform/observability"
)

// RouterOptions configures the websocket router.
type RouterOptions struct {
	HandshakeTimeout time.Duration
	CheckOrigin      func(r *http.Request) bool
}

// Router upgrades requests into progress feeds registered with a Hub.
type Router struct {
	hub              *Hub
	logger           *logging.Logger
	upgrader         *websocket.Upgrader
	handshakeTimeout time.Duration
}

// NewRouter builds a router. Origins are unrestricted unless CheckOrigin is set.
func NewRouter(hub *Hub, logger *logging.Logger, opts RouterOptions) *Router {
	upgrader := &websocket.Upgrader{
		CheckOrigin: opts.CheckOrigin,
	}
	if upgrader.CheckOrigin == nil {
		upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	}

	timeout := opts.HandshakeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.Nop()
	}

	return &Router{
		hub:              hub,
		logger:           logger,
		upgrader:         upgrader,
		handshakeTimeout: timeout,
	}
}

// Handle upgrades the request and follows runID until the run finishes, the
// client leaves, or ctx ends. hello, if not nil, is sent first; when final is
// set the feed closes right after it.
func (r *Router) Handle(ctx context.Context, w http.ResponseWriter, req *http.Request, runID string, hello *Message, final bool) {
	handshakeCtx, cancel := context.WithTimeoutCause(req.Context(), r.handshakeTimeout, ErrHandshakeTimeout)
	defer cancel()

	spanCtx, spanEnd := observability.StartSpan(handshakeCtx, "transport.websocket", "handle")
	conn, err := r.upgrader.Upgrade(w, req.WithContext(handshakeCtx), nil)
	spanEnd(err)
	if err != nil {
		observability.RecordMetric(spanCtx, "websocket.upgrade.error", 1, nil)
		r.logger.ErrorTag("HTTP", "websocket handshake failed: %v", err)
		return
	}

	wsConn := NewConnection(fmt.Sprintf("%s/%s", runID, uuid.NewString()[:8]), conn)
	session := NewSession(ctx, runID, wsConn, r.logger)
	r.hub.Register(session)
	r.logger.DebugTag("HTTP", "feed %s opened", session.ID())

	if hello != nil {
		if payload, err := sonic.Marshal(hello); err == nil {
			session.Enqueue(payload)
		}
	}
	if final {
		session.Close(ErrRunFinished)
	}

	go session.Run(func(runErr error) {
		r.hub.Unregister(session.ID())
		r.logger.DebugTag("HTTP", "feed %s closed: %v", session.ID(), runErr)
	})
}
