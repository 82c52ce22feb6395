package ws

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"vietscribe-go/internal/platform/logging"
)

const (
	defaultCloseTimeout = 5 * time.Second
	sendBuffer          = 64
	pingInterval        = 30 * time.Second
)

// Session streams the events of one run to one websocket client.
type Session struct {
	id     string
	runID  string
	conn   *Connection
	logger *logging.Logger
	send   chan []byte

	ctx    context.Context
	cancel context.CancelCauseFunc

	closed atomic.Bool
}

// NewSession builds a feed for runID over conn.
func NewSession(parent context.Context, runID string, conn *Connection, logger *logging.Logger) *Session {
	sessionCtx, cancel := context.WithCancelCause(parent)
	return &Session{
		id:     conn.GetID(),
		runID:  runID,
		conn:   conn,
		logger: logger,
		send:   make(chan []byte, sendBuffer),
		ctx:    sessionCtx,
		cancel: cancel,
	}
}

// Context returns the session context.
func (s *Session) Context() context.Context {
	return s.ctx
}

func (s *Session) ID() string {
	return s.id
}

// RunID is the run this session follows.
func (s *Session) RunID() string {
	return s.runID
}

// Enqueue queues payload for delivery. A full buffer closes the session.
func (s *Session) Enqueue(payload []byte) {
	if s.closed.Load() {
		return
	}
	select {
	case s.send <- payload:
	default:
		s.Close(ErrSlowClient)
	}
}

// Run pumps queued messages to the client until the session closes or the
// client goes away, then calls onDone with the cause.
func (s *Session) Run(onDone func(error)) {
	go s.readLoop()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	var cause error
	defer func() {
		s.Close(cause)
		s.finish(cause)
		if onDone != nil {
			onDone(cause)
		}
	}()

	for {
		select {
		case <-s.ctx.Done():
			cause = context.Cause(s.ctx)
			s.flush()
			return
		case payload := <-s.send:
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				cause = err
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				cause = err
				return
			}
		}
	}
}

// flush writes whatever was queued before the close, so the final run event
// reaches the client.
func (s *Session) flush() {
	for {
		select {
		case payload := <-s.send:
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		default:
			return
		}
	}
}

// readLoop drains client frames so control messages are processed; any read
// error ends the session.
func (s *Session) readLoop() {
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			s.Close(err)
			return
		}
	}
}

// Close ends the session. Only the first call has an effect.
func (s *Session) Close(reason error) {
	if reason == nil {
		reason = ErrSessionShutdown
	}
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.cancel(reason)
}

// finish closes the socket once the pump has stopped writing.
func (s *Session) finish(reason error) {
	msg := "closed"
	if reason != nil {
		msg = reason.Error()
	}
	if err := s.conn.CloseWithReason(msg); err != nil && s.logger != nil {
		s.logger.Warn("session %s connection close failed: %v", s.id, err)
	}
}
