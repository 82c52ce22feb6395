package ws

import (
	"sync"

	"github.com/bytedance/sonic"

	"vietscribe-go/internal/domain/eventbus"
	"vietscribe-go/internal/platform/logging"
)

// Message is the JSON frame sent to feed clients.
type Message struct {
	Type  string      `json:"type"`
	RunID string      `json:"run_id"`
	Data  interface{} `json:"data,omitempty"`
}

// Hub tracks the active progress feeds.
type Hub struct {
	logger   *logging.Logger
	sessions sync.Map // map[string]*Session
}

// NewHub builds a fresh session hub.
func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Hub{
		logger: logger,
	}
}

// Register adds a new session to the hub.
func (h *Hub) Register(session *Session) {
	if session == nil {
		return
	}
	h.sessions.Store(session.ID(), session)
}

// Unregister removes the session from the hub.
func (h *Hub) Unregister(id string) {
	if id == "" {
		return
	}
	h.sessions.Delete(id)
}

// Broadcast sends msg to every session following msg.RunID. When final is
// set those sessions are closed after delivery.
func (h *Hub) Broadcast(msg Message, final bool) {
	payload, err := sonic.Marshal(msg)
	if err != nil {
		h.logger.WarnTag("HTTP", "failed to encode %s event: %v", msg.Type, err)
		return
	}
	h.sessions.Range(func(_, value any) bool {
		session, ok := value.(*Session)
		if !ok || session.RunID() != msg.RunID {
			return true
		}
		session.Enqueue(payload)
		if final {
			session.Close(ErrRunFinished)
		}
		return true
	})
}

// CloseAll terminates all active sessions.
func (h *Hub) CloseAll(reason error) {
	if reason == nil {
		reason = ErrSessionShutdown
	}

	h.sessions.Range(func(key, value any) bool {
		if session, ok := value.(*Session); ok {
			session.Close(reason)
		}
		h.sessions.Delete(key)
		return true
	})
}

// Count returns the number of open feeds, optionally for one run.
func (h *Hub) Count(runID string) int {
	n := 0
	h.sessions.Range(func(_, value any) bool {
		if s, ok := value.(*Session); ok && (runID == "" || s.RunID() == runID) {
			n++
		}
		return true
	})
	return n
}

// SubscribeEvents forwards pipeline events to the matching feeds.
func (h *Hub) SubscribeEvents(bus eventbus.Bus) error {
	subs := map[string]interface{}{
		eventbus.TopicUnitDone: func(e eventbus.UnitEvent) {
			h.Broadcast(Message{Type: eventbus.TopicUnitDone, RunID: e.RunID, Data: e}, false)
		},
		eventbus.TopicUnitFailed: func(e eventbus.UnitEvent) {
			h.Broadcast(Message{Type: eventbus.TopicUnitFailed, RunID: e.RunID, Data: e}, false)
		},
		eventbus.TopicProgress: func(e eventbus.ProgressEvent) {
			h.Broadcast(Message{Type: eventbus.TopicProgress, RunID: e.RunID, Data: e}, false)
		},
		eventbus.TopicCompleted: func(e eventbus.RunEvent) {
			h.Broadcast(Message{Type: eventbus.TopicCompleted, RunID: e.RunID, Data: e}, true)
		},
		eventbus.TopicFailed: func(e eventbus.RunEvent) {
			h.Broadcast(Message{Type: eventbus.TopicFailed, RunID: e.RunID, Data: e}, true)
		},
	}
	for topic, fn := range subs {
		if err := bus.Subscribe(topic, fn); err != nil {
			return err
		}
	}
	return nil
}
