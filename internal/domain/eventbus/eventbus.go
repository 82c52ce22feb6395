// Package eventbus carries pipeline notifications between the transcription
// core and its observers (persistence, websocket feeds, logs).
package eventbus

import evbus "github.com/asaskevich/EventBus"

// Publisher is the publishing side of a bus.
type Publisher interface {
	Publish(topic string, args ...interface{})
}

// Bus is what pipeline components depend on.
type Bus interface {
	Publisher
	Subscribe(topic string, fn interface{}) error
	Unsubscribe(topic string, handler interface{}) error
	HasCallback(topic string) bool
}

// New creates an independent synchronous bus.
func New() evbus.Bus {
	return evbus.New()
}

// Nop discards everything published to it.
type Nop struct{}

func (Nop) Publish(string, ...interface{}) {}
