package ws

import "errors"

var (
	// ErrHandshakeTimeout indicates the websocket handshake exceeded the configured timeout.
	ErrHandshakeTimeout = errors.New("websocket handshake timed out")
	// ErrSessionShutdown is emitted when the server requests a session shutdown.
	ErrSessionShutdown = errors.New("websocket session shutdown")
	// ErrSlowClient closes a session whose send buffer filled up.
	ErrSlowClient = errors.New("websocket client too slow")
	// ErrRunFinished closes feeds after the final event of their run.
	ErrRunFinished = errors.New("transcription run finished")
)
