// Package cue provides game.CueSink implementations: a fan-out hub that
// connections can attach to, a logging sink, and a combinator.
package cue

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/Chious/fm-hangman-game/internal/game"
)

// Hub fans cues out to attached listeners. Listeners must not block.
type Hub struct {
	mu        sync.RWMutex
	next      int
	listeners map[int]func(game.Cue)
}

// NewHub returns an empty Hub.
func NewHub() *Hub { return &Hub{listeners: make(map[int]func(game.Cue))} }

// Attach adds fn and returns a func that detaches it.
func (h *Hub) Attach(fn func(game.Cue)) (detach func()) {
	h.mu.Lock()
	id := h.next
	h.next++
	h.listeners[id] = fn
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

// Len reports the number of attached listeners.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

func (h *Hub) Notify(c game.Cue) {
	h.mu.RLock()
	fns := make([]func(game.Cue), 0, len(h.listeners))
	for _, fn := range h.listeners {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()
	for _, fn := range fns {
		fn(c)
	}
}

type logSink struct{ log zerolog.Logger }

// Log returns a sink writing each cue at debug level.
func Log(l zerolog.Logger) game.CueSink { return logSink{log: l} }

func (s logSink) Notify(c game.Cue) {
	s.log.Debug().Str("cue", string(c)).Msg("cue")
}

type multi []game.CueSink

// Multi notifies every non-nil sink in order.
func Multi(sinks ...game.CueSink) game.CueSink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multi) Notify(c game.Cue) {
	for _, s := range m {
		s.Notify(c)
	}
}
