// Package effects receives the declarative effect descriptors attached to
// scenario steps and turns them into host state changes.
package effects

import (
	"strings"
	"sync"

	"github.com/kingrea/walkthrough/internal/scenario"
)

// Sink receives effects. player.EffectSink is satisfied by any Sink.
type Sink interface {
	Apply(scenario.Effect)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(scenario.Effect)

// Apply calls f.
func (f SinkFunc) Apply(effect scenario.Effect) {
	if f != nil {
		f(effect)
	}
}

// Logger matches logging.Logger.
type Logger interface {
	Printf(format string, args ...any)
}

// Mux routes effects to handlers keyed by kind. Kinds are compared
// lower-cased and trimmed.
type Mux struct {
	mu       sync.RWMutex
	handlers map[string]Sink
	fallback Sink
	logger   Logger
}

// NewMux returns an empty router. logger may be nil.
func NewMux(logger Logger) *Mux {
	return &Mux{handlers: map[string]Sink{}, logger: logger}
}

// Handle registers sink for every given kind, replacing earlier handlers.
func (m *Mux) Handle(sink Sink, kinds ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, kind := range kinds {
		m.handlers[NormalizeKind(kind)] = sink
	}
}

// Fallback receives every effect with no registered handler.
func (m *Mux) Fallback(sink Sink) {
	m.mu.Lock()
	m.fallback = sink
	m.mu.Unlock()
}

// Kinds lists the registered kinds.
func (m *Mux) Kinds() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	kinds := make([]string, 0, len(m.handlers))
	for kind := range m.handlers {
		kinds = append(kinds, kind)
	}
	return kinds
}

// Apply dispatches the effect. Unknown kinds without a fallback are dropped.
func (m *Mux) Apply(effect scenario.Effect) {
	kind := NormalizeKind(effect.Kind)
	m.mu.RLock()
	sink, ok := m.handlers[kind]
	if !ok {
		sink = m.fallback
	}
	m.mu.RUnlock()
	if sink == nil {
		if m.logger != nil {
			m.logger.Printf("effects: no handler for %q", effect.Kind)
		}
		return
	}
	effect.Kind = kind
	sink.Apply(effect)
}

// NormalizeKind lower-cases and trims an effect kind.
func NormalizeKind(kind string) string {
	return strings.ToLower(strings.TrimSpace(kind))
}
