// Package visibility tracks whether the playback surface can currently be seen.
//
// Visibility is the combination of named hidden-sources: the video window being
// minimized, the screensaver being active, and so on. The surface is visible only
// when no source reports it hidden.
package visibility

import (
	"sort"
	"sync"

	"github.com/genricoloni/tandem/internal/event"
	"go.uber.org/zap"
)

// Well-known source names
const (
	SourceWindow      = "window"
	SourceScreenSaver = "screensaver"
)

// Dispatcher runs callbacks on the playback execution context
type Dispatcher interface {
	Post(fn func()) bool
}

// Monitor implements domain.VisibilityMonitor
type Monitor struct {
	logger     *zap.Logger
	dispatcher Dispatcher

	mu      sync.RWMutex
	hidden  map[string]bool
	visible bool

	bus event.Bus[bool]
}

// NewMonitor creates a monitor that starts out visible
func NewMonitor(logger *zap.Logger, dispatcher Dispatcher) *Monitor {
	return &Monitor{
		logger:     logger,
		dispatcher: dispatcher,
		hidden:     make(map[string]bool),
		visible:    true,
	}
}

// Visible returns the current visibility
func (m *Monitor) Visible() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.visible
}

// Subscribe registers fn for visibility transitions
func (m *Monitor) Subscribe(fn func(visible bool)) func() {
	return m.bus.Subscribe(fn)
}

// SetHidden records whether source currently hides the surface. A transition of the
// combined state is delivered to subscribers through the dispatcher; reasserting the
// same state emits nothing.
func (m *Monitor) SetHidden(source string, hidden bool) {
	m.mu.Lock()
	if hidden {
		m.hidden[source] = true
	} else {
		delete(m.hidden, source)
	}

	visible := len(m.hidden) == 0
	if visible == m.visible {
		m.mu.Unlock()
		return
	}
	m.visible = visible
	sources := m.hiddenSourcesLocked()
	m.mu.Unlock()

	m.logger.Info("Visibility changed",
		zap.Bool("visible", visible),
		zap.String("source", source),
		zap.Strings("hiddenBy", sources))

	if !m.dispatcher.Post(func() { m.bus.Emit(visible) }) {
		m.logger.Debug("Dispatcher stopped, visibility event dropped")
	}
}

// Reset clears source. Used when the window that reported it goes away.
func (m *Monitor) Reset(source string) {
	m.SetHidden(source, false)
}

func (m *Monitor) hiddenSourcesLocked() []string {
	sources := make([]string, 0, len(m.hidden))
	for s := range m.hidden {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	return sources
}
