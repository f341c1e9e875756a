package avsync

import (
	"testing"

	"github.com/genricoloni/tandem/internal/domain"
	"github.com/genricoloni/tandem/internal/event"
)

// fakeHandle behaves like a media element that fires its events synchronously,
// from inside the mutating call. It never tags events as requested unless
// tagRequested is set, so the controller's reentrancy guard is the only thing
// standing between it and an endless ping-pong.
type fakeHandle struct {
	t    *testing.T
	role domain.Role
	url  string

	position float64
	playing  bool
	rate     float64
	volume   float64
	muted    bool

	// echoAlways makes Play/Pause fire their event even when nothing changed
	echoAlways   bool
	tagRequested bool

	bus       event.Bus[domain.MediaEvent]
	calls     []string
	mutations int
	depth     int
}

func newFakeHandle(t *testing.T, role domain.Role) *fakeHandle {
	return &fakeHandle{t: t, role: role, rate: 1, volume: 1}
}

func (h *fakeHandle) Role() domain.Role { return h.role }
func (h *fakeHandle) Position() float64 { return h.position }
func (h *fakeHandle) Playing() bool     { return h.playing }
func (h *fakeHandle) Rate() float64     { return h.rate }
func (h *fakeHandle) Volume() float64   { return h.volume }
func (h *fakeHandle) Muted() bool       { return h.muted }

func (h *fakeHandle) Subscribe(fn func(domain.MediaEvent)) func() {
	return h.bus.Subscribe(fn)
}

func (h *fakeHandle) Play() {
	h.record("play")
	if h.playing && !h.echoAlways {
		return
	}
	h.playing = true
	h.emit(domain.EventPlayStarted, h.tagRequested)
}

func (h *fakeHandle) Pause() {
	h.record("pause")
	if !h.playing && !h.echoAlways {
		return
	}
	h.playing = false
	h.emit(domain.EventPaused, h.tagRequested)
}

func (h *fakeHandle) Seek(position float64) {
	h.record("seek")
	h.position = position
	h.emit(domain.EventSeekCompleted, h.tagRequested)
}

func (h *fakeHandle) SetRate(rate float64) {
	h.record("rate")
	h.rate = rate
	h.emit(domain.EventRateChanged, h.tagRequested)
}

func (h *fakeHandle) SetVolume(volume float64, muted bool) {
	h.record("volume")
	h.volume = volume
	h.muted = muted
	h.emit(domain.EventVolumeChanged, h.tagRequested)
}

func (h *fakeHandle) record(call string) {
	h.calls = append(h.calls, call)
	h.mutations++
}

func (h *fakeHandle) emit(kind domain.EventKind, requested bool) {
	h.depth++
	defer func() { h.depth-- }()
	if h.depth > 50 {
		h.t.Fatalf("%s: event recursion depth exceeded, feedback loop detected", h.role)
	}
	h.bus.Emit(domain.MediaEvent{Kind: kind, Role: h.role, Position: h.position, Requested: requested})
}

// user* simulate interaction or runtime activity that did not go through the API

func (h *fakeHandle) userPlay() {
	h.playing = true
	h.emit(domain.EventPlayStarted, false)
}

func (h *fakeHandle) userPause() {
	h.playing = false
	h.emit(domain.EventPaused, false)
}

func (h *fakeHandle) userSeek(position float64) {
	h.position = position
	h.emit(domain.EventSeekCompleted, false)
}

func (h *fakeHandle) userRate(rate float64) {
	h.rate = rate
	h.emit(domain.EventRateChanged, false)
}

func (h *fakeHandle) userVolume(volume float64, muted bool) {
	h.volume = volume
	h.muted = muted
	h.emit(domain.EventVolumeChanged, false)
}

func (h *fakeHandle) tick(position float64) {
	h.position = position
	h.emit(domain.EventPositionTick, false)
}

func (h *fakeHandle) resetCalls() {
	h.calls = nil
	h.mutations = 0
}

type fakeVisibility struct {
	visible bool
	bus     event.Bus[bool]
}

func newFakeVisibility(visible bool) *fakeVisibility {
	return &fakeVisibility{visible: visible}
}

func (v *fakeVisibility) Visible() bool { return v.visible }

func (v *fakeVisibility) Subscribe(fn func(bool)) func() {
	return v.bus.Subscribe(fn)
}

func (v *fakeVisibility) set(visible bool) {
	if v.visible == visible {
		return
	}
	v.visible = visible
	v.bus.Emit(visible)
}
