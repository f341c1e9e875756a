package mpv

import (
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/genricoloni/tandem/internal/domain"
	"github.com/genricoloni/tandem/internal/event"
	"go.uber.org/zap"
)

// Observed property ids
const (
	obsPause = iota + 1
	obsTimePos
	obsSpeed
	obsVolume
	obsMute
	obsWindowMinimized
)

var observed = []struct {
	id   int
	name string
}{
	{obsPause, "pause"},
	{obsTimePos, "time-pos"},
	{obsSpeed, "speed"},
	{obsVolume, "volume"},
	{obsMute, "mute"},
	{obsWindowMinimized, "window-minimized"},
}

const epsilon = 1e-6

// Dispatcher runs callbacks on the playback execution context
type Dispatcher interface {
	Post(fn func()) bool
}

// Handle is a domain.MediaHandle backed by one mpv instance.
//
// Getters return the live cursor the way a media element does: requests update the
// cached state immediately and mpv's notifications correct it afterwards. Events are
// delivered through the dispatcher; window state callbacks run on the event pump.
type Handle struct {
	logger       *zap.Logger
	role         domain.Role
	conn         Conn
	dispatcher   Dispatcher
	tickInterval time.Duration
	onClose      func() error

	mu        sync.Mutex
	position  float64
	playing   bool
	rate      float64
	volume    float64
	muted     bool
	seeking   bool
	lastTick  time.Time
	expect    map[domain.EventKind]int // requested changes not yet confirmed by mpv
	closed    bool
	closeOnce sync.Once

	bus    event.Bus[domain.MediaEvent]
	done   chan struct{}

	// windowMu orders the replay to new window subscribers against the pump
	windowMu       sync.Mutex
	window         event.Bus[bool]
	minimized      bool
	minimizedKnown bool

	now func() time.Time
}

func newHandle(logger *zap.Logger, role domain.Role, conn Conn, dispatcher Dispatcher, tickInterval time.Duration) *Handle {
	return &Handle{
		logger:       logger.With(zap.Stringer("role", role)),
		role:         role,
		conn:         conn,
		dispatcher:   dispatcher,
		tickInterval: tickInterval,
		rate:         1,
		volume:       1,
		expect:       make(map[domain.EventKind]int),
		done:         make(chan struct{}),
		now:          time.Now,
	}
}

// Role returns the side of the pair this handle was created for
func (h *Handle) Role() domain.Role { return h.role }

// Position returns the playback cursor in seconds
func (h *Handle) Position() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.position
}

// Playing reports whether playback is running
func (h *Handle) Playing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.playing
}

// Rate returns the playback rate
func (h *Handle) Rate() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rate
}

// Volume returns the volume in 0..1
func (h *Handle) Volume() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.volume
}

// Muted reports the mute state
func (h *Handle) Muted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.muted
}

// Done is closed once the connection to mpv is gone, either through Close or
// because mpv exited
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Subscribe registers fn for lifecycle events
func (h *Handle) Subscribe(fn func(domain.MediaEvent)) func() {
	return h.bus.Subscribe(fn)
}

// OnWindowMinimized registers fn for changes of the video window's minimized state.
// If mpv already reported the state, fn is called with it before OnWindowMinimized
// returns; later changes run fn on the event pump goroutine.
func (h *Handle) OnWindowMinimized(fn func(minimized bool)) func() {
	h.windowMu.Lock()
	defer h.windowMu.Unlock()

	unsubscribe := h.window.Subscribe(fn)
	if h.minimizedKnown {
		fn(h.minimized)
	}
	return unsubscribe
}

// Play requests playback resume
func (h *Handle) Play() {
	h.setPlaying(true, domain.EventPlayStarted)
}

// Pause requests playback stop
func (h *Handle) Pause() {
	h.setPlaying(false, domain.EventPaused)
}

func (h *Handle) setPlaying(playing bool, kind domain.EventKind) {
	h.request(func() (bool, func()) {
		prev := h.playing
		h.playing = playing
		return h.expectChange(kind, prev != playing), func() {
			if h.playing == playing {
				h.playing = prev
			}
		}
	}, "set_property", "pause", !playing)
}

// Seek moves the cursor to an absolute position. A rejected seek is corrected by
// the next position notification.
func (h *Handle) Seek(position float64) {
	h.request(func() (bool, func()) {
		h.position = position
		return h.expectChange(domain.EventSeekCompleted, true), nil
	}, "seek", position, "absolute", "exact")
}

// SetRate changes the playback speed
func (h *Handle) SetRate(rate float64) {
	if rate <= 0 {
		return
	}
	h.request(func() (bool, func()) {
		prev := h.rate
		h.rate = rate
		return h.expectChange(domain.EventRateChanged, math.Abs(prev-rate) > epsilon), func() {
			if h.rate == rate {
				h.rate = prev
			}
		}
	}, "set_property", "speed", rate)
}

// SetVolume changes volume and mute state
func (h *Handle) SetVolume(volume float64, muted bool) {
	volume = math.Max(0, math.Min(1, volume))
	h.request(func() (bool, func()) {
		prev := h.volume
		h.volume = volume
		return h.expectChange(domain.EventVolumeChanged, math.Abs(prev-volume) > epsilon), func() {
			if h.volume == volume {
				h.volume = prev
			}
		}
	}, "set_property", "volume", volume*100)
	h.request(func() (bool, func()) {
		prev := h.muted
		h.muted = muted
		return h.expectChange(domain.EventVolumeChanged, prev != muted), func() {
			if h.muted == muted {
				h.muted = prev
			}
		}
	}, "set_property", "mute", muted)
}

// request applies update to the cached state and sends the command. update reports
// whether mpv will confirm the change and returns an undo for the cached state.
// Failures are logged and swallowed: the next reconciling event re-asserts the intent.
// A failed command, whether the write failed or mpv rejected it, drops its expected
// confirmation and undoes the cached change, so a later user change is not taken for
// its echo.
func (h *Handle) request(update func() (expecting bool, undo func()), args ...any) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	expecting, undo := update()
	h.mu.Unlock()

	failed := func(err error) {
		h.logger.Debug("mpv request failed", zap.Any("command", args), zap.Error(err))
		h.mu.Lock()
		defer h.mu.Unlock()
		if expecting && !h.confirm(kindOf(args)) {
			// mpv already reported the value, the cache is current
			return
		}
		if undo != nil {
			undo()
		}
	}
	if err := h.conn.Send(failed, args...); err != nil {
		failed(err)
	}
}

// expectChange records that mpv will confirm a requested change. Must hold mu.
func (h *Handle) expectChange(kind domain.EventKind, changed bool) bool {
	if !changed {
		return false
	}
	h.expect[kind]++
	return true
}

// confirm consumes one expected change of kind. Must hold mu.
func (h *Handle) confirm(kind domain.EventKind) bool {
	if h.expect[kind] == 0 {
		return false
	}
	h.expect[kind]--
	return true
}

func kindOf(args []any) domain.EventKind {
	if len(args) > 0 && args[0] == "seek" {
		return domain.EventSeekCompleted
	}
	if len(args) > 2 {
		switch args[1] {
		case "pause":
			if paused, _ := args[2].(bool); paused {
				return domain.EventPaused
			}
			return domain.EventPlayStarted
		case "speed":
			return domain.EventRateChanged
		case "volume", "mute":
			return domain.EventVolumeChanged
		}
	}
	return domain.EventPositionTick
}

// pump translates mpv events until the connection closes
func (h *Handle) pump() {
	defer close(h.done)

	for ev := range h.conn.Events() {
		h.handleEvent(ev)
	}
	h.logger.Debug("mpv event stream ended")
}

func (h *Handle) handleEvent(ev Event) {
	switch ev.Name {
	case "property-change":
		h.handleProperty(ev)
	case "seek":
		h.mu.Lock()
		h.seeking = true
		h.mu.Unlock()
	case "playback-restart":
		h.mu.Lock()
		if !h.seeking {
			h.mu.Unlock()
			return
		}
		h.seeking = false
		requested := h.confirm(domain.EventSeekCompleted)
		pos := h.position
		h.mu.Unlock()
		h.emit(domain.EventSeekCompleted, pos, requested)
	case "shutdown":
		h.logger.Info("mpv shut down")
	}
}

func (h *Handle) handleProperty(ev Event) {
	switch ev.ID {
	case obsPause:
		var paused bool
		if !decode(ev.Data, &paused) {
			return
		}
		kind := domain.EventPlayStarted
		if paused {
			kind = domain.EventPaused
		}
		h.mu.Lock()
		if h.playing == !paused {
			// Matches the cached state: either the echo of a request or the
			// initial notification
			requested := h.confirm(kind)
			pos := h.position
			h.mu.Unlock()
			if requested {
				h.emit(kind, pos, true)
			}
			return
		}
		h.playing = !paused
		pos := h.position
		h.mu.Unlock()
		h.emit(kind, pos, false)

	case obsTimePos:
		var pos float64
		if !decode(ev.Data, &pos) {
			return
		}
		now := h.now()
		h.mu.Lock()
		if h.seeking && h.expect[domain.EventSeekCompleted] > 0 {
			// Keep the requested target until the seek lands
			h.mu.Unlock()
			return
		}
		h.position = pos
		due := now.Sub(h.lastTick) >= h.tickInterval
		if due {
			h.lastTick = now
		}
		h.mu.Unlock()
		if due {
			h.emit(domain.EventPositionTick, pos, false)
		}

	case obsSpeed:
		var speed float64
		if !decode(ev.Data, &speed) || speed <= 0 {
			return
		}
		h.mu.Lock()
		h.updateAndEmit(domain.EventRateChanged, math.Abs(h.rate-speed) > epsilon, func() { h.rate = speed })

	case obsVolume:
		var vol float64
		if !decode(ev.Data, &vol) {
			return
		}
		vol /= 100
		h.mu.Lock()
		h.updateAndEmit(domain.EventVolumeChanged, math.Abs(h.volume-vol) > epsilon, func() { h.volume = vol })

	case obsMute:
		var muted bool
		if !decode(ev.Data, &muted) {
			return
		}
		h.mu.Lock()
		h.updateAndEmit(domain.EventVolumeChanged, h.muted != muted, func() { h.muted = muted })

	case obsWindowMinimized:
		var minimized bool
		if !decode(ev.Data, &minimized) {
			return
		}
		h.windowMu.Lock()
		h.minimized = minimized
		h.minimizedKnown = true
		h.window.Emit(minimized)
		h.windowMu.Unlock()
	}
}

// updateAndEmit applies a notified value. Called with mu held; releases it.
func (h *Handle) updateAndEmit(kind domain.EventKind, differs bool, apply func()) {
	if !differs {
		requested := h.confirm(kind)
		pos := h.position
		h.mu.Unlock()
		if requested {
			h.emit(kind, pos, true)
		}
		return
	}
	apply()
	pos := h.position
	h.mu.Unlock()
	h.emit(kind, pos, false)
}

func (h *Handle) emit(kind domain.EventKind, pos float64, requested bool) {
	ev := domain.MediaEvent{Kind: kind, Role: h.role, Position: pos, Requested: requested}
	if !h.dispatcher.Post(func() { h.bus.Emit(ev) }) {
		h.logger.Debug("Dispatcher stopped, event dropped", zap.Stringer("event", kind))
	}
}

// decode unmarshals an event payload; mpv sends null for unavailable properties
func decode(data json.RawMessage, v any) bool {
	if len(data) == 0 || string(data) == "null" {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

// Close terminates the connection and the mpv process
func (h *Handle) Close() error {
	var err error
	h.closeOnce.Do(func() {
		h.mu.Lock()
		h.closed = true
		h.mu.Unlock()

		// Ask mpv to exit before dropping the connection; the process owner
		// kills it if it does not
		_ = h.conn.Send(nil, "quit")
		err = h.conn.Close()
		<-h.done
		if h.onClose != nil {
			if cerr := h.onClose(); err == nil {
				err = cerr
			}
		}
		h.logger.Debug("mpv handle closed")
	})
	return err
}
