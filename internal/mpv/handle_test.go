package mpv

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/genricoloni/tandem/internal/domain"
	"go.uber.org/zap"
)

// fakeConn records commands and lets the test feed events
type fakeConn struct {
	mu      sync.Mutex
	sent    [][]any
	onError []func(error)
	sendErr error
	events  chan Event
	closed  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{events: make(chan Event, 16)}
}

func (c *fakeConn) Send(onError func(error), args ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, args)
	c.onError = append(c.onError, onError)
	return c.sendErr
}

// reject delivers an mpv error reply for the i-th sent command
func (c *fakeConn) reject(i int, err error) {
	c.mu.Lock()
	onError := c.onError[i]
	c.mu.Unlock()
	if onError != nil {
		onError(err)
	}
}

func (c *fakeConn) Request(ctx context.Context, args ...any) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, args)
	c.onError = append(c.onError, nil)
	return nil, nil
}

func (c *fakeConn) Events() <-chan Event { return c.events }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
	return nil
}

func (c *fakeConn) commands() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.sent))
	for _, args := range c.sent {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = fmt.Sprint(a)
		}
		out = append(out, strings.Join(parts, " "))
	}
	return out
}

// syncDispatcher runs posted callbacks immediately
type syncDispatcher struct{}

func (syncDispatcher) Post(fn func()) bool {
	fn()
	return true
}

func newTestHandle(role domain.Role) (*Handle, *fakeConn, *[]domain.MediaEvent) {
	conn := newFakeConn()
	h := newHandle(zap.NewNop(), role, conn, syncDispatcher{}, 250*time.Millisecond)
	var events []domain.MediaEvent
	h.Subscribe(func(ev domain.MediaEvent) { events = append(events, ev) })
	return h, conn, &events
}

func prop(id int, name string, value any) Event {
	data, _ := json.Marshal(value)
	return Event{Name: "property-change", ID: int64(id), Prop: name, Data: data}
}

func TestHandle_PlayEcho(t *testing.T) {
	h, conn, events := newTestHandle(domain.RoleFollower)

	h.Play()

	if !h.Playing() {
		t.Error("Play should update the cached state immediately")
	}
	if got := conn.commands(); len(got) != 1 || got[0] != "set_property pause false" {
		t.Errorf("unexpected commands: %v", got)
	}

	h.handleEvent(prop(obsPause, "pause", false))

	if len(*events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(*events))
	}
	ev := (*events)[0]
	if ev.Kind != domain.EventPlayStarted || !ev.Requested || ev.Role != domain.RoleFollower {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestHandle_PauseState(t *testing.T) {
	tests := []struct {
		name          string
		playing       bool
		paused        bool
		wantEvents    int
		wantRequested bool
	}{
		{name: "Initial notification matches cache", playing: false, paused: true, wantEvents: 0},
		{name: "User pauses in window", playing: true, paused: true, wantEvents: 1},
		{name: "User resumes in window", playing: false, paused: false, wantEvents: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, events := newTestHandle(domain.RoleFollower)
			h.playing = tt.playing

			h.handleEvent(prop(obsPause, "pause", tt.paused))

			if len(*events) != tt.wantEvents {
				t.Fatalf("events: want %d, got %d", tt.wantEvents, len(*events))
			}
			if tt.wantEvents > 0 && (*events)[0].Requested != tt.wantRequested {
				t.Errorf("requested: want %v, got %v", tt.wantRequested, (*events)[0].Requested)
			}
			if h.Playing() == tt.paused {
				t.Errorf("playing should be %v", !tt.paused)
			}
		})
	}
}

func TestHandle_RequestedSeek(t *testing.T) {
	h, conn, events := newTestHandle(domain.RoleFollower)

	h.Seek(42.7)
	if h.Position() != 42.7 {
		t.Errorf("position should be the seek target, got %v", h.Position())
	}
	if got := conn.commands(); got[0] != "seek 42.7 absolute exact" {
		t.Errorf("unexpected command %q", got[0])
	}

	h.handleEvent(Event{Name: "seek"})
	h.handleEvent(prop(obsTimePos, "time-pos", 10.0)) // stale position while seeking
	h.handleEvent(Event{Name: "playback-restart"})

	if len(*events) != 1 {
		t.Fatalf("expected only seek-completed, got %+v", *events)
	}
	ev := (*events)[0]
	if ev.Kind != domain.EventSeekCompleted || !ev.Requested || ev.Position != 42.7 {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestHandle_UserSeek(t *testing.T) {
	h, _, events := newTestHandle(domain.RoleFollower)

	h.handleEvent(Event{Name: "seek"})
	h.handleEvent(prop(obsTimePos, "time-pos", 50.0))
	h.handleEvent(Event{Name: "playback-restart"})

	var seek *domain.MediaEvent
	for i := range *events {
		if (*events)[i].Kind == domain.EventSeekCompleted {
			seek = &(*events)[i]
		}
	}
	if seek == nil {
		t.Fatal("expected seek-completed")
	}
	if seek.Requested || seek.Position != 50 {
		t.Errorf("unexpected seek event: %+v", *seek)
	}
}

func TestHandle_PlaybackRestartWithoutSeek(t *testing.T) {
	h, _, events := newTestHandle(domain.RoleAuthority)

	h.handleEvent(Event{Name: "playback-restart"})

	if len(*events) != 0 {
		t.Errorf("file start must not be reported as a seek, got %+v", *events)
	}
}

func TestHandle_PositionTickThrottle(t *testing.T) {
	h, _, events := newTestHandle(domain.RoleAuthority)
	clock := time.Unix(1000, 0)
	h.now = func() time.Time { return clock }

	for i := range 10 {
		clock = clock.Add(100 * time.Millisecond)
		h.handleEvent(prop(obsTimePos, "time-pos", float64(i)*0.1))
	}

	// 1s of notifications at 250ms spacing
	ticks := 0
	for _, ev := range *events {
		if ev.Kind == domain.EventPositionTick {
			ticks++
		}
	}
	if ticks < 3 || ticks > 5 {
		t.Errorf("expected about 4 ticks, got %d", ticks)
	}
	if h.Position() < 0.89 {
		t.Errorf("position should follow every notification, got %v", h.Position())
	}
}

func TestHandle_NullTimePos(t *testing.T) {
	h, _, events := newTestHandle(domain.RoleAuthority)
	h.position = 5

	h.handleEvent(Event{Name: "property-change", ID: obsTimePos, Prop: "time-pos", Data: json.RawMessage("null")})

	if h.Position() != 5 || len(*events) != 0 {
		t.Errorf("null payload must be ignored")
	}
}

func TestHandle_VolumeAndRate(t *testing.T) {
	h, conn, events := newTestHandle(domain.RoleAuthority)

	h.SetVolume(0.5, true)
	h.SetRate(1.5)

	want := []string{"set_property volume 50", "set_property mute true", "set_property speed 1.5"}
	got := conn.commands()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command %d: want %q, got %q", i, want[i], got[i])
		}
	}

	h.handleEvent(prop(obsVolume, "volume", 50.0))
	h.handleEvent(prop(obsMute, "mute", true))
	h.handleEvent(prop(obsSpeed, "speed", 1.5))

	if len(*events) != 3 {
		t.Fatalf("expected 3 echoes, got %+v", *events)
	}
	for _, ev := range *events {
		if !ev.Requested {
			t.Errorf("echo should be requested: %+v", ev)
		}
	}

	// the user turns the volume up in the mpv window
	h.handleEvent(prop(obsVolume, "volume", 80.0))
	last := (*events)[len(*events)-1]
	if last.Kind != domain.EventVolumeChanged || last.Requested {
		t.Errorf("unexpected event: %+v", last)
	}
	if h.Volume() != 0.8 {
		t.Errorf("volume: want 0.8, got %v", h.Volume())
	}
}

func TestHandle_InvalidRateIgnored(t *testing.T) {
	h, conn, _ := newTestHandle(domain.RoleAuthority)

	h.SetRate(0)
	h.SetRate(-1)

	if len(conn.commands()) != 0 {
		t.Errorf("non-positive rates must not be sent: %v", conn.commands())
	}
	if h.Rate() != 1 {
		t.Errorf("rate should stay 1, got %v", h.Rate())
	}
}

func TestHandle_SendFailureSwallowed(t *testing.T) {
	h, conn, events := newTestHandle(domain.RoleFollower)
	conn.sendErr = fmt.Errorf("broken pipe")

	h.Play()

	if h.Playing() {
		t.Error("a failed play must not leave the handle playing")
	}

	// the expectation is rolled back, so a later user play is not mistaken for an echo
	h.handleEvent(prop(obsPause, "pause", false))

	if len(*events) != 1 {
		t.Fatalf("expected 1 event, got %+v", *events)
	}
	if (*events)[0].Kind != domain.EventPlayStarted || (*events)[0].Requested {
		t.Errorf("unexpected event: %+v", (*events)[0])
	}
}

func TestHandle_RejectionAfterEcho(t *testing.T) {
	h, conn, events := newTestHandle(domain.RoleFollower)

	h.SetRate(1.5)
	h.handleEvent(prop(obsSpeed, "speed", 1.5))
	// a late error for a command mpv already applied leaves the state alone
	conn.reject(0, fmt.Errorf("error running command"))

	if h.Rate() != 1.5 {
		t.Errorf("rate: want 1.5, got %v", h.Rate())
	}
	if len(*events) != 1 || !(*events)[0].Requested {
		t.Errorf("unexpected events: %+v", *events)
	}
}

func TestHandle_RejectedSeek(t *testing.T) {
	h, conn, events := newTestHandle(domain.RoleFollower)

	// mpv refuses the seek while the file is still loading
	h.Seek(0.6)
	conn.reject(0, fmt.Errorf("mpv seek: error running command"))

	// the user then seeks in the window
	h.handleEvent(Event{Name: "seek"})
	h.handleEvent(prop(obsTimePos, "time-pos", 30.0))
	h.handleEvent(Event{Name: "playback-restart"})

	var seek *domain.MediaEvent
	for i := range *events {
		if (*events)[i].Kind == domain.EventSeekCompleted {
			seek = &(*events)[i]
		}
	}
	if seek == nil {
		t.Fatal("expected seek-completed")
	}
	if seek.Requested {
		t.Errorf("user seek reported as requested: %+v", *seek)
	}
	if seek.Position != 30 {
		t.Errorf("position: want 30, got %v", seek.Position)
	}
}

func TestHandle_RejectedRequests(t *testing.T) {
	tests := []struct {
		name    string
		request func(h *Handle)
		user    []Event
		want    domain.EventKind
	}{
		{
			name:    "Pause",
			request: func(h *Handle) { h.Pause() },
			user:    []Event{prop(obsPause, "pause", true)},
			want:    domain.EventPaused,
		},
		{
			name:    "Rate",
			request: func(h *Handle) { h.SetRate(2) },
			user:    []Event{prop(obsSpeed, "speed", 2.0)},
			want:    domain.EventRateChanged,
		},
		{
			name: "Repeated seeks",
			request: func(h *Handle) {
				h.Seek(1)
				h.Seek(2)
			},
			user: []Event{{Name: "seek"}, {Name: "playback-restart"}},
			want: domain.EventSeekCompleted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, conn, events := newTestHandle(domain.RoleFollower)
			h.playing = true

			tt.request(h)
			for i := range conn.commands() {
				conn.reject(i, fmt.Errorf("error running command"))
			}
			for _, ev := range tt.user {
				h.handleEvent(ev)
			}

			var got *domain.MediaEvent
			for i := range *events {
				if (*events)[i].Kind == tt.want {
					got = &(*events)[i]
				}
			}
			if got == nil {
				t.Fatalf("expected %v event, got %+v", tt.want, *events)
			}
			if got.Requested {
				t.Errorf("user change reported as requested: %+v", *got)
			}
		})
	}
}

func TestHandle_WindowMinimized(t *testing.T) {
	h, _, _ := newTestHandle(domain.RoleFollower)
	var states []bool
	h.OnWindowMinimized(func(m bool) { states = append(states, m) })

	h.handleEvent(prop(obsWindowMinimized, "window-minimized", true))
	h.handleEvent(prop(obsWindowMinimized, "window-minimized", false))

	if len(states) != 2 || !states[0] || states[1] {
		t.Errorf("unexpected window states: %v", states)
	}
}

func TestHandle_WindowMinimizedBeforeSubscribe(t *testing.T) {
	tests := []struct {
		name   string
		events []Event
		want   []bool
	}{
		{name: "No notification yet", want: nil},
		{
			name:   "Started minimized",
			events: []Event{prop(obsWindowMinimized, "window-minimized", true)},
			want:   []bool{true},
		},
		{
			name: "Latest state replayed",
			events: []Event{
				prop(obsWindowMinimized, "window-minimized", true),
				prop(obsWindowMinimized, "window-minimized", false),
			},
			want: []bool{false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, _ := newTestHandle(domain.RoleFollower)
			for _, ev := range tt.events {
				h.handleEvent(ev)
			}

			var states []bool
			h.OnWindowMinimized(func(m bool) { states = append(states, m) })

			if len(states) != len(tt.want) {
				t.Fatalf("states: want %v, got %v", tt.want, states)
			}
			for i := range tt.want {
				if states[i] != tt.want[i] {
					t.Errorf("states: want %v, got %v", tt.want, states)
				}
			}
		})
	}
}

func TestHandle_Close(t *testing.T) {
	h, conn, _ := newTestHandle(domain.RoleFollower)
	stopped := false
	h.onClose = func() error {
		stopped = true
		return nil
	}
	go h.pump()

	if err := h.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	if !stopped {
		t.Error("process should be stopped")
	}
	cmds := conn.commands()
	if len(cmds) != 1 || cmds[0] != "quit" {
		t.Errorf("expected a single quit command, got %v", cmds)
	}

	h.Play()
	if len(conn.commands()) != 1 {
		t.Error("requests after Close must be dropped")
	}
}
