// Package surface exposes the authority handle as an MPRIS media player on the
// session bus, so media keys, lock screens and desktop applets can control playback.
package surface

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/genricoloni/tandem/internal/domain"
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"
	"go.uber.org/zap"
)

const (
	identity    = "tandem"
	trackPrefix = "/org/genricoloni/tandem/track/"
	noTrack     = "/org/mpris/MediaPlayer2/TrackList/NoTrack"
)

// MPRIS status values
const (
	statusPlaying = "Playing"
	statusPaused  = "Paused"
	statusStopped = "Stopped"
)

// Dispatcher runs callbacks on the playback loop
type Dispatcher interface {
	Post(fn func()) bool
}

// binding is one Attach: the authority receiving intents and the track it plays
type binding struct {
	authority   domain.MediaHandle
	trackID     dbus.ObjectPath
	unsubscribe func()
}

// MPRIS is a domain.Surface backed by org.mpris.MediaPlayer2 on the session bus.
// Without a bus connection Attach still succeeds and only tracks the binding.
type MPRIS struct {
	logger     *zap.Logger
	busName    string
	dispatcher Dispatcher

	mu      sync.Mutex
	conn    BusConn
	props   PropertySetter
	current *binding

	// setFailed silences property failures after the first until the next Start
	setFailed bool

	// dial is replaced in tests
	dial func() (BusConn, error)
}

// NewMPRIS creates the surface; Start exports it
func NewMPRIS(logger *zap.Logger, cfg domain.Config, dispatcher Dispatcher) *MPRIS {
	return &MPRIS{
		logger:     logger,
		busName:    mprisNamePrefix + cfg.GetBusName(),
		dispatcher: dispatcher,
		dial: func() (BusConn, error) {
			return NewStdBusConn()
		},
	}
}

// Start connects to the session bus, claims the player name and exports the
// MPRIS interfaces
func (m *MPRIS) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil {
		return nil
	}

	conn, err := m.dial()
	if err != nil {
		return fmt.Errorf("session bus connection failed: %w", err)
	}

	owned, err := conn.RequestName(m.busName)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to request bus name: %w", err)
	}
	if !owned {
		_ = conn.Close()
		return fmt.Errorf("bus name %s is already taken", m.busName)
	}

	if err := conn.Export(mediaPlayer2{}, mprisPath, rootIface); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to export %s: %w", rootIface, err)
	}
	if err := conn.Export(player{m: m}, mprisPath, playerIface); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to export %s: %w", playerIface, err)
	}

	props, err := conn.ExportProperties(mprisPath, m.properties())
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to export properties: %w", err)
	}

	m.conn = conn
	m.props = props
	m.setFailed = false
	m.logger.Info("MPRIS surface exported", zap.String("name", m.busName))
	return nil
}

// Stop releases the bus name and closes the connection
func (m *MPRIS) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return nil
	}

	if err := m.conn.ReleaseName(m.busName); err != nil {
		m.logger.Debug("Failed to release bus name", zap.Error(err))
	}
	err := m.conn.Close()
	m.conn = nil
	m.props = nil
	m.logger.Info("MPRIS surface stopped")
	return err
}

// properties builds the initial property tree: nothing attached, playback stopped
func (m *MPRIS) properties() prop.Map {
	return prop.Map{
		rootIface: {
			"CanQuit":             {Value: false, Emit: prop.EmitTrue},
			"CanRaise":            {Value: false, Emit: prop.EmitTrue},
			"HasTrackList":        {Value: false, Emit: prop.EmitTrue},
			"Identity":            {Value: identity, Emit: prop.EmitTrue},
			"SupportedUriSchemes": {Value: []string{}, Emit: prop.EmitTrue},
			"SupportedMimeTypes":  {Value: []string{}, Emit: prop.EmitTrue},
		},
		playerIface: {
			"PlaybackStatus": {Value: statusStopped, Emit: prop.EmitTrue},
			"Metadata":       {Value: metadata(domain.MediaMetadata{}, noTrack), Emit: prop.EmitTrue},
			"Rate":           {Value: 1.0, Emit: prop.EmitTrue},
			"MinimumRate":    {Value: 0.25, Emit: prop.EmitTrue},
			"MaximumRate":    {Value: 4.0, Emit: prop.EmitTrue},
			"Volume":         {Value: 1.0, Emit: prop.EmitTrue},
			"Position":       {Value: int64(0), Emit: prop.EmitFalse},
			"CanGoNext":      {Value: false, Emit: prop.EmitTrue},
			"CanGoPrevious":  {Value: false, Emit: prop.EmitTrue},
			"CanPlay":        {Value: true, Emit: prop.EmitTrue},
			"CanPause":       {Value: true, Emit: prop.EmitTrue},
			"CanSeek":        {Value: true, Emit: prop.EmitTrue},
			"CanControl":     {Value: true, Emit: prop.EmitConst},
		},
	}
}

// Attach routes intents into authority and mirrors its state until detach is called.
// A later Attach replaces the binding; detaching a replaced binding only unsubscribes it.
func (m *MPRIS) Attach(authority domain.MediaHandle, meta domain.MediaMetadata) func() {
	b := &binding{
		authority: authority,
		trackID:   trackPath(meta.TrackID),
	}

	m.mu.Lock()
	m.current = b
	m.mu.Unlock()

	m.set(playerIface, "Metadata", metadata(meta, b.trackID))
	m.set(playerIface, "Rate", authority.Rate())
	m.set(playerIface, "Volume", authority.Volume())
	m.set(playerIface, "Position", micros(authority.Position()))
	m.set(playerIface, "PlaybackStatus", status(authority.Playing()))

	b.unsubscribe = authority.Subscribe(func(ev domain.MediaEvent) {
		m.onAuthorityEvent(b, ev)
	})

	m.logger.Debug("Surface attached", zap.String("track", string(b.trackID)))

	var once sync.Once
	return func() {
		once.Do(func() {
			b.unsubscribe()

			m.mu.Lock()
			active := m.current == b
			if active {
				m.current = nil
			}
			m.mu.Unlock()

			if active {
				m.set(playerIface, "PlaybackStatus", statusStopped)
				m.set(playerIface, "Metadata", metadata(domain.MediaMetadata{}, noTrack))
				m.set(playerIface, "Position", int64(0))
			}
			m.logger.Debug("Surface detached", zap.String("track", string(b.trackID)))
		})
	}
}

// onAuthorityEvent mirrors the authority outward. Runs on the playback loop.
func (m *MPRIS) onAuthorityEvent(b *binding, ev domain.MediaEvent) {
	if !m.isCurrent(b) {
		return
	}

	switch ev.Kind {
	case domain.EventPlayStarted:
		m.set(playerIface, "PlaybackStatus", statusPlaying)
	case domain.EventPaused:
		m.set(playerIface, "PlaybackStatus", statusPaused)
	case domain.EventPositionTick:
		m.set(playerIface, "Position", micros(ev.Position))
	case domain.EventSeekCompleted:
		m.set(playerIface, "Position", micros(ev.Position))
		m.emit("Seeked", micros(ev.Position))
	case domain.EventRateChanged:
		m.set(playerIface, "Rate", b.authority.Rate())
	case domain.EventVolumeChanged:
		m.set(playerIface, "Volume", b.authority.Volume())
	}
}

// intent schedules an MPRIS call on the playback loop against the current binding.
// Bus method calls arrive on godbus goroutines; handles are only touched on the loop.
func (m *MPRIS) intent(name string, fn func(b *binding)) {
	posted := m.dispatcher.Post(func() {
		m.mu.Lock()
		b := m.current
		m.mu.Unlock()

		if b == nil {
			m.logger.Debug("MPRIS intent without attached player", zap.String("method", name))
			return
		}
		m.logger.Debug("MPRIS intent", zap.String("method", name))
		fn(b)
	})
	if !posted {
		m.logger.Debug("Playback loop stopped, intent dropped", zap.String("method", name))
	}
}

func (m *MPRIS) isCurrent(b *binding) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current == b
}

// set updates a property when the surface is exported. SetMust panics when the
// PropertiesChanged signal cannot be sent; the first failure is logged and the
// rest are dropped, since Position changes on every tick.
func (m *MPRIS) set(iface, property string, v any) {
	m.mu.Lock()
	props := m.props
	m.mu.Unlock()

	if props == nil {
		return
	}

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		m.mu.Lock()
		first := !m.setFailed
		m.setFailed = true
		m.mu.Unlock()
		if first {
			m.logger.Debug("Failed to update MPRIS property, further failures are not logged",
				zap.String("property", property), zap.Any("error", r))
		}
	}()
	props.SetMust(iface, property, v)
}

func (m *MPRIS) emit(signal string, values ...any) {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()

	if conn == nil {
		return
	}
	if err := conn.Emit(mprisPath, playerIface+"."+signal, values...); err != nil {
		m.logger.Debug("Failed to emit signal", zap.String("signal", signal), zap.Error(err))
	}
}

// metadata builds the xesam/mpris metadata map
func metadata(meta domain.MediaMetadata, trackID dbus.ObjectPath) map[string]dbus.Variant {
	md := map[string]dbus.Variant{
		"mpris:trackid": dbus.MakeVariant(trackID),
	}
	if meta.Title != "" {
		md["xesam:title"] = dbus.MakeVariant(meta.Title)
	}
	if meta.Artist != "" {
		md["xesam:artist"] = dbus.MakeVariant([]string{meta.Artist})
	}
	if meta.ArtUrl != "" {
		md["mpris:artUrl"] = dbus.MakeVariant(meta.ArtUrl)
	}
	return md
}

// trackPath turns a session id into a valid object path
func trackPath(id string) dbus.ObjectPath {
	if id == "" {
		return noTrack
	}
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
	return dbus.ObjectPath(trackPrefix + clean)
}

func status(playing bool) string {
	if playing {
		return statusPlaying
	}
	return statusPaused
}

// micros converts seconds to MPRIS microseconds
func micros(seconds float64) int64 {
	return int64(seconds * 1e6)
}
