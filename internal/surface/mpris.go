package surface

import (
	"github.com/godbus/dbus/v5"
)

// mediaPlayer2 implements org.mpris.MediaPlayer2. tandem cannot be raised or quit
// from the bus; both calls are accepted and ignored.
type mediaPlayer2 struct{}

func (mediaPlayer2) Raise() *dbus.Error { return nil }

func (mediaPlayer2) Quit() *dbus.Error { return nil }

// player implements org.mpris.MediaPlayer2.Player. Every intent is routed into the
// attached authority on the playback loop.
type player struct {
	m *MPRIS
}

func (p player) Play() *dbus.Error {
	p.m.intent("Play", func(b *binding) { b.authority.Play() })
	return nil
}

func (p player) Pause() *dbus.Error {
	p.m.intent("Pause", func(b *binding) { b.authority.Pause() })
	return nil
}

func (p player) PlayPause() *dbus.Error {
	p.m.intent("PlayPause", func(b *binding) {
		if b.authority.Playing() {
			b.authority.Pause()
		} else {
			b.authority.Play()
		}
	})
	return nil
}

// Stop pauses: a session stays loaded until the shell replaces it
func (p player) Stop() *dbus.Error {
	p.m.intent("Stop", func(b *binding) { b.authority.Pause() })
	return nil
}

// Seek moves relative to the current position, in microseconds
func (p player) Seek(offset int64) *dbus.Error {
	p.m.intent("Seek", func(b *binding) {
		target := b.authority.Position() + float64(offset)/1e6
		b.authority.Seek(max(target, 0))
	})
	return nil
}

// SetPosition moves to an absolute position if trackID is the current track
func (p player) SetPosition(trackID dbus.ObjectPath, position int64) *dbus.Error {
	if position < 0 {
		return nil
	}
	p.m.intent("SetPosition", func(b *binding) {
		if trackID != b.trackID {
			return
		}
		b.authority.Seek(float64(position) / 1e6)
	})
	return nil
}

func (player) Next() *dbus.Error { return nil }

func (player) Previous() *dbus.Error { return nil }

func (player) OpenUri(string) *dbus.Error { return nil }
