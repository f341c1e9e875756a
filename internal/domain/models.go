package domain

import "fmt"

// PlayerStatus represents the playback state published to the desktop
type PlayerStatus string

const (
	// StatusPlaying indicates the media is currently playing
	StatusPlaying PlayerStatus = "Playing"
	// StatusPaused indicates the media is paused
	StatusPaused PlayerStatus = "Paused"
	// StatusStopped indicates nothing is loaded
	StatusStopped PlayerStatus = "Stopped"
)

// Role tells which side of a synchronized pair a handle plays
type Role int

const (
	// RoleAuthority is the stream that owns position and play/pause intent (audio)
	RoleAuthority Role = iota
	// RoleFollower is the stream corrected to match the authority (video)
	RoleFollower
)

func (r Role) String() string {
	switch r {
	case RoleAuthority:
		return "authority"
	case RoleFollower:
		return "follower"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// EventKind is the fixed vocabulary of media lifecycle events
type EventKind int

const (
	EventPlayStarted EventKind = iota
	EventPaused
	EventPositionTick
	EventSeekCompleted
	EventRateChanged
	EventVolumeChanged
)

func (k EventKind) String() string {
	switch k {
	case EventPlayStarted:
		return "play-started"
	case EventPaused:
		return "paused"
	case EventPositionTick:
		return "position-tick"
	case EventSeekCompleted:
		return "seek-completed"
	case EventRateChanged:
		return "rate-changed"
	case EventVolumeChanged:
		return "volume-changed"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// MediaEvent is emitted by a MediaHandle to its subscribers
type MediaEvent struct {
	Kind EventKind
	Role Role
	// Position is the handle position when the event was produced
	Position float64
	// Requested is set when the change was asked for through the handle's own API
	// (play/pause/seek/rate/volume) rather than by the runtime or the user.
	Requested bool
}

// StreamInfo is the response shape of the resolution service.
// VideoURL is empty when only a combined stream exists.
type StreamInfo struct {
	VideoURL string `json:"videoUrl,omitempty"`
	AudioURL string `json:"audioUrl"`
}

// Combined reports whether both handles must be bound to the same URL
func (s StreamInfo) Combined() bool {
	return s.VideoURL == "" || s.VideoURL == s.AudioURL
}

// FollowerURL returns the URL the follower handle binds to
func (s StreamInfo) FollowerURL() string {
	if s.VideoURL == "" {
		return s.AudioURL
	}
	return s.VideoURL
}

// MediaInfo contains the title and thumbnail of a content locator
type MediaInfo struct {
	Title     string `json:"title"`
	Thumbnail string `json:"thumbnail"`
}

// MediaMetadata describes the session published to the system media surface
type MediaMetadata struct {
	// TrackID is a unique identifier of the current session
	TrackID string
	// Title of the content
	Title string
	// Artist name
	Artist string
	// ArtUrl is a file:// or http(s) URL of the cover art
	ArtUrl string
}

// ScreenResolution holds the display dimensions
type ScreenResolution struct {
	Width  int
	Height int
}
