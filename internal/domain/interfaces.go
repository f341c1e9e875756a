package domain

import (
	"context"
	"time"
)

// MediaHandle wraps one playable media resource.
// Playback requests are fire-and-forget: failures are swallowed by the implementation
// and completion is observed through subscribed events.
type MediaHandle interface {
	// Role returns the side of the pair this handle was created for
	Role() Role

	// Play requests playback resume (idempotent)
	Play()
	// Pause requests playback stop (idempotent)
	Pause()
	// Seek moves the playback cursor; EventSeekCompleted fires once the runtime confirms
	Seek(position float64)
	// SetRate changes the playback rate
	SetRate(rate float64)
	// SetVolume changes volume (0..1) and mute state
	SetVolume(volume float64, muted bool)

	Position() float64
	Playing() bool
	Rate() float64
	Volume() float64
	Muted() bool

	// Subscribe registers fn for every lifecycle event and returns its unsubscribe function
	Subscribe(fn func(MediaEvent)) (unsubscribe func())
}

// VisibilityMonitor reports whether the hosting surface is visible to the user
type VisibilityMonitor interface {
	// Visible returns the current visibility
	Visible() bool

	// Subscribe registers fn for visibility transitions; fn is never called on
	// a reassertion of the same state
	Subscribe(fn func(visible bool)) (unsubscribe func())
}

// Surface is an OS-level media control affordance (media keys, lock screen, overlays)
type Surface interface {
	// Attach routes the surface's play/pause intents into authority and mirrors its
	// status outward until the returned detach function is called
	Attach(authority MediaHandle, meta MediaMetadata) (detach func())
}

// Resolver turns a content locator into metadata and direct stream URLs
type Resolver interface {
	// Info returns the title and thumbnail of a locator
	Info(ctx context.Context, locator string) (MediaInfo, error)

	// Streams returns the stream URLs of a locator
	Streams(ctx context.Context, locator string, audioOnly bool) (StreamInfo, error)
}

// Fetcher defines the interface for retrieving thumbnail images
type Fetcher interface {
	// Fetch downloads image data from a URL
	// Returns the raw image bytes or an error
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ArtProcessor builds cover art for the system media surface
type ArtProcessor interface {
	// Generate renders cover art from thumbnail data, stores it under name
	// and returns the file path
	Generate(ctx context.Context, imgData []byte, name string) (string, error)
}

// Config defines the interface for application configuration
type Config interface {
	GetResolverURL() string
	GetMpvBinary() string
	GetRuntimeDir() string
	GetOutputDir() string
	GetDriftThreshold() float64
	GetTickInterval() time.Duration
	GetBusName() string
	GetAudioOnly() bool
}
