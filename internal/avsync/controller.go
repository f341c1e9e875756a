// Package avsync keeps a follower (video) stream locked to an authority (audio) stream.
//
// The authority is the single source of truth for position and play/pause intent.
// User interaction on the follower is forwarded to the authority, the authority
// drives the follower back, and a visibility transition to visible resynchronizes a
// follower that may have been throttled while hidden.
//
// All methods and event handlers must run on one execution context (see package loop).
package avsync

import (
	"math"

	"github.com/genricoloni/tandem/internal/domain"
	"go.uber.org/zap"
)

// DefaultDriftThreshold is the follower/authority distance, in seconds, above which a
// position tick re-seeks the follower
const DefaultDriftThreshold = 0.3

// Options tune a Controller
type Options struct {
	// DriftThreshold overrides DefaultDriftThreshold when positive
	DriftThreshold float64
}

// Controller synchronizes one authority and one follower handle.
// A Controller is bound to one pair of sources for its whole life; when either
// source changes the caller disposes it and builds a new one.
type Controller struct {
	logger     *zap.Logger
	authority  domain.MediaHandle
	follower   domain.MediaHandle
	visibility domain.VisibilityMonitor

	driftThreshold float64

	// syncing is set for the extent of one reconciliation action. Handlers invoked
	// while it is set are echoes of that action and do nothing.
	syncing  bool
	visible  bool
	disposed bool

	unsubscribe []func()
}

// New creates a controller and subscribes it to both handles and the visibility monitor
func New(
	logger *zap.Logger,
	authority domain.MediaHandle,
	follower domain.MediaHandle,
	visibility domain.VisibilityMonitor,
	opts Options,
) *Controller {
	threshold := opts.DriftThreshold
	if threshold <= 0 {
		threshold = DefaultDriftThreshold
	}

	c := &Controller{
		logger:         logger,
		authority:      authority,
		follower:       follower,
		visibility:     visibility,
		driftThreshold: threshold,
		visible:        visibility.Visible(),
	}

	c.unsubscribe = []func(){
		follower.Subscribe(c.onFollowerEvent),
		authority.Subscribe(c.onAuthorityEvent),
		visibility.Subscribe(c.onVisibilityChange),
	}

	logger.Debug("Sync controller created",
		zap.Float64("driftThreshold", threshold),
		zap.Bool("visible", c.visible))

	return c
}

// Dispose releases every subscription. Events delivered afterwards are dropped.
// Calling Dispose more than once is a no-op.
func (c *Controller) Dispose() {
	if c.disposed {
		return
	}
	c.disposed = true

	for _, unsub := range c.unsubscribe {
		unsub()
	}
	c.unsubscribe = nil

	c.logger.Debug("Sync controller disposed")
}

// Disposed reports whether Dispose has been called
func (c *Controller) Disposed() bool {
	return c.disposed
}

// Visible returns the last visibility the controller observed
func (c *Controller) Visible() bool {
	return c.visible
}

// ignore reports whether an incoming event must be dropped
func (c *Controller) ignore() bool {
	return c.disposed || c.syncing
}

// reconcile runs action with the reentrancy guard held. The guard is released even
// if action panics.
func (c *Controller) reconcile(action func()) {
	c.syncing = true
	defer func() { c.syncing = false }()
	action()
}

// onFollowerEvent forwards user interaction on the follower to the authority
func (c *Controller) onFollowerEvent(ev domain.MediaEvent) {
	if c.ignore() {
		return
	}
	// The follower is only ever mutated by this controller, so a requested change is
	// the late echo of one of our own actions.
	if ev.Requested {
		return
	}

	switch ev.Kind {
	case domain.EventPlayStarted:
		c.reconcile(func() {
			pos := c.follower.Position()
			c.logger.Debug("Follower started, aligning authority", zap.Float64("position", pos))
			c.authority.Seek(pos)
			c.authority.Play()
		})

	case domain.EventPaused:
		// A hidden follower can be paused by the runtime throttling it; only a
		// visible pause is user intent.
		if !c.visible {
			c.logger.Debug("Ignoring follower pause while hidden")
			return
		}
		c.reconcile(func() {
			c.authority.Pause()
		})

	case domain.EventSeekCompleted:
		c.reconcile(func() {
			pos := c.follower.Position()
			c.logger.Debug("Follower seeked", zap.Float64("position", pos))
			c.authority.Seek(pos)
		})

	case domain.EventRateChanged:
		c.reconcile(func() {
			c.authority.SetRate(c.follower.Rate())
		})

	case domain.EventVolumeChanged:
		c.reconcile(func() {
			c.authority.SetVolume(c.follower.Volume(), c.follower.Muted())
		})
	}
}

// onAuthorityEvent drives the follower from the authority
func (c *Controller) onAuthorityEvent(ev domain.MediaEvent) {
	if c.ignore() {
		return
	}

	switch ev.Kind {
	case domain.EventPositionTick:
		apos := c.authority.Position()
		drift := math.Abs(c.follower.Position() - apos)
		if drift <= c.driftThreshold {
			return
		}
		c.reconcile(func() {
			c.logger.Debug("Correcting follower drift",
				zap.Float64("drift", drift),
				zap.Float64("position", apos))
			c.follower.Seek(apos)
		})

	case domain.EventPlayStarted:
		c.reconcile(func() {
			if !c.follower.Playing() {
				c.follower.Play()
			}
		})

	case domain.EventPaused:
		c.reconcile(func() {
			if c.follower.Playing() {
				c.follower.Pause()
			}
		})
	}
}

// onVisibilityChange repairs divergence accumulated while the follower was hidden
func (c *Controller) onVisibilityChange(visible bool) {
	if c.disposed {
		return
	}
	c.visible = visible

	if !visible || !c.authority.Playing() {
		return
	}

	apos := c.authority.Position()
	c.logger.Info("Surface visible again, resynchronizing follower",
		zap.Float64("authority", apos),
		zap.Float64("follower", c.follower.Position()))

	c.reconcile(func() {
		c.follower.Seek(apos)
		if !c.follower.Playing() {
			c.follower.Play()
		}
	})
}
