// Package shell owns the playback session: it resolves locators, launches the
// authority and follower players, and binds them to a fresh sync controller and the
// system media surface. A session lives until its sources change or the shell closes.
package shell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/genricoloni/tandem/internal/avsync"
	"github.com/genricoloni/tandem/internal/domain"
	"github.com/genricoloni/tandem/internal/visibility"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultTitle = "tandem"

// ErrClosed is returned by Bind and Play after Close
var ErrClosed = errors.New("shell: closed")

// Player is a media handle owned by the shell
type Player interface {
	domain.MediaHandle

	// OnWindowMinimized registers fn for changes of the video window's minimized
	// state. A state already known is passed to fn before it returns.
	OnWindowMinimized(fn func(minimized bool)) (unsubscribe func())

	// Done is closed when the player is gone
	Done() <-chan struct{}

	Close() error
}

// Opener launches players
type Opener interface {
	Open(ctx context.Context, role domain.Role, url, title string) (Player, error)
}

// Runner executes functions on the playback loop
type Runner interface {
	Do(ctx context.Context, fn func()) error
}

// VisibilitySource is the visibility monitor the shell reports window state into
type VisibilitySource interface {
	domain.VisibilityMonitor
	SetHidden(source string, hidden bool)
	Reset(source string)
}

// Source describes what a session plays
type Source struct {
	// AuthorityURL is the audio stream; it drives position and play state
	AuthorityURL string
	// FollowerURL is the video stream; empty in audio-only mode
	FollowerURL string

	Title  string
	Artist string
	// ArtURL is published as cover art
	ArtURL string
	// Autoplay starts the authority once the session is bound
	Autoplay bool

	// coverFile is generated art owned by the session
	coverFile string
}

// AudioOnly reports whether the source has no video
func (s Source) AudioOnly() bool {
	return s.FollowerURL == ""
}

// PlayOptions tune Play
type PlayOptions struct {
	AudioOnly bool
	// Title replaces the resolved title when set
	Title  string
	Artist string
}

// SessionInfo is a snapshot of the current session
type SessionInfo struct {
	ID           string
	AuthorityURL string
	FollowerURL  string
	Title        string
	AudioOnly    bool
}

// session is one bound (authority, follower) pair
type session struct {
	id         string
	source     Source
	authority  Player
	follower   Player
	controller *avsync.Controller

	detach   func()
	unwatch  func()
	stop     chan struct{}
	stopOnce sync.Once
}

// Shell manages the playback session
type Shell struct {
	logger     *zap.Logger
	cfg        domain.Config
	runner     Runner
	opener     Opener
	resolver   domain.Resolver
	fetcher    domain.Fetcher
	art        domain.ArtProcessor
	surface    domain.Surface
	visibility VisibilitySource

	mu      sync.Mutex
	session *session
	closed  bool

	ended chan struct{}
}

// New creates a shell with no session
func New(
	logger *zap.Logger,
	cfg domain.Config,
	runner Runner,
	opener Opener,
	resolver domain.Resolver,
	fetcher domain.Fetcher,
	art domain.ArtProcessor,
	surface domain.Surface,
	vis VisibilitySource,
) *Shell {
	return &Shell{
		logger:     logger,
		cfg:        cfg,
		runner:     runner,
		opener:     opener,
		resolver:   resolver,
		fetcher:    fetcher,
		art:        art,
		surface:    surface,
		visibility: vis,
		ended:      make(chan struct{}, 1),
	}
}

// Ended receives a value when a player of the current session exits on its own,
// for instance because the user closed the video window
func (s *Shell) Ended() <-chan struct{} {
	return s.ended
}

// Current returns the current session, if any
func (s *Shell) Current() (SessionInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return SessionInfo{}, false
	}
	return SessionInfo{
		ID:           s.session.id,
		AuthorityURL: s.session.source.AuthorityURL,
		FollowerURL:  s.session.source.FollowerURL,
		Title:        s.session.source.Title,
		AudioOnly:    s.session.source.AudioOnly(),
	}, true
}

// Play resolves locator and binds the result. Metadata and cover art are best
// effort; stream resolution failures are returned.
func (s *Shell) Play(ctx context.Context, locator string, opts PlayOptions) error {
	info, err := s.resolver.Info(ctx, locator)
	if err != nil {
		s.logger.Warn("Failed to resolve media info", zap.String("locator", locator), zap.Error(err))
	}

	streams, err := s.resolver.Streams(ctx, locator, opts.AudioOnly)
	if err != nil {
		return fmt.Errorf("failed to resolve streams: %w", err)
	}

	src := Source{
		AuthorityURL: streams.AudioURL,
		Title:        info.Title,
		Artist:       opts.Artist,
		ArtURL:       info.Thumbnail,
		Autoplay:     true,
	}
	if opts.Title != "" {
		src.Title = opts.Title
	}
	if !opts.AudioOnly {
		src.FollowerURL = streams.FollowerURL()
		if streams.Combined() {
			s.logger.Info("Combined stream, binding one URL to both players")
		}
	}

	if info.Thumbnail != "" {
		if path, err := s.coverArt(ctx, info.Thumbnail); err != nil {
			s.logger.Warn("Cover art unavailable, using thumbnail", zap.Error(err))
		} else {
			src.coverFile = path
			src.ArtURL = "file://" + path
		}
	}

	return s.Bind(ctx, src)
}

func (s *Shell) coverArt(ctx context.Context, thumbnail string) (string, error) {
	data, err := s.fetcher.Fetch(ctx, thumbnail)
	if err != nil {
		return "", err
	}
	return s.art.Generate(ctx, data, uuid.NewString())
}

// Bind makes src the current session. If the authority and follower URLs are those
// of the current session nothing changes; otherwise the current session is torn
// down and a new one, with a new controller, is built.
func (s *Shell) Bind(ctx context.Context, src Source) error {
	if src.AuthorityURL == "" {
		removeCover(s.logger, src.coverFile)
		return errors.New("shell: authority url required")
	}
	if src.Title == "" {
		src.Title = defaultTitle
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		removeCover(s.logger, src.coverFile)
		return ErrClosed
	}

	if cur := s.session; cur != nil &&
		cur.source.AuthorityURL == src.AuthorityURL &&
		cur.source.FollowerURL == src.FollowerURL {
		s.logger.Debug("Sources unchanged, keeping session", zap.String("session", cur.id))
		removeCover(s.logger, src.coverFile)
		return nil
	}

	s.teardownLocked(ctx)

	sess, err := s.open(ctx, src)
	if err != nil {
		removeCover(s.logger, src.coverFile)
		return err
	}
	s.session = sess
	go s.watch(sess)

	s.logger.Info("Session started",
		zap.String("session", sess.id),
		zap.String("title", src.Title),
		zap.Bool("audioOnly", src.AudioOnly()))
	return nil
}

// open launches the players and binds them on the playback loop
func (s *Shell) open(ctx context.Context, src Source) (*session, error) {
	sess := &session{
		id:     uuid.NewString(),
		source: src,
		stop:   make(chan struct{}),
	}

	authority, err := s.opener.Open(ctx, domain.RoleAuthority, src.AuthorityURL, src.Title)
	if err != nil {
		return nil, fmt.Errorf("failed to open authority: %w", err)
	}
	sess.authority = authority

	if !src.AudioOnly() {
		follower, err := s.opener.Open(ctx, domain.RoleFollower, src.FollowerURL, src.Title)
		if err != nil {
			s.closePlayer(authority)
			return nil, fmt.Errorf("failed to open follower: %w", err)
		}
		sess.follower = follower
	}

	meta := domain.MediaMetadata{
		TrackID: sess.id,
		Title:   src.Title,
		Artist:  src.Artist,
		ArtUrl:  src.ArtURL,
	}
	logger := s.logger.With(zap.String("session", sess.id))

	err = s.runner.Do(context.WithoutCancel(ctx), func() {
		if sess.follower != nil {
			sess.controller = avsync.New(logger, sess.authority, sess.follower, s.visibility, avsync.Options{
				DriftThreshold: s.cfg.GetDriftThreshold(),
			})
		}
		sess.detach = s.surface.Attach(sess.authority, meta)
		if src.Autoplay {
			sess.authority.Play()
		}
	})
	if err != nil {
		s.closePlayers(sess)
		return nil, fmt.Errorf("failed to bind session: %w", err)
	}

	if sess.follower != nil {
		sess.unwatch = sess.follower.OnWindowMinimized(func(minimized bool) {
			s.visibility.SetHidden(visibility.SourceWindow, minimized)
		})
	}
	return sess, nil
}

// watch ends the session when one of its players goes away on its own
func (s *Shell) watch(sess *session) {
	var followerDone <-chan struct{}
	if sess.follower != nil {
		followerDone = sess.follower.Done()
	}

	select {
	case <-sess.stop:
		return
	case <-sess.authority.Done():
		s.logger.Info("Authority player exited", zap.String("session", sess.id))
	case <-followerDone:
		s.logger.Info("Follower player exited", zap.String("session", sess.id))
	}

	s.mu.Lock()
	current := s.session == sess
	if current {
		s.teardownLocked(context.Background())
	}
	s.mu.Unlock()

	if current {
		select {
		case s.ended <- struct{}{}:
		default:
		}
	}
}

// teardownLocked disposes the current session. Must hold mu.
func (s *Shell) teardownLocked(ctx context.Context) {
	sess := s.session
	if sess == nil {
		return
	}
	s.session = nil
	sess.stopOnce.Do(func() { close(sess.stop) })

	dispose := func() {
		if sess.controller != nil {
			sess.controller.Dispose()
		}
		if sess.detach != nil {
			sess.detach()
		}
	}
	if err := s.runner.Do(context.WithoutCancel(ctx), dispose); err != nil {
		// The loop is gone, nothing else can deliver events
		dispose()
	}

	if sess.unwatch != nil {
		sess.unwatch()
	}
	s.closePlayers(sess)
	s.visibility.Reset(visibility.SourceWindow)
	removeCover(s.logger, sess.source.coverFile)

	s.logger.Info("Session ended", zap.String("session", sess.id))
}

func (s *Shell) closePlayers(sess *session) {
	if sess.follower != nil {
		s.closePlayer(sess.follower)
	}
	s.closePlayer(sess.authority)
}

func (s *Shell) closePlayer(p Player) {
	if err := p.Close(); err != nil {
		s.logger.Warn("Failed to close player", zap.Stringer("role", p.Role()), zap.Error(err))
	}
}

// Close ends the current session; later Bind and Play calls fail
func (s *Shell) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.teardownLocked(ctx)
	return nil
}

func removeCover(logger *zap.Logger, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Debug("Failed to remove cover art", zap.String("path", path), zap.Error(err))
	}
}
