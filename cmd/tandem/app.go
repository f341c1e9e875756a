package main

import (
	"context"

	"github.com/genricoloni/tandem/internal/artwork"
	"github.com/genricoloni/tandem/internal/config"
	"github.com/genricoloni/tandem/internal/domain"
	"github.com/genricoloni/tandem/internal/loop"
	"github.com/genricoloni/tandem/internal/mpv"
	"github.com/genricoloni/tandem/internal/resolver"
	"github.com/genricoloni/tandem/internal/shell"
	"github.com/genricoloni/tandem/internal/surface"
	"github.com/genricoloni/tandem/internal/visibility"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// appOptions is the application graph shared by the commands
func appOptions(debug bool) fx.Option {
	return fx.Options(
		// Logger configuration
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),

		// Provide dependencies
		fx.Provide(
			func() (*zap.Logger, error) { return newLogger(debug) },
			fx.Annotate(config.NewAppConfig, fx.As(new(domain.Config))),
			loop.New,
			newMonitor,
			visibility.NewScreenSaverWatcher,
			newFactory,
			fx.Annotate(shell.NewMpvOpener, fx.As(new(shell.Opener))),
			newSurface,
			fx.Annotate(resolver.NewClient, fx.As(new(domain.Resolver))),
			fx.Annotate(resolver.NewThumbnailFetcher, fx.As(new(domain.Fetcher))),
			artwork.NewScreenResolution,
			fx.Annotate(artwork.NewCoverRenderer, fx.As(new(domain.ArtProcessor))),
			newShell,
		),

		// Lifecycle hooks
		fx.Invoke(registerHooks),
	)
}

// newLogger creates a zap logger; debug switches to the development config
func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newMonitor(logger *zap.Logger, l *loop.Loop) *visibility.Monitor {
	return visibility.NewMonitor(logger, l)
}

func newFactory(logger *zap.Logger, cfg domain.Config, l *loop.Loop) *mpv.Factory {
	return mpv.NewFactory(logger, cfg, l)
}

func newSurface(logger *zap.Logger, cfg domain.Config, l *loop.Loop) *surface.MPRIS {
	return surface.NewMPRIS(logger, cfg, l)
}

func newShell(
	logger *zap.Logger,
	cfg domain.Config,
	l *loop.Loop,
	opener shell.Opener,
	res domain.Resolver,
	fetcher domain.Fetcher,
	art domain.ArtProcessor,
	mpris *surface.MPRIS,
	monitor *visibility.Monitor,
) *shell.Shell {
	return shell.New(logger, cfg, l, opener, res, fetcher, art, mpris, monitor)
}

// registerHooks starts the playback loop and the desktop integrations. Hooks stop
// in reverse order: the shell disposes its session before the loop goes away.
func registerHooks(
	lc fx.Lifecycle,
	logger *zap.Logger,
	l *loop.Loop,
	watcher *visibility.ScreenSaverWatcher,
	mpris *surface.MPRIS,
	sh *shell.Shell,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// The loop outlives the start context; OnStop ends it
			return l.Start(context.WithoutCancel(ctx))
		},
		OnStop: l.Stop,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := watcher.Start(ctx); err != nil {
				logger.Warn("Screensaver watcher unavailable, visibility follows the window only", zap.Error(err))
			}
			return nil
		},
		OnStop: watcher.Stop,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := mpris.Start(ctx); err != nil {
				logger.Warn("MPRIS surface unavailable, media keys disabled", zap.Error(err))
			}
			return nil
		},
		OnStop: mpris.Stop,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("tandem started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down")
			return sh.Close(ctx)
		},
	})
}
