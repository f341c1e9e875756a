package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/genricoloni/tandem/internal/domain"
	"github.com/genricoloni/tandem/internal/shell"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const stopTimeout = 10 * time.Second

// playOptions are the flags of the play command
type playOptions struct {
	audioOnly bool
	audioURL  string
	videoURL  string
	title     string
	artist    string
}

func newPlayCmd() *cobra.Command {
	var opts playOptions

	cmd := &cobra.Command{
		Use:   "play [locator]",
		Short: "Resolve a locator and play it",
		Long: "play resolves the locator through the resolution service and plays it until " +
			"interrupted or until the player windows are closed. With --audio (and --video) " +
			"the given stream URLs are played directly and no resolution happens.",
		Example: "  tandem play https://www.youtube.com/watch?v=aqz-KE-bpKQ\n" +
			"  tandem play --audio-only https://youtu.be/aqz-KE-bpKQ\n" +
			"  tandem play --audio https://cdn.example/a.m4a --video https://cdn.example/v.mp4",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(args); err != nil {
				return err
			}
			debug, _ := cmd.Flags().GetBool("debug")
			return runPlay(cmd, args, opts, debug)
		},
	}

	cmd.Flags().BoolVar(&opts.audioOnly, "audio-only", false, "Play audio only, without a video window (default from TANDEM_AUDIO_ONLY unless --video is given)")
	cmd.Flags().StringVar(&opts.audioURL, "audio", "", "Audio stream URL; skips resolution")
	cmd.Flags().StringVar(&opts.videoURL, "video", "", "Video stream URL, used with --audio")
	cmd.Flags().StringVar(&opts.title, "title", "", "Title shown in the window and the media controls")
	cmd.Flags().StringVar(&opts.artist, "artist", "", "Artist shown in the media controls")

	return cmd
}

// validate checks that exactly one way of choosing the streams was used
func (o playOptions) validate(args []string) error {
	switch {
	case len(args) == 0 && o.audioURL == "":
		return errors.New("a locator or --audio is required")
	case len(args) > 0 && (o.audioURL != "" || o.videoURL != ""):
		return errors.New("a locator cannot be combined with --audio or --video")
	case o.videoURL != "" && o.audioURL == "":
		return errors.New("--video requires --audio")
	case o.audioOnly && o.videoURL != "":
		return errors.New("--audio-only cannot be combined with --video")
	}
	return nil
}

// withAudioOnlyDefault applies the configured audio-only mode unless the flag was
// given or an explicit --video asks for a video stream
func (o playOptions) withAudioOnlyDefault(flagSet, configured bool) playOptions {
	if !flagSet && o.videoURL == "" {
		o.audioOnly = configured
	}
	return o
}

func runPlay(cmd *cobra.Command, args []string, opts playOptions, debug bool) error {
	var (
		sh     *shell.Shell
		cfg    domain.Config
		logger *zap.Logger
	)

	app := fx.New(
		appOptions(debug),
		fx.Populate(&sh, &cfg, &logger),
	)
	if err := app.Err(); err != nil {
		return err
	}

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
		defer stopCancel()
		if err := app.Stop(stopCtx); err != nil {
			logger.Warn("Unclean shutdown", zap.Error(err))
		}
	}()

	opts = opts.withAudioOnlyDefault(cmd.Flags().Changed("audio-only"), cfg.GetAudioOnly())

	if err := startPlayback(ctx, sh, args, opts); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		logger.Info("Interrupted")
	case <-sh.Ended():
		logger.Info("Playback window closed")
	}
	return nil
}

// startPlayback binds direct URLs or resolves the locator
func startPlayback(ctx context.Context, sh *shell.Shell, args []string, opts playOptions) error {
	if opts.audioURL != "" {
		src := shell.Source{
			AuthorityURL: opts.audioURL,
			Title:        opts.title,
			Artist:       opts.artist,
			Autoplay:     true,
		}
		if !opts.audioOnly {
			src.FollowerURL = opts.videoURL
			if src.FollowerURL == "" {
				// one combined stream drives both players
				src.FollowerURL = opts.audioURL
			}
		}
		return sh.Bind(ctx, src)
	}

	return sh.Play(ctx, args[0], shell.PlayOptions{
		AudioOnly: opts.audioOnly,
		Title:     opts.title,
		Artist:    opts.artist,
	})
}
