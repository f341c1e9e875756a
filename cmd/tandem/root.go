package main

import (
	"github.com/spf13/cobra"
)

// newRootCmd builds the tandem command tree
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tandem",
		Short: "Play a video and its separate audio stream in lockstep",
		Long: "tandem plays the audio and video streams of a piece of content in two mpv players, " +
			"keeping the video locked to the audio. Audio keeps playing while the video window " +
			"is minimized and the video catches up when it is shown again.",
		SilenceUsage: true,
	}

	root.PersistentFlags().Bool("debug", false, "Enable development logging")

	root.AddCommand(newPlayCmd())
	return root
}
