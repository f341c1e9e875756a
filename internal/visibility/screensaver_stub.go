//go:build !linux

package visibility

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ScreenSaverWatcher stub for non-Linux platforms
type ScreenSaverWatcher struct {
	logger *zap.Logger
}

// NewScreenSaverWatcher creates a stub watcher; window state is the only source
// of visibility on this platform
func NewScreenSaverWatcher(logger *zap.Logger, _ *Monitor) *ScreenSaverWatcher {
	return &ScreenSaverWatcher{logger: logger}
}

// Start returns an error indicating screensaver watching is not supported
func (w *ScreenSaverWatcher) Start(ctx context.Context) error {
	return fmt.Errorf("screensaver watching is only supported on Linux systems")
}

// Stop is a no-op on non-Linux platforms
func (w *ScreenSaverWatcher) Stop(ctx context.Context) error {
	return nil
}
