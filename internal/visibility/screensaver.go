//go:build linux

package visibility

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

// ScreenSaverWatcher reports the desktop screensaver/lock screen as a hidden-source.
// While the screensaver is active the video window cannot be seen, even if it is
// neither minimized nor covered.
type ScreenSaverWatcher struct {
	logger  *zap.Logger
	monitor *Monitor

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	conn    DBusClient // Interface for testability
	signals chan *dbus.Signal
	wg      sync.WaitGroup

	// dial is replaced in tests
	dial func() (DBusClient, error)
}

// NewScreenSaverWatcher creates a watcher feeding monitor
func NewScreenSaverWatcher(logger *zap.Logger, monitor *Monitor) *ScreenSaverWatcher {
	return &ScreenSaverWatcher{
		logger:  logger,
		monitor: monitor,
		dial: func() (DBusClient, error) {
			return NewStdDBusClient()
		},
	}
}

// Start connects to the session bus and begins watching.
// It returns once the watch is in place (non-blocking).
func (w *ScreenSaverWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	conn, err := w.dial()
	if err != nil {
		return fmt.Errorf("session bus connection failed: %w", err)
	}

	for _, iface := range []string{screenSaverIface, gnomeSaverIface} {
		if err := conn.AddMatchSignal(
			dbus.WithMatchInterface(iface),
			dbus.WithMatchMember("ActiveChanged"),
		); err != nil {
			_ = conn.Close()
			return fmt.Errorf("failed to add match signal: %w", err)
		}
	}

	// Initial state; a missing screensaver service is not fatal
	if active, err := conn.ScreenSaverActive(); err == nil {
		w.monitor.SetHidden(SourceScreenSaver, active)
	} else {
		w.logger.Debug("Screensaver state unavailable", zap.Error(err))
	}

	signals := make(chan *dbus.Signal, 10)
	conn.Signal(signals)

	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w.conn = conn
	w.signals = signals
	w.cancel = cancel
	w.running = true

	w.wg.Add(1)
	go w.watch(watchCtx, signals)

	w.logger.Info("Screensaver watcher started")
	return nil
}

// Stop stops watching and closes the bus connection
func (w *ScreenSaverWatcher) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.cancel()
	w.running = false
	conn, signals := w.conn, w.signals
	w.mu.Unlock()

	// Wait for the watch goroutine before releasing the channel
	w.wg.Wait()

	conn.RemoveSignal(signals)
	if err := conn.Close(); err != nil {
		w.logger.Warn("Failed to close D-Bus connection", zap.Error(err))
	}

	w.monitor.Reset(SourceScreenSaver)
	w.logger.Info("Screensaver watcher stopped")
	return nil
}

func (w *ScreenSaverWatcher) watch(ctx context.Context, signals <-chan *dbus.Signal) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			if sig == nil {
				continue
			}
			w.handleSignal(sig)
		}
	}
}

// handleSignal processes an ActiveChanged signal
func (w *ScreenSaverWatcher) handleSignal(sig *dbus.Signal) {
	if sig.Name != screenSaverIface+".ActiveChanged" && sig.Name != gnomeSaverIface+".ActiveChanged" {
		return
	}
	if len(sig.Body) < 1 {
		return
	}

	active, ok := sig.Body[0].(bool)
	if !ok {
		w.logger.Warn("Invalid ActiveChanged payload, ignoring",
			zap.String("type", fmt.Sprintf("%T", sig.Body[0])))
		return
	}

	w.logger.Debug("Screensaver state changed", zap.Bool("active", active))
	w.monitor.SetHidden(SourceScreenSaver, active)
}
