package mpv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/genricoloni/tandem/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	dialTimeout  = 5 * time.Second
	dialInterval = 50 * time.Millisecond
	exitTimeout  = 2 * time.Second
)

// baseArgs are shared by both roles. Every instance starts paused so the shell
// decides when playback begins; watch-later state is never read back.
var baseArgs = []string{
	"--idle=yes",
	"--pause=yes",
	"--keep-open=yes",
	"--no-terminal",
	"--no-resume-playback",
	"--save-position-on-quit=no",
}

// roleArgs returns the arguments specific to a role
func roleArgs(role domain.Role, title string) []string {
	switch role {
	case domain.RoleAuthority:
		return []string{"--no-video", "--force-window=no"}
	default:
		args := []string{"--aid=no", "--force-window=immediate"}
		if title != "" {
			args = append(args, "--title="+title)
		}
		return args
	}
}

// OpenOptions describe a handle to open
type OpenOptions struct {
	Role  domain.Role
	URL   string
	Title string
}

// Factory launches mpv instances and wraps them into handles
type Factory struct {
	logger     *zap.Logger
	cfg        domain.Config
	dispatcher Dispatcher

	// start and dial are replaced in tests
	start func(bin string, args []string) (*exec.Cmd, error)
	dial  func(ctx context.Context, socket string) (Conn, error)
}

// NewFactory creates a handle factory
func NewFactory(logger *zap.Logger, cfg domain.Config, dispatcher Dispatcher) *Factory {
	f := &Factory{
		logger:     logger,
		cfg:        cfg,
		dispatcher: dispatcher,
		start:      startProcess,
	}
	f.dial = func(ctx context.Context, socket string) (Conn, error) {
		return Dial(ctx, logger, socket)
	}
	return f
}

// Open launches mpv for opts.URL and returns a handle once the IPC connection is
// established and properties are observed
func (f *Factory) Open(ctx context.Context, opts OpenOptions) (*Handle, error) {
	if opts.URL == "" {
		return nil, errors.New("mpv: empty url")
	}

	runtimeDir := f.cfg.GetRuntimeDir()
	if err := os.MkdirAll(runtimeDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create runtime directory: %w", err)
	}
	socket := filepath.Join(runtimeDir, fmt.Sprintf("mpv-%s-%s.sock", opts.Role, uuid.NewString()[:8]))

	args := append([]string{}, baseArgs...)
	args = append(args, roleArgs(opts.Role, opts.Title)...)
	args = append(args, "--input-ipc-server="+socket, "--", opts.URL)

	f.logger.Debug("Launching mpv",
		zap.Stringer("role", opts.Role),
		zap.String("binary", f.cfg.GetMpvBinary()),
		zap.String("socket", socket))

	cmd, err := f.start(f.cfg.GetMpvBinary(), args)
	if err != nil {
		return nil, fmt.Errorf("failed to start mpv: %w", err)
	}
	proc := &process{cmd: cmd, socket: socket}

	conn, err := f.connect(ctx, socket)
	if err != nil {
		proc.kill()
		return nil, err
	}

	h := newHandle(f.logger, opts.Role, conn, f.dispatcher, f.cfg.GetTickInterval())
	h.onClose = proc.stop

	for _, o := range observed {
		if _, err := conn.Request(ctx, "observe_property", o.id, o.name); err != nil {
			// window-minimized is unavailable without a window; not fatal
			f.logger.Debug("Failed to observe property",
				zap.String("property", o.name),
				zap.Error(err))
		}
	}

	go h.pump()

	f.logger.Info("mpv handle opened", zap.Stringer("role", opts.Role))
	return h, nil
}

// connect retries until mpv has created its IPC socket
func (f *Factory) connect(ctx context.Context, socket string) (Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	ticker := time.NewTicker(dialInterval)
	defer ticker.Stop()

	for {
		conn, err := f.dial(ctx, socket)
		if err == nil {
			return conn, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("mpv IPC socket not ready: %w", err)
		case <-ticker.C:
		}
	}
}

func startProcess(bin string, args []string) (*exec.Cmd, error) {
	cmd := exec.Command(bin, args...)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}

// process owns a launched mpv
type process struct {
	cmd    *exec.Cmd
	socket string
}

// stop waits briefly for mpv to exit after its connection closed, then kills it
func (p *process) stop() error {
	defer os.Remove(p.socket)

	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}

	exited := make(chan error, 1)
	go func() { exited <- p.cmd.Wait() }()

	select {
	case <-exited:
		return nil
	case <-time.After(exitTimeout):
		if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("failed to kill mpv: %w", err)
		}
		<-exited
		return nil
	}
}

func (p *process) kill() {
	defer os.Remove(p.socket)
	if p.cmd != nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
		_ = p.cmd.Wait()
	}
}
