package mpv

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/genricoloni/tandem/internal/domain"
	"go.uber.org/zap"
)

type testConfig struct {
	runtimeDir string
}

func (c testConfig) GetResolverURL() string {
	return "http://localhost:3001"
}

func (c testConfig) GetMpvBinary() string {
	return "mpv"
}

func (c testConfig) GetRuntimeDir() string {
	return c.runtimeDir
}

func (c testConfig) GetOutputDir() string {
	return c.runtimeDir
}

func (c testConfig) GetDriftThreshold() float64 {
	return 0.3
}

func (c testConfig) GetTickInterval() time.Duration {
	return 250 * time.Millisecond
}

func (c testConfig) GetBusName() string {
	return "tandem"
}

func (c testConfig) GetAudioOnly() bool {
	return false
}

var _ domain.Config = testConfig{}

func newTestFactory(t *testing.T) (*Factory, *[]string, *fakeConn) {
	t.Helper()
	f := NewFactory(zap.NewNop(), testConfig{runtimeDir: t.TempDir()}, syncDispatcher{})

	var launched []string
	f.start = func(bin string, args []string) (*exec.Cmd, error) {
		launched = append([]string{bin}, args...)
		return &exec.Cmd{}, nil
	}

	conn := newFakeConn()
	attempts := 0
	f.dial = func(ctx context.Context, socket string) (Conn, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("no such file or directory")
		}
		return conn, nil
	}
	return f, &launched, conn
}

func TestFactory_Open(t *testing.T) {
	tests := []struct {
		name     string
		opts     OpenOptions
		wantArgs []string
		noArgs   []string
	}{
		{
			name:     "Authority is audio only",
			opts:     OpenOptions{Role: domain.RoleAuthority, URL: "https://cdn.example/audio.m4a"},
			wantArgs: []string{"--no-video", "--pause=yes", "--idle=yes"},
			noArgs:   []string{"--aid=no"},
		},
		{
			name:     "Follower is muted video with a window",
			opts:     OpenOptions{Role: domain.RoleFollower, URL: "https://cdn.example/video.mp4", Title: "Big Buck Bunny"},
			wantArgs: []string{"--aid=no", "--force-window=immediate", "--title=Big Buck Bunny"},
			noArgs:   []string{"--no-video"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, launched, conn := newTestFactory(t)

			h, err := f.Open(context.Background(), tt.opts)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			defer h.Close()

			args := *launched
			if args[0] != "mpv" {
				t.Errorf("binary: want mpv, got %s", args[0])
			}
			if args[len(args)-1] != tt.opts.URL || args[len(args)-2] != "--" {
				t.Errorf("url must be the last argument after --: %v", args)
			}
			for _, want := range tt.wantArgs {
				if !slices.Contains(args, want) {
					t.Errorf("missing argument %s in %v", want, args)
				}
			}
			for _, unwanted := range tt.noArgs {
				if slices.Contains(args, unwanted) {
					t.Errorf("unexpected argument %s", unwanted)
				}
			}

			if h.Role() != tt.opts.Role {
				t.Errorf("role: want %v, got %v", tt.opts.Role, h.Role())
			}

			observedProps := 0
			for _, cmd := range conn.commands() {
				if strings.HasPrefix(cmd, "observe_property") {
					observedProps++
				}
			}
			if observedProps != len(observed) {
				t.Errorf("expected %d observed properties, got %d", len(observed), observedProps)
			}
		})
	}
}

func TestFactory_SocketPerInstance(t *testing.T) {
	f, launched, _ := newTestFactory(t)

	h, err := f.Open(context.Background(), OpenOptions{Role: domain.RoleAuthority, URL: "https://cdn.example/a"})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer h.Close()

	var socket string
	for _, arg := range *launched {
		if s, ok := strings.CutPrefix(arg, "--input-ipc-server="); ok {
			socket = s
		}
	}
	if filepath.Dir(socket) != f.cfg.GetRuntimeDir() {
		t.Errorf("socket %q should live in the runtime directory", socket)
	}
	if !strings.Contains(filepath.Base(socket), "authority") {
		t.Errorf("socket name should carry the role: %s", socket)
	}
}

func TestFactory_OpenErrors(t *testing.T) {
	t.Run("Empty URL", func(t *testing.T) {
		f, _, _ := newTestFactory(t)
		if _, err := f.Open(context.Background(), OpenOptions{Role: domain.RoleFollower}); err == nil {
			t.Error("expected error for empty url")
		}
	})

	t.Run("Launch failure", func(t *testing.T) {
		f, _, _ := newTestFactory(t)
		f.start = func(string, []string) (*exec.Cmd, error) {
			return nil, exec.ErrNotFound
		}
		_, err := f.Open(context.Background(), OpenOptions{Role: domain.RoleFollower, URL: "https://cdn.example/v"})
		if !errors.Is(err, exec.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Socket never appears", func(t *testing.T) {
		f, _, _ := newTestFactory(t)
		f.dial = func(context.Context, string) (Conn, error) {
			return nil, errors.New("connection refused")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		if _, err := f.Open(ctx, OpenOptions{Role: domain.RoleFollower, URL: "https://cdn.example/v"}); err == nil {
			t.Error("expected connect error")
		}
	})
}
