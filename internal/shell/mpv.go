package shell

import (
	"context"

	"github.com/genricoloni/tandem/internal/domain"
	"github.com/genricoloni/tandem/internal/mpv"
)

// MpvOpener launches players as mpv processes
type MpvOpener struct {
	factory *mpv.Factory
}

// NewMpvOpener creates an Opener backed by factory
func NewMpvOpener(factory *mpv.Factory) *MpvOpener {
	return &MpvOpener{factory: factory}
}

// Open launches mpv for url in role
func (o *MpvOpener) Open(ctx context.Context, role domain.Role, url, title string) (Player, error) {
	h, err := o.factory.Open(ctx, mpv.OpenOptions{Role: role, URL: url, Title: title})
	if err != nil {
		return nil, err
	}
	return h, nil
}
