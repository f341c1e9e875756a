// Package artwork renders the cover art published through the system media surface.
package artwork

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // PNG thumbnails
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/genricoloni/tandem/internal/domain"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp" // WebP thumbnails
)

const (
	defaultBlurRadius = 12.0
	coverHeightRatio  = 0.40 // Cover side as a fraction of screen height
	minCoverSide      = 256
	maxCoverSide      = 1024
)

// CoverConfig holds configuration for cover rendering
type CoverConfig struct {
	BlurRadius float64
	// SideRatio is the cover side as a fraction of screen height (0.0-1.0)
	SideRatio float64
}

// CoverRenderer turns video thumbnails into square cover art: the thumbnail,
// sharp and letterboxed, over a blurred fill of itself
type CoverRenderer struct {
	logger *zap.Logger
	res    *domain.ScreenResolution // Injected by Fx
	config CoverConfig
	appCfg domain.Config
}

// NewCoverRenderer creates a cover renderer sized for res
func NewCoverRenderer(logger *zap.Logger, res *domain.ScreenResolution, appCfg domain.Config) *CoverRenderer {
	return &CoverRenderer{
		logger: logger,
		res:    res,
		appCfg: appCfg,
		config: CoverConfig{
			BlurRadius: defaultBlurRadius,
			SideRatio:  coverHeightRatio,
		},
	}
}

// side returns the edge length of the square cover
func (r *CoverRenderer) side() int {
	side := int(float64(r.res.Height) * r.config.SideRatio)
	return max(minCoverSide, min(maxCoverSide, side))
}

// Render composes the cover and returns it JPEG-encoded
func (r *CoverRenderer) Render(ctx context.Context, imageData []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dy() == 0 || bounds.Dx() == 0 {
		return nil, fmt.Errorf("invalid image dimensions: %dx%d", bounds.Dx(), bounds.Dy())
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	side := r.side()

	r.logger.Debug("Creating blurred fill", zap.Int("side", side))
	background := imaging.Fill(img, side, side, imaging.Center, imaging.Lanczos)
	background = imaging.Blur(background, r.config.BlurRadius)

	// Video thumbnails are wide; fit keeps the whole frame visible
	thumb := imaging.Fit(img, side, side, imaging.Lanczos)
	tb := thumb.Bounds()
	offset := image.Pt((side-tb.Dx())/2, (side-tb.Dy())/2)
	result := imaging.Paste(background, thumb, offset)

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, result, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}

	r.logger.Debug("Cover rendered", zap.Int("bytes", buf.Len()))
	return buf.Bytes(), nil
}

// Generate renders cover art from thumbnail data and writes it as <name>.jpg in the
// output directory. It satisfies domain.ArtProcessor.
func (r *CoverRenderer) Generate(ctx context.Context, imgData []byte, name string) (string, error) {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("invalid cover name %q", name)
	}

	data, err := r.Render(ctx, imgData)
	if err != nil {
		return "", fmt.Errorf("failed to render cover: %w", err)
	}

	outputDir := r.appCfg.GetOutputDir()
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	outputPath := filepath.Join(outputDir, name+".jpg")
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write cover file: %w", err)
	}

	absPath, err := filepath.Abs(outputPath)
	if err != nil {
		absPath = outputPath
	}

	r.logger.Info("Cover art generated", zap.String("path", absPath), zap.Int("size", len(data)))
	return absPath, nil
}
