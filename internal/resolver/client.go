// Package resolver talks to the external resolution service that turns a content
// locator into metadata and direct stream URLs.
package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/genricoloni/tandem/internal/domain"
	"go.uber.org/zap"
)

// ErrInvalidLocator is returned for an empty locator; nothing is sent to the service
var ErrInvalidLocator = errors.New("resolver: locator required")

const (
	_requestTimeout = 30 * time.Second
	_maxBodySize    = 1024 * 1024
	_userAgent      = "tandem/1.0"
)

// Client resolves locators through the service's HTTP API
type Client struct {
	logger  *zap.Logger
	baseURL string
	client  *http.Client
}

// NewClient creates a resolution client for the configured service
func NewClient(logger *zap.Logger, cfg domain.Config) *Client {
	return &Client{
		logger:  logger,
		baseURL: strings.TrimRight(cfg.GetResolverURL(), "/"),
		client: &http.Client{
			// Resolution runs the service's extractor; it can take a while
			Timeout: _requestTimeout,
		},
	}
}

type infoRequest struct {
	URL string `json:"url"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Info returns the title and thumbnail of locator
func (c *Client) Info(ctx context.Context, locator string) (domain.MediaInfo, error) {
	var info domain.MediaInfo

	locator = strings.TrimSpace(locator)
	if locator == "" {
		return info, ErrInvalidLocator
	}

	body, err := json.Marshal(infoRequest{URL: locator})
	if err != nil {
		return info, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/info", bytes.NewReader(body))
	if err != nil {
		return info, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if err := c.do(req, "Failed to get info", &info); err != nil {
		return info, err
	}

	c.logger.Debug("Info resolved", zap.String("locator", locator), zap.String("title", info.Title))
	return info, nil
}

// Streams returns the stream URLs of locator. In audio-only mode the service
// returns only the audio URL.
func (c *Client) Streams(ctx context.Context, locator string, audioOnly bool) (domain.StreamInfo, error) {
	var streams domain.StreamInfo

	locator = strings.TrimSpace(locator)
	if locator == "" {
		return streams, ErrInvalidLocator
	}

	query := url.Values{}
	query.Set("url", locator)
	query.Set("audioOnly", strconv.FormatBool(audioOnly))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/stream?"+query.Encode(), nil)
	if err != nil {
		return streams, fmt.Errorf("failed to create request: %w", err)
	}

	if err := c.do(req, "Failed to get stream URL", &streams); err != nil {
		return streams, err
	}
	if streams.AudioURL == "" {
		return streams, errors.New("resolver: response has no audio URL")
	}

	c.logger.Debug("Streams resolved",
		zap.String("locator", locator),
		zap.Bool("audioOnly", audioOnly),
		zap.Bool("combined", streams.Combined()))
	return streams, nil
}

// do sends req and decodes a JSON reply into out. Non-2xx replies carry
// {"error": "..."}; fallback is used when the body has none.
func (c *Client) do(req *http.Request, fallback string, out any) error {
	req.Header.Set("User-Agent", _userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, _maxBodySize))
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := fallback
		var body errorBody
		if err := json.Unmarshal(data, &body); err != nil {
			msg = http.StatusText(resp.StatusCode)
		} else if body.Error != "" {
			msg = body.Error
		}
		if msg == "" {
			msg = fallback
		}
		c.logger.Warn("Resolution service error",
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode),
			zap.String("error", msg))
		return fmt.Errorf("resolver: %s", msg)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
