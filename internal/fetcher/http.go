package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"axewatch/internal/jsonx"
	"axewatch/internal/version"
)

const (
	defaultTimeout = 5 * time.Second
	maxBodyBytes   = 1 << 20
)

var errEmptyBody = errors.New("empty response body")

// Options parameterise the AxeOS fetcher.
type Options struct {
	URL       string
	Timeout   time.Duration
	UserAgent string
}

// HTTP polls the AxeOS system info endpoint.
type HTTP struct {
	opts   Options
	logger zerolog.Logger
	client *http.Client
	now    func() time.Time
}

// NewHTTP constructs a fetcher. The timeout bounds the whole request.
func NewHTTP(opts Options, logger zerolog.Logger) *HTTP {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = version.UserAgent()
	}
	opts.URL = strings.TrimSpace(opts.URL)

	return &HTTP{
		opts:   opts,
		logger: logger.With().Str("component", "device_fetcher").Logger(),
		client: &http.Client{Timeout: opts.Timeout},
		now:    time.Now,
	}
}

// Fetch performs exactly one GET. Every failure collapses into an
// unreachable snapshot; the cause is only logged.
func (h *HTTP) Fetch(ctx context.Context) Snapshot {
	at := h.now().UTC()

	info, err := h.fetchInfo(ctx)
	if err != nil {
		h.logger.Debug().Err(err).Str("url", h.opts.URL).Msg("device unreachable")
		return Unreachable(at)
	}
	return Present(info, at)
}

func (h *HTTP) fetchInfo(ctx context.Context) (SystemInfo, error) {
	if h.opts.URL == "" {
		return SystemInfo{}, errors.New("device api url not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, h.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.opts.URL, nil)
	if err != nil {
		return SystemInfo{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", h.opts.UserAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return SystemInfo{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return SystemInfo{}, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return SystemInfo{}, fmt.Errorf("device api status %d", resp.StatusCode)
	}

	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return SystemInfo{}, errEmptyBody
	}

	var info SystemInfo
	if err := jsonx.Unmarshal(payload, &info); err != nil {
		return SystemInfo{}, fmt.Errorf("decode system info: %w", err)
	}
	return info, nil
}

var _ Fetcher = (*HTTP)(nil)
