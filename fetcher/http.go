// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/tenderscope/core"
	"golang.org/x/time/rate"
)

// maxBodySize caps the bytes read from one upstream response.
const maxBodySize = 64 << 20

// HTTPFetcher reads listing pages from the provider's JSON endpoint.
type HTTPFetcher struct {
	config  *Config
	client  *http.Client
	limiter *rate.Limiter
	mapper  *mapper
	logger  *slog.Logger
}

var _ Fetcher = (*HTTPFetcher)(nil)

// Option is a functional option for configuring an HTTPFetcher.
type Option func(*HTTPFetcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(f *HTTPFetcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		f.logger = logger
		return nil
	}
}

// WithHTTPClient replaces the HTTP client. The config timeout is not applied to it.
func WithHTTPClient(client *http.Client) Option {
	return func(f *HTTPFetcher) error {
		if client == nil {
			return errors.New("http client cannot be nil")
		}
		f.client = client
		return nil
	}
}

// NewHTTPFetcher creates a fetcher for the configured endpoint.
func NewHTTPFetcher(config *Config, opts ...Option) (*HTTPFetcher, error) {
	if config == nil {
		config = DefaultConfig()
	}
	base := strings.TrimSpace(config.BaseURL)
	if base == "" {
		return nil, errors.New("fetcher config: BaseURL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("fetcher config: invalid BaseURL: %w", err)
	}

	loc := time.UTC
	if config.TimeZone != "" {
		var err error
		if loc, err = time.LoadLocation(config.TimeZone); err != nil {
			return nil, fmt.Errorf("fetcher config: invalid TimeZone: %w", err)
		}
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}
	burst := max(config.Burst, 1)

	f := &HTTPFetcher{
		config:  config,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, err
		}
	}
	f.logger = f.logger.With("component", "fetcher")
	f.mapper = &mapper{
		baseURL:     base,
		urlTemplate: config.DetailURLTemplate,
		location:    loc,
		logger:      f.logger,
	}
	return f, nil
}

// Fetch requests one page and maps its items. Items that fail to map are
// still returned; the upserter discards records without id or title.
func (f *HTTPFetcher) Fetch(ctx context.Context, page Page) ([]*core.RawRecord, error) {
	if err := page.validate(); err != nil {
		return nil, err
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u, err := url.Parse(strings.TrimRight(f.config.BaseURL, "/") + f.config.Path)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("pageNumber", strconv.Itoa(page.Number))
	q.Set("pageSize", strconv.Itoa(page.Size))
	if s := strings.TrimSpace(page.Query); s != "" {
		q.Set("query", s)
	}
	u.RawQuery = q.Encode()

	start := time.Now()
	body, err := f.doGET(ctx, u.String())
	if err != nil {
		f.logger.Error("page request failed", "page", page.Number, "err", err)
		return nil, err
	}

	items, err := decodeItems(body)
	if err != nil {
		return nil, err
	}

	records := make([]*core.RawRecord, 0, len(items))
	for _, it := range items {
		records = append(records, f.mapper.toRaw(it))
	}
	f.logger.Info("fetched page", "page", page.Number, "count", len(records),
		"latency", time.Since(start).Round(time.Millisecond))
	return records, nil
}

func (f *HTTPFetcher) doGET(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	base := strings.TrimRight(f.config.BaseURL, "/")
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,ar;q=0.8")
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Referer", base+"/")
	req.Header.Set("Origin", base)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %d", ErrUpstreamStatus, resp.StatusCode)
	}
	return body, nil
}
