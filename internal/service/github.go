package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/phrazzld/avatar-api/internal/platform/logger"
)

// AvatarFetcher downloads the public avatar of a social handle.
type AvatarFetcher interface {
	Fetch(ctx context.Context, handle string) ([]byte, error)
}

// GitHubFetcherConfig configures a GitHubFetcher.
type GitHubFetcherConfig struct {
	// URLTemplate contains a single %s replaced by the escaped handle.
	URLTemplate       string
	RequestsPerMinute int
	MaxBytes          int64
	Timeout           time.Duration
	MaxRetries        uint64
}

// GitHubFetcher downloads avatars through a pooled client, limiting the
// request rate and retrying server errors with exponential backoff.
type GitHubFetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	cfg     GitHubFetcherConfig
	logger  *slog.Logger
}

var _ AvatarFetcher = (*GitHubFetcher)(nil)

// NewGitHubFetcher creates a fetcher from cfg.
func NewGitHubFetcher(cfg GitHubFetcherConfig, l *slog.Logger) *GitHubFetcher {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if l == nil {
		l = slog.Default()
	}

	client := cleanhttp.DefaultPooledClient()
	client.Timeout = cfg.Timeout

	return &GitHubFetcher{
		client:  client,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
		cfg:     cfg,
		logger:  l.With("component", "github_fetcher"),
	}
}

// Fetch returns the picture published for handle.
func (f *GitHubFetcher) Fetch(ctx context.Context, handle string) ([]byte, error) {
	log := logger.FromContextOrDefault(ctx, f.logger)
	target := fmt.Sprintf(f.cfg.URLTemplate, url.PathEscape(handle))

	backoff := retry.WithMaxRetries(f.cfg.MaxRetries, retry.NewExponential(200*time.Millisecond))

	var body []byte
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := f.limiter.Wait(ctx); err != nil {
			return err
		}
		data, err := f.get(ctx, target)
		if err != nil {
			log.Debug("avatar download attempt failed", "handle", handle, "error", err)
			return err
		}
		body = data
		return nil
	})
	if err != nil {
		log.Warn("avatar download failed", "handle", handle, "error", err)
		if errors.Is(err, ErrUpstreamNotFound) || errors.Is(err, ErrImageTooLarge) || errors.Is(err, ErrInvalidImage) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	return body, nil
}

func (f *GitHubFetcher) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "image/*")
	req.Header.Set("User-Agent", "avatar-api")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, retry.RetryableError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrUpstreamNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, retry.RetryableError(fmt.Errorf("unexpected status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := readLimited(resp.Body, f.cfg.MaxBytes)
	if err != nil {
		return nil, err
	}
	if err := checkImage(data); err != nil {
		return nil, err
	}
	return data, nil
}

// readLimited reads r, failing with ErrImageTooLarge past max bytes.
func readLimited(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, ErrImageTooLarge
	}
	return data, nil
}

// checkImage rejects data whose sniffed type is not a raster image.
func checkImage(data []byte) error {
	mt := mimetype.Detect(data)
	for _, allowed := range []string{"image/png", "image/jpeg", "image/gif", "image/webp"} {
		if mt.Is(allowed) {
			return nil
		}
	}
	return fmt.Errorf("%w: detected %s", ErrInvalidImage, strings.SplitN(mt.String(), ";", 2)[0])
}
