package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/net/html/charset"

	"ladle/internal/config"
	"ladle/internal/logging"
	"ladle/internal/recipes"
	"ladle/internal/services"
)

// SourceDocument is the transient output of a fetch: raw text plus
// best-effort metadata. It is consumed once by the structurer and never
// persisted verbatim.
type SourceDocument struct {
	Content  string
	Kind     recipes.SourceKind
	Title    string
	ImageURL string
}

// CommandRunner executes an external binary and returns its combined
// output. Injectable so tests can stub the audio downloader.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Fetcher retrieves and classifies source content.
type Fetcher struct {
	cfg        config.Fetch
	httpClient *http.Client
	runCommand CommandRunner
	logger     *slog.Logger
	tempDir    string

	// retryInitial seeds the backoff policy; tests shrink it.
	retryInitial time.Duration
}

// Option adjusts a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient overrides the HTTP client used for page and transcript
// requests.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.httpClient = client
		}
	}
}

// WithCommandRunner overrides how external binaries are executed.
func WithCommandRunner(run CommandRunner) Option {
	return func(f *Fetcher) {
		if run != nil {
			f.runCommand = run
		}
	}
}

// WithLogger attaches a logger for degraded-path warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithTempDir overrides where downloaded audio files are written.
func WithTempDir(dir string) Option {
	return func(f *Fetcher) {
		if dir != "" {
			f.tempDir = dir
		}
	}
}

// New builds a Fetcher from the fetch configuration section.
func New(cfg config.Fetch, opts ...Option) *Fetcher {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	f := &Fetcher{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				return nil
			},
		},
		runCommand:   runBinary,
		logger:       logging.NewNop(),
		tempDir:      os.TempDir(),
		retryInitial: time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves the content behind url. Video hosts route to the
// transcript ladder; everything else is treated as a page.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*SourceDocument, error) {
	rawURL = strings.TrimSpace(rawURL)
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "fetch", "parse url", rawURL, err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, services.Wrap(services.ErrValidation, "fetch", "parse url", "expected an absolute http(s) url, got "+rawURL, nil)
	}

	if isVideoHost(parsed.Hostname()) {
		return f.fetchVideo(ctx, rawURL)
	}
	return f.fetchPage(ctx, rawURL, parsed)
}

// get performs a GET with browser headers, retrying transient failures
// with exponential backoff. The body is decoded to UTF-8 based on the
// response charset.
func (f *Fetcher) get(ctx context.Context, rawURL string) (string, error) {
	var body string
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", f.cfg.UserAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.5")

		resp, err := f.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if isRetryableStatus(resp.StatusCode) {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("status %d", resp.StatusCode))
		}

		reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("decode charset: %w", err))
		}
		data, err := io.ReadAll(reader)
		if err != nil {
			return err
		}
		body = string(data)
		return nil
	}

	if err := backoff.Retry(operation, f.retryPolicy(ctx)); err != nil {
		return "", err
	}
	return body, nil
}

func (f *Fetcher) retryPolicy(ctx context.Context) backoff.BackOffContext {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = f.retryInitial
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = 30 * time.Second
	return backoff.WithContext(backoff.WithMaxRetries(bo, 2), ctx)
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return code >= http.StatusInternalServerError
}

func runBinary(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.CombinedOutput()
}
