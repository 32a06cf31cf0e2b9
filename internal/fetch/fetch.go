// Package fetch is the outbound HTTP layer: bounded-size GETs with URL
// validation and a capped redirect chain. Every network read in the scanner
// goes through a Fetcher so response size and destination safety are
// enforced in one place.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrSSRF is returned when a URL targets a private or loopback address.
var ErrSSRF = errors.New("fetch: URL targets a private or loopback address")

// ErrUnsafeScheme is returned when a URL uses a non-HTTP(S) scheme.
var ErrUnsafeScheme = errors.New("fetch: only http and https schemes are allowed")

// ErrTooLarge is returned when a response body exceeds the configured cap.
var ErrTooLarge = errors.New("fetch: response body exceeds size limit")

// Config configures a Fetcher.
type Config struct {
	Timeout   time.Duration // HTTP timeout. Default: 30s.
	MaxBytes  int64         // Max response body size. Default: 50MB (zip archives).
	UserAgent string
	// URLValidator validates URLs before fetch and on every redirect hop.
	// Default: ValidateURL.
	URLValidator func(string) error
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 50 * 1024 * 1024
	}
	if c.UserAgent == "" {
		c.UserAgent = "feed-scanner/1.0"
	}
	if c.URLValidator == nil {
		c.URLValidator = ValidateURL
	}
}

// Result is the outcome of a Get.
type Result struct {
	Body       []byte
	StatusCode int
}

// Fetcher performs bounded HTTP requests.
type Fetcher struct {
	client *http.Client
	config Config
}

// New creates a Fetcher that re-validates the target on every redirect hop.
func New(cfg Config) *Fetcher {
	cfg.defaults()
	validate := cfg.URLValidator
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				if err := validate(req.URL.String()); err != nil {
					return fmt.Errorf("redirect blocked: %w", err)
				}
				return nil
			},
		},
		config: cfg,
	}
}

// Get retrieves a URL into memory. Non-2xx statuses return the status in
// Result alongside an error so callers can distinguish soft failures.
func (f *Fetcher) Get(ctx context.Context, rawURL string) (*Result, error) {
	resp, err := f.do(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Result{StatusCode: resp.StatusCode}, fmt.Errorf("fetch: http %d for %s", resp.StatusCode, rawURL)
	}

	body, err := readLimited(resp.Body, f.config.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("fetch: read body: %w", err)
	}
	return &Result{Body: body, StatusCode: resp.StatusCode}, nil
}

// Download streams a URL to dstPath, creating parent directories. The file
// is written via a temp name and renamed so readers never observe a partial
// download.
func (f *Fetcher) Download(ctx context.Context, rawURL, dstPath string) error {
	resp, err := f.do(ctx, rawURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("fetch: http %d for %s", resp.StatusCode, rawURL)
	}

	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("fetch: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dstPath), ".download-*")
	if err != nil {
		return fmt.Errorf("fetch: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	_, err = io.Copy(tmp, io.LimitReader(resp.Body, f.config.MaxBytes+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("fetch: write %s: %w", dstPath, err)
	}
	if fi, serr := os.Stat(tmp.Name()); serr == nil && fi.Size() > f.config.MaxBytes {
		return ErrTooLarge
	}
	if err := os.Rename(tmp.Name(), dstPath); err != nil {
		return fmt.Errorf("fetch: rename: %w", err)
	}
	return nil
}

func (f *Fetcher) do(ctx context.Context, rawURL string) (*http.Response, error) {
	if err := f.config.URLValidator(rawURL); err != nil {
		return nil, fmt.Errorf("fetch: URL blocked: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: new request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: http get: %w", err)
	}
	return resp, nil
}

func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > maxBytes {
		return nil, ErrTooLarge
	}
	return body, nil
}

// ValidateURL checks that rawURL uses http/https, has a hostname, and does
// not resolve to a private or loopback IP. DNS resolution is performed to
// catch internal hostnames; a DNS failure is allowed through because the
// connection will fail on its own terms.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("fetch: invalid URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrUnsafeScheme
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("fetch: URL has no host")
	}

	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return ErrSSRF
		}
		return nil
	}

	addrs, err := net.LookupHost(host)
	if err != nil {
		return nil
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && isPrivateIP(ip) {
			return ErrSSRF
		}
	}
	return nil
}

// AllowAnyHost validates scheme and host presence only. Intended for
// deployments that reach the procurement gateway through an internal proxy.
func AllowAnyHost(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("fetch: invalid URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrUnsafeScheme
	}
	if u.Hostname() == "" {
		return fmt.Errorf("fetch: URL has no host")
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified()
}
