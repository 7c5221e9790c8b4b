// Package fetch implements the structure and trajectory fetch collaborators
// over HTTP.
//
//	GET {base}/subjects/{subject}/structure?selection=
//	GET {base}/subjects/{subject}/trajectory?format=&frames=&selection=
package fetch

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

	"github.com/aretw0/trajview/internal/logging"
	"github.com/aretw0/trajview/pkg/domain"
	"github.com/aretw0/trajview/pkg/ports"
)

// DefaultMaxBodySize bounds a single response body.
const DefaultMaxBodySize = 1 << 30

// Client talks to a structure/trajectory service. It implements both
// ports.StructureFetcher and ports.TrajectoryFetcher.
type Client struct {
	base        *url.URL
	client      *http.Client
	headers     http.Header
	maxBodySize int64
	logger      *slog.Logger
}

var (
	_ ports.StructureFetcher  = (*Client)(nil)
	_ ports.TrajectoryFetcher = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Add(key, value)
	}
}

// WithMaxBodySize bounds response bodies. Larger responses fail.
func WithMaxBodySize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBodySize = n
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a client for the service rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		base:        base,
		client:      &http.Client{Timeout: 30 * time.Second},
		headers:     make(http.Header),
		maxBodySize: DefaultMaxBodySize,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchStructure returns the raw structure file of subject.
func (c *Client) FetchStructure(ctx context.Context, subject domain.Subject, opts ports.StructureOptions) ([]byte, error) {
	q := url.Values{}
	if opts.Selection != nil {
		q.Set("selection", *opts.Selection)
	}
	return c.get(ctx, "structure", subject, q)
}

// FetchTrajectory returns raw coordinates of subject in opts.Format.
func (c *Client) FetchTrajectory(ctx context.Context, subject domain.Subject, opts ports.TrajectoryOptions) ([]byte, error) {
	q := url.Values{}
	if opts.Format != "" {
		q.Set("format", opts.Format)
	}
	if opts.FrameRange != nil {
		q.Set("frames", *opts.FrameRange)
	}
	if opts.Selection != nil {
		q.Set("selection", *opts.Selection)
	}
	return c.get(ctx, "trajectory", subject, q)
}

func (c *Client) get(ctx context.Context, op string, subject domain.Subject, q url.Values) ([]byte, error) {
	if subject.IsZero() {
		return nil, domain.ErrMissingSubject
	}

	u := c.base.JoinPath("subjects", url.PathEscape(string(subject)), op)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &domain.FetchError{Op: op, Subject: subject, Err: err}
	}
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &domain.FetchError{Op: op, Subject: subject, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.FetchError{Op: op, Subject: subject, StatusCode: resp.StatusCode, Err: statusErr(resp)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return nil, &domain.FetchError{Op: op, Subject: subject, StatusCode: resp.StatusCode, Err: err}
	}
	if int64(len(body)) > c.maxBodySize {
		return nil, &domain.FetchError{
			Op:         op,
			Subject:    subject,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("response exceeds %d bytes", c.maxBodySize),
		}
	}

	c.logger.Debug("Fetched payload",
		"op", op,
		"subject", subject,
		"size", len(body),
		"duration", time.Since(start),
	)
	return body, nil
}

// statusErr builds the cause of a non-2xx response from a short body excerpt.
func statusErr(resp *http.Response) error {
	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(excerpt))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", domain.ErrSubjectNotFound, msg)
	}
	return errors.New(msg)
}
