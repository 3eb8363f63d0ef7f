// Package apiclient is the single chokepoint between the pipelines and the
// remote conversion service. Every failure leaves this package as an
// *apierr.Error.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spherical/xtox/internal/apierr"
	"github.com/spherical/xtox/internal/credentials"
	"github.com/spherical/xtox/internal/domain"
	"github.com/spherical/xtox/internal/observability"
)

const (
	// DefaultTimeout leaves room for large uploads and slow LaTeX builds.
	DefaultTimeout = 5 * time.Minute

	// RequestIDHeader carries the per-request trace identifier.
	RequestIDHeader = "X-Request-ID"

	userAgent = "xtox-cli"
)

// Config holds request client configuration.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	Retry       *RetryConfig
	Credentials credentials.Provider
	Logger      *observability.Logger
	HTTPClient  *http.Client
}

var _ domain.ConversionService = (*Client)(nil)

// Client handles communication with the conversion service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      *RetryConfig
	creds      credentials.Provider
	logger     *observability.Logger
	newID      func() string
}

// NewClient creates a new request client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, domain.ConfigError("service base URL is required", nil)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	retry := cfg.Retry
	if retry == nil {
		retry = DefaultRetryConfig()
	}

	creds := cfg.Credentials
	if creds == nil {
		creds = credentials.NewMemoryStore("")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = observability.Nop()
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		retry:      retry,
		creds:      creds,
		logger:     logger.WithOperation("apiclient"),
		newID:      uuid.NewString,
	}, nil
}

// Submit uploads file as multipart field "file" with query appended to route.
func (c *Client) Submit(ctx context.Context, route string, file *domain.CandidateFile, query domain.Query) (*domain.ConversionJob, error) {
	body, contentType, err := encodeFile(file)
	if err != nil {
		return nil, c.fail(ctx, apierr.NotSent(err))
	}

	target := c.baseURL + route
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	data, status, err := c.exchange(ctx, http.MethodPost, target, body, contentType)
	if err != nil {
		return nil, err
	}
	return c.decodeJob(ctx, status, data)
}

// FetchStatus polls a job by id.
func (c *Client) FetchStatus(ctx context.Context, route, jobID string) (*domain.ConversionJob, error) {
	data, status, err := c.exchange(ctx, http.MethodGet, c.resourceURL(route, jobID), nil, "")
	if err != nil {
		return nil, err
	}
	return c.decodeJob(ctx, status, data)
}

// FetchArtifact downloads the binary output of a completed job.
func (c *Client) FetchArtifact(ctx context.Context, route, jobID string) ([]byte, error) {
	data, _, err := c.exchange(ctx, http.MethodGet, c.resourceURL(route, jobID), nil, "")
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Client) resourceURL(route, id string) string {
	return c.baseURL + strings.TrimRight(route, "/") + "/" + url.PathEscape(id)
}

// setupError marks failures that happened before anything hit the wire.
type setupError struct{ err error }

func (e *setupError) Error() string { return e.err.Error() }
func (e *setupError) Unwrap() error { return e.err }

// exchange performs one logical call. GETs go through the retry policy;
// submissions are sent exactly once.
func (c *Client) exchange(ctx context.Context, method, target string, body []byte, contentType string) ([]byte, int, error) {
	reqID := c.newID()
	ctx = observability.ContextWithTraceID(ctx, reqID)
	log := c.logger.WithContext(ctx)

	send := func() (*http.Response, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return nil, &setupError{err: err}
		}
		c.decorate(ctx, req, reqID)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		return c.httpClient.Do(req)
	}

	start := time.Now()
	var (
		resp *http.Response
		err  error
	)
	if method == http.MethodGet {
		resp, err = c.retryWithBackoff(ctx, send)
	} else {
		resp, err = send()
	}

	if err != nil {
		var se *setupError
		if errors.As(err, &se) {
			return nil, 0, c.fail(ctx, apierr.NotSent(se.err))
		}
		return nil, 0, c.fail(ctx, apierr.NoResponse(err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, c.fail(ctx, apierr.NoResponse(fmt.Errorf("read response: %w", err)))
	}

	log.Debug().
		Str("method", method).
		Str("url", target).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("exchange complete")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, c.fail(ctx, apierr.Responded(resp.StatusCode, data))
	}
	return data, resp.StatusCode, nil
}

// decorate attaches the trace id and, when one is stored, the bearer token.
func (c *Client) decorate(ctx context.Context, req *http.Request, reqID string) {
	req.Header.Set(RequestIDHeader, reqID)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, */*")

	token, err := c.creds.Get(ctx)
	if err != nil {
		c.logger.WithContext(ctx).Warn().Err(err).Msg("credential lookup failed, sending unauthenticated")
		return
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// fail classifies ex, applies the 401 side effect and logs the outcome.
func (c *Client) fail(ctx context.Context, ex apierr.Exchange) error {
	classified := apierr.Classify(ex)
	log := c.logger.WithContext(ctx)

	if classified.Kind == apierr.KindAuthentication {
		if err := c.creds.Clear(ctx); err != nil {
			log.Error().Err(err).Msg("failed to discard rejected credential")
		} else {
			log.Info().Msg("discarded rejected credential")
		}
	}

	log.Warn().
		Str("kind", string(classified.Kind)).
		Int("status", classified.Status).
		Str("message", classified.Message).
		Msg("request failed")

	return classified
}

func (c *Client) decodeJob(ctx context.Context, status int, data []byte) (*domain.ConversionJob, error) {
	var job domain.ConversionJob
	if err := json.Unmarshal(data, &job); err != nil {
		c.logger.WithContext(ctx).Error().Err(err).Msg("undecodable job payload")
		return nil, c.fail(ctx, apierr.Responded(status, data))
	}
	if job.Errors == nil {
		job.Errors = []string{}
	}
	if job.Warnings == nil {
		job.Warnings = []string{}
	}
	return &job, nil
}

func encodeFile(file *domain.CandidateFile) ([]byte, string, error) {
	if file == nil {
		return nil, "", errors.New("no file to upload")
	}

	src, err := file.Open()
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", file.Name, err)
	}
	defer src.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", file.Name)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, src); err != nil {
		return nil, "", fmt.Errorf("read %s: %w", file.Name, err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}
