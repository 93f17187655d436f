package resemble

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"
)

// Call timeouts by weight
const (
	readTimeout  = 30 * time.Second
	writeTimeout = 60 * time.Second
	heavyTimeout = 120 * time.Second
)

// Config holds provider connection settings
type Config struct {
	APIKey    string
	SynthBase string // streaming synthesis cluster
	AppBase   string // application API
}

// RemoteError is the single error shape for provider rejections. The
// provider returns structured JSON errors with 4xx/5xx, so Body is the
// parsed JSON when possible and the raw text otherwise.
type RemoteError struct {
	Status int
	Body   any
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("resemble error %d: %v", e.Status, e.Body)
}

// IsRemoteStatus reports whether err is a RemoteError in [lo, hi]
func IsRemoteStatus(err error, lo, hi int) bool {
	var re *RemoteError
	if !errors.As(err, &re) {
		return false
	}
	return re.Status >= lo && re.Status <= hi
}

// Client is the sole HTTP client to the provider. Every outbound call
// in the system goes through one of its three call shapes.
type Client struct {
	cfg    Config
	http   *http.Client
	stream *http.Client
	logger *slog.Logger
}

// NewClient creates a provider client
func NewClient(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{},
		// stream calls cannot carry a whole-request deadline without
		// cutting off long syntheses, but the response headers must
		// still arrive within the heavy budget
		stream: &http.Client{
			Transport: &http.Transport{ResponseHeaderTimeout: heavyTimeout},
		},
		logger: logger,
	}
}

// authHeader fails at call time when no API key is configured, so a
// misconfigured deployment surfaces on the first provider call.
func (c *Client) authHeader() (string, error) {
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("RESEMBLE_API_KEY is not set")
	}
	return "Bearer " + c.cfg.APIKey, nil
}

// CallJSON performs a JSON request and parses the response body as
// JSON regardless of status. Any status >= 400 becomes a RemoteError,
// even when the body is valid JSON.
func (c *Client) CallJSON(ctx context.Context, method, rawURL string, body any, params url.Values) (map[string]any, error) {
	auth, err := c.authHeader()
	if err != nil {
		return nil, err
	}

	timeout := writeTimeout
	if method == http.MethodGet {
		timeout = readTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	if len(params) > 0 {
		rawURL = rawURL + "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", auth)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resemble request failed: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("Resemble call completed",
		slog.String("method", method),
		slog.String("url", rawURL),
		slog.Int("status", resp.StatusCode),
	)

	return decodeJSONResponse(resp)
}

// FileField describes one file part of a multipart request
type FileField struct {
	FieldName   string
	FileName    string
	ContentType string
	Reader      io.Reader
}

// CallMultipart performs a multipart/form-data POST. Content-Type is
// left to the multipart writer so the boundary is set correctly.
func (c *Client) CallMultipart(ctx context.Context, rawURL string, fields map[string]string, file *FileField) (map[string]any, error) {
	auth, err := c.authHeader()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, heavyTimeout)
	defer cancel()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to write multipart field: %w", err)
		}
	}

	if file != nil {
		part, err := mw.CreateFormFile(file.FieldName, file.FileName)
		if err != nil {
			return nil, fmt.Errorf("failed to create multipart file: %w", err)
		}
		if _, err := io.Copy(part, file.Reader); err != nil {
			return nil, fmt.Errorf("failed to copy multipart file: %w", err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", auth)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resemble request failed: %w", err)
	}
	defer resp.Body.Close()

	return decodeJSONResponse(resp)
}

// CallStream performs a POST and returns the live response for
// incremental forwarding. On status >= 400 the error body is read and
// the call fails fast with a RemoteError instead of handing the caller
// a broken stream. The caller owns resp.Body on success.
func (c *Client) CallStream(ctx context.Context, rawURL string, body any) (*http.Response, error) {
	auth, err := c.authHeader()
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", auth)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resemble request failed: %w", err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		var parsed any
		if err := json.Unmarshal(raw, &parsed); err != nil {
			parsed = string(raw)
		}
		return nil, &RemoteError{Status: resp.StatusCode, Body: parsed}
	}

	return resp, nil
}

func decodeJSONResponse(resp *http.Response) (map[string]any, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var data map[string]any
	parseErr := json.Unmarshal(raw, &data)

	if resp.StatusCode >= 400 {
		var body any
		if parseErr == nil {
			body = data
		} else {
			body = string(raw)
		}
		return nil, &RemoteError{Status: resp.StatusCode, Body: body}
	}

	if parseErr != nil {
		return nil, fmt.Errorf("failed to parse resemble response: %w", parseErr)
	}

	return data, nil
}
