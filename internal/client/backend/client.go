package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultBaseURL = "http://localhost:5000"
	DefaultOCRLang = "eng"

	maxErrorBody = 4 << 10
)

// APIError is returned for any non-2xx answer from the detection backend.
type APIError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend %s: %d %s", e.Endpoint, e.Status, http.StatusText(e.Status))
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithStatsFallback controls whether FetchDashboardStats synthesises
// plausible numbers when the backend cannot answer.
func WithStatsFallback(enabled bool) Option {
	return func(c *Client) { c.statsFallback = enabled }
}

func WithRandom(rnd func() float64) Option {
	return func(c *Client) { c.rnd = rnd }
}

// Client talks to the detection/OCR backend.
type Client struct {
	baseURL       string
	http          *http.Client
	statsFallback bool
	rnd           func() float64
	log           zerolog.Logger
}

func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:       baseURL,
		http:          &http.Client{Timeout: timeout},
		statsFallback: true,
		rnd:           defaultRandom,
		log:           log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) HealthCheck(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadImage posts the image as multipart field "image" to /detect.
func (c *Client) UploadImage(ctx context.Context, filename string, r io.Reader) (*DetectionResponse, error) {
	var out DetectionResponse
	if err := c.doMultipart(ctx, "/detect", "image", filename, r, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadVideo posts the video as multipart field "video" to /upload_video.
func (c *Client) UploadVideo(ctx context.Context, filename string, r io.Reader) (*VideoResponse, error) {
	var out VideoResponse
	if err := c.doMultipart(ctx, "/upload_video", "video", filename, r, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) PerformOCR(ctx context.Context, plateImageBase64, lang string) (*OCRResponse, error) {
	if lang == "" {
		lang = DefaultOCRLang
	}
	var out OCRResponse
	req := OCRRequest{PlateImage: plateImageBase64, Lang: lang}
	if err := c.doJSON(ctx, http.MethodPost, "/ocr", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PerformOCRWithFile sends the plate crop as multipart field "plate_image".
func (c *Client) PerformOCRWithFile(ctx context.Context, filename string, r io.Reader, lang string) (*OCRResponse, error) {
	if lang == "" {
		lang = DefaultOCRLang
	}
	var out OCRResponse
	fields := map[string]string{"lang": lang}
	if err := c.doMultipart(ctx, "/ocr", "plate_image", filename, r, fields, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FetchMetrics(ctx context.Context) (*Metrics, error) {
	var out Metrics
	if err := c.doJSON(ctx, http.MethodGet, "/api/metrics", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchDashboardStats never fails: when the backend cannot answer it returns
// generated stats, or an empty "unavailable" object if fallback is disabled.
func (c *Client) FetchDashboardStats(ctx context.Context) DashboardStats {
	var out DashboardStats
	err := c.doJSON(ctx, http.MethodGet, "/api/dashboard-stats", nil, &out)
	if err == nil {
		out.Source = SourceBackend
		return out
	}

	if !c.statsFallback {
		c.log.Warn().Err(err).Msg("dashboard stats unavailable")
		return DashboardStats{Source: SourceUnavailable}
	}

	c.log.Warn().Err(err).Msg("dashboard stats API not available, using generated stats")
	return MockDashboardStats(c.rnd)
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", endpoint, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return c.do(req, endpoint, out)
}

func (c *Client) doMultipart(ctx context.Context, endpoint, field, filename string, r io.Reader, fields map[string]string, out interface{}) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("copy %s: %w", field, err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	return c.do(req, endpoint, out)
}

func (c *Client) do(req *http.Request, endpoint string, out interface{}) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("backend call")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Endpoint: endpoint, Status: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}
