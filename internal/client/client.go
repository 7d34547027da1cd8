package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kjstillabower/forecast-proxy/internal/observability"
	"github.com/kjstillabower/forecast-proxy/internal/params"
)

// DefaultBaseURL is the public Open-Meteo forecast endpoint.
const DefaultBaseURL = "https://api.open-meteo.com/v1/forecast"

// ForecastClient fetches a raw forecast document for a set of query parameters.
type ForecastClient interface {
	Forecast(ctx context.Context, p params.Params) (json.RawMessage, error)
}

// UpstreamError reports a non-2xx response from Open-Meteo. Callers match on the
// message text, so its format must not change.
type UpstreamError struct {
	StatusCode int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("Open-Meteo returned %d", e.StatusCode)
}

// OpenMeteoClient issues one GET per call. It never retries and sets no timeout
// of its own; the deadline, if any, comes from ctx.
type OpenMeteoClient struct {
	baseURL string
	client  *http.Client
}

// NewOpenMeteoClient returns a client for baseURL (DefaultBaseURL when empty).
// httpClient may be nil, in which case a client without a timeout is used.
func NewOpenMeteoClient(baseURL string, httpClient *http.Client) (*OpenMeteoClient, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("invalid upstream URL %q: need absolute http(s) URL", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &OpenMeteoClient{baseURL: baseURL, client: httpClient}, nil
}

// RequestURL returns the upstream URL for p: the base URL plus the defined
// parameters in their given order.
func (c *OpenMeteoClient) RequestURL(p params.Params) string {
	q := params.Encode(p)
	if q == "" {
		return c.baseURL
	}
	sep := "?"
	if strings.Contains(c.baseURL, "?") {
		sep = "&"
	}
	return c.baseURL + sep + q
}

// Forecast fetches the forecast for p. Transport, body-read and JSON errors are
// returned unchanged; a non-2xx status yields *UpstreamError.
func (c *OpenMeteoClient) Forecast(ctx context.Context, p params.Params) (json.RawMessage, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.RequestURL(p), nil)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues("error").Inc()
		observability.UpstreamDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		observability.UpstreamErrorsTotal.WithLabelValues(string(CategorizeError(err))).Inc()
		return nil, err
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(status).Inc()
	observability.UpstreamDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		uerr := &UpstreamError{StatusCode: resp.StatusCode}
		observability.UpstreamErrorsTotal.WithLabelValues(string(ErrorCategoryUpstreamStatus)).Inc()
		return nil, uerr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		observability.UpstreamErrorsTotal.WithLabelValues(string(CategorizeError(err))).Inc()
		return nil, err
	}

	var data json.RawMessage
	if err := json.Unmarshal(body, &data); err != nil {
		observability.UpstreamErrorsTotal.WithLabelValues(string(ErrorCategoryParsing)).Inc()
		return nil, err
	}
	return data, nil
}

func extractCorrelationID(ctx context.Context) string {
	if corrIDVal := ctx.Value("correlation_id"); corrIDVal != nil {
		if corrID, ok := corrIDVal.(string); ok {
			return corrID
		}
	}
	return ""
}

func statusLabel(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "success"
	case statusCode == http.StatusTooManyRequests:
		return "rate_limited"
	case statusCode >= 400 && statusCode < 500:
		return "client_error"
	case statusCode >= 500:
		return "server_error"
	default:
		return "error"
	}
}
