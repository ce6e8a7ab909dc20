package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kjstillabower/weather-resolver/internal/models"
	"github.com/kjstillabower/weather-resolver/internal/observability"
)

// DefaultTimeout bounds a single upstream request.
const DefaultTimeout = 10 * time.Second

// DefaultBaseURL is the WeatherAPI.com v1 root.
const DefaultBaseURL = "https://api.weatherapi.com/v1"

// WeatherClient fetches one live observation for a location query.
type WeatherClient interface {
	FetchLive(ctx context.Context, query string) (models.Observation, error)
}

var (
	ErrInvalidCredential = errors.New("invalid API key")
	ErrRateLimited       = errors.New("API rate limit exceeded")
	ErrTimeout           = errors.New("weather API request timed out")
	ErrUnreachable       = errors.New("weather API unreachable")
	ErrMalformedResponse = errors.New("malformed weather API response")
)

// UnexpectedStatusError reports an upstream status other than 200, 401 or 429.
type UnexpectedStatusError struct {
	Code int
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("unexpected API response: %d", e.Code)
}

// WeatherAPIClient calls the WeatherAPI.com forecast endpoint. It makes exactly one
// attempt per FetchLive call; retry policy belongs to callers.
type WeatherAPIClient struct {
	apiKey  string
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// NewWeatherAPIClient returns a client for baseURL. A zero timeout uses DefaultTimeout.
// An empty apiKey is accepted; the resolver reports it as not configured.
func NewWeatherAPIClient(apiKey, baseURL string, timeout time.Duration) *WeatherAPIClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &WeatherAPIClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Configured reports whether a credential is present.
func (c *WeatherAPIClient) Configured() bool {
	return strings.TrimSpace(c.apiKey) != ""
}

type forecastResponse struct {
	Current struct {
		TempF     *float64 `json:"temp_f"`
		Condition struct {
			Text *string `json:"text"`
		} `json:"condition"`
	} `json:"current"`
	Forecast struct {
		ForecastDay []struct {
			Day struct {
				MaxTempF *float64 `json:"maxtemp_f"`
				MinTempF *float64 `json:"mintemp_f"`
			} `json:"day"`
		} `json:"forecastday"`
	} `json:"forecast"`
}

// FetchLive issues a single forecast request for query (postal code or "lat,lon").
func (c *WeatherAPIClient) FetchLive(ctx context.Context, query string) (models.Observation, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, query)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues("error").Inc()
		return models.Observation{}, fmt.Errorf("build request: %w", err)
	}

	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		label := "error"
		var classified error
		switch {
		case errors.Is(ctx.Err(), context.Canceled):
			// Caller cancellation is not an upstream failure.
			label = "canceled"
			classified = fmt.Errorf("weather API request canceled: %w", ctx.Err())
		case isTimeout(err):
			label = "timeout"
			classified = fmt.Errorf("%w: %v", ErrTimeout, err)
		default:
			classified = fmt.Errorf("%w: %v", ErrUnreachable, err)
		}
		observability.UpstreamCallsTotal.WithLabelValues(label).Inc()
		observability.UpstreamDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
		return models.Observation{}, classified
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(status).Inc()
	observability.UpstreamDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	if err := classifyStatus(resp.StatusCode); err != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return models.Observation{}, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return models.Observation{}, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return models.Observation{}, fmt.Errorf("%w: read body: %v", ErrMalformedResponse, err)
	}

	var apiResp forecastResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return models.Observation{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return mapResponse(apiResp), nil
}

func (c *WeatherAPIClient) buildRequest(ctx context.Context, query string) (*http.Request, error) {
	u, err := url.Parse(c.baseURL + "/forecast.json")
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("q", query)
	params.Set("days", "1")
	params.Set("aqi", "no")
	params.Set("alerts", "no")
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// classifyStatus maps a response status to nil (200) or a typed error.
func classifyStatus(code int) error {
	switch code {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized:
		return ErrInvalidCredential
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return &UnexpectedStatusError{Code: code}
	}
}

// mapResponse copies the four tracked leaves; absent leaves stay nil.
func mapResponse(r forecastResponse) models.Observation {
	obs := models.Observation{
		CurrentTemp: r.Current.TempF,
		Conditions:  r.Current.Condition.Text,
	}
	if len(r.Forecast.ForecastDay) > 0 {
		obs.HighTemp = r.Forecast.ForecastDay[0].Day.MaxTempF
		obs.LowTemp = r.Forecast.ForecastDay[0].Day.MinTempF
	}
	return obs
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
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
	case statusCode == http.StatusOK:
		return "success"
	case statusCode == http.StatusUnauthorized:
		return "unauthorized"
	case statusCode == http.StatusTooManyRequests:
		return "rate_limited"
	case statusCode >= 400 && statusCode < 500:
		return "client_error"
	case statusCode >= 500:
		return "server_error"
	default:
		return "unexpected"
	}
}
