// Package psi fetches the pollutant standards index from an HTTP JSON API.
package psi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/aretw0/iaqflow/pkg/config"
	"github.com/aretw0/iaqflow/pkg/domain"
)

// ErrNoReadings is returned when the response carries no usable reading.
var ErrNoReadings = errors.New("psi: response contains no readings")

// Client implements ports.ReferenceProvider.
//
// It requests <url>?date=YYYY-MM-DD and reads
// data.items[0].readings.<metric>.<region> from the response.
type Client struct {
	url    string
	region string
	metric string
	http   *http.Client
	now    func() time.Time
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithClock replaces the clock used to stamp readings.
func WithClock(now func() time.Time) Option {
	return func(cl *Client) {
		cl.now = now
	}
}

// New creates a client from the configured PSI settings.
func New(settings config.PSISettings, opts ...Option) *Client {
	c := &Client{
		url:    settings.URL,
		region: settings.Region,
		metric: settings.Metric,
		http:   &http.Client{Timeout: settings.Timeout},
		now:    time.Now,
	}
	if c.region == "" {
		c.region = config.DefaultPSIRegion
	}
	if c.metric == "" {
		c.metric = config.DefaultPSIMetric
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type response struct {
	Data struct {
		Items []struct {
			Readings map[string]map[string]float64 `json:"readings"`
		} `json:"items"`
	} `json:"data"`
	ErrorMsg string `json:"errorMsg"`
}

// Fetch requests the reading for the given day. A zero day asks for the latest data.
func (c *Client) Fetch(ctx context.Context, day time.Time) (domain.ReferenceReading, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return domain.ReferenceReading{}, fmt.Errorf("psi: invalid url: %w", err)
	}
	if !day.IsZero() {
		q := u.Query()
		q.Set("date", day.Format("2006-01-02"))
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return domain.ReferenceReading{}, fmt.Errorf("psi: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.ReferenceReading{}, fmt.Errorf("psi: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.ReferenceReading{}, fmt.Errorf("psi: read body: %w", err)
	}

	var decoded response
	decodeErr := json.Unmarshal(body, &decoded)
	if resp.StatusCode != http.StatusOK {
		msg := decoded.ErrorMsg
		if decodeErr != nil || msg == "" {
			msg = "unknown API error"
		}
		return domain.ReferenceReading{}, fmt.Errorf("psi: API returned status %d: %s", resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return domain.ReferenceReading{}, fmt.Errorf("psi: decode response: %w", decodeErr)
	}

	if len(decoded.Data.Items) == 0 {
		return domain.ReferenceReading{}, ErrNoReadings
	}
	values, ok := decoded.Data.Items[0].Readings[c.metric]
	if !ok {
		return domain.ReferenceReading{}, fmt.Errorf("%w: metric %s missing", ErrNoReadings, c.metric)
	}
	value, ok := values[c.region]
	if !ok {
		return domain.ReferenceReading{}, fmt.Errorf("%w: region %s missing", ErrNoReadings, c.region)
	}
	return domain.ReferenceReading{
		Metric:    c.metric,
		Region:    c.region,
		Value:     value,
		FetchedAt: c.now(),
	}, nil
}
