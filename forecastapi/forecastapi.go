// Package forecastapi fetches the aggregated multi-station forecast from
// the local weather bridge service. The bridge handles the provider
// specifics (MOSMIX decoding, station selection); this controller only
// consumes its JSON.
package forecastapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hausctl/homecontroller/schedule"
)

type Client struct {
	url  string
	http *http.Client
}

func New(url string) *Client {
	return &Client{
		url:  url,
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

type stationPayload struct {
	Station string                   `json:"station"`
	Points  []schedule.ForecastPoint `json:"points"`
}

type forecastPayload struct {
	Stations []stationPayload `json:"stations"`
}

// Fetch returns the forecast points of all nearby stations in one flat
// slice, ready for pessimistic aggregation.
func (c *Client) Fetch() ([]schedule.ForecastPoint, error) {
	resp, err := c.http.Get(c.url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", schedule.ErrFetchFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", schedule.ErrFetchFailed, resp.StatusCode)
	}

	var payload forecastPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", schedule.ErrFetchFailed, err)
	}

	var points []schedule.ForecastPoint
	for _, station := range payload.Stations {
		points = append(points, station.Points...)
	}
	return points, nil
}
