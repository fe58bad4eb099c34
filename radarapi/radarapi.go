// Package radarapi fetches the latest precipitation radar composite,
// restricted to the site's vicinity, from the local weather bridge service.
package radarapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hausctl/homecontroller/radar"
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

// Latest returns the most recent radar frame.
func (c *Client) Latest() (radar.Frame, error) {
	resp, err := c.http.Get(c.url)
	if err != nil {
		return radar.Frame{}, fmt.Errorf("fetch radar frame: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return radar.Frame{}, fmt.Errorf("fetch radar frame: status %d", resp.StatusCode)
	}

	var frame radar.Frame
	if err := json.NewDecoder(resp.Body).Decode(&frame); err != nil {
		return radar.Frame{}, fmt.Errorf("decode radar frame: %w", err)
	}
	return frame, nil
}
