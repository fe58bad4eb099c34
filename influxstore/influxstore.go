// Package influxstore adapts the InfluxDB client to the narrow point-query
// and point-write interfaces the engines consume.
package influxstore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	gocache "github.com/patrickmn/go-cache"

	"github.com/hausctl/homecontroller/telemetry"
)

// Client wraps the InfluxDB HTTP API. Scalar results are cached briefly so
// a burst of rule evaluations within one engine cycle does not re-issue
// identical queries.
type Client struct {
	client influxdb2.Client
	query  api.QueryAPI
	write  api.WriteAPIBlocking
	bucket string
	cache  *gocache.Cache
	logger *slog.Logger
}

type scalarResult struct {
	value float64
	ok    bool
}

func New(url, token, org, bucket string, cacheTTL time.Duration) *Client {
	client := influxdb2.NewClient(url, token)
	return &Client{
		client: client,
		query:  client.QueryAPI(org),
		write:  client.WriteAPIBlocking(org, bucket),
		bucket: bucket,
		cache:  gocache.New(cacheTTL, 2*cacheTTL),
		logger: slog.Default().With("store", "influx"),
	}
}

// Scalar runs the flux query (after %BUCKET% substitution) and returns the
// first record's value. ok is false when the query yielded no rows.
func (c *Client) Scalar(ctx context.Context, flux string) (float64, bool, error) {
	flux = strings.ReplaceAll(flux, "%BUCKET%", c.bucket)

	if cached, found := c.cache.Get(flux); found {
		res := cached.(scalarResult)
		return res.value, res.ok, nil
	}

	result, err := c.query.Query(ctx, flux)
	if err != nil {
		return 0, false, fmt.Errorf("query: %w", err)
	}

	value := 0.0
	ok := false
	for result.Next() {
		value, ok = asFloat(result.Record().Value())
		break
	}
	if err := result.Err(); err != nil {
		return 0, false, fmt.Errorf("read query result: %w", err)
	}
	if !ok {
		c.logger.Warn("query returned no result")
	}

	c.cache.Set(flux, scalarResult{value: value, ok: ok}, gocache.DefaultExpiration)
	return value, ok, nil
}

// WriteReading stores one telemetry reading as an InfluxDB point.
func (c *Client) WriteReading(ctx context.Context, reading telemetry.Reading) error {
	point := influxdb2.NewPoint(
		reading.Measurement,
		map[string]string{"unit": reading.Unit},
		map[string]interface{}{reading.Field: reading.Value},
		reading.Time,
	)
	return c.write.WritePoint(ctx, point)
}

// Close shuts the underlying HTTP client down. Call after all tasks stopped.
func (c *Client) Close() {
	c.client.Close()
}

func asFloat(v interface{}) (float64, bool) {
	switch value := v.(type) {
	case float64:
		return value, true
	case int64:
		return float64(value), true
	case uint64:
		return float64(value), true
	case bool:
		if value {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
