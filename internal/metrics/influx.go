// Package metrics provides InfluxDB time-series recording for lunamint:
// per-bill mining measurements, aggregate miner statistics, and verification
// outcomes.
package metrics

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Client wraps InfluxDB operations for minting metrics. Write path only;
// reading the series back is a dashboard concern, not a service one.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
}

// Config holds InfluxDB connection configuration
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// NewClient creates a new InfluxDB client
func NewClient(cfg *Config) (*Client, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check InfluxDB health: %w", err)
	}

	if health.Status != "pass" {
		msg := ""
		if health.Message != nil {
			msg = *health.Message
		}
		return nil, fmt.Errorf("InfluxDB health check failed: %s", msg)
	}

	return &Client{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
	}, nil
}

// Close flushes pending points and closes the connection
func (c *Client) Close() {
	c.writeAPI.Flush()
	c.client.Close()
}

// Health checks InfluxDB connectivity
func (c *Client) Health(ctx context.Context) error {
	health, err := c.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("failed to check health: %w", err)
	}

	if health.Status != "pass" {
		msg := ""
		if health.Message != nil {
			msg = *health.Message
		}
		return fmt.Errorf("health check failed: %s", msg)
	}

	return nil
}

// Minting metrics

// WriteBillMined writes a per-bill measurement for a successful mining round
func (c *Client) WriteBillMined(serial string, denomination uint64, difficulty uint32, attempts uint64, miningTime float64) {
	tags := map[string]string{
		"denomination": fmt.Sprintf("%d", denomination),
		"difficulty":   fmt.Sprintf("%d", difficulty),
	}

	fields := map[string]interface{}{
		"bill_serial":   serial,
		"attempts":      int64(attempts),
		"mining_time_s": miningTime,
		"count":         1,
	}

	point := write.NewPoint("bills_mined", tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WriteMiningStats writes the miner's cumulative counters
func (c *Client) WriteMiningStats(service string, billsMined, blocksMined, totalAttempts uint64, totalMiningTime float64) {
	tags := map[string]string{
		"service": service,
	}

	fields := map[string]interface{}{
		"bills_mined":         int64(billsMined),
		"blocks_mined":        int64(blocksMined),
		"total_hash_attempts": int64(totalAttempts),
		"total_mining_time_s": totalMiningTime,
	}

	point := write.NewPoint("mining_stats", tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WriteVerification writes a verification outcome measurement
func (c *Client) WriteVerification(serial string, valid bool, method string) {
	tags := map[string]string{
		"valid":  fmt.Sprintf("%t", valid),
		"method": method,
	}

	fields := map[string]interface{}{
		"bill_serial": serial,
		"count":       1,
	}

	point := write.NewPoint("verifications", tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// Flush forces a write of all pending points
func (c *Client) Flush() {
	c.writeAPI.Flush()
}
