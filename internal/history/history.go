// Package history records sensor changes in InfluxDB.
//
// Writes use the client's non-blocking WriteAPI: points are batched and sent
// from the client's own goroutine, so calls never stall the scheduler loop.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"
)

const (
	measurement = "sensorcluster"
	pingTimeout = 5 * time.Second
)

var (
	// ErrDisabled indicates the history sink is turned off in configuration.
	ErrDisabled = errors.New("history: disabled in configuration")

	// ErrConnectionFailed indicates the initial ping failed.
	ErrConnectionFailed = errors.New("history: connection failed")
)

// Writer records sensor changes.
type Writer interface {
	WriteTemperature(celsius float64)
	WritePresence(present bool)
	Close() error
}

// Options configures the InfluxDB sink.
type Options struct {
	Enabled bool
	URL     string
	Token   string
	Org     string
	Bucket  string
	Device  string
}

// InfluxWriter writes points through a non-blocking WriteAPI.
type InfluxWriter struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	device   string
	now      func() time.Time
}

// Connect pings the server and returns a writer for the configured bucket.
// Write errors are reported asynchronously to log.
func Connect(ctx context.Context, opts Options, log *zap.SugaredLogger) (*InfluxWriter, error) {
	if !opts.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClient(opts.URL, opts.Token)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	w := newInfluxWriter(client.WriteAPI(opts.Org, opts.Bucket), opts.Device)
	w.client = client

	go func(errs <-chan error) {
		for err := range errs {
			log.Warnw("history write failed", "error", err)
		}
	}(w.writeAPI.Errors())

	return w, nil
}

func newInfluxWriter(writeAPI api.WriteAPI, device string) *InfluxWriter {
	return &InfluxWriter{writeAPI: writeAPI, device: device, now: time.Now}
}

// WriteTemperature records a stored probe reading.
func (w *InfluxWriter) WriteTemperature(celsius float64) {
	w.write(map[string]interface{}{"temperature_c": celsius})
}

// WritePresence records a presence edge.
func (w *InfluxWriter) WritePresence(present bool) {
	w.write(map[string]interface{}{"presence": present})
}

func (w *InfluxWriter) write(fields map[string]interface{}) {
	point := write.NewPoint(
		measurement,
		map[string]string{"device": w.device},
		fields,
		w.now(),
	)
	w.writeAPI.WritePoint(point)
}

// Close flushes pending points and closes the client.
func (w *InfluxWriter) Close() error {
	w.writeAPI.Flush()
	if w.client != nil {
		w.client.Close()
	}
	return nil
}

// Nop discards everything.
type Nop struct{}

func (Nop) WriteTemperature(float64) {}
func (Nop) WritePresence(bool)       {}
func (Nop) Close() error             { return nil }
