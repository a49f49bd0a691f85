package onewire

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrNoReading is returned by Cached until the first read has completed.
var ErrNoReading = errors.New("onewire: no reading yet")

// Reader is a blocking temperature source such as Probe.
type Reader interface {
	ReadCelsius() (float64, error)
}

// Cached reads a slow source on its own goroutine and serves the latest
// result without blocking. A DS18B20 read stalls for the whole conversion
// (about 750 ms at 12-bit), which must stay off the control loop.
type Cached struct {
	src      Reader
	interval time.Duration
	log      *zap.SugaredLogger

	mu      sync.Mutex
	celsius float64
	err     error

	cancel context.CancelFunc
	done   chan struct{}
}

// NewCached wraps src, refreshing every interval once started.
func NewCached(src Reader, interval time.Duration, log *zap.SugaredLogger) *Cached {
	return &Cached{
		src:      src,
		interval: interval,
		log:      log,
		err:      ErrNoReading,
	}
}

// Start begins refreshing. The first read starts immediately.
func (c *Cached) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.loop(ctx)
}

// ReadCelsius returns the most recent reading or the error of the most recent read.
func (c *Cached) ReadCelsius() (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.celsius, c.err
}

// Close stops refreshing and waits for an in-flight read to finish.
func (c *Cached) Close() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
}

func (c *Cached) loop(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		c.refresh()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *Cached) refresh() {
	celsius, err := c.src.ReadCelsius()

	c.mu.Lock()
	wasOK := c.err == nil
	c.celsius, c.err = celsius, err
	c.mu.Unlock()

	if err != nil && wasOK {
		c.log.Warnw("temperature read failed", "error", err)
	}
}
