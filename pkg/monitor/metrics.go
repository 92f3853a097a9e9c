package monitor

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"tarun-kavipurapu/tsync/pkg/logger"
	"tarun-kavipurapu/tsync/pkg/transfer"
)

// Metrics holds process-wide transfer counters.
type Metrics struct {
	BytesSent     atomic.Uint64
	BytesReceived atomic.Uint64
	FilesSent     atomic.Int64
	FilesReceived atomic.Int64
	Failures      atomic.Int64
	ShortWrites   atomic.Int64
	Connections   atomic.Int64

	Start time.Time
}

// Global metrics instance
var Global = New()

func New() *Metrics {
	return &Metrics{Start: time.Now()}
}

// Snapshot is a point-in-time copy of Metrics.
type Snapshot struct {
	BytesSent     uint64
	BytesReceived uint64
	FilesSent     int64
	FilesReceived int64
	Failures      int64
	ShortWrites   int64
	Connections   int64
	Uptime        time.Duration
}

func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		BytesSent:     m.BytesSent.Load(),
		BytesReceived: m.BytesReceived.Load(),
		FilesSent:     m.FilesSent.Load(),
		FilesReceived: m.FilesReceived.Load(),
		Failures:      m.Failures.Load(),
		ShortWrites:   m.ShortWrites.Load(),
		Connections:   m.Connections.Load(),
		Uptime:        time.Since(m.Start),
	}
}

// Throughput is the average transfer rate in bytes per second since Start.
func (s Snapshot) Throughput() float64 {
	secs := s.Uptime.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.BytesSent+s.BytesReceived) / secs
}

// LogPeriodic logs runtime metrics at the specified interval until ctx is
// done.
func (m *Metrics) LogPeriodic(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var mem runtime.MemStats
			runtime.ReadMemStats(&mem)
			s := m.Snapshot()

			logger.Sugar.Infof("[Metrics] Goroutines=%d | HeapAlloc=%s | Sent=%s/%d files | Received=%s/%d files | Throughput=%s/s | Failures=%d | ShortWrites=%d",
				runtime.NumGoroutine(),
				humanize.IBytes(mem.HeapAlloc),
				humanize.IBytes(s.BytesSent), s.FilesSent,
				humanize.IBytes(s.BytesReceived), s.FilesReceived,
				humanize.IBytes(uint64(s.Throughput())),
				s.Failures,
				s.ShortWrites,
			)
		}
	}
}

// SendObserver counts transfers made by a transfer.Writer.
func (m *Metrics) SendObserver() transfer.Observer { return &observer{m: m, send: true} }

// ReceiveObserver counts transfers made by a transfer.Reader.
func (m *Metrics) ReceiveObserver() transfer.Observer { return &observer{m: m} }

type observer struct {
	transfer.NopObserver
	m    *Metrics
	send bool
}

func (o *observer) TransferDone(res transfer.Result, err error) {
	if o.send {
		o.m.BytesSent.Add(res.Bytes)
	} else {
		o.m.BytesReceived.Add(res.Bytes)
	}
	o.m.ShortWrites.Add(int64(res.ShortWrites))

	if err != nil {
		o.m.Failures.Add(1)
		return
	}
	if o.send {
		o.m.FilesSent.Add(1)
	} else {
		o.m.FilesReceived.Add(1)
	}

	var speed float64
	if secs := res.Duration.Seconds(); secs > 0 {
		speed = float64(res.Bytes) / secs
	}
	logger.Sugar.Infof("[Transfer] Name=%s | Size=%s | Duration=%.2fs | Speed=%s/s",
		res.Name, humanize.IBytes(res.Bytes), res.Duration.Seconds(), humanize.IBytes(uint64(speed)))
}
