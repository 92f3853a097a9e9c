package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tarun-kavipurapu/tsync/pkg/transfer"
)

func TestObserversCount(t *testing.T) {
	m := New()

	m.SendObserver().TransferDone(transfer.Result{Name: "a", Bytes: 100, Duration: time.Second}, nil)
	m.ReceiveObserver().TransferDone(transfer.Result{Name: "b", Bytes: 40, ShortWrites: 2}, nil)
	m.ReceiveObserver().TransferDone(transfer.Result{Name: "c", Bytes: 5}, errors.New("reset"))

	s := m.Snapshot()
	assert.Equal(t, uint64(100), s.BytesSent)
	assert.Equal(t, uint64(45), s.BytesReceived)
	assert.Equal(t, int64(1), s.FilesSent)
	assert.Equal(t, int64(1), s.FilesReceived)
	assert.Equal(t, int64(1), s.Failures)
	assert.Equal(t, int64(2), s.ShortWrites)
}

func TestThroughput(t *testing.T) {
	s := Snapshot{BytesSent: 300, BytesReceived: 100, Uptime: 2 * time.Second}
	assert.InDelta(t, 200.0, s.Throughput(), 0.001)
	assert.Zero(t, Snapshot{}.Throughput())
}

func TestLogPeriodicStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		New().LogPeriodic(ctx, time.Millisecond)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("LogPeriodic did not return after cancel")
	}
}
