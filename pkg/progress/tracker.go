package progress

import (
	"fmt"
	"sync"
	"time"
)

// State is the lifecycle of one tracked transfer.
type State int

const (
	Running State = iota
	Completed
	Failed
)

// String returns a string representation of the transfer state
func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Icon returns an icon representation of the transfer state
func (s State) Icon() string {
	switch s {
	case Running:
		return "↓"
	case Completed:
		return "✓"
	case Failed:
		return "✗"
	default:
		return "?"
	}
}

// Tracker tracks the progress of a single file transfer.
type Tracker struct {
	mu          sync.RWMutex
	Name        string
	TotalPieces uint64
	PiecesDone  uint64
	BytesDone   uint64
	State       State
	StartTime   time.Time
	EndTime     time.Time

	// Speed calculation
	lastBytes    uint64
	lastTime     time.Time
	currentSpeed float64 // bytes/sec

	now func() time.Time
}

func NewTracker(name string, totalPieces uint64) *Tracker {
	return newTracker(name, totalPieces, time.Now)
}

func newTracker(name string, totalPieces uint64, now func() time.Time) *Tracker {
	start := now()
	return &Tracker{
		Name:        name,
		TotalPieces: totalPieces,
		StartTime:   start,
		lastTime:    start,
		now:         now,
	}
}

// PieceDone records one finished piece of size bytes.
func (t *Tracker) PieceDone(size uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.PiecesDone++
	t.BytesDone += size
}

// UpdateSpeed calculates and updates the current transfer speed
func (t *Tracker) UpdateSpeed() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	elapsed := now.Sub(t.lastTime).Seconds()

	if elapsed >= 0.5 { // Update every 0.5 seconds
		t.currentSpeed = float64(t.BytesDone-t.lastBytes) / elapsed
		t.lastBytes = t.BytesDone
		t.lastTime = now
	}

	return t.currentSpeed
}

// Finish marks the transfer as completed or failed.
func (t *Tracker) Finish(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.EndTime = t.now()
	if err != nil {
		t.State = Failed
	} else {
		t.State = Completed
	}
}

// GetProgress returns completed pieces, total pieces and speed in bytes/s.
func (t *Tracker) GetProgress() (done, total uint64, speed float64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.PiecesDone, t.TotalPieces, t.currentSpeed
}

// Percentage returns the piece progress percentage (0-100). A transfer
// with no pieces is complete once it starts.
func (t *Tracker) Percentage() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.TotalPieces == 0 {
		return 100
	}
	return float64(t.PiecesDone) / float64(t.TotalPieces) * 100
}

// GetElapsedTime returns the elapsed time since the transfer started
func (t *Tracker) GetElapsedTime() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if !t.EndTime.IsZero() {
		return t.EndTime.Sub(t.StartTime)
	}
	return t.now().Sub(t.StartTime)
}

func (t *Tracker) GetState() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.State
}

// formatDuration formats a duration into a human-readable string
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", d/time.Second)
	}
	if d < time.Hour {
		mins := d / time.Minute
		secs := (d % time.Minute) / time.Second
		return fmt.Sprintf("%dm%ds", mins, secs)
	}
	hours := d / time.Hour
	mins := (d % time.Hour) / time.Minute
	return fmt.Sprintf("%dh%dm", hours, mins)
}
