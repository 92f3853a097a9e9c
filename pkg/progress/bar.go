package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"

	"tarun-kavipurapu/tsync/pkg/protocol"
	"tarun-kavipurapu/tsync/pkg/transfer"
)

// ANSI color codes for terminal output
const (
	Reset = "\033[0m"
	Red   = "\033[31m"
	Green = "\033[32m"
	Cyan  = "\033[36m"
)

// Bar renders one terminal progress bar per transfer. It implements
// transfer.Observer.
type Bar struct {
	mu        sync.Mutex
	out       io.Writer
	useColors bool
	width     int
	throttle  time.Duration

	tracker *Tracker
	bar     *progressbar.ProgressBar
}

// NewBar creates a renderer writing to out.
func NewBar(out io.Writer, useColors bool) *Bar {
	return &Bar{
		out:       out,
		useColors: useColors,
		width:     40,
		throttle:  200 * time.Millisecond,
	}
}

// Tracker returns the tracker of the current or last transfer.
func (b *Bar) Tracker() *Tracker {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tracker
}

func (b *Bar) TransferStarted(meta protocol.FileMetadata) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tracker = NewTracker(meta.Name, meta.PiecesAmount)
	b.bar = progressbar.NewOptions64(int64(meta.PiecesAmount),
		progressbar.OptionSetWriter(b.out),
		progressbar.OptionSetDescription(b.label(meta.Name)),
		progressbar.OptionSetWidth(b.width),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(b.throttle),
		progressbar.OptionEnableColorCodes(b.useColors),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func (b *Bar) PieceDone(_, size uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tracker == nil {
		return
	}
	b.tracker.PieceDone(size)
	speed := b.tracker.UpdateSpeed()
	b.bar.Describe(fmt.Sprintf("%s %s/s", b.label(b.tracker.Name), humanize.IBytes(uint64(speed))))
	_ = b.bar.Add64(1)
}

func (b *Bar) TransferDone(res transfer.Result, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tracker == nil {
		return
	}
	b.tracker.Finish(err)
	if err != nil {
		_ = b.bar.Exit()
		b.renderError(res, err)
		return
	}
	_ = b.bar.Finish()
	b.renderFinal(res)
}

func (b *Bar) label(name string) string {
	if b.useColors {
		return fmt.Sprintf("[cyan][%s][reset]", name)
	}
	return "[" + name + "]"
}

// renderFinal renders the final completed state
func (b *Bar) renderFinal(res transfer.Result) {
	elapsed := b.tracker.GetElapsedTime()
	if b.useColors {
		fmt.Fprintf(b.out, "\r\033[K%s[%s]%s %s%s 100%% (%d/%d pieces)%s | %s in %s\n",
			Cyan, res.Name, Reset, Green, Completed.Icon(),
			res.Pieces, res.Pieces, Reset, humanize.IBytes(res.Bytes), formatDuration(elapsed))
		return
	}
	fmt.Fprintf(b.out, "\r[%s] %s 100%% (%d/%d pieces) | %s in %s\n",
		res.Name, Completed.Icon(), res.Pieces, res.Pieces, humanize.IBytes(res.Bytes), formatDuration(elapsed))
}

// renderError renders an error state
func (b *Bar) renderError(res transfer.Result, err error) {
	done, total, _ := b.tracker.GetProgress()
	if b.useColors {
		fmt.Fprintf(b.out, "\r\033[K%s[%s]%s %s%s failed%s after %d/%d pieces: %v\n",
			Cyan, res.Name, Reset, Red, Failed.Icon(), Reset, done, total, err)
		return
	}
	fmt.Fprintf(b.out, "\r[%s] %s failed after %d/%d pieces: %v\n", res.Name, Failed.Icon(), done, total, err)
}
