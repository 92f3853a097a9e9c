package transfer

import (
	"time"

	"tarun-kavipurapu/tsync/pkg/protocol"
)

// Result summarises one file transfer on either side of the stream.
type Result struct {
	Name   string
	Path   string // destination path, receiver only
	Pieces uint64
	Bytes  uint64
	// ShortWrites counts pieces the destination under- or over-wrote.
	ShortWrites int
	Checksums   bool
	Duration    time.Duration
}

// Observer follows transfers as they progress. Calls are made from the
// goroutine driving the Writer or Reader.
type Observer interface {
	TransferStarted(meta protocol.FileMetadata)
	PieceDone(id, size uint64)
	TransferDone(res Result, err error)
}

// NopObserver ignores every event. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) TransferStarted(protocol.FileMetadata) {}
func (NopObserver) PieceDone(uint64, uint64)              {}
func (NopObserver) TransferDone(Result, error)            {}

type multiObserver []Observer

// Observers fans every event out to each non-nil observer in order.
func Observers(obs ...Observer) Observer {
	var m multiObserver
	for _, o := range obs {
		if o != nil {
			m = append(m, o)
		}
	}
	if len(m) == 1 {
		return m[0]
	}
	return m
}

func (m multiObserver) TransferStarted(meta protocol.FileMetadata) {
	for _, o := range m {
		o.TransferStarted(meta)
	}
}

func (m multiObserver) PieceDone(id, size uint64) {
	for _, o := range m {
		o.PieceDone(id, size)
	}
}

func (m multiObserver) TransferDone(res Result, err error) {
	for _, o := range m {
		o.TransferDone(res, err)
	}
}
