package transfer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/zeebo/xxh3"
	"go.uber.org/zap"

	"tarun-kavipurapu/tsync/pkg/protocol"
)

const streamBufferSize = 64 * 1024

// ErrStreamAborted is returned by every Send after a transfer failed
// partway through writing to the stream.
var ErrStreamAborted = errors.New("stream aborted mid-transfer")

// Writer sends files over a single stream. Transfers on one Writer are
// serialised: a second Send blocks until the first has written its last
// piece.
type Writer struct {
	mu       sync.Mutex
	bw       *bufio.Writer
	codec    protocol.Codec
	opts     Options
	log      *zap.SugaredLogger
	err      error
	preamble bool
	buf      []byte
}

func NewWriter(stream io.Writer, opts Options) *Writer {
	opts = opts.withDefaults()
	w := &Writer{
		bw:   bufio.NewWriterSize(stream, streamBufferSize),
		opts: opts,
		log:  opts.Logger,
	}
	if err := opts.Validate(); err != nil {
		w.err = err
		return w
	}
	w.codec, w.err = protocol.CodecFor(opts.Format, opts.MaxRecordSize)
	return w
}

// Send transfers the file at path under its base name.
func (w *Writer) Send(path string) (protocol.FileMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return protocol.FileMetadata{}, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return protocol.FileMetadata{}, fmt.Errorf("stat source: %w", err)
	}
	if !info.Mode().IsRegular() {
		return protocol.FileMetadata{}, fmt.Errorf("%s is not a regular file", path)
	}

	return w.SendReader(filepath.Base(path), f, info.Size())
}

// SendReader transfers size bytes of src, announced as name.
func (w *Writer) SendReader(name string, src io.ReadSeeker, size int64) (meta protocol.FileMetadata, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.err != nil {
		return meta, w.err
	}
	if size < 0 {
		return meta, fmt.Errorf("negative file size %d", size)
	}
	base, err := BaseName(name)
	if err != nil {
		return meta, err
	}

	offsets, err := protocol.ComputeOffsets(uint64(size), w.opts.PieceLength)
	if err != nil {
		return meta, err
	}
	meta = protocol.FileMetadata{Name: base, PiecesAmount: uint64(len(offsets))}

	start := time.Now()
	res := Result{Name: meta.Name, Pieces: meta.PiecesAmount, Checksums: w.opts.Checksums}
	w.opts.Observer.TransferStarted(meta)
	defer func() {
		res.Duration = time.Since(start)
		w.opts.Observer.TransferDone(res, err)
	}()

	// From here on records of this transfer may be on the stream, so a
	// failure leaves it unusable for any later transfer.
	defer func() {
		if err != nil {
			w.err = fmt.Errorf("%w: %s: %w", ErrStreamAborted, meta.Name, err)
		}
	}()

	if err = w.writeMetadata(meta); err != nil {
		return meta, err
	}

	for i, off := range offsets {
		n := protocol.PieceSize(offsets, i, uint64(size))
		if err = w.writePiece(src, uint64(i), off, n); err != nil {
			return meta, err
		}
		res.Bytes += n
		w.opts.Observer.PieceDone(uint64(i), n)
	}

	if err = w.bw.Flush(); err != nil {
		return meta, fmt.Errorf("flush stream: %w", err)
	}

	w.log.Infof("[Writer] file sent: name=%s pieces=%d size=%s duration=%s",
		meta.Name, meta.PiecesAmount, humanize.IBytes(res.Bytes), time.Since(start).Round(time.Millisecond))
	return meta, nil
}

func (w *Writer) writeMetadata(meta protocol.FileMetadata) error {
	if !w.preamble {
		if err := protocol.WritePreamble(w.bw, protocol.NewPreamble(w.opts.Format, w.opts.Checksums)); err != nil {
			return fmt.Errorf("write preamble: %w", err)
		}
		w.preamble = true
	}
	if err := protocol.WriteRecord(w.bw, w.codec, protocol.Name(meta.Name)); err != nil {
		return err
	}
	return protocol.WriteRecord(w.bw, w.codec, protocol.Pieces(meta.PiecesAmount))
}

func (w *Writer) writePiece(src io.ReadSeeker, id, offset, size uint64) error {
	if _, err := src.Seek(int64(offset), io.SeekStart); err != nil {
		return fmt.Errorf("seek piece %d: %w", id, err)
	}

	data := w.buffer(size)
	if _, err := io.ReadFull(src, data); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return fmt.Errorf("read piece %d: %w", id, err)
	}

	if err := protocol.WriteRecord(w.bw, w.codec, protocol.ID(id)); err != nil {
		return err
	}
	if err := protocol.WriteRecord(w.bw, w.codec, protocol.Size(size)); err != nil {
		return err
	}
	if w.opts.Checksums {
		if err := protocol.WriteRecord(w.bw, w.codec, protocol.Checksum(xxh3.Hash(data))); err != nil {
			return err
		}
	}
	if _, err := w.bw.Write(data); err != nil {
		return fmt.Errorf("write piece %d payload: %w", id, err)
	}
	if err := w.bw.Flush(); err != nil {
		return fmt.Errorf("flush piece %d: %w", id, err)
	}

	w.log.Debugf("[Writer] piece sent: id=%d offset=%d size=%d", id, offset, size)
	return nil
}

// buffer returns a reusable slice of length n.
func (w *Writer) buffer(n uint64) []byte {
	if uint64(cap(w.buf)) < n {
		w.buf = make([]byte, n)
	}
	return w.buf[:n]
}
