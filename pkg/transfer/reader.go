package transfer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/zeebo/xxh3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"tarun-kavipurapu/tsync/pkg/protocol"
)

// State is the position of a Reader in the transfer grammar.
type State int32

const (
	AwaitingMetadata State = iota
	ReceivingPieces
	Closed
)

func (s State) String() string {
	switch s {
	case AwaitingMetadata:
		return "awaiting-metadata"
	case ReceivingPieces:
		return "receiving-pieces"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Reader receives files from a single stream and hands them to a Sink.
type Reader struct {
	br    *bufio.Reader
	sink  Sink
	opts  Options
	log   *zap.SugaredLogger
	state atomic.Int32

	codec     protocol.Codec
	checksums bool
	buf       []byte
}

func NewReader(stream io.Reader, sink Sink, opts Options) *Reader {
	opts = opts.withDefaults()
	return &Reader{
		br:   bufio.NewReaderSize(stream, streamBufferSize),
		sink: sink,
		opts: opts,
		log:  opts.Logger,
	}
}

// State may be called from any goroutine.
func (r *Reader) State() State { return State(r.state.Load()) }

func (r *Reader) setState(s State) { r.state.Store(int32(s)) }

// Run receives files until the peer closes the stream between transfers.
// Orderly closure returns nil.
func (r *Reader) Run() error {
	for {
		if _, err := r.ReadTransfer(); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

// ReadTransfer receives exactly one file. It returns io.EOF, and moves to
// Closed, if the stream ends before a new transfer begins. Any other error
// also leaves the Reader Closed.
func (r *Reader) ReadTransfer() (res Result, err error) {
	if r.State() == Closed {
		return res, io.EOF
	}

	meta, err := r.readMetadata()
	if err != nil {
		r.setState(Closed)
		return res, err
	}

	dst, err := r.sink.Create(meta.Name)
	if err != nil {
		r.setState(Closed)
		return res, fmt.Errorf("open destination for %s: %w", meta.Name, err)
	}
	if named, ok := dst.(interface{ Name() string }); ok {
		res.Path = named.Name()
	}

	start := time.Now()
	res.Name = meta.Name
	res.Pieces = meta.PiecesAmount
	res.Checksums = r.checksums

	r.setState(ReceivingPieces)
	r.opts.Observer.TransferStarted(meta)
	r.log.Infof("[Reader] receiving file: name=%s pieces=%d", meta.Name, meta.PiecesAmount)

	defer func() {
		if a, ok := dst.(Aborter); ok && err != nil {
			err = multierr.Append(err, a.Abort())
		} else {
			err = multierr.Append(err, dst.Close())
		}
		res.Duration = time.Since(start)
		if err != nil {
			r.setState(Closed)
		} else {
			r.setState(AwaitingMetadata)
		}
		r.opts.Observer.TransferDone(res, err)
	}()

	for id := uint64(0); id < meta.PiecesAmount; id++ {
		size, short, err := r.readPiece(dst, id)
		if err != nil {
			return res, err
		}
		res.Bytes += size
		if short {
			res.ShortWrites++
		}
		r.opts.Observer.PieceDone(id, size)
		r.log.Debugf("[Reader] piece received: name=%s piece=%d/%d size=%d", meta.Name, id+1, meta.PiecesAmount, size)
	}

	r.log.Infof("[Reader] file received: name=%s pieces=%d size=%s", meta.Name, meta.PiecesAmount, humanize.IBytes(res.Bytes))
	return res, nil
}

// readMetadata reads the preamble on first use, then a Name and a Pieces
// record. Only a stream that ends before the Name yields io.EOF.
func (r *Reader) readMetadata() (protocol.FileMetadata, error) {
	if r.codec == nil {
		p, err := protocol.ReadPreamble(r.br)
		if err != nil {
			if err == io.EOF {
				return protocol.FileMetadata{}, io.EOF
			}
			return protocol.FileMetadata{}, fmt.Errorf("read preamble: %w", err)
		}
		codec, err := protocol.CodecFor(p.Format, r.opts.MaxRecordSize)
		if err != nil {
			return protocol.FileMetadata{}, err
		}
		r.codec = codec
		r.checksums = p.Checksums()
		r.log.Debugf("[Reader] stream opened: version=%d format=%s checksums=%t", p.Version, p.Format, r.checksums)
	}

	name, err := protocol.ReadRecord[protocol.Name](r.br, r.codec)
	if err != nil {
		if err == io.EOF {
			return protocol.FileMetadata{}, io.EOF
		}
		return protocol.FileMetadata{}, fmt.Errorf("read name: %w", err)
	}
	pieces, err := protocol.ReadRecord[protocol.Pieces](r.br, r.codec)
	if err != nil {
		return protocol.FileMetadata{}, fmt.Errorf("read pieces: %w", unexpected(err))
	}
	return protocol.FileMetadata{Name: string(name), PiecesAmount: uint64(pieces)}, nil
}

// readPiece reads piece id and writes it to dst. short reports a
// destination write that did not match the declared size.
func (r *Reader) readPiece(dst io.Writer, id uint64) (size uint64, short bool, err error) {
	got, err := protocol.ReadRecord[protocol.ID](r.br, r.codec)
	if err != nil {
		return 0, false, fmt.Errorf("read piece %d id: %w", id, unexpected(err))
	}
	if uint64(got) != id {
		return 0, false, &ProtocolError{Piece: id, Reason: fmt.Sprintf("got id %d", uint64(got))}
	}

	sz, err := protocol.ReadRecord[protocol.Size](r.br, r.codec)
	if err != nil {
		return 0, false, fmt.Errorf("read piece %d size: %w", id, unexpected(err))
	}
	size = uint64(sz)
	if size > r.opts.MaxPieceSize {
		return 0, false, &ProtocolError{Piece: id, Reason: fmt.Sprintf("size %d exceeds limit %d", size, r.opts.MaxPieceSize)}
	}

	var sum protocol.Checksum
	if r.checksums {
		sum, err = protocol.ReadRecord[protocol.Checksum](r.br, r.codec)
		if err != nil {
			return 0, false, fmt.Errorf("read piece %d checksum: %w", id, unexpected(err))
		}
	}

	data := r.buffer(size)
	if _, err := io.ReadFull(r.br, data); err != nil {
		return 0, false, fmt.Errorf("read piece %d payload: %w", id, unexpected(err))
	}
	if r.checksums {
		if actual := xxh3.Hash(data); actual != uint64(sum) {
			return 0, false, &ChecksumError{Piece: id, Expected: uint64(sum), Actual: actual}
		}
	}

	n, err := dst.Write(data)
	if err != nil {
		return 0, false, fmt.Errorf("write piece %d: %w", id, err)
	}
	if uint64(n) != size {
		if r.opts.StrictWrites {
			return 0, true, &ShortWriteError{Piece: id, Expected: size, Written: n}
		}
		r.log.Warnf("[Reader] short write: piece=%d expected=%d written=%d", id, size, n)
		return size, true, nil
	}
	return size, false, nil
}

func (r *Reader) buffer(n uint64) []byte {
	if uint64(cap(r.buf)) < n {
		r.buf = make([]byte, n)
	}
	return r.buf[:n]
}

// unexpected maps io.EOF inside a transfer to io.ErrUnexpectedEOF.
func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
