package transfer

import (
	"fmt"

	"go.uber.org/zap"

	"tarun-kavipurapu/tsync/pkg/logger"
	"tarun-kavipurapu/tsync/pkg/protocol"
)

const (
	DefaultPieceLength  = 1024 * 1024
	DefaultMaxPieceSize = 64 * 1024 * 1024
)

// Options configures both ends of a transfer. The receiver ignores
// PieceLength, Format and Checksums: it takes them from the stream.
type Options struct {
	// PieceLength is the fixed size of every piece but the last.
	PieceLength uint64
	// Format selects the record encoding written by the sender.
	Format protocol.Format
	// Checksums makes the sender attach an xxh3-64 digest to every piece.
	Checksums bool
	// MaxRecordSize bounds a single control record.
	MaxRecordSize int
	// MaxPieceSize is the largest Size the receiver accepts.
	MaxPieceSize uint64
	// StrictWrites turns a short destination write into a fatal error.
	StrictWrites bool

	Logger   *zap.SugaredLogger
	Observer Observer
}

func DefaultOptions() Options {
	return Options{
		PieceLength:   DefaultPieceLength,
		Format:        protocol.FormatBinary,
		Checksums:     true,
		MaxRecordSize: protocol.DefaultMaxRecordSize,
		MaxPieceSize:  DefaultMaxPieceSize,
	}
}

// Validate reports settings no transfer can run with.
func (o Options) Validate() error {
	if o.PieceLength == 0 {
		return protocol.ErrZeroPieceLength
	}
	if o.MaxPieceSize > 0 && o.PieceLength > o.MaxPieceSize {
		return fmt.Errorf("piece length %d exceeds max piece size %d", o.PieceLength, o.MaxPieceSize)
	}
	if o.Format != protocol.FormatBinary && o.Format != protocol.FormatText {
		return fmt.Errorf("unsupported wire format %d", uint8(o.Format))
	}
	if o.MaxRecordSize < 0 {
		return fmt.Errorf("max record size must not be negative")
	}
	return nil
}

// withDefaults fills the fields a caller may leave zero.
func (o Options) withDefaults() Options {
	if o.MaxRecordSize == 0 {
		o.MaxRecordSize = protocol.DefaultMaxRecordSize
	}
	if o.MaxPieceSize == 0 {
		o.MaxPieceSize = DefaultMaxPieceSize
	}
	if o.Logger == nil {
		o.Logger = logger.Sugar
	}
	if o.Observer == nil {
		o.Observer = NopObserver{}
	}
	return o
}
