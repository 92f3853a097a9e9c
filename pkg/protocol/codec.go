package protocol

import (
	"fmt"
	"io"
	"strings"
)

// Format selects the record encoding used on a stream. It is announced in
// the stream preamble and never changes within one stream.
type Format uint8

const (
	FormatBinary Format = 1
	FormatText   Format = 2
)

func (f Format) String() string {
	switch f {
	case FormatBinary:
		return "binary"
	case FormatText:
		return "text"
	default:
		return fmt.Sprintf("format(%d)", uint8(f))
	}
}

// ParseFormat accepts "binary" or "text".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "binary", "bin":
		return FormatBinary, nil
	case "text", "txt":
		return FormatText, nil
	}
	return 0, fmt.Errorf("unknown wire format %q (want binary or text)", s)
}

// DefaultMaxRecordSize bounds a single control record on the wire.
const DefaultMaxRecordSize = 64 * 1024

// ByteSource is what the decoders read from. *bufio.Reader and
// *bytes.Reader both satisfy it.
type ByteSource interface {
	io.Reader
	io.ByteReader
}

// Codec encodes and decodes header records.
//
// Decode consumes exactly one record. It returns io.EOF only if no byte was
// available, and io.ErrUnexpectedEOF if the stream ended inside a record.
type Codec interface {
	Format() Format
	Encode(h Header) ([]byte, error)
	Decode(r ByteSource) (Header, error)
}

// CodecFor returns the codec for f. maxRecordSize <= 0 selects
// DefaultMaxRecordSize.
func CodecFor(f Format, maxRecordSize int) (Codec, error) {
	if maxRecordSize <= 0 {
		maxRecordSize = DefaultMaxRecordSize
	}
	switch f {
	case FormatBinary:
		return &BinaryCodec{MaxRecordSize: maxRecordSize}, nil
	case FormatText:
		return &TextCodec{MaxRecordSize: maxRecordSize}, nil
	}
	return nil, fmt.Errorf("unsupported wire format %d", uint8(f))
}

// WriteRecord encodes h with c and writes it to w in a single Write call.
func WriteRecord(w io.Writer, c Codec, h Header) error {
	b, err := c.Encode(h)
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("write %s record: %w", h.Kind(), err)
	}
	return nil
}

// ReadRecord decodes the next record and requires it to be of type H.
// H must be one of the concrete header types (Name, Pieces, ID, Size,
// Checksum).
func ReadRecord[H Header](r ByteSource, c Codec) (H, error) {
	var want H
	h, err := c.Decode(r)
	if err != nil {
		return want, err
	}
	got, ok := h.(H)
	if !ok {
		return want, &KindMismatchError{Expected: want.Kind(), Actual: h.Kind()}
	}
	return got, nil
}
