package protocol

import (
	"errors"
	"fmt"
	"io"
)

// Stream preamble, written once before the first metadata record:
// [Magic (4 bytes)] + [Version (1)] + [Format (1)] + [Flags (1)] + [Reserved (1)]
const PreambleSize = 8

// Version is the wire protocol revision this package speaks.
const Version uint8 = 1

// FlagChecksums means every piece carries a Checksum record after Size.
const FlagChecksums uint8 = 1 << 0

const knownFlags = FlagChecksums

var magic = [4]byte{'T', 'S', 'Y', 'N'}

var (
	ErrBadPreamble        = errors.New("bad stream preamble")
	ErrUnsupportedVersion = errors.New("unsupported protocol version")
)

// Preamble describes how the rest of the stream is encoded.
type Preamble struct {
	Version uint8
	Format  Format
	Flags   uint8
}

// NewPreamble builds the preamble for the current protocol version.
func NewPreamble(f Format, checksums bool) Preamble {
	p := Preamble{Version: Version, Format: f}
	if checksums {
		p.Flags |= FlagChecksums
	}
	return p
}

func (p Preamble) Checksums() bool { return p.Flags&FlagChecksums != 0 }

// WritePreamble writes p to w.
func WritePreamble(w io.Writer, p Preamble) error {
	buf := make([]byte, PreambleSize)
	copy(buf, magic[:])
	buf[4] = p.Version
	buf[5] = uint8(p.Format)
	buf[6] = p.Flags

	_, err := w.Write(buf)
	return err
}

// ReadPreamble reads and validates the stream preamble. It returns io.EOF
// if the stream is closed before the first byte.
func ReadPreamble(r io.Reader) (Preamble, error) {
	buf := make([]byte, PreambleSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Preamble{}, err
	}

	if buf[0] != magic[0] || buf[1] != magic[1] || buf[2] != magic[2] || buf[3] != magic[3] {
		return Preamble{}, fmt.Errorf("%w: magic %x", ErrBadPreamble, buf[:4])
	}

	p := Preamble{Version: buf[4], Format: Format(buf[5]), Flags: buf[6]}
	if p.Version != Version {
		return p, fmt.Errorf("%w: %d", ErrUnsupportedVersion, p.Version)
	}
	if p.Format != FormatBinary && p.Format != FormatText {
		return p, fmt.Errorf("%w: unknown format %d", ErrBadPreamble, buf[5])
	}
	if p.Flags&^knownFlags != 0 || buf[7] != 0 {
		return p, fmt.Errorf("%w: unknown flags %08b/%08b", ErrBadPreamble, p.Flags, buf[7])
	}
	return p, nil
}
