package transfer

import (
	"errors"
	"fmt"
)

// ErrProtocol is wrapped by every ProtocolError.
var ErrProtocol = errors.New("protocol violation")

// ProtocolError is a well-formed record whose value breaks the transfer
// grammar, such as a piece id out of sequence.
type ProtocolError struct {
	Piece  uint64
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol violation at piece %d: %s", e.Piece, e.Reason)
}

func (e *ProtocolError) Unwrap() error { return ErrProtocol }

// ChecksumError is returned when a piece payload does not match the digest
// the sender announced for it.
type ChecksumError struct {
	Piece    uint64
	Expected uint64
	Actual   uint64
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("piece %d checksum mismatch: expected %016x, got %016x", e.Piece, e.Expected, e.Actual)
}

// ShortWriteError reports a destination that accepted a different number of
// bytes than the piece declared. It is only returned with StrictWrites.
type ShortWriteError struct {
	Piece    uint64
	Expected uint64
	Written  int
}

func (e *ShortWriteError) Error() string {
	return fmt.Sprintf("piece %d: wrote %d of %d bytes", e.Piece, e.Written, e.Expected)
}
