package protocol

import (
	"errors"
	"fmt"
)

// Kind identifies a header variant. The numeric value is also the field
// number used by the binary encoding.
type Kind uint8

const (
	KindName     Kind = 1
	KindPieces   Kind = 2
	KindID       Kind = 3
	KindSize     Kind = 4
	KindChecksum Kind = 5
)

func (k Kind) String() string {
	switch k {
	case KindName:
		return "NAME"
	case KindPieces:
		return "PIECES"
	case KindID:
		return "ID"
	case KindSize:
		return "SIZE"
	case KindChecksum:
		return "CHECKSUM"
	default:
		return fmt.Sprintf("KIND(%d)", uint8(k))
	}
}

// kindFromTag maps a text tag back to its Kind.
func kindFromTag(tag string) (Kind, bool) {
	switch tag {
	case "NAME":
		return KindName, true
	case "PIECES":
		return KindPieces, true
	case "ID":
		return KindID, true
	case "SIZE":
		return KindSize, true
	case "CHECKSUM":
		return KindChecksum, true
	}
	return 0, false
}

// Header is a single control record. The set of implementations is closed:
// Name, Pieces, ID, Size and Checksum.
type Header interface {
	Kind() Kind
	header()
}

// Name carries the base name of the file being transferred.
type Name string

// Pieces carries the number of piece records that follow the metadata.
type Pieces uint64

// ID is the zero-based index of the piece that follows.
type ID uint64

// Size is the exact payload length of the piece that follows.
type Size uint64

// Checksum is the xxh3-64 digest of the piece payload.
type Checksum uint64

func (Name) Kind() Kind     { return KindName }
func (Pieces) Kind() Kind   { return KindPieces }
func (ID) Kind() Kind       { return KindID }
func (Size) Kind() Kind     { return KindSize }
func (Checksum) Kind() Kind { return KindChecksum }

func (Name) header()     {}
func (Pieces) header()   {}
func (ID) header()       {}
func (Size) header()     {}
func (Checksum) header() {}

// numeric builds the numeric header for k. It returns false for KindName
// and for unknown kinds.
func numeric(k Kind, v uint64) (Header, bool) {
	switch k {
	case KindPieces:
		return Pieces(v), true
	case KindID:
		return ID(v), true
	case KindSize:
		return Size(v), true
	case KindChecksum:
		return Checksum(v), true
	}
	return nil, false
}

// ErrMalformed is wrapped by every record decoding failure.
var ErrMalformed = errors.New("malformed record")

// UnknownTagError reports a tag outside the closed header set.
type UnknownTagError struct {
	Tag string
}

func (e *UnknownTagError) Error() string {
	return fmt.Sprintf("malformed record: unknown header tag %q", e.Tag)
}

func (e *UnknownTagError) Unwrap() error { return ErrMalformed }

// KindMismatchError reports a well-formed record that arrived at a protocol
// position reserved for another kind.
type KindMismatchError struct {
	Expected Kind
	Actual   Kind
}

func (e *KindMismatchError) Error() string {
	return fmt.Sprintf("malformed record: expected %s header, got %s", e.Expected, e.Actual)
}

func (e *KindMismatchError) Unwrap() error { return ErrMalformed }

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}
