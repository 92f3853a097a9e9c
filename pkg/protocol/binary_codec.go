package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
	"strconv"

	"google.golang.org/protobuf/encoding/protowire"
)

// lengthSize is the width of the little-endian length prefix.
const lengthSize = 4

// BinaryCodec frames each header as
// [length (4 bytes, little-endian)] + [one protobuf-wire field].
// The field number is the header Kind.
type BinaryCodec struct {
	MaxRecordSize int
}

func (c *BinaryCodec) Format() Format { return FormatBinary }

func (c *BinaryCodec) Encode(h Header) ([]byte, error) {
	b := make([]byte, lengthSize, lengthSize+16)

	switch v := h.(type) {
	case Name:
		b = protowire.AppendTag(b, protowire.Number(KindName), protowire.BytesType)
		b = protowire.AppendString(b, string(v))
	case Pieces:
		b = appendVarint(b, KindPieces, uint64(v))
	case ID:
		b = appendVarint(b, KindID, uint64(v))
	case Size:
		b = appendVarint(b, KindSize, uint64(v))
	case Checksum:
		b = protowire.AppendTag(b, protowire.Number(KindChecksum), protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, uint64(v))
	default:
		return nil, fmt.Errorf("cannot encode header %T", h)
	}

	n := len(b) - lengthSize
	if n > c.maxRecordSize() {
		return nil, fmt.Errorf("%s record is %d bytes, limit is %d", h.Kind(), n, c.maxRecordSize())
	}
	binary.LittleEndian.PutUint32(b[:lengthSize], uint32(n))
	return b, nil
}

func (c *BinaryCodec) Decode(r ByteSource) (Header, error) {
	var prefix [lengthSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}

	n := binary.LittleEndian.Uint32(prefix[:])
	if n == 0 {
		return nil, malformed("empty record")
	}
	if uint64(n) > uint64(c.maxRecordSize()) {
		return nil, malformed("record length %d exceeds limit %d", n, c.maxRecordSize())
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return decodeField(body)
}

func (c *BinaryCodec) maxRecordSize() int {
	if c.MaxRecordSize <= 0 {
		return DefaultMaxRecordSize
	}
	return c.MaxRecordSize
}

func appendVarint(b []byte, k Kind, v uint64) []byte {
	b = protowire.AppendTag(b, protowire.Number(k), protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// decodeField parses exactly one field out of body.
func decodeField(body []byte) (Header, error) {
	num, typ, n := protowire.ConsumeTag(body)
	if n < 0 {
		return nil, malformed("bad field tag: %v", protowire.ParseError(n))
	}
	if num < protowire.Number(KindName) || num > protowire.Number(KindChecksum) {
		return nil, &UnknownTagError{Tag: strconv.FormatInt(int64(num), 10)}
	}
	k := Kind(num)
	rest := body[n:]

	var (
		h    Header
		used int
	)
	switch k {
	case KindName:
		if typ != protowire.BytesType {
			return nil, malformed("%s field has wire type %d", k, typ)
		}
		var v []byte
		v, used = protowire.ConsumeBytes(rest)
		if used >= 0 {
			h = Name(v)
		}
	case KindPieces, KindID, KindSize:
		if typ != protowire.VarintType {
			return nil, malformed("%s field has wire type %d", k, typ)
		}
		var v uint64
		v, used = protowire.ConsumeVarint(rest)
		if used >= 0 {
			h, _ = numeric(k, v)
		}
	case KindChecksum:
		if typ != protowire.Fixed64Type {
			return nil, malformed("%s field has wire type %d", k, typ)
		}
		var v uint64
		v, used = protowire.ConsumeFixed64(rest)
		if used >= 0 {
			h = Checksum(v)
		}
	}

	if used < 0 {
		return nil, malformed("bad %s value: %v", k, protowire.ParseError(used))
	}
	if used != len(rest) {
		return nil, malformed("%d trailing bytes after %s value", len(rest)-used, k)
	}
	return h, nil
}
