package protocol

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	textPrefix = "##TSYNC_"
	textSuffix = "##"
)

// TextCodec renders each header as a single line:
//
//	##TSYNC_NAME=archive.zip##\n
type TextCodec struct {
	MaxRecordSize int
}

func (c *TextCodec) Format() Format { return FormatText }

func (c *TextCodec) Encode(h Header) ([]byte, error) {
	var value string
	switch v := h.(type) {
	case Name:
		if strings.ContainsAny(string(v), "\r\n") {
			return nil, fmt.Errorf("name %q cannot be sent in text format", string(v))
		}
		value = string(v)
	case Pieces:
		value = strconv.FormatUint(uint64(v), 10)
	case ID:
		value = strconv.FormatUint(uint64(v), 10)
	case Size:
		value = strconv.FormatUint(uint64(v), 10)
	case Checksum:
		value = strconv.FormatUint(uint64(v), 10)
	default:
		return nil, fmt.Errorf("cannot encode header %T", h)
	}

	line := textPrefix + h.Kind().String() + "=" + value + textSuffix + "\n"
	if len(line) > c.maxRecordSize() {
		return nil, fmt.Errorf("%s record is %d bytes, limit is %d", h.Kind(), len(line), c.maxRecordSize())
	}
	return []byte(line), nil
}

func (c *TextCodec) Decode(r ByteSource) (Header, error) {
	line, err := c.readLine(r)
	if err != nil {
		return nil, err
	}
	return parseLine(line)
}

// readLine reads up to and including '\n' and returns the line without it.
func (c *TextCodec) readLine(r ByteSource) (string, error) {
	var b strings.Builder
	for {
		ch, err := r.ReadByte()
		if err != nil {
			if err == io.EOF {
				if b.Len() == 0 {
					return "", io.EOF
				}
				return "", io.ErrUnexpectedEOF
			}
			return "", err
		}
		if ch == '\n' {
			return strings.TrimSuffix(b.String(), "\r"), nil
		}
		if b.Len()+1 >= c.maxRecordSize() {
			return "", malformed("line exceeds %d bytes", c.maxRecordSize())
		}
		b.WriteByte(ch)
	}
}

func (c *TextCodec) maxRecordSize() int {
	if c.MaxRecordSize <= 0 {
		return DefaultMaxRecordSize
	}
	return c.MaxRecordSize
}

func parseLine(line string) (Header, error) {
	if !strings.HasPrefix(line, textPrefix) {
		return nil, malformed("missing %q prefix", textPrefix)
	}
	if len(line) < len(textPrefix)+len(textSuffix) || !strings.HasSuffix(line, textSuffix) {
		return nil, malformed("missing %q suffix", textSuffix)
	}

	pair := line[len(textPrefix) : len(line)-len(textSuffix)]
	tag, value, ok := strings.Cut(pair, "=")
	if !ok {
		return nil, malformed("missing '=' in %q", pair)
	}

	k, ok := kindFromTag(tag)
	if !ok {
		return nil, &UnknownTagError{Tag: tag}
	}
	if k == KindName {
		return Name(value), nil
	}

	v, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return nil, malformed("invalid %s value %q", k, value)
	}
	h, _ := numeric(k, v)
	return h, nil
}
