package protocol

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codecs(t *testing.T) []Codec {
	t.Helper()
	var out []Codec
	for _, f := range []Format{FormatBinary, FormatText} {
		c, err := CodecFor(f, 0)
		require.NoError(t, err)
		out = append(out, c)
	}
	return out
}

func TestCodecRoundTrip(t *testing.T) {
	headers := []Header{
		Name("archive.zip"),
		Name("key=value=more.txt"),
		Name(""),
		Name("файл.bin"),
		Pieces(0),
		Pieces(1 << 40),
		ID(0),
		ID(488),
		Size(0),
		Size(1 << 20),
		Checksum(0),
		Checksum(^uint64(0)),
	}

	for _, c := range codecs(t) {
		t.Run(c.Format().String(), func(t *testing.T) {
			var buf bytes.Buffer
			for _, h := range headers {
				require.NoError(t, WriteRecord(&buf, c, h))
			}

			r := bytes.NewReader(buf.Bytes())
			for _, want := range headers {
				got, err := c.Decode(r)
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}

			_, err := c.Decode(r)
			assert.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestBinaryEncodingLayout(t *testing.T) {
	c := &BinaryCodec{}

	b, err := c.Encode(Name("a.zip"))
	require.NoError(t, err)
	assert.Equal(t, []byte{7, 0, 0, 0, 0x0a, 5, 'a', '.', 'z', 'i', 'p'}, b)

	b, err = c.Encode(ID(300))
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 0, 0, 0, 0x18, 0xac, 0x02}, b)

	b, err = c.Encode(Checksum(1))
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 0, 0, 0, 0x29, 1, 0, 0, 0, 0, 0, 0, 0}, b)
}

func TestTextEncodingLayout(t *testing.T) {
	c := &TextCodec{}

	b, err := c.Encode(Name("notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "##TSYNC_NAME=notes.txt##\n", string(b))

	b, err = c.Encode(Size(1024))
	require.NoError(t, err)
	assert.Equal(t, "##TSYNC_SIZE=1024##\n", string(b))
}

func TestTextDecodeLines(t *testing.T) {
	tests := []struct {
		line     string
		expected Header
	}{
		{"##TSYNC_ID=488##\n", ID(488)},
		{"##TSYNC_PIECES=3##\n", Pieces(3)},
		{"##TSYNC_SIZE=0##\n", Size(0)},
		{"##TSYNC_NAME=a=b##\n", Name("a=b")},
		{"##TSYNC_NAME=##\n", Name("")},
		{"##TSYNC_CHECKSUM=18446744073709551615##\n", Checksum(^uint64(0))},
		{"##TSYNC_ID=7##\r\n", ID(7)},
	}

	c := &TextCodec{}
	for _, tt := range tests {
		got, err := c.Decode(bufio.NewReader(strings.NewReader(tt.line)))
		require.NoError(t, err, tt.line)
		assert.Equal(t, tt.expected, got, tt.line)
	}
}

func TestTextDecodeMalformed(t *testing.T) {
	lines := []string{
		"TSYNC_ID=1##\n",
		"##TSYNC_ID=1\n",
		"##TSYNC_ID1##\n",
		"##TSYNC_ID=-1##\n",
		"##TSYNC_ID=abc##\n",
		"##TSYNC_SIZE=18446744073709551616##\n",
		"##TSYNC_##\n",
		"####\n",
	}

	c := &TextCodec{}
	for _, line := range lines {
		_, err := c.Decode(bufio.NewReader(strings.NewReader(line)))
		assert.ErrorIs(t, err, ErrMalformed, line)
	}
}

func TestUnknownTag(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		c := &TextCodec{}
		_, err := c.Decode(bufio.NewReader(strings.NewReader("##TSYNC_FOO=1##\n")))

		var unknown *UnknownTagError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "FOO", unknown.Tag)
		assert.ErrorIs(t, err, ErrMalformed)
		assert.Contains(t, err.Error(), "FOO")
	})

	t.Run("binary", func(t *testing.T) {
		c := &BinaryCodec{}
		good, err := c.Encode(ID(5))
		require.NoError(t, err)

		// field 9, varint 1
		stream := append([]byte{2, 0, 0, 0, 0x48, 0x01}, good...)
		r := bytes.NewReader(stream)

		_, err = c.Decode(r)
		var unknown *UnknownTagError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "9", unknown.Tag)

		// the bad record was consumed whole; the next one still parses
		assert.Equal(t, len(good), r.Len())
		h, err := c.Decode(r)
		require.NoError(t, err)
		assert.Equal(t, ID(5), h)
	})
}

func TestBinaryDecodeMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"empty record", []byte{0, 0, 0, 0}},
		{"too large", []byte{0xff, 0xff, 0xff, 0x7f}},
		{"wrong wire type", []byte{2, 0, 0, 0, 0x1a, 0x00}},
		{"truncated varint", []byte{2, 0, 0, 0, 0x18, 0x80}},
		{"trailing bytes", []byte{3, 0, 0, 0, 0x18, 0x01, 0x01}},
		{"name length overflow", []byte{3, 0, 0, 0, 0x0a, 0x05, 'a'}},
		{"field zero", []byte{2, 0, 0, 0, 0x00, 0x01}},
	}

	c := &BinaryCodec{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Decode(bytes.NewReader(tt.input))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestDecodeTruncated(t *testing.T) {
	for _, c := range codecs(t) {
		t.Run(c.Format().String(), func(t *testing.T) {
			b, err := c.Encode(Name("truncated.bin"))
			require.NoError(t, err)

			for cut := 1; cut < len(b); cut++ {
				_, err := c.Decode(bytes.NewReader(b[:cut]))
				assert.ErrorIs(t, err, io.ErrUnexpectedEOF, "cut at %d", cut)
			}

			_, err = c.Decode(bytes.NewReader(nil))
			assert.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestReadRecordKindMismatch(t *testing.T) {
	for _, c := range codecs(t) {
		t.Run(c.Format().String(), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteRecord(&buf, c, ID(3)))
			require.NoError(t, WriteRecord(&buf, c, Size(10)))
			r := bytes.NewReader(buf.Bytes())

			_, err := ReadRecord[Size](r, c)
			var mismatch *KindMismatchError
			require.ErrorAs(t, err, &mismatch)
			assert.Equal(t, KindSize, mismatch.Expected)
			assert.Equal(t, KindID, mismatch.Actual)
			assert.ErrorIs(t, err, ErrMalformed)

			size, err := ReadRecord[Size](r, c)
			require.NoError(t, err)
			assert.Equal(t, Size(10), size)
		})
	}
}

func TestMaxRecordSize(t *testing.T) {
	long := Name(strings.Repeat("x", 200))

	for _, f := range []Format{FormatBinary, FormatText} {
		c, err := CodecFor(f, 64)
		require.NoError(t, err)
		_, err = c.Encode(long)
		assert.Error(t, err, f.String())
	}

	big, err := (&TextCodec{}).Encode(long)
	require.NoError(t, err)
	_, err = (&TextCodec{MaxRecordSize: 64}).Decode(bytes.NewReader(big))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestTextEncodeRejectsNewline(t *testing.T) {
	_, err := (&TextCodec{}).Encode(Name("bad\nname"))
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("binary")
	require.NoError(t, err)
	assert.Equal(t, FormatBinary, f)

	f, err = ParseFormat(" TEXT ")
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)

	_, err = ParseFormat("json")
	assert.Error(t, err)
}
