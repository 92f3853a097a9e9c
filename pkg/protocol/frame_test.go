package protocol

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreambleRoundTrip(t *testing.T) {
	for _, p := range []Preamble{
		NewPreamble(FormatBinary, true),
		NewPreamble(FormatText, false),
	} {
		var buf bytes.Buffer
		require.NoError(t, WritePreamble(&buf, p))
		assert.Equal(t, PreambleSize, buf.Len())

		got, err := ReadPreamble(&buf)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
}

func TestPreambleLayout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePreamble(&buf, NewPreamble(FormatText, true)))
	assert.Equal(t, []byte{'T', 'S', 'Y', 'N', 1, 2, 1, 0}, buf.Bytes())
}

func TestReadPreambleErrors(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		err   error
	}{
		{"empty", nil, io.EOF},
		{"short", []byte{'T', 'S', 'Y'}, io.ErrUnexpectedEOF},
		{"bad magic", []byte{'H', 'T', 'T', 'P', 1, 1, 0, 0}, ErrBadPreamble},
		{"future version", []byte{'T', 'S', 'Y', 'N', 2, 1, 0, 0}, ErrUnsupportedVersion},
		{"unknown format", []byte{'T', 'S', 'Y', 'N', 1, 9, 0, 0}, ErrBadPreamble},
		{"unknown flag", []byte{'T', 'S', 'Y', 'N', 1, 1, 0x80, 0}, ErrBadPreamble},
		{"reserved set", []byte{'T', 'S', 'Y', 'N', 1, 1, 0, 1}, ErrBadPreamble},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadPreamble(bytes.NewReader(tt.input))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
