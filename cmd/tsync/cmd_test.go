package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tarun-kavipurapu/tsync/pkg/history"
	"tarun-kavipurapu/tsync/pkg/protocol"
	"tarun-kavipurapu/tsync/pkg/transfer"
)

func withSendFlags(t *testing.T, size, format string, noSum bool) {
	t.Helper()
	oldSize, oldFormat, oldSum, oldProgress := pieceSize, wireFormat, noChecksum, showProgress
	t.Cleanup(func() {
		pieceSize, wireFormat, noChecksum, showProgress = oldSize, oldFormat, oldSum, oldProgress
	})
	pieceSize, wireFormat, noChecksum, showProgress = size, format, noSum, false
}

func TestSenderConfig(t *testing.T) {
	withSendFlags(t, "4MiB", "text", true)

	cfg, err := senderConfig()
	require.NoError(t, err)
	assert.Equal(t, uint64(4<<20), cfg.Transfer.PieceLength)
	assert.Equal(t, protocol.FormatText, cfg.Transfer.Format)
	assert.False(t, cfg.Transfer.Checksums)
}

func TestSenderConfigDefaults(t *testing.T) {
	withSendFlags(t, "1MiB", "binary", false)

	cfg, err := senderConfig()
	require.NoError(t, err)
	assert.Equal(t, uint64(transfer.DefaultPieceLength), cfg.Transfer.PieceLength)
	assert.Equal(t, protocol.FormatBinary, cfg.Transfer.Format)
	assert.True(t, cfg.Transfer.Checksums)
}

func TestSenderConfigRejects(t *testing.T) {
	cases := []struct {
		name, size, format string
	}{
		{"bad size", "lots", "binary"},
		{"zero size", "0", "binary"},
		{"too large", "1GiB", "binary"},
		{"bad format", "1MiB", "json"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			withSendFlags(t, tc.size, tc.format, false)
			_, err := senderConfig()
			assert.Error(t, err)
		})
	}
}

func TestCpRejectsBadDestination(t *testing.T) {
	withSendFlags(t, "1MiB", "binary", false)

	err := cpCmd.RunE(cpCmd, []string{"a.txt", "no-port-here"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no-port-here")
}

func TestPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	printHistory(&buf, nil)
	assert.Equal(t, "No transfers recorded.\n", buf.String())

	buf.Reset()
	printHistory(&buf, []history.Transfer{
		{Direction: history.Received, Name: "a.zip", Bytes: 2048, Pieces: 2, Remote: "10.0.0.2:5000", DurationMs: 1500, CreatedAt: time.Now()},
		{Direction: history.Received, Name: "b.zip", Error: "checksum mismatch", CreatedAt: time.Now()},
	})
	out := buf.String()
	assert.Contains(t, out, "a.zip")
	assert.Contains(t, out, "2.0 KiB")
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "ok")
	assert.Contains(t, out, "failed: checksum mismatch")
}

func TestFlagShorthands(t *testing.T) {
	port := serverCmd.Flags().ShorthandLookup("p")
	require.NotNil(t, port)
	assert.Equal(t, "port", port.Name)
	assert.Equal(t, "8080", port.DefValue)

	require.NotNil(t, cpCmd.Flags().Lookup("history"))
	require.NotNil(t, serverCmd.Flags().Lookup("history"))
}
