package history

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tarun-kavipurapu/tsync/pkg/transfer"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndList(t *testing.T) {
	s := openMemory(t)

	require.NoError(t, s.Record(&Transfer{Direction: Received, Name: "a.bin", Bytes: 10}))
	require.NoError(t, s.Record(&Transfer{Direction: Received, Name: "b.bin", Bytes: 20}))
	require.NoError(t, s.Record(&Transfer{Direction: Sent, Name: "c.bin", Bytes: 30}))

	all, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c.bin", all[0].Name)
	assert.Equal(t, "a.bin", all[2].Name)
	assert.False(t, all[0].CreatedAt.IsZero())

	latest, err := s.List(2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "b.bin", latest[1].Name)
}

func TestObserverRecords(t *testing.T) {
	s := openMemory(t)

	obs := s.Observer(Received, "10.0.0.7:50122")
	obs.TransferDone(transfer.Result{
		Name:      "movie.mkv",
		Path:      "/srv/in/movie.mkv",
		Pieces:    3,
		Bytes:     2500,
		Checksums: true,
		Duration:  1500 * time.Millisecond,
	}, nil)
	obs.TransferDone(transfer.Result{Name: "broken.iso", Pieces: 9}, errors.New("checksum mismatch"))

	rows, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "broken.iso", rows[0].Name)
	assert.True(t, rows[0].Failed())
	assert.Equal(t, "checksum mismatch", rows[0].Error)

	ok := rows[1]
	assert.False(t, ok.Failed())
	assert.Equal(t, Received, ok.Direction)
	assert.Equal(t, "10.0.0.7:50122", ok.Remote)
	assert.Equal(t, uint64(2500), ok.Bytes)
	assert.Equal(t, int64(1500), ok.DurationMs)
	assert.True(t, ok.Checksums)
}

func TestOpenFilePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tsync.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Record(&Transfer{Direction: Sent, Name: "kept.txt"}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	rows, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "kept.txt", rows[0].Name)
}
