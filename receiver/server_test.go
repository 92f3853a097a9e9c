package receiver

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"tarun-kavipurapu/tsync/pkg/history"
	"tarun-kavipurapu/tsync/sender"
)

func startServer(t *testing.T, cfg Config) (*Server, <-chan error) {
	t.Helper()
	s, err := NewServer(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Listen())

	done := make(chan error, 1)
	go func() { done <- s.Start() }()
	return s, done
}

func testConfig(t *testing.T) Config {
	cfg := DefaultConfig()
	cfg.Address = "127.0.0.1"
	cfg.Port = 0
	cfg.Dir = t.TempDir()
	cfg.Transfer.Logger = zaptest.NewLogger(t).Sugar()
	return cfg
}

func stopServer(t *testing.T, s *Server, done <-chan error) {
	t.Helper()
	s.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func sendFiles(t *testing.T, addr string, paths ...string) {
	t.Helper()
	cfg := sender.DefaultConfig()
	cfg.Transfer.PieceLength = 1024
	cfg.Transfer.Logger = zaptest.NewLogger(t).Sugar()
	require.NoError(t, sender.NewClient(cfg).SendFiles(addr, paths...))
}

func TestServerReceivesFiles(t *testing.T) {
	cfg := testConfig(t)
	cfg.HistoryPath = filepath.Join(t.TempDir(), "history.db")
	s, done := startServer(t, cfg)

	src := t.TempDir()
	big := filepath.Join(src, "big.bin")
	small := filepath.Join(src, "small.txt")
	bigData := make([]byte, 5000)
	for i := range bigData {
		bigData[i] = byte(i % 251)
	}
	require.NoError(t, os.WriteFile(big, bigData, 0o644))
	require.NoError(t, os.WriteFile(small, []byte("hi"), 0o644))

	sendFiles(t, s.Addr(), big, small)

	require.Eventually(t, func() bool { return len(s.Recent()) == 2 }, 5*time.Second, 10*time.Millisecond)

	got, err := os.ReadFile(filepath.Join(cfg.Dir, "big.bin"))
	require.NoError(t, err)
	assert.Equal(t, bigData, got)

	recent := s.Recent()
	assert.Equal(t, "big.bin", recent[0].Name)
	assert.Equal(t, uint64(5), recent[0].Pieces)
	assert.Contains(t, s.GetStatus(), "small.txt")

	stopServer(t, s, done)

	store, err := history.Open(cfg.HistoryPath)
	require.NoError(t, err)
	defer store.Close()
	rows, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "small.txt", rows[0].Name)
	assert.Equal(t, history.Received, rows[0].Direction)
}

func TestServerSurvivesBadConnection(t *testing.T) {
	cfg := testConfig(t)
	s, done := startServer(t, cfg)

	conn, err := net.Dial("tcp", s.Addr())
	require.NoError(t, err)
	_, err = conn.Write([]byte("this is not a tsync stream"))
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	src := filepath.Join(t.TempDir(), "after.txt")
	require.NoError(t, os.WriteFile(src, []byte("still serving"), 0o644))
	sendFiles(t, s.Addr(), src)

	require.Eventually(t, func() bool { return len(s.Recent()) == 1 }, 5*time.Second, 10*time.Millisecond)
	got, err := os.ReadFile(filepath.Join(cfg.Dir, "after.txt"))
	require.NoError(t, err)
	assert.Equal(t, "still serving", string(got))

	stopServer(t, s, done)
}

func TestStopInterruptsConnection(t *testing.T) {
	s, done := startServer(t, testConfig(t))

	conn, err := net.Dial("tcp", s.Addr())
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.conn != nil
	}, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, s.GetStatus(), "awaiting-metadata")

	stopServer(t, s, done)
}

func TestNewServerRejectsMissingDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.Dir = filepath.Join(cfg.Dir, "nope")
	_, err := NewServer(cfg)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
