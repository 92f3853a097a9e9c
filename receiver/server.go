package receiver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"tarun-kavipurapu/tsync/pkg/discovery"
	"tarun-kavipurapu/tsync/pkg/history"
	"tarun-kavipurapu/tsync/pkg/logger"
	"tarun-kavipurapu/tsync/pkg/monitor"
	"tarun-kavipurapu/tsync/pkg/protocol"
	"tarun-kavipurapu/tsync/pkg/transfer"
	"tarun-kavipurapu/tsync/pkg/transport"
	"tarun-kavipurapu/tsync/pkg/transport/tcp"
)

const recentLimit = 10

type Config struct {
	Address string
	Port    int
	// Dir receives every file.
	Dir string

	// Advertise announces the server over mDNS as InstanceName.
	Advertise    bool
	InstanceName string

	// HistoryPath is the sqlite ledger. Empty disables history.
	HistoryPath string

	// MetricsInterval > 0 logs metrics periodically.
	MetricsInterval time.Duration

	Transfer transfer.Options
}

func DefaultConfig() Config {
	return Config{
		Address:  "0.0.0.0",
		Port:     8080,
		Dir:      ".",
		Transfer: transfer.DefaultOptions(),
	}
}

// Server accepts connections one at a time and feeds each stream into a
// transfer.Reader writing into Config.Dir.
type Server struct {
	cfg        Config
	Transport  transport.Transport
	advertiser *discovery.Advertiser
	history    *history.Store
	metrics    *monitor.Metrics
	log        *zap.SugaredLogger

	mu       sync.Mutex
	conn     net.Conn
	reader   *transfer.Reader
	recent   []transfer.Result
	stopOnce sync.Once
	quitCh   chan struct{}
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Dir == "" {
		cfg.Dir = "."
	}
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("destination directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("destination %s is not a directory", cfg.Dir)
	}

	log := cfg.Transfer.Logger
	if log == nil {
		log = logger.Sugar
	}

	addr := net.JoinHostPort(cfg.Address, strconv.Itoa(cfg.Port))
	trans := tcp.NewTCPTransport(addr)
	trans.Logger = log

	s := &Server{
		cfg:        cfg,
		Transport:  trans,
		advertiser: discovery.NewAdvertiser(),
		metrics:    monitor.Global,
		log:        log,
		quitCh:     make(chan struct{}),
	}

	if cfg.HistoryPath != "" {
		s.history, err = history.Open(cfg.HistoryPath)
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Listen binds the listening socket. Start calls it if needed.
func (s *Server) Listen() error {
	return s.Transport.Listen()
}

// Start runs the accept loop. It returns only on a bind or accept failure,
// or with nil after Stop.
func (s *Server) Start() error {
	defer s.closeHistory()

	if err := s.Listen(); err != nil {
		return err
	}
	s.log.Infof("[Receiver] [%s] starting receiver: dir=%s", s.Transport.Addr(), s.cfg.Dir)

	if s.cfg.Advertise {
		s.advertise()
	}
	if s.cfg.MetricsInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go s.metrics.LogPeriodic(ctx, s.cfg.MetricsInterval)
	}

	err := s.Transport.Serve(s.handleConn)
	s.log.Info("[Receiver] stopped")
	return err
}

func (s *Server) advertise() {
	_, portStr, err := net.SplitHostPort(s.Transport.Addr())
	if err != nil {
		s.log.Errorf("[Receiver] Failed to parse address: %v", err)
		return
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return
	}
	meta := map[string]string{
		"version": strconv.Itoa(int(protocol.Version)),
		"type":    "receiver",
	}
	if err := s.advertiser.Start(s.cfg.InstanceName, port, meta); err != nil {
		s.log.Errorf("[Receiver] Failed to start mDNS advertisement: %v", err)
		return
	}
	s.log.Infof("[Receiver] mDNS advertisement started on port %d", port)
}

// handleConn drives one connection's stream to completion.
func (s *Server) handleConn(conn net.Conn) error {
	remote := conn.RemoteAddr().String()
	s.metrics.Connections.Add(1)

	opts := s.cfg.Transfer
	observers := []transfer.Observer{opts.Observer, s.metrics.ReceiveObserver(), recentObserver{s}}
	if s.history != nil {
		observers = append(observers, s.history.Observer(history.Received, remote))
	}
	opts.Observer = transfer.Observers(observers...)
	opts.Logger = s.log.With("remote", remote)

	r := transfer.NewReader(conn, transfer.DirSink{Dir: s.cfg.Dir}, opts)

	s.mu.Lock()
	select {
	case <-s.quitCh:
		s.mu.Unlock()
		return nil
	default:
	}
	s.conn, s.reader = conn, r
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.conn, s.reader = nil, nil
		s.mu.Unlock()
	}()

	err := r.Run()
	if err != nil && s.stopping() && errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

type recentObserver struct{ s *Server }

func (o recentObserver) TransferStarted(protocol.FileMetadata) {}
func (o recentObserver) PieceDone(uint64, uint64)              {}

func (o recentObserver) TransferDone(res transfer.Result, err error) {
	if err != nil {
		return
	}
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	o.s.recent = append(o.s.recent, res)
	if len(o.s.recent) > recentLimit {
		o.s.recent = o.s.recent[len(o.s.recent)-recentLimit:]
	}
}

// Recent returns the last successfully received files, oldest first.
func (s *Server) Recent() []transfer.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]transfer.Result(nil), s.recent...)
}

// History is nil unless Config.HistoryPath is set.
func (s *Server) History() *history.Store { return s.history }

func (s *Server) Addr() string { return s.Transport.Addr() }

func (s *Server) GetStatus() string {
	snap := s.metrics.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "tsync receiver running on: %s\n", s.Transport.Addr())
	fmt.Fprintf(&b, "Directory: %s\n", s.cfg.Dir)
	if s.conn != nil {
		fmt.Fprintf(&b, "Connection: %s (%s)\n", s.conn.RemoteAddr(), s.reader.State())
	} else {
		b.WriteString("Connection: idle\n")
	}
	fmt.Fprintf(&b, "Received: %d files, %s\n", snap.FilesReceived, humanize.IBytes(snap.BytesReceived))
	fmt.Fprintf(&b, "Failures: %d  Short writes: %d  Connections: %d\n", snap.Failures, snap.ShortWrites, snap.Connections)
	for _, r := range s.recent {
		fmt.Fprintf(&b, " - %s: %s in %d pieces (%s)\n", r.Name, humanize.IBytes(r.Bytes), r.Pieces, r.Duration.Round(time.Millisecond))
	}
	return b.String()
}

func (s *Server) stopping() bool {
	select {
	case <-s.quitCh:
		return true
	default:
		return false
	}
}

// Stop closes the listener and any connection being served.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		close(s.quitCh)
		conn := s.conn
		s.mu.Unlock()

		s.advertiser.Stop()
		err := s.Transport.Close()
		if conn != nil {
			err = multierr.Append(err, conn.Close())
		}
		if err != nil {
			s.log.Warnf("[Receiver] stop: %v", err)
		}
	})
}

func (s *Server) closeHistory() {
	if s.history == nil {
		return
	}
	if err := s.history.Close(); err != nil {
		s.log.Warnf("[Receiver] close history: %v", err)
	}
}
