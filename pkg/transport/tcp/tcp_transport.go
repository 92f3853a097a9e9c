package tcp

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"tarun-kavipurapu/tsync/pkg/logger"
	"tarun-kavipurapu/tsync/pkg/transport"
)

const (
	defaultSocketBuffer = 1024 * 1024
	defaultDialTimeout  = 10 * time.Second
	minAcceptDelay      = 5 * time.Millisecond
	maxAcceptDelay      = time.Second
)

var ErrNotListening = errors.New("transport is not listening")

// TCPTransport implements transport.Transport
type TCPTransport struct {
	listenAddr string

	mu       sync.Mutex
	listener net.Listener
	closed   bool

	// SocketBuffer sizes the kernel send and receive buffers of every
	// connection. Zero keeps the system default.
	SocketBuffer int
	DialTimeout  time.Duration
	Logger       *zap.SugaredLogger
}

var _ transport.Transport = (*TCPTransport)(nil)

func NewTCPTransport(addr string) *TCPTransport {
	return &TCPTransport{
		listenAddr:   addr,
		SocketBuffer: defaultSocketBuffer,
		DialTimeout:  defaultDialTimeout,
	}
}

// NewTCPTransportFromListener serves on an already bound listener.
func NewTCPTransportFromListener(l net.Listener) *TCPTransport {
	t := NewTCPTransport(l.Addr().String())
	t.listener = l
	return t
}

func (t *TCPTransport) log() *zap.SugaredLogger {
	if t.Logger != nil {
		return t.Logger
	}
	return logger.Sugar
}

func (t *TCPTransport) Listen() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.listener != nil {
		return nil
	}
	l, err := net.Listen("tcp", t.listenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", t.listenAddr, err)
	}
	t.listener = l
	return nil
}

func (t *TCPTransport) Serve(h transport.Handler) error {
	t.mu.Lock()
	l := t.listener
	t.mu.Unlock()
	if l == nil {
		return ErrNotListening
	}

	t.log().Infof("[TCPTransport] accepting connections: listen=%s", l.Addr())

	retry := newAcceptBackoff()
	for {
		conn, err := l.Accept()
		if err != nil {
			if t.isClosed() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				delay := retry.NextBackOff()
				t.log().Warnf("[TCPTransport] accept error: listen=%s err=%v retry=%s", l.Addr(), err, delay)
				time.Sleep(delay)
				continue
			}
			return fmt.Errorf("accept on %s: %w", l.Addr(), err)
		}
		retry.Reset()

		t.handleConn(conn, h)
	}
}

// newAcceptBackoff paces retries after temporary accept failures. It never
// gives up; only Close ends the loop.
func newAcceptBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = minAcceptDelay
	b.MaxInterval = maxAcceptDelay
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// handleConn runs h to completion. Errors end this connection only.
func (t *TCPTransport) handleConn(conn net.Conn, h transport.Handler) {
	defer conn.Close()

	remote := conn.RemoteAddr()
	t.tune(conn)
	t.log().Infof("[TCPTransport] peer connected: remote=%s", remote)

	if err := h(conn); err != nil {
		t.log().Errorf("[TCPTransport] connection failed: remote=%s err=%v", remote, err)
		return
	}
	t.log().Infof("[TCPTransport] peer disconnected: remote=%s", remote)
}

func (t *TCPTransport) Dial(addr string) (net.Conn, error) {
	timeout := t.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	t.tune(conn)
	return conn, nil
}

func (t *TCPTransport) tune(conn net.Conn) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	if err := tc.SetNoDelay(true); err != nil {
		t.log().Debugf("[TCPTransport] set nodelay: err=%v", err)
	}
	if err := tc.SetKeepAlive(true); err != nil {
		t.log().Debugf("[TCPTransport] set keepalive: err=%v", err)
	}
	if t.SocketBuffer > 0 {
		_ = tc.SetReadBuffer(t.SocketBuffer)
		_ = tc.SetWriteBuffer(t.SocketBuffer)
	}
}

func (t *TCPTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Close stops the accept loop. A connection being served is left to finish.
func (t *TCPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	if t.listener == nil {
		return nil
	}
	return t.listener.Close()
}

// Addr is the bound address once listening, the configured one before.
func (t *TCPTransport) Addr() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener != nil {
		return t.listener.Addr().String()
	}
	return t.listenAddr
}
