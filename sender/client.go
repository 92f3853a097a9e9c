package sender

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"tarun-kavipurapu/tsync/pkg/history"
	"tarun-kavipurapu/tsync/pkg/logger"
	"tarun-kavipurapu/tsync/pkg/monitor"
	"tarun-kavipurapu/tsync/pkg/transfer"
	"tarun-kavipurapu/tsync/pkg/transport/tcp"
)

type Config struct {
	DialTimeout time.Duration
	Transfer    transfer.Options

	// History, when set, records every sent file.
	History *history.Store
}

func DefaultConfig() Config {
	return Config{
		DialTimeout: 10 * time.Second,
		Transfer:    transfer.DefaultOptions(),
	}
}

// Dialer opens the stream a Client sends over.
type Dialer interface {
	Dial(addr string) (net.Conn, error)
}

// Client sends files to a receiver, one connection per call.
type Client struct {
	cfg    Config
	dialer Dialer
	log    *zap.SugaredLogger
}

func NewClient(cfg Config) *Client {
	log := cfg.Transfer.Logger
	if log == nil {
		log = logger.Sugar
	}
	trans := tcp.NewTCPTransport("")
	trans.DialTimeout = cfg.DialTimeout
	trans.Logger = log
	return &Client{cfg: cfg, dialer: trans, log: log}
}

// WithDialer replaces the TCP dialer.
func (c *Client) WithDialer(d Dialer) *Client {
	c.dialer = d
	return c
}

// SendFile sends one file to host:port.
func (c *Client) SendFile(path, host string, port int) error {
	return c.SendFiles(net.JoinHostPort(host, strconv.Itoa(port)), path)
}

// SendFiles sends every path, in order, over a single connection to addr.
// The first failure aborts the rest.
func (c *Client) SendFiles(addr string, paths ...string) (err error) {
	if len(paths) == 0 {
		return fmt.Errorf("no files to send")
	}

	conn, err := c.dialer.Dial(addr)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, conn.Close())
	}()
	c.log.Infof("[Sender] connected: remote=%s files=%d", addr, len(paths))

	opts := c.cfg.Transfer
	opts.Logger = c.log
	observers := []transfer.Observer{opts.Observer, monitor.Global.SendObserver()}
	if c.cfg.History != nil {
		observers = append(observers, c.cfg.History.Observer(history.Sent, addr))
	}
	opts.Observer = transfer.Observers(observers...)

	w := transfer.NewWriter(conn, opts)
	for _, path := range paths {
		if _, err := w.Send(path); err != nil {
			return fmt.Errorf("send %s to %s: %w", path, addr, err)
		}
	}
	return nil
}
