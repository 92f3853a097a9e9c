package transport

import "net"

// Handler consumes one connection's entire byte stream. The transport closes
// the connection after Handler returns.
type Handler func(conn net.Conn) error

// Transport handles the network layer
type Transport interface {
	// Listen binds the listening socket.
	Listen() error
	// Serve accepts connections one at a time and runs h on each before
	// accepting the next. It returns nil after Close.
	Serve(h Handler) error
	Dial(addr string) (net.Conn, error)
	Close() error
	Addr() string
}
