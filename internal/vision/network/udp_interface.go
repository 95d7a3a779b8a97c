package network

import (
	"net"
	"time"
)

// UDPSocket is the slice of *net.UDPConn the listener needs. The indirection
// lets tests drive the read loop without opening real sockets.
type UDPSocket interface {
	// ReadFromUDP reads one datagram from the socket.
	ReadFromUDP(b []byte) (n int, addr *net.UDPAddr, err error)

	// SetReadBuffer sets the size of the operating system's receive buffer.
	SetReadBuffer(bytes int) error

	// SetReadDeadline sets the deadline for future Read calls.
	SetReadDeadline(t time.Time) error

	// Close closes the socket.
	Close() error

	// LocalAddr returns the local network address.
	LocalAddr() net.Addr
}

// UDPSocketFactory creates UDP sockets, injectable for tests.
type UDPSocketFactory interface {
	ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error)
}

// RealUDPSocket wraps *net.UDPConn to implement UDPSocket.
type RealUDPSocket struct {
	conn *net.UDPConn
}

// NewRealUDPSocket wraps an existing *net.UDPConn.
func NewRealUDPSocket(conn *net.UDPConn) *RealUDPSocket {
	return &RealUDPSocket{conn: conn}
}

func (r *RealUDPSocket) ReadFromUDP(b []byte) (n int, addr *net.UDPAddr, err error) {
	return r.conn.ReadFromUDP(b)
}

func (r *RealUDPSocket) SetReadBuffer(bytes int) error {
	return r.conn.SetReadBuffer(bytes)
}

func (r *RealUDPSocket) SetReadDeadline(t time.Time) error {
	return r.conn.SetReadDeadline(t)
}

func (r *RealUDPSocket) Close() error {
	return r.conn.Close()
}

func (r *RealUDPSocket) LocalAddr() net.Addr {
	return r.conn.LocalAddr()
}

// RealUDPSocketFactory implements UDPSocketFactory using net.ListenUDP.
type RealUDPSocketFactory struct{}

// ListenUDP opens a real UDP socket.
func (f *RealUDPSocketFactory) ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error) {
	conn, err := net.ListenUDP(network, laddr)
	if err != nil {
		return nil, err
	}
	return NewRealUDPSocket(conn), nil
}

// MockUDPSocket implements UDPSocket for tests: it plays back a fixed packet
// sequence, then times out like an idle socket.
type MockUDPSocket struct {
	// Packets holds the datagrams to return from ReadFromUDP, in order.
	Packets [][]byte
	// ReadIndex tracks the current position in Packets.
	ReadIndex int
	// Closed indicates whether Close was called.
	Closed bool
	// ReadBufferSize holds the value set by SetReadBuffer.
	ReadBufferSize int
	// ReadDeadline holds the value set by SetReadDeadline.
	ReadDeadline time.Time
	// RemoteAddress is reported as the sender of every packet.
	RemoteAddress *net.UDPAddr
	// SetReadBufferError is returned by SetReadBuffer if set.
	SetReadBufferError error
}

// NewMockUDPSocket creates a mock socket that plays back the given datagrams.
func NewMockUDPSocket(packets [][]byte) *MockUDPSocket {
	return &MockUDPSocket{
		Packets:       packets,
		RemoteAddress: &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 4040},
	}
}

func (m *MockUDPSocket) ReadFromUDP(b []byte) (n int, addr *net.UDPAddr, err error) {
	if m.Closed {
		return 0, nil, net.ErrClosed
	}
	if m.ReadIndex >= len(m.Packets) {
		// Simulate timeout when no more packets
		return 0, nil, &net.OpError{Op: "read", Net: "udp", Err: &timeoutError{}}
	}
	pkt := m.Packets[m.ReadIndex]
	m.ReadIndex++
	n = copy(b, pkt)
	return n, m.RemoteAddress, nil
}

func (m *MockUDPSocket) SetReadBuffer(bytes int) error {
	if m.SetReadBufferError != nil {
		return m.SetReadBufferError
	}
	m.ReadBufferSize = bytes
	return nil
}

func (m *MockUDPSocket) SetReadDeadline(t time.Time) error {
	m.ReadDeadline = t
	return nil
}

func (m *MockUDPSocket) Close() error {
	m.Closed = true
	return nil
}

func (m *MockUDPSocket) LocalAddr() net.Addr {
	return &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 4040}
}

// MockUDPSocketFactory implements UDPSocketFactory for tests.
type MockUDPSocketFactory struct {
	// Socket is the socket returned from ListenUDP.
	Socket *MockUDPSocket
	// Error is returned by ListenUDP if set.
	Error error
	// ListenCalls counts ListenUDP invocations.
	ListenCalls int
}

// ListenUDP returns the configured mock socket.
func (f *MockUDPSocketFactory) ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error) {
	f.ListenCalls++
	if f.Error != nil {
		return nil, f.Error
	}
	return f.Socket, nil
}

// timeoutError implements net.Error for timeout simulation.
type timeoutError struct{}

func (e *timeoutError) Error() string   { return "i/o timeout" }
func (e *timeoutError) Timeout() bool   { return true }
func (e *timeoutError) Temporary() bool { return true }
