package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const maxDatagram = 64 * 1024

// UDPLink is a datagram link. A listening link answers whichever peer sent the most recent
// frame; a dialed link talks to one fixed address.
type UDPLink struct {
	conn    *net.UDPConn
	timeout time.Duration
	dialed  bool

	mu   sync.Mutex
	peer *net.UDPAddr
	buf  []byte
}

// ListenUDP opens a link on a local address such as ":6510".
func ListenUDP(addr string, timeout time.Duration) (*UDPLink, error) {
	local, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve %s", addr)
	}
	conn, err := net.ListenUDP("udp", local)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on %s", addr)
	}
	return &UDPLink{conn: conn, timeout: timeout, buf: make([]byte, maxDatagram)}, nil
}

// DialUDP opens a link to a remote address.
func DialUDP(addr string, timeout time.Duration) (*UDPLink, error) {
	remote, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve %s", addr)
	}
	conn, err := net.DialUDP("udp", nil, remote)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial %s", addr)
	}
	return &UDPLink{conn: conn, timeout: timeout, dialed: true, buf: make([]byte, maxDatagram)}, nil
}

// LocalAddr returns the bound address, useful after listening on port 0.
func (l *UDPLink) LocalAddr() net.Addr {
	return l.conn.LocalAddr()
}

func (l *UDPLink) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	deadline := time.Now().Add(l.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := l.conn.SetReadDeadline(deadline); err != nil {
		return nil, errors.Wrap(err, "failed to set read deadline")
	}

	n, from, err := l.conn.ReadFromUDP(l.buf)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ErrTimeout
		}
		if errors.Is(err, net.ErrClosed) {
			return nil, ErrClosed
		}
		return nil, errors.Wrap(err, "failed to read datagram")
	}
	if !l.dialed {
		l.mu.Lock()
		l.peer = from
		l.mu.Unlock()
	}
	return append([]byte(nil), l.buf[:n]...), nil
}

func (l *UDPLink) Write(frame []byte) error {
	var err error
	if l.dialed {
		_, err = l.conn.Write(frame)
	} else {
		l.mu.Lock()
		peer := l.peer
		l.mu.Unlock()
		if peer == nil {
			return errors.New("no peer has sent feedback yet")
		}
		_, err = l.conn.WriteToUDP(frame, peer)
	}
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return ErrClosed
		}
		return errors.Wrap(err, "failed to write datagram")
	}
	return nil
}

func (l *UDPLink) Close() error {
	return l.conn.Close()
}
