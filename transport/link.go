// Package transport carries feedback frames from a robot controller to the trajectory engine
// and reference frames back, over UDP or a serial bench link.
package transport

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrTimeout is returned by Link.Read when no frame arrived within the link's read timeout.
var ErrTimeout = errors.New("transport: read timed out")

// ErrClosed is returned by operations on a closed link.
var ErrClosed = errors.New("transport: link closed")

// Link moves whole frames. Read blocks until a frame arrives, the read timeout passes
// (ErrTimeout) or ctx is done.
type Link interface {
	Read(ctx context.Context) ([]byte, error)
	Write(frame []byte) error
	Close() error
}

// pipeLink is one end of an in-memory link.
type pipeLink struct {
	in      <-chan []byte
	out     chan<- []byte
	timeout time.Duration

	closeOnce sync.Once
	closed    chan struct{}
	peer      *pipeLink
}

// NewPipe returns two connected in-memory links. Frames written to one are read from the
// other; reads time out after timeout.
func NewPipe(timeout time.Duration) (Link, Link) {
	ab := make(chan []byte, 16)
	ba := make(chan []byte, 16)
	a := &pipeLink{in: ba, out: ab, timeout: timeout, closed: make(chan struct{})}
	b := &pipeLink{in: ab, out: ba, timeout: timeout, closed: make(chan struct{})}
	a.peer, b.peer = b, a
	return a, b
}

func (p *pipeLink) Read(ctx context.Context) ([]byte, error) {
	timer := time.NewTimer(p.timeout)
	defer timer.Stop()
	select {
	case frame := <-p.in:
		return frame, nil
	case <-timer.C:
		return nil, ErrTimeout
	case <-p.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *pipeLink) Write(frame []byte) error {
	buf := append([]byte(nil), frame...)
	select {
	case <-p.closed:
		return ErrClosed
	case <-p.peer.closed:
		return ErrClosed
	case p.out <- buf:
		return nil
	default:
		// A robot controller drops references it has no room for.
		return nil
	}
}

func (p *pipeLink) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}
