package transport

import (
	"bytes"
	"context"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
)

// SerialLink carries newline-terminated frames over a serial port, for bench setups where the
// controller stand-in is a microcontroller on USB.
type SerialLink struct {
	port    serial.Port
	timeout time.Duration
	pending []byte
	chunk   []byte
}

// OpenSerial opens portName at baudrate, 8N1.
func OpenSerial(portName string, baudrate int, timeout time.Duration) (*SerialLink, error) {
	mode := &serial.Mode{
		BaudRate: baudrate,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open serial port %s", portName)
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, errors.Wrapf(err, "failed to set read timeout on %s", portName)
	}
	return &SerialLink{port: port, timeout: timeout, chunk: make([]byte, 4096)}, nil
}

func (l *SerialLink) Read(ctx context.Context) ([]byte, error) {
	deadline := time.Now().Add(l.timeout)
	for {
		if i := bytes.IndexByte(l.pending, '\n'); i >= 0 {
			frame := append([]byte(nil), l.pending[:i]...)
			l.pending = l.pending[i+1:]
			if len(bytes.TrimSpace(frame)) == 0 {
				continue
			}
			return frame, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, ErrTimeout
		}

		n, err := l.port.Read(l.chunk)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read serial port")
		}
		if n == 0 {
			// The port's read timeout expired.
			return nil, ErrTimeout
		}
		l.pending = append(l.pending, l.chunk[:n]...)
	}
}

func (l *SerialLink) Write(frame []byte) error {
	buf := make([]byte, 0, len(frame)+1)
	buf = append(buf, frame...)
	buf = append(buf, '\n')
	if _, err := l.port.Write(buf); err != nil {
		return errors.Wrap(err, "failed to write serial port")
	}
	return nil
}

func (l *SerialLink) Close() error {
	return l.port.Close()
}
