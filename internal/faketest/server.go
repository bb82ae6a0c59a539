// Package faketest provides a minimal in-process TCP server that speaks
// the cluster's frame protocol, so client-side tests can script exact
// request/response sequences without a real cluster. Grounded on the
// teacher's test/integration harness style: bring up a real listener on
// an ephemeral port, drive it from the test goroutine, and let the
// client under test dial it like any other instance.
package faketest

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/dreamware/hxc/internal/wire"
)

// Instance is one fake server endpoint. Callers Accept a connection then
// drive it explicitly with ReadFrame/WriteFrame.
type Instance struct {
	ln net.Listener
}

// Listen starts a fake instance on an ephemeral loopback port.
func Listen() (*Instance, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("faketest: listen: %w", err)
	}
	return &Instance{ln: ln}, nil
}

// Addr returns the host and port a Client should dial.
func (i *Instance) Addr() (string, uint16) {
	tcpAddr := i.ln.Addr().(*net.TCPAddr)
	return tcpAddr.IP.String(), uint16(tcpAddr.Port)
}

// Close stops accepting new connections.
func (i *Instance) Close() error {
	return i.ln.Close()
}

// Accept blocks until a client dials in and returns a Conn wrapping it.
func (i *Instance) Accept() (*Conn, error) {
	c, err := i.ln.Accept()
	if err != nil {
		return nil, fmt.Errorf("faketest: accept: %w", err)
	}
	return &Conn{c: c}, nil
}

// Conn is one accepted connection, offering frame-level read/write for
// test scripts.
type Conn struct {
	c net.Conn
}

// ReadFrame reads one full frame off the connection.
func (c *Conn) ReadFrame() (wire.Header, []byte, error) {
	head := make([]byte, 4)
	if _, err := readFull(c.c, head); err != nil {
		return wire.Header{}, nil, err
	}
	size := binary.BigEndian.Uint32(head)
	rest := make([]byte, size-4)
	if _, err := readFull(c.c, rest); err != nil {
		return wire.Header{}, nil, err
	}
	frame := append(head, rest...)
	return wire.Decode(frame)
}

// WriteFrame sends h and payload as one frame.
func (c *Conn) WriteFrame(h wire.Header, payload []byte) error {
	frame := wire.Encode(h, payload)
	_, err := c.c.Write(frame)
	return err
}

// Close closes the underlying connection, which the client observes as
// a POLLHUP/EOF.
func (c *Conn) Close() error {
	return c.c.Close()
}

func readFull(c net.Conn, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := c.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
