package hxc

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"net"
	"syscall"

	"github.com/dreamware/hxc/internal/entity"
)

// channel exclusively owns a connected TCP socket, a nonce counter, and
// the entity id the client has learned it owns on this connection.
// Channels are shared by reference among every pending op dispatched
// through them; the event pump and the dispatcher are the only two
// things that ever touch one, and both run on the calling goroutine, so
// no locking is needed.
type channel struct {
	inst   entity.Instance
	conn   *net.TCPConn
	reader *bufio.Reader
	nonce  uint64
	id     entity.EntityID
}

// dialChannel opens a new channel to inst, enabling TCP_NODELAY.
func dialChannel(inst entity.Instance) (*channel, error) {
	addr := inst.Inbound.String()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("hxc: dial %s: %w", addr, err)
	}
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("hxc: dial %s: not a TCP connection", addr)
	}
	if err := tcpConn.SetNoDelay(true); err != nil {
		tcpConn.Close()
		return nil, fmt.Errorf("hxc: set nodelay on %s: %w", addr, err)
	}
	return &channel{
		inst:   inst,
		conn:   tcpConn,
		reader: bufio.NewReader(tcpConn),
		nonce:  1,
		id:     entity.ClientSpace,
	}, nil
}

// nextNonce allocates the next per-channel request identifier.
func (c *channel) nextNonce() uint64 {
	n := c.nonce
	c.nonce++
	return n
}

// send writes frame in full or returns an error.
func (c *channel) send(frame []byte) error {
	_, err := c.conn.Write(frame)
	if err != nil {
		return fmt.Errorf("hxc: send: %w", err)
	}
	return nil
}

// receiveFrame peeks the 4-byte size field, then reads the full frame
// it describes. The size field is the total frame size, itself
// included, so once peeked the remaining bytes to read are size-4
// beyond the 4 already peeked.
func (c *channel) receiveFrame() ([]byte, error) {
	head, err := c.reader.Peek(4)
	if err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(head)
	if size < 4 {
		return nil, fmt.Errorf("hxc: invalid frame size %d", size)
	}
	frame := make([]byte, size)
	if _, err := readFull(c.reader, frame); err != nil {
		return nil, err
	}
	return frame, nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// fd returns the raw file descriptor backing the channel's socket, for
// inclusion in the event pump's poll set. All actual I/O still goes
// through conn/reader; this is used purely for readiness notification.
func (c *channel) fd() (int32, error) {
	raw, err := c.conn.SyscallConn()
	if err != nil {
		return -1, fmt.Errorf("hxc: SyscallConn: %w", err)
	}
	var fd int32
	if err := raw.Control(func(f uintptr) {
		fd = int32(f)
	}); err != nil {
		return -1, fmt.Errorf("hxc: Control: %w", err)
	}
	return fd, nil
}

// close releases the underlying socket.
func (c *channel) close() error {
	return c.conn.Close()
}

var _ syscall.Conn = (*net.TCPConn)(nil)
