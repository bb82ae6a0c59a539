package hxc

import (
	"fmt"

	"github.com/dreamware/hxc/internal/wire"
)

// dispatch resolves a space and key to a point leader, obtains a
// channel, allocates a nonce, enqueues the op, and sends the frame. On
// any failure before send, the op is never enqueued; on send failure,
// the op is popped after having been briefly visible to response
// matching.
func (c *Client) dispatch(spaceName string, key []byte, msgType wire.MsgType, payload []byte, op *pendingOp) ReturnCode {
	snap := c.snapshot()

	if _, ok := snap.SpaceIDByName(spaceName); !ok {
		return NOTASPACE
	}

	ent, inst, err := snap.PointLeader(spaceName, key)
	if err != nil {
		c.logger.Debugw("point leader lookup failed", "space", spaceName, "error", err)
		return CONNECTFAIL
	}

	ch, err := c.channels.getOrCreate(inst)
	if err != nil {
		c.logger.Debugw("channel dial failed", "instance", inst, "error", err)
		return CONNECTFAIL
	}

	nonce := ch.nextNonce()
	op.ch = ch
	op.ent = ent
	op.inst = inst
	op.nonce = nonce

	slot := c.queue.push(op)

	frame := wire.Encode(wire.Header{
		Type:    msgType,
		FromVer: 0,
		ToVer:   inst.InboundVersion,
		From:    ch.id,
		To:      ent,
		Nonce:   nonce,
	}, payload)

	if err := ch.send(frame); err != nil {
		c.queue.tombstone(slot)
		c.channels.drop(inst)
		return DISCONNECT
	}

	return SUCCESS
}

// buildUpdatePayload builds a bitfield of length n-1 marking which of a
// space's non-key dimensions the caller supplied, plus a parallel value
// sequence. An unknown dimension name fails immediately with
// BADDIMENSION.
func buildUpdatePayload(dimensions []string, key []byte, attrs map[string][]byte) ([]byte, error) {
	index := make(map[string]int, len(dimensions)-1)
	for i := 1; i < len(dimensions); i++ {
		index[dimensions[i]] = i - 1
	}

	n := len(dimensions) - 1
	bits := wire.NewBitfield(n)
	values := make([][]byte, n)
	for i := range values {
		values[i] = nil
	}

	for name, val := range attrs {
		idx, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("hxc: unknown dimension %q: %w", name, BADDIMENSION)
		}
		bits.Set(idx)
		values[idx] = val
	}

	var buf []byte
	buf = wire.PutBytes(buf, key)
	buf = wire.PutBitfield(buf, bits)
	buf = wire.PutBytesSlice(buf, values)
	return buf, nil
}
