package hxc

import (
	"time"

	"github.com/dreamware/hxc/internal/eventpoll"
	"github.com/dreamware/hxc/internal/wire"
)

// flushOne runs a single pass of the event pump: it polls every live
// channel's descriptor plus the coordinator link, and processes at most
// one frame before returning. A coordinator event is handled in place
// and the pass then starts over, polling again with the same timeout.
func (c *Client) flushOne(timeout time.Duration) ReturnCode {
	for {
		c.queue.compactFront()

		if !c.coordConnected() {
			if !c.reconnectCoordinator() {
				return COORDFAIL
			}
		}

		fds := make([]eventpoll.FD, len(c.queue.slots)+1)
		for i, op := range c.queue.slots {
			if op == nil {
				fds[i] = eventpoll.FD{Fd: -1}
				continue
			}
			fd, err := op.ch.fd()
			if err != nil {
				fd = -1
			}
			fds[i] = eventpoll.FD{Fd: fd, Events: eventpoll.POLLIN}
		}
		coordIdx := len(fds) - 1
		coordFD, err := c.link.FD()
		if err != nil {
			return LOGICERROR
		}
		fds[coordIdx] = eventpoll.FD{Fd: coordFD, Events: eventpoll.POLLIN}

		n, err := c.poller.Poll(fds, timeout)
		if err != nil {
			return LOGICERROR
		}
		if n == 0 {
			for i, op := range c.queue.slots {
				if op == nil {
					continue
				}
				c.logger.Warnw("op timed out waiting for a response", "entity", op.ent, "instance", op.inst, "timeout", timeout)
				c.metrics.timeouts.Inc()
				op.failWith(TIMEOUT)
				c.queue.tombstone(i)
				break
			}
			return TIMEOUT
		}
		if n < 0 {
			return LOGICERROR
		}

		if fds[coordIdx].Revents&eventpoll.POLLIN != 0 {
			c.stepCoordinator()
			continue
		}

		for i, op := range c.queue.slots {
			if op == nil {
				continue
			}
			if fds[i].Revents&(eventpoll.POLLHUP|eventpoll.POLLERR) != 0 {
				c.evictAndFail(i, op, DISCONNECT)
				return SUCCESS
			}
		}

		for i, op := range c.queue.slots {
			if op == nil || !op.reconfigured {
				continue
			}
			c.logger.Infow("op reconfigured to a new instance, failing", "entity", op.ent, "instance", op.inst)
			c.metrics.reconfigures.Inc()
			op.failWith(RECONFIGURE)
			c.queue.tombstone(i)
			return SUCCESS
		}

		for i, op := range c.queue.slots {
			if op == nil || fds[i].Revents&eventpoll.POLLIN == 0 {
				continue
			}
			return c.deliverFrame(i, op)
		}

		return SUCCESS
	}
}

// stepCoordinator steps the coordinator link and, if it reports an
// unacknowledged configuration, installs it and scans the pending queue
// for ops whose target instance the new configuration moved.
func (c *Client) stepCoordinator() {
	if err := c.link.Step(); err != nil {
		c.logger.Debugw("coordinator link step failed", "error", err)
		c.link.Close()
		c.link = nil
		return
	}
	if !c.link.Unacknowledged() {
		return
	}
	newSnap := c.link.Config()
	c.installSnapshot(newSnap)
	for _, op := range c.queue.live() {
		inst, ok := newSnap.InstanceFor(op.ent)
		if !ok || !inst.Equal(op.inst) {
			op.reconfigured = true
		}
	}
	c.link.Acknowledge()
}

// evictAndFail closes op's channel, drops it from the table, fails op
// with rc, and tombstones its slot.
func (c *Client) evictAndFail(slot int, op *pendingOp, rc ReturnCode) {
	c.logger.Warnw("evicting channel and failing op", "entity", op.ent, "instance", op.inst, "returncode", rc)
	if rc == DISCONNECT {
		c.metrics.disconnects.Inc()
	}
	op.ch.close()
	c.channels.drop(op.inst)
	op.failWith(rc)
	c.queue.tombstone(slot)
}

// deliverFrame reads one frame off op's channel, learns the channel id
// if unset, scans the whole queue for the op it actually answers, and
// dispatches it to that op's handler.
func (c *Client) deliverFrame(slot int, op *pendingOp) ReturnCode {
	frame, err := op.ch.receiveFrame()
	if err != nil {
		c.evictAndFail(slot, op, DISCONNECT)
		return SUCCESS
	}
	header, payload, err := wire.Decode(frame)
	if err != nil {
		c.evictAndFail(slot, op, DISCONNECT)
		return SUCCESS
	}
	if op.ch.id.IsClientSpace() {
		op.ch.id = header.To
	}

	matched := c.findMatch(op.ch, header)
	if matched < 0 {
		// No live op claims this response; drop it silently.
		return SUCCESS
	}

	mop := c.queue.slots[matched]
	_, lc := mop.handle(header.Type, payload)
	if lc.kind == lifecycleKeepAliveNewNonce {
		mop.nonce = lc.newNonce
	} else {
		c.queue.tombstone(matched)
	}
	return SUCCESS
}

// findMatch scans the entire pending queue for the op that ch's incoming
// header answers.
func (c *Client) findMatch(ch *channel, header wire.Header) int {
	for i, cand := range c.queue.slots {
		if cand == nil || cand.ch != ch {
			continue
		}
		if header.FromVer != cand.inst.InboundVersion {
			continue
		}
		if header.ToVer != 0 {
			continue
		}
		if header.From != cand.ent {
			continue
		}
		if header.To != cand.ch.id {
			continue
		}
		if header.Nonce != cand.nonce {
			continue
		}
		return i
	}
	return -1
}

// Flush loops flushOne until the queue empties or timeout expires,
// budgeting remaining time from the client's clock. On timeout it fails
// every still-live pending op with TIMEOUT and clears the queue.
func (c *Client) Flush(timeout time.Duration) ReturnCode {
	deadline := c.clock.Now().Add(timeout)
	for {
		if c.queue.isEmpty() {
			return SUCCESS
		}
		remaining := deadline.Sub(c.clock.Now())
		if remaining <= 0 {
			live := c.queue.live()
			c.logger.Warnw("flush deadline exceeded, failing remaining ops", "count", len(live))
			for _, op := range live {
				c.metrics.timeouts.Inc()
				op.failWith(TIMEOUT)
			}
			c.queue.clear()
			return TIMEOUT
		}
		rc := c.flushOne(remaining)
		switch rc {
		case COORDFAIL, LOGICERROR:
			return rc
		case TIMEOUT:
			live := c.queue.live()
			c.logger.Warnw("flush timed out, failing remaining ops", "count", len(live))
			for _, op := range live {
				c.metrics.timeouts.Inc()
				op.failWith(TIMEOUT)
			}
			c.queue.clear()
			return TIMEOUT
		}
	}
}

// FlushOne runs a single event pump iteration with the given timeout.
func (c *Client) FlushOne(timeout time.Duration) ReturnCode {
	return c.flushOne(timeout)
}
