package hxc

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dreamware/hxc/internal/clock"
	"github.com/dreamware/hxc/internal/clusterconfig"
	"github.com/dreamware/hxc/internal/coordlink"
	"github.com/dreamware/hxc/internal/entity"
	"github.com/dreamware/hxc/internal/eventpoll"
	"github.com/dreamware/hxc/internal/hashspace"
	"github.com/dreamware/hxc/internal/wire"
)

// Client is the entry point for all cluster operations. Construct one
// with New, call Connect once, then dispatch operations and drive them
// to completion with Flush or FlushOne.
type Client struct {
	id         string
	coordAddr  string
	link       *coordlink.Link
	config     *clusterconfig.Snapshot
	channels   *channelTable
	queue      *pendingQueue
	poller     eventpoll.Poller
	clock      clock.Clock
	logger     *zap.SugaredLogger
	metrics    *clientMetrics
	nextSearch uint64
	reconnects int
}

// New constructs a Client. It does not connect; call Connect for that.
func New(coordAddr string, opts ...Option) *Client {
	c := &Client{
		id:         uuid.NewString(),
		coordAddr:  coordAddr,
		channels:   newChannelTable(),
		queue:      &pendingQueue{},
		poller:     eventpoll.Real{},
		clock:      clock.Real{},
		logger:     zap.NewNop().Sugar(),
		metrics:    newClientMetrics(),
		nextSearch: 1,
		reconnects: 7,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the coordinator link, loops on its event step until it
// signals an unacknowledged configuration, installs that configuration,
// acknowledges it, and returns.
func (c *Client) Connect(ctx context.Context) ReturnCode {
	link, err := coordlink.Connect(ctx, c.coordAddr)
	if err != nil {
		c.logger.Warnw("coordinator connect failed", "addr", c.coordAddr, "error", err)
		return COORDFAIL
	}
	c.link = link

	for !link.Unacknowledged() {
		if err := link.Step(); err != nil {
			c.logger.Warnw("coordinator step failed during connect", "error", err)
			return COORDFAIL
		}
	}
	c.installSnapshot(link.Config())
	link.Acknowledge()
	return SUCCESS
}

func (c *Client) snapshot() *clusterconfig.Snapshot {
	return c.config
}

func (c *Client) installSnapshot(snap *clusterconfig.Snapshot) {
	c.config = snap
	c.metrics.configInstalls.Inc()
}

func (c *Client) coordConnected() bool {
	return c.link != nil
}

// reconnectCoordinator retries dialing the coordinator up to
// c.reconnects times.
func (c *Client) reconnectCoordinator() bool {
	for i := 0; i < c.reconnects; i++ {
		link, err := coordlink.Connect(context.Background(), c.coordAddr)
		if err == nil {
			c.link = link
			return true
		}
		c.logger.Debugw("coordinator reconnect attempt failed", "attempt", i+1, "error", err)
	}
	return false
}

// Get dispatches an async point get. It returns synchronously; the
// callback fires from a later Flush or FlushOne call.
func (c *Client) Get(space string, key []byte, cb GetCallback) ReturnCode {
	op := &pendingOp{kind: opGet, getCB: cb}
	rc := c.dispatch(space, key, wire.ReqGet, wire.PutBytes(nil, key), op)
	c.metrics.observeDispatch("get", rc)
	if rc != SUCCESS {
		cb(rc, nil)
	}
	return rc
}

// Put dispatches an async put, replacing every attribute of key.
func (c *Client) Put(space string, key []byte, values [][]byte, cb MutateCallback) ReturnCode {
	op := &pendingOp{kind: opMutate, mutateExpect: wire.RespPut, mutateCB: cb}
	var payload []byte
	payload = wire.PutBytes(payload, key)
	payload = wire.PutBytesSlice(payload, values)
	rc := c.dispatch(space, key, wire.ReqPut, payload, op)
	c.metrics.observeDispatch("put", rc)
	if rc != SUCCESS {
		cb(rc)
	}
	return rc
}

// Del dispatches an async delete of key.
func (c *Client) Del(space string, key []byte, cb MutateCallback) ReturnCode {
	op := &pendingOp{kind: opMutate, mutateExpect: wire.RespDel, mutateCB: cb}
	rc := c.dispatch(space, key, wire.ReqDel, wire.PutBytes(nil, key), op)
	c.metrics.observeDispatch("del", rc)
	if rc != SUCCESS {
		cb(rc)
	}
	return rc
}

// Update dispatches an async partial mutation, touching only the named
// attributes and leaving the rest of key's value alone.
func (c *Client) Update(space string, key []byte, attrs map[string][]byte, cb MutateCallback) ReturnCode {
	dims, ok := c.snapshot().Dimensions(mustSpaceID(c.snapshot(), space))
	if !ok {
		cb(NOTASPACE)
		return NOTASPACE
	}
	payload, err := buildUpdatePayload(dims, key, attrs)
	if err != nil {
		cb(BADDIMENSION)
		return BADDIMENSION
	}
	op := &pendingOp{kind: opMutate, mutateExpect: wire.RespUpdate, mutateCB: cb}
	rc := c.dispatch(space, key, wire.ReqUpdate, payload, op)
	c.metrics.observeDispatch("update", rc)
	if rc != SUCCESS {
		cb(rc)
	}
	return rc
}

func mustSpaceID(snap *clusterconfig.Snapshot, space string) entity.SpaceID {
	id, _ := snap.SpaceIDByName(space)
	return id
}

// Search dispatches an async predicate search. subspaceHint may be nil
// to fan the search out across the whole space.
func (c *Client) Search(space string, equality map[string][]byte, ranges map[string]hashspace.Range, subspaceHint *entity.EntityID, cb SearchCallback) ReturnCode {
	rc := c.search(space, equality, ranges, subspaceHint, cb)
	if rc != SUCCESS {
		cb(rc, nil, nil)
	}
	return rc
}

// Outstanding reports the number of live pending ops.
func (c *Client) Outstanding() int {
	n := c.queue.outstanding()
	c.metrics.outstanding.Set(float64(n))
	return n
}
