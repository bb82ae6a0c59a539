package hxc

import (
	"github.com/dreamware/hxc/internal/entity"
	"github.com/dreamware/hxc/internal/hashspace"
	"github.com/dreamware/hxc/internal/wire"
)

// search validates the predicate, resolves the entities to fan out to,
// and sends one REQ_SEARCH_START per entity. Each entity gets its own
// pending op sharing the same search id and callback.
func (c *Client) search(space string, equality map[string][]byte, ranges map[string]hashspace.Range, hint *entity.EntityID, cb SearchCallback) ReturnCode {
	snap := c.snapshot()

	spaceID, ok := snap.SpaceIDByName(space)
	if !ok {
		return NOTASPACE
	}
	dims, ok := snap.Dimensions(spaceID)
	if !ok {
		return NOTASPACE
	}

	pred, err := hashspace.Build(dims, equality, ranges)
	if err != nil {
		return BADSEARCH
	}

	ents, err := snap.SearchEntities(space, hint)
	if err != nil {
		return CONNECTFAIL
	}

	searchID := c.nextSearch
	c.nextSearch++
	predBytes := pred.Encode()

	rc := SUCCESS
	dispatched := 0
	for _, ent := range ents {
		inst, ok := snap.InstanceFor(ent)
		if !ok {
			continue
		}
		ch, err := c.channels.getOrCreate(inst)
		if err != nil {
			rc = CONNECTFAIL
			continue
		}

		nonce := ch.nextNonce()
		op := &pendingOp{
			kind:     opSearch,
			ch:       ch,
			ent:      ent,
			inst:     inst,
			nonce:    nonce,
			searchID: searchID,
			searchCB: cb,
		}
		slot := c.queue.push(op)

		var payload []byte
		payload = appendSearchID(payload, searchID)
		payload = append(payload, predBytes...)
		frame := wire.Encode(wire.Header{
			Type:    wire.ReqSearchStart,
			FromVer: 0,
			ToVer:   inst.InboundVersion,
			From:    ch.id,
			To:      ent,
			Nonce:   nonce,
		}, payload)

		if err := ch.send(frame); err != nil {
			c.queue.tombstone(slot)
			c.channels.drop(inst)
			rc = DISCONNECT
			continue
		}
		dispatched++
	}

	if dispatched == 0 && rc == SUCCESS {
		return CONNECTFAIL
	}
	c.metrics.observeDispatch("search", rc)
	return rc
}
