package hxc

import (
	"github.com/dreamware/hxc/internal/entity"
	"github.com/dreamware/hxc/internal/wire"
)

// GetCallback receives the outcome of a get.
type GetCallback func(rc ReturnCode, values [][]byte)

// MutateCallback receives the outcome of a put, del, or update.
type MutateCallback func(rc ReturnCode)

// SearchCallback receives one search result per call with SUCCESS, or a
// failure code with a nil key. The end of the stream (RESP_SEARCH_DONE)
// is not reported through it.
type SearchCallback func(rc ReturnCode, key []byte, value [][]byte)

// opKind is a closed tagged variant: three pending-op shapes exist and
// none are supplied externally, so a type switch stands in for open
// polymorphism.
type opKind int

const (
	opGet opKind = iota
	opMutate
	opSearch
)

// lifecycleKind is the outcome a response handler reports back to the
// event pump, so the pump can perform queue bookkeeping in one place
// rather than every handler mutating the queue directly.
type lifecycleKind int

const (
	lifecycleTerminal lifecycleKind = iota
	lifecycleKeepAliveNewNonce
)

// lifecycle is the value a variant's handle method returns.
type lifecycle struct {
	kind     lifecycleKind
	newNonce uint64
}

// pendingOp is one entry in the pending queue. A tombstoned slot holds a
// nil *pendingOp (see pendingQueue.tombstone).
type pendingOp struct {
	kind  opKind
	ch    *channel
	ent   entity.EntityID
	inst  entity.Instance
	nonce uint64

	reconfigured bool

	getCB GetCallback

	mutateExpect wire.MsgType
	mutateCB     MutateCallback

	searchID uint64
	searchCB SearchCallback
}

// isTombstone reports whether the slot has been vacated.
func (op *pendingOp) isTombstone() bool {
	return op == nil || op.ch == nil
}

// handle dispatches a decoded response payload to the op's variant
// handler. calledBack reports whether cb was invoked; lc reports how
// the pump should update the queue slot.
func (op *pendingOp) handle(msgType wire.MsgType, payload []byte) (calledBack bool, lc lifecycle) {
	switch op.kind {
	case opGet:
		return op.handleGet(msgType, payload)
	case opMutate:
		return op.handleMutate(msgType, payload)
	case opSearch:
		return op.handleSearch(msgType, payload)
	default:
		return false, lifecycle{kind: lifecycleTerminal}
	}
}

func decodeReturnCode(payload []byte) (wire.NetReturnCode, []byte, bool) {
	if len(payload) < 2 {
		return 0, nil, false
	}
	rc := wire.NetReturnCode(uint16(payload[0])<<8 | uint16(payload[1]))
	return rc, payload[2:], true
}

func mapNetReturnCode(rc wire.NetReturnCode) ReturnCode {
	switch rc {
	case wire.NetSuccess:
		return SUCCESS
	case wire.NetNotFound:
		return NOTFOUND
	case wire.NetWrongArity:
		return WRONGARITY
	case wire.NetNotUs:
		return LOGICERROR
	default:
		return SERVERERROR
	}
}

// handleGet handles a response to a get request. Always terminal.
func (op *pendingOp) handleGet(msgType wire.MsgType, payload []byte) (bool, lifecycle) {
	term := lifecycle{kind: lifecycleTerminal}
	if msgType != wire.RespGet {
		op.getCB(SERVERERROR, nil)
		return true, term
	}
	rc, rest, ok := decodeReturnCode(payload)
	if !ok {
		op.getCB(SERVERERROR, nil)
		return true, term
	}
	if rc != wire.NetSuccess {
		op.getCB(mapNetReturnCode(rc), nil)
		return true, term
	}
	values, _, err := wire.GetBytesSlice(rest)
	if err != nil {
		op.getCB(SERVERERROR, nil)
		return true, term
	}
	op.getCB(SUCCESS, values)
	return true, term
}

// handleMutate handles a response to a put, del, or update. Always
// terminal.
func (op *pendingOp) handleMutate(msgType wire.MsgType, payload []byte) (bool, lifecycle) {
	term := lifecycle{kind: lifecycleTerminal}
	if msgType != op.mutateExpect {
		op.mutateCB(SERVERERROR)
		return true, term
	}
	rc, _, ok := decodeReturnCode(payload)
	if !ok {
		op.mutateCB(SERVERERROR)
		return true, term
	}
	op.mutateCB(mapNetReturnCode(rc))
	return true, term
}

// handleSearch handles a response to an outstanding search.
func (op *pendingOp) handleSearch(msgType wire.MsgType, payload []byte) (bool, lifecycle) {
	term := lifecycle{kind: lifecycleTerminal}
	switch msgType {
	case wire.RespSearchItem:
		key, rest, err := wire.GetBytes(payload)
		if err != nil {
			op.searchCB(SERVERERROR, nil, nil)
			return true, term
		}
		value, _, err := wire.GetBytesSlice(rest)
		if err != nil {
			op.searchCB(SERVERERROR, nil, nil)
			return true, term
		}
		newNonce := op.ch.nextNonce()
		var next []byte
		next = appendSearchID(next, op.searchID)
		frame := wire.Encode(wire.Header{
			Type:    wire.ReqSearchNext,
			FromVer: 0,
			ToVer:   op.inst.InboundVersion,
			From:    op.ch.id,
			To:      op.ent,
			Nonce:   newNonce,
		}, next)
		if err := op.ch.send(frame); err != nil {
			return false, term
		}
		op.searchCB(SUCCESS, key, value)
		return true, lifecycle{kind: lifecycleKeepAliveNewNonce, newNonce: newNonce}
	case wire.RespSearchDone:
		return false, term
	default:
		op.searchCB(SERVERERROR, nil, nil)
		return true, term
	}
}

// failWith invokes op's callback with rc and no data, for the terminal
// failure paths driven directly by the event pump (disconnect,
// reconfiguration, timeout) rather than by a decoded response.
func (op *pendingOp) failWith(rc ReturnCode) {
	switch op.kind {
	case opGet:
		op.getCB(rc, nil)
	case opMutate:
		op.mutateCB(rc)
	case opSearch:
		op.searchCB(rc, nil, nil)
	}
}

func appendSearchID(dst []byte, id uint64) []byte {
	return append(dst,
		byte(id>>56), byte(id>>48), byte(id>>40), byte(id>>32),
		byte(id>>24), byte(id>>16), byte(id>>8), byte(id))
}
