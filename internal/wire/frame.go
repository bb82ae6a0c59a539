// Package wire implements the cluster's fixed frame header and the
// message/returncode constants exchanged over it.
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/dreamware/hxc/internal/entity"
)

// MsgType is the network message type carried in a frame header.
type MsgType uint8

// Outgoing and incoming message types.
const (
	ReqGet MsgType = iota + 1
	ReqPut
	ReqDel
	ReqUpdate
	ReqSearchStart
	ReqSearchNext
	RespGet
	RespPut
	RespDel
	RespUpdate
	RespSearchItem
	RespSearchDone
)

func (t MsgType) String() string {
	switch t {
	case ReqGet:
		return "REQ_GET"
	case ReqPut:
		return "REQ_PUT"
	case ReqDel:
		return "REQ_DEL"
	case ReqUpdate:
		return "REQ_UPDATE"
	case ReqSearchStart:
		return "REQ_SEARCH_START"
	case ReqSearchNext:
		return "REQ_SEARCH_NEXT"
	case RespGet:
		return "RESP_GET"
	case RespPut:
		return "RESP_PUT"
	case RespDel:
		return "RESP_DEL"
	case RespUpdate:
		return "RESP_UPDATE"
	case RespSearchItem:
		return "RESP_SEARCH_ITEM"
	case RespSearchDone:
		return "RESP_SEARCH_DONE"
	default:
		return fmt.Sprintf("MsgType(%d)", uint8(t))
	}
}

// NetReturnCode is the u16 returncode carried in get/mutate response
// payloads.
type NetReturnCode uint16

const (
	NetSuccess NetReturnCode = iota
	NetNotFound
	NetWrongArity
	NetNotUs
	NetServerError
)

// HeaderSize is the byte width of everything in a frame before the
// payload: size(4) + type(1) + fromver(2) + tover(2) + from(9) + to(9) +
// nonce(8).
const HeaderSize = 4 + 1 + 2 + 2 + entity.SerializedSize + entity.SerializedSize + 8

// Header is the fixed portion of every frame.
type Header struct {
	// Size is the total frame size including the size field itself.
	Size    uint32
	Type    MsgType
	FromVer uint16
	ToVer   uint16
	From    entity.EntityID
	To      entity.EntityID
	Nonce   uint64
}

// Encode serializes h and payload into one wire frame.
func Encode(h Header, payload []byte) []byte {
	h.Size = uint32(HeaderSize + len(payload))
	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], h.Size)
	buf[4] = byte(h.Type)
	binary.BigEndian.PutUint16(buf[5:7], h.FromVer)
	binary.BigEndian.PutUint16(buf[7:9], h.ToVer)
	from := h.From.Encode()
	copy(buf[9:9+entity.SerializedSize], from[:])
	off := 9 + entity.SerializedSize
	to := h.To.Encode()
	copy(buf[off:off+entity.SerializedSize], to[:])
	off += entity.SerializedSize
	binary.BigEndian.PutUint64(buf[off:off+8], h.Nonce)
	off += 8
	copy(buf[off:], payload)
	return buf
}

// Decode parses a complete frame (as produced by Encode, or read off the
// wire by the hxc package's channel.receiveFrame) into its header and
// payload.
func Decode(frame []byte) (Header, []byte, error) {
	if len(frame) < HeaderSize {
		return Header{}, nil, fmt.Errorf("wire: frame too short: %d bytes, want at least %d", len(frame), HeaderSize)
	}
	var h Header
	h.Size = binary.BigEndian.Uint32(frame[0:4])
	h.Type = MsgType(frame[4])
	h.FromVer = binary.BigEndian.Uint16(frame[5:7])
	h.ToVer = binary.BigEndian.Uint16(frame[7:9])
	from, err := entity.Decode(frame[9 : 9+entity.SerializedSize])
	if err != nil {
		return Header{}, nil, fmt.Errorf("wire: decode from: %w", err)
	}
	h.From = from
	off := 9 + entity.SerializedSize
	to, err := entity.Decode(frame[off : off+entity.SerializedSize])
	if err != nil {
		return Header{}, nil, fmt.Errorf("wire: decode to: %w", err)
	}
	h.To = to
	off += entity.SerializedSize
	h.Nonce = binary.BigEndian.Uint64(frame[off : off+8])
	off += 8
	payload := frame[off:]
	if uint32(len(frame)) != h.Size {
		return Header{}, nil, fmt.Errorf("wire: size field %d does not match frame length %d", h.Size, len(frame))
	}
	return h, payload, nil
}
