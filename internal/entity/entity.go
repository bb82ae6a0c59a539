// Package entity defines the identifiers the cluster uses to address data
// and the machines that serve it: spaces, entities, and instances.
package entity

import "fmt"

// SpaceID is a cluster-assigned identifier for a named space.
type SpaceID uint32

// NullSpace is the sentinel SpaceID meaning "no such space".
const NullSpace SpaceID = 0

// EntityID identifies a logical role (a replica slot) to which messages are
// addressed. Entities map to instances via the current configuration.
type EntityID struct {
	Space SpaceID
	Shard uint32
	Index uint8
}

// ClientSpace is the sentinel EntityID meaning "this client's own entity id
// is not yet known". A channel adopts the real id from the `to` field of
// the first response it receives.
var ClientSpace = EntityID{}

// IsClientSpace reports whether id is the ClientSpace sentinel.
func (id EntityID) IsClientSpace() bool {
	return id == ClientSpace
}

func (id EntityID) String() string {
	if id.IsClientSpace() {
		return "clientspace"
	}
	return fmt.Sprintf("entity(space=%d,shard=%d,idx=%d)", id.Space, id.Shard, id.Index)
}

// Endpoint is a network address, split so callers can format it without
// caring whether it originated from a TCP or (in principle) other dialer.
type Endpoint struct {
	Host string
	Port uint16
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// Instance is a physical server endpoint plus the protocol version it
// speaks. inbound_version is used as a compatibility tag: requests set
// tover to it, responses are validated against fromver.
type Instance struct {
	Inbound        Endpoint
	InboundVersion uint16
}

// Equal reports whether two instances name the same endpoint and version.
func (i Instance) Equal(o Instance) bool {
	return i.Inbound == o.Inbound && i.InboundVersion == o.InboundVersion
}

// SerializedSize is the fixed on-wire width of an EntityID.
const SerializedSize = 9

// Encode packs id into its fixed-width wire representation.
func (id EntityID) Encode() [SerializedSize]byte {
	var out [SerializedSize]byte
	out[0] = byte(id.Space >> 24)
	out[1] = byte(id.Space >> 16)
	out[2] = byte(id.Space >> 8)
	out[3] = byte(id.Space)
	out[4] = byte(id.Shard >> 24)
	out[5] = byte(id.Shard >> 16)
	out[6] = byte(id.Shard >> 8)
	out[7] = byte(id.Shard)
	out[8] = id.Index
	return out
}

// Decode unpacks an EntityID from its fixed-width wire representation.
func Decode(b []byte) (EntityID, error) {
	if len(b) != SerializedSize {
		return EntityID{}, fmt.Errorf("entity: short buffer: want %d bytes, got %d", SerializedSize, len(b))
	}
	return EntityID{
		Space: SpaceID(uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])),
		Shard: uint32(b[4])<<24 | uint32(b[5])<<16 | uint32(b[6])<<8 | uint32(b[7]),
		Index: b[8],
	}, nil
}
