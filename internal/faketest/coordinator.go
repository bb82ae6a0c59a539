package faketest

import (
	"encoding/json"
	"fmt"
	"net"
)

// ShardSpec describes one space's shards for FakeCoordinator's
// configuration payload, mirroring coordlink's wire schema without
// importing its unexported types.
type ShardSpec struct {
	Name       string
	ID         uint32
	Dimensions []string `json:"dimensions"`
	Shards     []EntitySpec
}

// EntitySpec identifies one entity.
type EntitySpec struct {
	Space uint32
	Shard uint32
	Index uint8
}

// InstanceSpec pairs an entity with the instance serving it.
type InstanceSpec struct {
	Entity         EntitySpec
	Host           string
	Port           uint16
	InboundVersion uint16
}

// Coordinator is a fake coordinator link endpoint: a TCP listener whose
// accepted connections write nothing on their own. The test decides
// when (or whether) to push each newline-delimited JSON configuration
// with SendConfig.
type Coordinator struct {
	ln net.Listener
}

// ListenCoordinator starts a fake coordinator on an ephemeral port.
func ListenCoordinator() (*Coordinator, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("faketest: listen: %w", err)
	}
	return &Coordinator{ln: ln}, nil
}

// Addr returns the address a coordlink.Link should dial.
func (c *Coordinator) Addr() string {
	return c.ln.Addr().String()
}

// Close stops accepting new connections.
func (c *Coordinator) Close() error {
	return c.ln.Close()
}

// CoordinatorConn is one accepted coordinator connection.
type CoordinatorConn struct {
	c   net.Conn
	enc *json.Encoder
}

// Accept blocks until a client dials in.
func (c *Coordinator) Accept() (*CoordinatorConn, error) {
	conn, err := c.ln.Accept()
	if err != nil {
		return nil, fmt.Errorf("faketest: accept: %w", err)
	}
	return &CoordinatorConn{c: conn, enc: json.NewEncoder(conn)}, nil
}

type wireConfigDoc struct {
	Spaces []struct {
		Name       string `json:"name"`
		ID         uint32 `json:"id"`
		Dimensions []string `json:"dimensions"`
		Shards     []struct {
			Space uint32 `json:"space"`
			Shard uint32 `json:"shard"`
			Index uint8  `json:"index"`
		} `json:"shards"`
	} `json:"spaces"`
	Instances []struct {
		Entity struct {
			Space uint32 `json:"space"`
			Shard uint32 `json:"shard"`
			Index uint8  `json:"index"`
		} `json:"entity"`
		Host           string `json:"host"`
		Port           uint16 `json:"port"`
		InboundVersion uint16 `json:"inbound_version"`
	} `json:"instances"`
}

// SendConfig writes one configuration snapshot as a newline-delimited
// JSON document.
func (c *CoordinatorConn) SendConfig(spaces []ShardSpec, instances []InstanceSpec) error {
	var doc wireConfigDoc
	for _, s := range spaces {
		var entry struct {
			Name       string `json:"name"`
			ID         uint32 `json:"id"`
			Dimensions []string `json:"dimensions"`
			Shards     []struct {
				Space uint32 `json:"space"`
				Shard uint32 `json:"shard"`
				Index uint8  `json:"index"`
			} `json:"shards"`
		}
		entry.Name = s.Name
		entry.ID = s.ID
		entry.Dimensions = s.Dimensions
		for _, e := range s.Shards {
			entry.Shards = append(entry.Shards, struct {
				Space uint32 `json:"space"`
				Shard uint32 `json:"shard"`
				Index uint8  `json:"index"`
			}{Space: e.Space, Shard: e.Shard, Index: e.Index})
		}
		doc.Spaces = append(doc.Spaces, entry)
	}
	for _, inst := range instances {
		var entry struct {
			Entity struct {
				Space uint32 `json:"space"`
				Shard uint32 `json:"shard"`
				Index uint8  `json:"index"`
			} `json:"entity"`
			Host           string `json:"host"`
			Port           uint16 `json:"port"`
			InboundVersion uint16 `json:"inbound_version"`
		}
		entry.Entity.Space = inst.Entity.Space
		entry.Entity.Shard = inst.Entity.Shard
		entry.Entity.Index = inst.Entity.Index
		entry.Host = inst.Host
		entry.Port = inst.Port
		entry.InboundVersion = inst.InboundVersion
		doc.Instances = append(doc.Instances, entry)
	}
	return c.enc.Encode(doc)
}

// Close closes the underlying connection.
func (c *CoordinatorConn) Close() error {
	return c.c.Close()
}
