// Package coordlink implements the coordinator link: the pollable
// control-plane connection a client uses to receive configuration
// snapshots.
//
// Configuration is exchanged as newline-delimited JSON over a
// long-lived TCP connection, so the link's file descriptor can sit in
// the same poll set as the client's data channels.
package coordlink

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"syscall"

	"github.com/dreamware/hxc/internal/clusterconfig"
	"github.com/dreamware/hxc/internal/entity"
)

// wireEntity mirrors entity.EntityID for JSON transport.
type wireEntity struct {
	Space uint32 `json:"space"`
	Shard uint32 `json:"shard"`
	Index uint8  `json:"index"`
}

func (e wireEntity) toEntity() entity.EntityID {
	return entity.EntityID{Space: entity.SpaceID(e.Space), Shard: e.Shard, Index: e.Index}
}

// wireInstance pairs an entity with the instance currently serving it.
type wireInstance struct {
	Entity         wireEntity `json:"entity"`
	Host           string     `json:"host"`
	Port           uint16     `json:"port"`
	InboundVersion uint16     `json:"inbound_version"`
}

// wireSpace mirrors clusterconfig.Space for JSON transport.
type wireSpace struct {
	Name       string       `json:"name"`
	ID         uint32       `json:"id"`
	Dimensions []string     `json:"dimensions"`
	Shards     []wireEntity `json:"shards"`
}

// wireConfig is one newline-delimited configuration snapshot as sent by
// the coordinator.
type wireConfig struct {
	Spaces    []wireSpace    `json:"spaces"`
	Instances []wireInstance `json:"instances"`
}

func (w wireConfig) toSnapshot() *clusterconfig.Snapshot {
	spaces := make([]clusterconfig.Space, len(w.Spaces))
	for i, s := range w.Spaces {
		shards := make([]entity.EntityID, len(s.Shards))
		for j, e := range s.Shards {
			shards[j] = e.toEntity()
		}
		spaces[i] = clusterconfig.Space{
			Name:       s.Name,
			ID:         entity.SpaceID(s.ID),
			Dimensions: s.Dimensions,
			Shards:     shards,
		}
	}
	instances := make(map[entity.EntityID]entity.Instance, len(w.Instances))
	for _, inst := range w.Instances {
		instances[inst.Entity.toEntity()] = entity.Instance{
			Inbound:        entity.Endpoint{Host: inst.Host, Port: inst.Port},
			InboundVersion: inst.InboundVersion,
		}
	}
	return clusterconfig.NewSnapshot(spaces, instances)
}

// Link is a connected coordinator link. It is not safe for concurrent
// use; it is driven exclusively by the client's event pump.
type Link struct {
	conn    net.Conn
	reader  *bufio.Reader
	pending *clusterconfig.Snapshot
	unacked bool
}

// Connect dials the coordinator at addr and returns a Link ready to be
// stepped.
func Connect(ctx context.Context, addr string) (*Link, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("coordlink: dial %s: %w", addr, err)
	}
	return &Link{conn: conn, reader: bufio.NewReader(conn)}, nil
}

// FD returns the raw file descriptor backing the link's connection, for
// inclusion in the event pump's poll set. It never performs I/O through
// the descriptor directly; all reads still go through conn.
func (l *Link) FD() (int32, error) {
	sc, ok := l.conn.(syscall.Conn)
	if !ok {
		return -1, fmt.Errorf("coordlink: connection does not expose a raw descriptor")
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return -1, fmt.Errorf("coordlink: SyscallConn: %w", err)
	}
	var fd int32
	if err := raw.Control(func(f uintptr) {
		fd = int32(f)
	}); err != nil {
		return -1, fmt.Errorf("coordlink: Control: %w", err)
	}
	return fd, nil
}

// Step reads one newline-delimited configuration snapshot from the link.
// The event pump only calls Step after poll has reported the link's
// descriptor readable, so a full line is expected to already be
// available. Step reads the connection one byte at a time and stops at
// the newline, so a later snapshot is never held in a user-space buffer
// where poll on FD could not see it.
func (l *Link) Step() error {
	var line []byte
	var b [1]byte
	for {
		n, err := l.conn.Read(b[:])
		if n == 1 {
			line = append(line, b[0])
			if b[0] == '\n' {
				break
			}
		}
		if err != nil {
			return fmt.Errorf("coordlink: read: %w", err)
		}
	}
	var w wireConfig
	if err := json.Unmarshal(line, &w); err != nil {
		return fmt.Errorf("coordlink: decode configuration: %w", err)
	}
	l.pending = w.toSnapshot()
	l.unacked = true
	return nil
}

// Unacknowledged reports whether a configuration snapshot has been
// received but not yet acknowledged.
func (l *Link) Unacknowledged() bool {
	return l.unacked
}

// Config returns the most recently received configuration snapshot. It
// is only meaningful after Step has succeeded at least once.
func (l *Link) Config() *clusterconfig.Snapshot {
	return l.pending
}

// Acknowledge clears the unacknowledged flag.
func (l *Link) Acknowledge() {
	l.unacked = false
}

// Close releases the underlying connection.
func (l *Link) Close() error {
	return l.conn.Close()
}
