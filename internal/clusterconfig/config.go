// Package clusterconfig implements the configuration snapshot: a
// space's dimension list, the point-leader lookup used to route
// get/put/del/update, the search-entities lookup used to fan a search
// out across a space, and the entity-to-instance table a
// reconfiguration replaces wholesale.
//
// The cluster itself runs a multidimensional hyperspace-hashing
// partitioner to decide which shard owns a key. This package stands in
// for it with single-dimension hashing over a space's shard list, using
// the same hash/fnv idiom a shard registry would use to route keys to
// shards.
package clusterconfig

import (
	"fmt"
	"hash/fnv"

	"github.com/dreamware/hxc/internal/entity"
)

// Space describes one named table: its cluster-assigned id, its ordered
// dimension names (dimension 0 is always the key), and the entities that
// own its shards.
type Space struct {
	Name       string
	ID         entity.SpaceID
	Dimensions []string
	Shards     []entity.EntityID
}

// Snapshot is an immutable configuration value. A client holds at most
// one Snapshot at a time and replaces it wholesale on reconfiguration;
// it is never mutated in place, so it is safe to read concurrently with
// the goroutine that installs a new one (as long as the pointer swap
// itself is synchronized by the caller).
type Snapshot struct {
	spacesByName map[string]Space
	spacesByID   map[entity.SpaceID]Space
	instances    map[entity.EntityID]entity.Instance
}

// NewSnapshot builds a Snapshot from a set of spaces and the
// entity-to-instance table the coordinator link reports alongside them.
func NewSnapshot(spaces []Space, instances map[entity.EntityID]entity.Instance) *Snapshot {
	s := &Snapshot{
		spacesByName: make(map[string]Space, len(spaces)),
		spacesByID:   make(map[entity.SpaceID]Space, len(spaces)),
		instances:    make(map[entity.EntityID]entity.Instance, len(instances)),
	}
	for _, sp := range spaces {
		s.spacesByName[sp.Name] = sp
		s.spacesByID[sp.ID] = sp
	}
	for e, inst := range instances {
		s.instances[e] = inst
	}
	return s
}

// SpaceIDByName resolves a space's name to its id. Returns NULLSPACE and
// false if no such space exists.
func (s *Snapshot) SpaceIDByName(name string) (entity.SpaceID, bool) {
	sp, ok := s.spacesByName[name]
	if !ok {
		return entity.NullSpace, false
	}
	return sp.ID, true
}

// Dimensions returns the ordered dimension names for a space, dimension
// 0 being the key.
func (s *Snapshot) Dimensions(id entity.SpaceID) ([]string, bool) {
	sp, ok := s.spacesByID[id]
	if !ok {
		return nil, false
	}
	return sp.Dimensions, true
}

// PointLeader resolves the entity and instance responsible for
// authoritative reads/writes of key within the named space, using
// FNV-1a hashing of key modulo the space's shard count.
func (s *Snapshot) PointLeader(spaceName string, key []byte) (entity.EntityID, entity.Instance, error) {
	sp, ok := s.spacesByName[spaceName]
	if !ok {
		return entity.EntityID{}, entity.Instance{}, fmt.Errorf("clusterconfig: unknown space %q", spaceName)
	}
	if len(sp.Shards) == 0 {
		return entity.EntityID{}, entity.Instance{}, fmt.Errorf("clusterconfig: space %q has no shards", spaceName)
	}
	ent := sp.Shards[shardIndex(key, len(sp.Shards))]
	inst, ok := s.instances[ent]
	if !ok {
		return entity.EntityID{}, entity.Instance{}, fmt.Errorf("clusterconfig: no instance for entity %v", ent)
	}
	return ent, inst, nil
}

// SearchEntities returns the set of entities a search over spaceName
// must fan out to. When hint is non-nil, it names a single entity to
// restrict the search to; otherwise every shard entity in the space is
// returned.
func (s *Snapshot) SearchEntities(spaceName string, hint *entity.EntityID) ([]entity.EntityID, error) {
	sp, ok := s.spacesByName[spaceName]
	if !ok {
		return nil, fmt.Errorf("clusterconfig: unknown space %q", spaceName)
	}
	if hint != nil {
		return []entity.EntityID{*hint}, nil
	}
	out := make([]entity.EntityID, len(sp.Shards))
	copy(out, sp.Shards)
	return out, nil
}

// InstanceFor resolves an entity to its current instance. Used by the
// event pump to detect reconfiguration: an op's recorded instance is
// compared against InstanceFor(op.ent) in the newly installed snapshot.
func (s *Snapshot) InstanceFor(ent entity.EntityID) (entity.Instance, bool) {
	inst, ok := s.instances[ent]
	return inst, ok
}

// shardIndex hashes key with FNV-1a and reduces it modulo n, the
// consistent-hashing idiom used to route a key to one of a space's
// shards.
func shardIndex(key []byte, n int) int {
	h := fnv.New64a()
	h.Write(key)
	return int(h.Sum64() % uint64(n))
}
