package hxc

import "github.com/dreamware/hxc/internal/entity"

// channelTable owns every live channel, keyed by the instance it
// connects to. It is mutated only by the client's dispatcher and event
// pump, both running on the calling goroutine.
type channelTable struct {
	byInstance map[entity.Instance]*channel
}

func newChannelTable() *channelTable {
	return &channelTable{byInstance: make(map[entity.Instance]*channel)}
}

// getOrCreate returns the existing channel to inst if present, else
// dials a new one and inserts it. On dial failure it returns an error
// and leaves the table unchanged.
func (t *channelTable) getOrCreate(inst entity.Instance) (*channel, error) {
	if ch, ok := t.byInstance[inst]; ok {
		return ch, nil
	}
	ch, err := dialChannel(inst)
	if err != nil {
		return nil, err
	}
	t.byInstance[inst] = ch
	return ch, nil
}

// drop closes and removes the channel to inst, if any. Pending ops that
// still hold a reference to the channel value keep the underlying socket
// reachable only long enough to observe the failure that caused the
// eviction; they never see it again through the table.
func (t *channelTable) drop(inst entity.Instance) {
	ch, ok := t.byInstance[inst]
	if !ok {
		return
	}
	ch.close()
	delete(t.byInstance, inst)
}

// all returns every live channel, for building the event pump's poll
// set.
func (t *channelTable) all() []*channel {
	out := make([]*channel, 0, len(t.byInstance))
	for _, ch := range t.byInstance {
		out = append(out, ch)
	}
	return out
}
