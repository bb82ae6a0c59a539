package hxc

import (
	"net"
	"testing"
	"time"

	"github.com/dreamware/hxc/internal/clusterconfig"
	"github.com/dreamware/hxc/internal/entity"
	"github.com/dreamware/hxc/internal/faketest"
	"github.com/dreamware/hxc/internal/wire"
)

// TestSearchStreamsItemsThenDone drives a full search through the real
// flushOne loop against a faketest.Instance: two RESP_SEARCH_ITEM
// responses, each expected to provoke a REQ_SEARCH_NEXT continuation,
// followed by a RESP_SEARCH_DONE that ends the stream without a final
// callback.
func TestSearchStreamsItemsThenDone(t *testing.T) {
	srv, err := faketest.Listen()
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Close()
	host, port := srv.Addr()

	items := [][2]string{{"alice", "555-1111"}, {"bob", "555-2222"}}

	go func() {
		conn, err := srv.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		// REQ_SEARCH_START
		h, _, err := conn.ReadFrame()
		if err != nil || h.Type != wire.ReqSearchStart {
			return
		}

		for _, item := range items {
			var payload []byte
			payload = wire.PutBytes(payload, []byte(item[0]))
			payload = wire.PutBytesSlice(payload, [][]byte{[]byte(item[1])})
			if err := conn.WriteFrame(wire.Header{
				Type:    wire.RespSearchItem,
				FromVer: h.ToVer,
				ToVer:   0,
				From:    h.To,
				To:      h.From,
				Nonce:   h.Nonce,
			}, payload); err != nil {
				return
			}

			// The client answers each item with a REQ_SEARCH_NEXT
			// carrying a freshly allocated nonce; read it and use its
			// nonce for the next response so matching keeps working.
			next, _, err := conn.ReadFrame()
			if err != nil || next.Type != wire.ReqSearchNext {
				return
			}
			h = next
		}

		conn.WriteFrame(wire.Header{
			Type:    wire.RespSearchDone,
			FromVer: h.ToVer,
			ToVer:   0,
			From:    h.To,
			To:      h.From,
			Nonce:   h.Nonce,
		}, nil)
	}()

	snap := snapshotWithInstance(t, net.JoinHostPort(host, itoa(port)))
	c := newTestClient(t, snap)

	type result struct {
		rc    ReturnCode
		key   string
		value string
	}
	var results []result
	rc := c.Search("phonebook", nil, nil, nil, func(rc ReturnCode, key []byte, value [][]byte) {
		r := result{rc: rc}
		if key != nil {
			r.key = string(key)
		}
		if len(value) > 0 {
			r.value = string(value[0])
		}
		results = append(results, r)
	})
	if rc != SUCCESS {
		t.Fatalf("Search() dispatch rc = %v, want SUCCESS", rc)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && c.Outstanding() > 0 {
		c.FlushOne(200 * time.Millisecond)
	}

	if c.Outstanding() != 0 {
		t.Fatalf("outstanding = %d, want 0 after search completes", c.Outstanding())
	}
	if len(results) != len(items) {
		t.Fatalf("got %d callbacks, want %d (RESP_SEARCH_DONE must not invoke one)", len(results), len(items))
	}
	for i, item := range items {
		if results[i].rc != SUCCESS {
			t.Fatalf("result[%d].rc = %v, want SUCCESS", i, results[i].rc)
		}
		if results[i].key != item[0] || results[i].value != item[1] {
			t.Fatalf("result[%d] = (%q,%q), want (%q,%q)", i, results[i].key, results[i].value, item[0], item[1])
		}
	}
}

// TestSearchNotASpaceFailsSynchronously mirrors
// TestGetNotASpaceFailsSynchronously: the callback must observe the
// synchronous failure, not just the dispatch return value.
func TestSearchNotASpaceFailsSynchronously(t *testing.T) {
	snap := snapshotWithInstance(t, "127.0.0.1:1")
	c := newTestClient(t, snap)

	var gotRC ReturnCode
	rc := c.Search("nosuchspace", nil, nil, nil, func(rc ReturnCode, key []byte, value [][]byte) { gotRC = rc })
	if rc != NOTASPACE {
		t.Fatalf("rc = %v, want NOTASPACE", rc)
	}
	if gotRC != NOTASPACE {
		t.Fatalf("callback rc = %v, want NOTASPACE", gotRC)
	}
	if c.Outstanding() != 0 {
		t.Fatalf("outstanding = %d, want 0 (never enqueued)", c.Outstanding())
	}
}

// TestSearchBadSearchFailsSynchronously exercises the BADSEARCH path: an
// equality constraint on dimension 0 (the key) is always invalid.
func TestSearchBadSearchFailsSynchronously(t *testing.T) {
	snap := snapshotWithInstance(t, "127.0.0.1:1")
	c := newTestClient(t, snap)

	var gotRC ReturnCode
	rc := c.Search("phonebook", map[string][]byte{"username": []byte("alice")}, nil, nil,
		func(rc ReturnCode, key []byte, value [][]byte) { gotRC = rc })
	if rc != BADSEARCH {
		t.Fatalf("rc = %v, want BADSEARCH", rc)
	}
	if gotRC != BADSEARCH {
		t.Fatalf("callback rc = %v, want BADSEARCH", gotRC)
	}
	if c.Outstanding() != 0 {
		t.Fatalf("outstanding = %d, want 0 (never enqueued)", c.Outstanding())
	}
}

// TestSearchNoMatchingEntitiesFailsSynchronously exercises the
// CONNECTFAIL path when the space resolves but no instance is known for
// any of its shards, so nothing is ever dispatched.
func TestSearchNoMatchingEntitiesFailsSynchronously(t *testing.T) {
	ent := entity.EntityID{Space: 1, Shard: 0}
	snap := clusterconfig.NewSnapshot(
		[]clusterconfig.Space{{Name: "phonebook", ID: 1, Dimensions: []string{"username", "phone"}, Shards: []entity.EntityID{ent}}},
		nil,
	)
	c := newTestClient(t, snap)

	var gotRC ReturnCode
	rc := c.Search("phonebook", nil, nil, nil, func(rc ReturnCode, key []byte, value [][]byte) { gotRC = rc })
	if rc != CONNECTFAIL {
		t.Fatalf("rc = %v, want CONNECTFAIL", rc)
	}
	if gotRC != CONNECTFAIL {
		t.Fatalf("callback rc = %v, want CONNECTFAIL", gotRC)
	}
	if c.Outstanding() != 0 {
		t.Fatalf("outstanding = %d, want 0 (never enqueued)", c.Outstanding())
	}
}
