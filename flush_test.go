package hxc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dreamware/hxc/internal/faketest"
	"github.com/dreamware/hxc/internal/wire"
	"go.uber.org/zap"
)

func TestFlushOneTimeoutFailsFirstOp(t *testing.T) {
	srv, err := faketest.Listen()
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Close()
	host, port := srv.Addr()

	go func() {
		conn, err := srv.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(2 * time.Second) // never responds
	}()

	snap := snapshotWithInstance(t, net.JoinHostPort(host, itoa(port)))
	c := newTestClient(t, snap)

	var gotRC ReturnCode
	rc := c.Get("phonebook", []byte("alice"), func(rc ReturnCode, values [][]byte) { gotRC = rc })
	if rc != SUCCESS {
		t.Fatalf("dispatch rc = %v, want SUCCESS", rc)
	}

	fo := c.FlushOne(100 * time.Millisecond)
	if fo != TIMEOUT {
		t.Fatalf("FlushOne() = %v, want TIMEOUT", fo)
	}
	if gotRC != TIMEOUT {
		t.Fatalf("callback rc = %v, want TIMEOUT", gotRC)
	}
	if c.Outstanding() != 0 {
		t.Fatalf("outstanding = %d, want 0 after timeout pops the op", c.Outstanding())
	}
}

func TestFlushClearsQueueOnDeadline(t *testing.T) {
	srv, err := faketest.Listen()
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Close()
	host, port := srv.Addr()

	go func() {
		conn, err := srv.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(2 * time.Second)
	}()

	snap := snapshotWithInstance(t, net.JoinHostPort(host, itoa(port)))
	c := newTestClient(t, snap)

	var gotRC ReturnCode
	c.Get("phonebook", []byte("alice"), func(rc ReturnCode, values [][]byte) { gotRC = rc })

	rc := c.Flush(150 * time.Millisecond)
	if rc != TIMEOUT {
		t.Fatalf("Flush() = %v, want TIMEOUT", rc)
	}
	if gotRC != TIMEOUT {
		t.Fatalf("callback rc = %v, want TIMEOUT", gotRC)
	}
	if !c.queue.isEmpty() {
		t.Fatal("Flush left the queue non-empty after its deadline")
	}
}

func TestFlushOneDisconnectOnServerClose(t *testing.T) {
	srv, err := faketest.Listen()
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Close()
	host, port := srv.Addr()

	go func() {
		conn, err := srv.Accept()
		if err != nil {
			return
		}
		// Close immediately without ever reading or writing a frame.
		conn.Close()
	}()

	snap := snapshotWithInstance(t, net.JoinHostPort(host, itoa(port)))
	c := newTestClient(t, snap)

	var gotRC ReturnCode
	done := make(chan struct{})
	c.Get("phonebook", []byte("alice"), func(rc ReturnCode, values [][]byte) {
		gotRC = rc
		close(done)
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c.FlushOne(200 * time.Millisecond)
		select {
		case <-done:
			goto checked
		default:
		}
	}
checked:
	if gotRC != DISCONNECT {
		t.Fatalf("rc = %v, want DISCONNECT", gotRC)
	}
}

// TestFlushOneDeliversReconfiguration pushes a real second configuration
// snapshot through a fake coordinator link, moving the dispatched op's
// entity to a different instance, and drives the whole thing through the
// production flushOne/stepCoordinator path (flush.go:101-123) rather than
// hand-setting op.reconfigured.
func TestFlushOneDeliversReconfiguration(t *testing.T) {
	srv, err := faketest.Listen()
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Close()
	host, port := srv.Addr()

	go func() {
		conn, err := srv.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		h, _, err := conn.ReadFrame()
		if err != nil || h.Type != wire.ReqGet {
			return
		}
		var payload []byte
		payload = append(payload, 0, 0) // NET_SUCCESS
		payload = wire.PutBytesSlice(payload, [][]byte{[]byte("555-1234")})
		conn.WriteFrame(wire.Header{
			Type:    wire.RespGet,
			FromVer: h.ToVer,
			ToVer:   0,
			From:    h.To,
			To:      h.From,
			Nonce:   h.Nonce,
		}, payload)
	}()

	coord, err := faketest.ListenCoordinator()
	if err != nil {
		t.Fatalf("ListenCoordinator: %v", err)
	}
	defer coord.Close()

	shards := []faketest.ShardSpec{{
		Name:       "phonebook",
		ID:         1,
		Dimensions: []string{"username", "phone"},
		Shards:     []faketest.EntitySpec{{Space: 1, Shard: 0}},
	}}
	ent := faketest.EntitySpec{Space: 1, Shard: 0}

	go func() {
		conn, err := coord.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SendConfig(shards, []faketest.InstanceSpec{{
			Entity: ent, Host: host, Port: port, InboundVersion: 3,
		}})
		// Reconfiguration: the same entity now lives at a different
		// instance, which is what stepCoordinator's comparison against
		// the op's recorded instance must catch.
		conn.SendConfig(shards, []faketest.InstanceSpec{{
			Entity: ent, Host: host, Port: port + 1, InboundVersion: 3,
		}})
		time.Sleep(2 * time.Second)
	}()

	c := New(coord.Addr())
	c.logger = zap.NewNop().Sugar()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if rc := c.Connect(ctx); rc != SUCCESS {
		t.Fatalf("Connect() = %v, want SUCCESS", rc)
	}

	var gotRC ReturnCode
	c.Get("phonebook", []byte("alice"), func(rc ReturnCode, values [][]byte) { gotRC = rc })
	if c.Outstanding() != 1 {
		t.Fatalf("outstanding = %d, want 1", c.Outstanding())
	}

	var rc ReturnCode
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && c.Outstanding() > 0 {
		rc = c.FlushOne(200 * time.Millisecond)
	}
	if rc != SUCCESS {
		t.Fatalf("FlushOne() = %v, want SUCCESS", rc)
	}
	if gotRC != RECONFIGURE {
		t.Fatalf("callback rc = %v, want RECONFIGURE", gotRC)
	}
	if c.Outstanding() != 0 {
		t.Fatalf("outstanding = %d, want 0", c.Outstanding())
	}
}
