package hxc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dreamware/hxc/internal/faketest"
	"github.com/dreamware/hxc/internal/wire"
)

func TestConnectInstallsInitialSnapshot(t *testing.T) {
	coord, err := faketest.ListenCoordinator()
	if err != nil {
		t.Fatalf("ListenCoordinator: %v", err)
	}
	defer coord.Close()

	go func() {
		conn, err := coord.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SendConfig(
			[]faketest.ShardSpec{{
				Name:       "phonebook",
				ID:         1,
				Dimensions: []string{"username", "phone"},
				Shards:     []faketest.EntitySpec{{Space: 1, Shard: 0}},
			}},
			[]faketest.InstanceSpec{{
				Entity: faketest.EntitySpec{Space: 1, Shard: 0},
				Host:   "127.0.0.1", Port: 1981, InboundVersion: 3,
			}},
		)
		time.Sleep(200 * time.Millisecond)
	}()

	c := New(coord.Addr())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if rc := c.Connect(ctx); rc != SUCCESS {
		t.Fatalf("Connect() = %v, want SUCCESS", rc)
	}
	if id, ok := c.snapshot().SpaceIDByName("phonebook"); !ok || id != 1 {
		t.Fatalf("snapshot missing phonebook space: (%d,%v)", id, ok)
	}
}

func TestGetHappyPath(t *testing.T) {
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
		if err != nil {
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

	snap := snapshotWithInstance(t, net.JoinHostPort(host, itoa(port)))
	c := newTestClient(t, snap)

	done := make(chan struct{})
	var gotRC ReturnCode
	var gotValues [][]byte
	rc := c.Get("phonebook", []byte("alice"), func(rc ReturnCode, values [][]byte) {
		gotRC = rc
		gotValues = values
		close(done)
	})
	if rc != SUCCESS {
		t.Fatalf("Get() dispatch rc = %v, want SUCCESS", rc)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.FlushOne(200*time.Millisecond) == SUCCESS && c.Outstanding() == 0 {
			break
		}
	}

	select {
	case <-done:
	default:
		t.Fatal("callback never fired")
	}
	if gotRC != SUCCESS {
		t.Fatalf("rc = %v, want SUCCESS", gotRC)
	}
	if len(gotValues) != 1 || string(gotValues[0]) != "555-1234" {
		t.Fatalf("values = %v", gotValues)
	}
}

func TestGetNotASpaceFailsSynchronously(t *testing.T) {
	snap := snapshotWithInstance(t, "127.0.0.1:1")
	c := newTestClient(t, snap)

	var gotRC ReturnCode
	rc := c.Get("nosuchspace", []byte("alice"), func(rc ReturnCode, values [][]byte) { gotRC = rc })
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
