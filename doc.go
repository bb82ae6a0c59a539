// Package hxc is a client for a sharded, hyperspace-hashed key-value
// cluster. It speaks a fixed binary framing protocol directly over TCP
// and drives all I/O from a single caller-owned event pump built on
// poll(2), rather than spawning goroutines per connection.
//
// # Architecture
//
//	┌──────────────────────────────────────────────┐
//	│                   Client                      │
//	├──────────────────────────────────────────────┤
//	│  channelTable   pendingQueue   config snapshot│
//	│       │              │                │       │
//	│       ▼              ▼                ▼       │
//	│   *channel      *pendingOp     clusterconfig   │
//	│  (TCP conn,     (channel ref,   .Snapshot      │
//	│   nonce ctr,     nonce, inst)                  │
//	│   learned id)                                  │
//	└──────────────────────────────────────────────┘
//	          │                          │
//	          ▼                          ▼
//	   flushOne (poll loop)      coordlink.Link
//	   dispatches responses      (config updates)
//	   to pendingOp handlers
//
// # Usage
//
//	c := hxc.New("coordinator.example.com:1982", hxc.WithLogger(logger))
//	if rc := c.Connect(ctx); rc != hxc.SUCCESS {
//	    log.Fatalf("connect failed: %s", rc)
//	}
//
//	c.Get("phonebook", []byte("alice"), func(rc hxc.ReturnCode, values [][]byte) {
//	    if rc != hxc.SUCCESS {
//	        log.Printf("get failed: %s", rc)
//	        return
//	    }
//	    fmt.Println(values)
//	})
//	c.Flush(5 * time.Second)
//
// Every operation (Get, Put, Del, Update, Search) dispatches
// synchronously and returns immediately; callbacks fire only while
// Flush or FlushOne is running. There is exactly one goroutine driving
// a Client — it is not safe to call its methods concurrently from
// multiple goroutines, mirroring the single-threaded, cooperative
// scheduling model the wire protocol assumes.
package hxc
