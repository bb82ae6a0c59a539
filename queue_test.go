package hxc

import "testing"

func TestPendingQueuePushTombstone(t *testing.T) {
	q := &pendingQueue{}
	op1 := &pendingOp{kind: opGet}
	op2 := &pendingOp{kind: opGet}

	i1 := q.push(op1)
	i2 := q.push(op2)

	if q.outstanding() != 2 {
		t.Fatalf("outstanding() = %d, want 2", q.outstanding())
	}

	q.tombstone(i1)
	// Check the neighbour before outstanding(), which compacts tombstones
	// off the front and so shifts slot indices.
	if q.slots[i2] != op2 {
		t.Fatal("tombstoning one slot disturbed a neighbouring slot")
	}
	if q.outstanding() != 1 {
		t.Fatalf("outstanding() after tombstone = %d, want 1", q.outstanding())
	}
}

func TestPendingQueueCompactFront(t *testing.T) {
	q := &pendingQueue{}
	op1 := &pendingOp{kind: opGet}
	op2 := &pendingOp{kind: opGet}
	q.push(op1)
	q.push(op2)
	q.tombstone(0)

	q.compactFront()
	if len(q.slots) != 1 || q.slots[0] != op2 {
		t.Fatalf("compactFront left %v, want [op2]", q.slots)
	}
}

func TestPendingQueueIsEmpty(t *testing.T) {
	q := &pendingQueue{}
	if !q.isEmpty() {
		t.Fatal("fresh queue reported non-empty")
	}
	op := &pendingOp{kind: opGet}
	idx := q.push(op)
	if q.isEmpty() {
		t.Fatal("queue with a live op reported empty")
	}
	q.tombstone(idx)
	if !q.isEmpty() {
		t.Fatal("queue with only tombstones reported non-empty")
	}
}

func TestPendingQueueClear(t *testing.T) {
	q := &pendingQueue{}
	q.push(&pendingOp{kind: opGet})
	q.push(&pendingOp{kind: opGet})
	q.clear()
	if !q.isEmpty() || len(q.slots) != 0 {
		t.Fatal("clear did not empty the queue")
	}
}
