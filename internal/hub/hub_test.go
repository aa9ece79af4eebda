package hub

import "testing"

type testWriter struct {
	writes int
	fail   bool
}

func (w *testWriter) Write(message []byte) error {
	w.writes++
	if w.fail {
		return errTest
	}
	return nil
}

func (w *testWriter) Close() error { return nil }

var errTest = &testErr{}

type testErr struct{}

func (*testErr) Error() string { return "test" }

func TestHub_JoinBroadcastLeave(t *testing.T) {
	h := New()
	w1 := &testWriter{}
	c1 := &Connection{Writer: w1}

	h.Join("conv:1", c1)
	h.Broadcast("conv:1", []byte("x"))
	if w1.writes != 1 {
		t.Fatalf("expected 1 write, got %d", w1.writes)
	}

	h.Leave("conv:1", c1)
	h.Broadcast("conv:1", []byte("x"))
	if w1.writes != 1 {
		t.Fatalf("expected no more writes, got %d", w1.writes)
	}
}

func TestHub_LeaveAll(t *testing.T) {
	h := New()
	w1 := &testWriter{}
	c1 := &Connection{Writer: w1}

	h.Join("conv:1", c1)
	h.Join("user:u1", c1)
	h.LeaveAll(c1)

	h.Broadcast("conv:1", []byte("x"))
	h.Broadcast("user:u1", []byte("x"))
	if w1.writes != 0 {
		t.Fatalf("expected no writes after LeaveAll, got %d", w1.writes)
	}
}

func TestHub_RemovesFailedConnections(t *testing.T) {
	h := New()
	w1 := &testWriter{fail: true}
	c1 := &Connection{Writer: w1}
	h.Join("conv:1", c1)
	h.Join("user:u1", c1)

	h.Broadcast("conv:1", []byte("x"))
	h.Broadcast("conv:1", []byte("x"))
	if w1.writes != 1 {
		t.Fatalf("expected only 1 write before removal, got %d", w1.writes)
	}
	// A failed writer is evicted from every room it joined.
	h.Broadcast("user:u1", []byte("x"))
	if w1.writes != 1 {
		t.Fatalf("expected eviction from all rooms, got %d writes", w1.writes)
	}
}
