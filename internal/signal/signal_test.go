package signal

import "testing"

func TestEmit_CallsListenersInOrder(t *testing.T) {
	var s Signal[int]
	var got []int
	s.Connect(func(v int) { got = append(got, v) })
	s.Connect(func(v int) { got = append(got, v*10) })

	s.Emit(2)

	if len(got) != 2 || got[0] != 2 || got[1] != 20 {
		t.Fatalf("got %v, want [2 20]", got)
	}
}

func TestEmit_SkipsListenerDisconnectedDuringEmit(t *testing.T) {
	var s Signal[string]
	var second *Listener
	calls := 0
	s.Connect(func(string) { second.Disconnect() })
	second = s.Connect(func(string) { calls++ })

	s.Emit("x")

	if calls != 0 {
		t.Fatalf("expected disconnected listener to be skipped, got %d calls", calls)
	}
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
}

func TestEmit_ListenerConnectedDuringEmitWaitsForNextEmit(t *testing.T) {
	var s Signal[struct{}]
	late := 0
	var once bool
	s.Connect(func(struct{}) {
		if once {
			return
		}
		once = true
		s.Connect(func(struct{}) { late++ })
	})

	s.Emit(struct{}{})
	if late != 0 {
		t.Fatalf("late listener called during the emit that added it")
	}
	s.Emit(struct{}{})
	if late != 1 {
		t.Fatalf("late listener calls = %d, want 1", late)
	}
}

func TestDisconnect_Idempotent(t *testing.T) {
	var s Signal[int]
	l := s.Connect(func(int) {})
	l.Disconnect()
	l.Disconnect()
	if l.Connected() {
		t.Fatal("listener still connected")
	}
	if s.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", s.Len())
	}
}

func TestGroup_DisconnectAll(t *testing.T) {
	var a Signal[int]
	var b Signal[string]
	calls := 0

	var g Group
	g.Add(
		a.Connect(func(int) { calls++ }),
		b.Connect(func(string) { calls++ }),
		nil,
	)
	if g.Len() != 2 {
		t.Fatalf("group Len() = %d, want 2", g.Len())
	}

	g.DisconnectAll()
	a.Emit(1)
	b.Emit("x")

	if calls != 0 {
		t.Fatalf("calls = %d after DisconnectAll, want 0", calls)
	}
	if a.Len() != 0 || b.Len() != 0 {
		t.Fatalf("signals still hold listeners: a=%d b=%d", a.Len(), b.Len())
	}
}

func TestDisconnectAll_DetachesListeners(t *testing.T) {
	var s Signal[int]
	l := s.Connect(func(int) { t.Fatal("should not be called") })
	s.DisconnectAll()
	s.Emit(1)
	if l.Connected() {
		t.Fatal("listener reports connected after DisconnectAll")
	}
	l.Disconnect()
}
