package event

import "testing"

func TestBus_EmitOrder(t *testing.T) {
	var b Bus[int]
	var got []string

	b.Subscribe(func(v int) { got = append(got, "a") })
	b.Subscribe(func(v int) { got = append(got, "b") })

	b.Emit(1)

	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("unexpected delivery order: %v", got)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	var b Bus[string]
	calls := 0

	unsub := b.Subscribe(func(string) { calls++ })
	b.Emit("first")
	unsub()
	unsub() // second call must be harmless
	b.Emit("second")

	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if b.Len() != 0 {
		t.Errorf("expected no subscribers, got %d", b.Len())
	}
}

func TestBus_SubscribeDuringEmit(t *testing.T) {
	var b Bus[int]
	late := 0

	b.Subscribe(func(int) {
		b.Subscribe(func(int) { late++ })
	})

	b.Emit(1)
	if late != 0 {
		t.Errorf("subscriber added during Emit must not see the same value, got %d calls", late)
	}

	b.Emit(2)
	if late != 1 {
		t.Errorf("expected late subscriber to receive the next value once, got %d", late)
	}
}
