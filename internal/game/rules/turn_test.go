package rules

import (
	"encoding/json"
	"testing"
)

func TestTurnOrderRoundRobin(t *testing.T) {
	order := NewTurnOrder()

	var seats []int
	for i := 0; i < 7; i++ {
		seats = append(seats, order.Current())
		if _, ok := order.Advance(3, nil); !ok {
			t.Fatalf("advance %d failed", i)
		}
	}

	expected := []int{0, 1, 2, 0, 1, 2, 0}
	for i := range expected {
		if seats[i] != expected[i] {
			t.Fatalf("turn %d: expected seat %d, got %d", i, expected[i], seats[i])
		}
	}
	if order.TurnNumber() != 8 {
		t.Fatalf("expected turn number 8, got %d", order.TurnNumber())
	}
}

func TestTurnOrderSkipsInactive(t *testing.T) {
	order := NewTurnOrder()
	active := func(seat int) bool { return seat != 1 }

	next, ok := order.Advance(3, active)
	if !ok || next != 2 {
		t.Fatalf("expected seat 2, got %d (ok=%v)", next, ok)
	}
	next, ok = order.Advance(3, active)
	if !ok || next != 0 {
		t.Fatalf("expected wrap to seat 0, got %d (ok=%v)", next, ok)
	}
}

func TestTurnOrderNoActiveSeat(t *testing.T) {
	order := NewTurnOrder()
	if _, ok := order.Advance(2, func(int) bool { return false }); ok {
		t.Fatal("expected advance to fail with no active seats")
	}
	if order.Current() != 0 || order.TurnNumber() != 1 {
		t.Fatal("failed advance must not change the order")
	}
}

func TestTurnOrderSeek(t *testing.T) {
	order := NewTurnOrder()
	seat, ok := order.Seek(3, 1, func(s int) bool { return s == 0 })
	if !ok || seat != 0 {
		t.Fatalf("expected seek to wrap to seat 0, got %d", seat)
	}
	if order.TurnNumber() != 1 {
		t.Fatalf("seek must not count a turn, got %d", order.TurnNumber())
	}
}

func TestTurnPhaseText(t *testing.T) {
	data, err := json.Marshal(PhaseAwaitingDefense)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"AWAITING_DEFENSE"` {
		t.Fatalf("unexpected encoding %s", data)
	}

	var phase TurnPhase
	if err := json.Unmarshal(data, &phase); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if phase != PhaseAwaitingDefense {
		t.Fatalf("expected AWAITING_DEFENSE, got %s", phase)
	}
	if PhaseWaiting.InPlay() || PhaseGameOver.InPlay() || !PhaseAwaitingRoll.InPlay() {
		t.Fatal("unexpected InPlay results")
	}
}
