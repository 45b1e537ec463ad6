package rules

import (
	"fmt"
	"strings"
)

// TurnPhase is the state of a room's turn state machine.
type TurnPhase int

const (
	PhaseWaiting TurnPhase = iota
	PhaseAwaitingRoll
	PhaseAwaitingDefense
	PhaseAwaitingPurchase
	PhaseTurnComplete
	PhaseGameOver
)

var phaseNames = map[TurnPhase]string{
	PhaseWaiting:          "WAITING",
	PhaseAwaitingRoll:     "AWAITING_ROLL",
	PhaseAwaitingDefense:  "AWAITING_DEFENSE",
	PhaseAwaitingPurchase: "AWAITING_PURCHASE",
	PhaseTurnComplete:     "TURN_COMPLETE",
	PhaseGameOver:         "GAME_OVER",
}

func (p TurnPhase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PHASE_%d", int(p))
}

// MarshalText encodes the phase by name.
func (p TurnPhase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name.
func (p *TurnPhase) UnmarshalText(text []byte) error {
	name := strings.ToUpper(strings.TrimSpace(string(text)))
	for phase, n := range phaseNames {
		if n == name {
			*p = phase
			return nil
		}
	}
	return fmt.Errorf("unknown turn phase %q", string(text))
}

// InPlay reports whether the game has started and not finished.
func (p TurnPhase) InPlay() bool {
	return p != PhaseWaiting && p != PhaseGameOver
}

// TurnOrder tracks the current seat and turn number. Seats are visited
// round-robin; seats reported inactive are skipped.
type TurnOrder struct {
	index      int
	turnNumber int
}

// NewTurnOrder creates a turn order starting at seat 0, turn 1.
func NewTurnOrder() *TurnOrder {
	return &TurnOrder{turnNumber: 1}
}

// Current returns the seat whose turn it is.
func (t *TurnOrder) Current() int {
	return t.index
}

// TurnNumber returns the current turn number (1-based).
func (t *TurnOrder) TurnNumber() int {
	return t.turnNumber
}

// Advance moves to the next active seat among size seats and returns it.
// It reports false, leaving the order unchanged, when no seat is active.
func (t *TurnOrder) Advance(size int, active func(seat int) bool) (int, bool) {
	if size <= 0 {
		return t.index, false
	}
	for step := 1; step <= size; step++ {
		next := (t.index + step) % size
		if active == nil || active(next) {
			t.index = next
			t.turnNumber++
			return next, true
		}
	}
	return t.index, false
}

// Seek moves to the first active seat at or after seat without counting a
// new turn. It is used when the game starts or the current seat drops out.
func (t *TurnOrder) Seek(size int, seat int, active func(seat int) bool) (int, bool) {
	if size <= 0 {
		return t.index, false
	}
	for step := 0; step < size; step++ {
		next := (seat + step) % size
		if active == nil || active(next) {
			t.index = next
			return next, true
		}
	}
	return t.index, false
}
