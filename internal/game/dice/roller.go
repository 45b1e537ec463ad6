package dice

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
	"sync"
)

// Source produces single die faces.
type Source interface {
	Face() Face
}

// Roller is a seeded Source. It is deterministic for a given seed.
type Roller struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRoller creates a roller from an explicit seed.
func NewRoller(seed int64) *Roller {
	return &Roller{rng: rand.New(rand.NewSource(seed))}
}

// NewRandomRoller creates a roller seeded from crypto/rand.
func NewRandomRoller() (*Roller, error) {
	seed, err := NewSeed()
	if err != nil {
		return nil, err
	}
	return NewRoller(seed), nil
}

// Face rolls one die.
func (r *Roller) Face() Face {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Face(r.rng.Intn(Count) + 1)
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// Scripted replays a fixed face sequence, wrapping around at the end.
type Scripted struct {
	mu    sync.Mutex
	faces []Face
	next  int
}

// NewScripted creates a Source that yields faces in order.
func NewScripted(faces ...Face) *Scripted {
	return &Scripted{faces: faces}
}

// Face returns the next scripted face.
func (s *Scripted) Face() Face {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.faces) == 0 {
		return FaceOne
	}
	f := s.faces[s.next%len(s.faces)]
	s.next++
	return f
}

// ErrInvalidKeep indicates a keep index outside the roll.
var ErrInvalidKeep = errors.New("keep index out of range")

// RollAll rolls six fresh dice.
func RollAll(src Source) Roll {
	var roll Roll
	for i := range roll {
		roll[i] = src.Face()
	}
	return roll
}

// Reroll rerolls every die of prev whose index is not listed in keep.
func Reroll(src Source, prev Roll, keep []int) (Roll, error) {
	kept := make(map[int]bool, len(keep))
	for _, idx := range keep {
		if idx < 0 || idx >= Count {
			return prev, fmt.Errorf("%w: %d", ErrInvalidKeep, idx)
		}
		kept[idx] = true
	}
	next := prev
	for i := range next {
		if !kept[i] {
			next[i] = src.Face()
		}
	}
	return next, nil
}
