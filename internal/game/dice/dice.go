// Package dice implements the six-dice roll used at the start of every turn.
package dice

import (
	"errors"
	"fmt"
	"strings"
)

// Face is one side of a game die.
type Face int

const (
	FaceUnknown Face = iota
	FaceOne
	FaceTwo
	FaceThree
	FaceEnergy
	FaceHeart
	FaceClaw
)

// Count is the number of dice in a roll.
const Count = 6

var faceNames = map[Face]string{
	FaceOne:    "1",
	FaceTwo:    "2",
	FaceThree:  "3",
	FaceEnergy: "energy",
	FaceHeart:  "heart",
	FaceClaw:   "claw",
}

var faceAliases = map[string]Face{
	"1":      FaceOne,
	"one":    FaceOne,
	"2":      FaceTwo,
	"two":    FaceTwo,
	"3":      FaceThree,
	"three":  FaceThree,
	"energy": FaceEnergy,
	"heart":  FaceHeart,
	"claw":   FaceClaw,
}

func (f Face) String() string {
	if name, ok := faceNames[f]; ok {
		return name
	}
	return fmt.Sprintf("FACE_%d", int(f))
}

// Valid reports whether f is one of the six printed faces.
func (f Face) Valid() bool {
	return f >= FaceOne && f <= FaceClaw
}

// Number returns the printed digit for numbered faces and 0 otherwise.
func (f Face) Number() int {
	switch f {
	case FaceOne:
		return 1
	case FaceTwo:
		return 2
	case FaceThree:
		return 3
	default:
		return 0
	}
}

// ErrWrongDiceCount indicates a roll without exactly six dice.
var ErrWrongDiceCount = errors.New("a roll must contain exactly six dice")

// ErrInvalidFace indicates an unrecognised face value.
var ErrInvalidFace = errors.New("invalid die face")

// ParseFace parses a face name such as "2", "energy" or "claw".
func ParseFace(s string) (Face, error) {
	face, ok := faceAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return FaceUnknown, fmt.Errorf("%w: %q", ErrInvalidFace, s)
	}
	return face, nil
}

// Roll is an ordered set of six faces.
type Roll [Count]Face

// ParseRoll validates and converts reported face names into a Roll.
func ParseRoll(values []string) (Roll, error) {
	var roll Roll
	if len(values) != Count {
		return roll, fmt.Errorf("%w: got %d", ErrWrongDiceCount, len(values))
	}
	for i, v := range values {
		face, err := ParseFace(v)
		if err != nil {
			return Roll{}, err
		}
		roll[i] = face
	}
	return roll, nil
}

// Strings returns the face names in die order.
func (r Roll) Strings() []string {
	out := make([]string, len(r))
	for i, f := range r {
		out[i] = f.String()
	}
	return out
}

func (r Roll) String() string {
	return "[" + strings.Join(r.Strings(), " ") + "]"
}

// Tally counts the faces in r.
func (r Roll) Tally() Tally {
	var t Tally
	for _, f := range r {
		if f.Valid() {
			t[f]++
		}
	}
	return t
}

// Tally holds per-face counts indexed by Face.
type Tally [FaceClaw + 1]int

// Count returns how many dice show f.
func (t Tally) Count(f Face) int {
	if !f.Valid() {
		return 0
	}
	return t[f]
}

// HasAll reports whether every listed face appears at least once.
func (t Tally) HasAll(faces ...Face) bool {
	for _, f := range faces {
		if t.Count(f) == 0 {
			return false
		}
	}
	return true
}

// TripletPoints scores numbered faces: for each digit d rolled c >= 3 times
// the roll is worth d + (c - 3) victory points.
func (t Tally) TripletPoints() int {
	points := 0
	for _, f := range []Face{FaceOne, FaceTwo, FaceThree} {
		if c := t.Count(f); c >= 3 {
			points += f.Number() + (c - 3)
		}
	}
	return points
}
