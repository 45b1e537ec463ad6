package dice

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoll(t *testing.T) {
	roll, err := ParseRoll([]string{"3", "3", "three", "Energy", "heart", "CLAW"})
	require.NoError(t, err)
	assert.Equal(t, Roll{FaceThree, FaceThree, FaceThree, FaceEnergy, FaceHeart, FaceClaw}, roll)
	assert.Equal(t, []string{"3", "3", "3", "energy", "heart", "claw"}, roll.Strings())

	_, err = ParseRoll([]string{"1", "2"})
	assert.True(t, errors.Is(err, ErrWrongDiceCount))

	_, err = ParseRoll([]string{"1", "2", "3", "4", "heart", "claw"})
	assert.True(t, errors.Is(err, ErrInvalidFace))
}

func TestTripletPoints(t *testing.T) {
	tests := []struct {
		name string
		roll Roll
		want int
	}{
		{"no triplet", Roll{FaceOne, FaceOne, FaceTwo, FaceTwo, FaceThree, FaceClaw}, 0},
		{"triplet of threes", Roll{FaceThree, FaceThree, FaceThree, FaceEnergy, FaceHeart, FaceClaw}, 3},
		{"triplet of ones", Roll{FaceOne, FaceOne, FaceOne, FaceEnergy, FaceHeart, FaceClaw}, 1},
		{"four twos", Roll{FaceTwo, FaceTwo, FaceTwo, FaceTwo, FaceHeart, FaceClaw}, 3},
		{"six ones", Roll{FaceOne, FaceOne, FaceOne, FaceOne, FaceOne, FaceOne}, 4},
		{"two triplets", Roll{FaceOne, FaceOne, FaceOne, FaceTwo, FaceTwo, FaceTwo}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.roll.Tally().TripletPoints())
		})
	}
}

func TestRollerIsDeterministic(t *testing.T) {
	a := RollAll(NewRoller(42))
	b := RollAll(NewRoller(42))
	assert.Equal(t, a, b)
	for _, f := range a {
		assert.True(t, f.Valid())
	}
}

func TestRerollKeepsSelectedDice(t *testing.T) {
	prev := Roll{FaceOne, FaceTwo, FaceThree, FaceEnergy, FaceHeart, FaceClaw}
	next, err := Reroll(NewScripted(FaceClaw), prev, []int{0, 2})
	require.NoError(t, err)
	assert.Equal(t, Roll{FaceOne, FaceClaw, FaceThree, FaceClaw, FaceClaw, FaceClaw}, next)

	_, err = Reroll(NewScripted(FaceClaw), prev, []int{6})
	assert.True(t, errors.Is(err, ErrInvalidKeep))
}

func TestScriptedWraps(t *testing.T) {
	src := NewScripted(FaceOne, FaceHeart)
	got := RollAll(src)
	assert.Equal(t, Roll{FaceOne, FaceHeart, FaceOne, FaceHeart, FaceOne, FaceHeart}, got)
}
