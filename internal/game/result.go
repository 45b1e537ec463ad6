package game

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Result is the outcome of a finished game.
type Result struct {
	RoomID     int              `json:"room_id"`
	ReplayID   string           `json:"replay_id"`
	Winner     string           `json:"winner,omitempty"`
	WinnerName string           `json:"winner_name,omitempty"`
	Turns      int              `json:"turns"`
	Players    []PlayerSnapshot `json:"players"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
}

// ReplayID names the saved replay of one game. Room ids are reused once a
// room closes, so the start time is part of the name.
func ReplayID(roomID int, startedAt time.Time) string {
	return fmt.Sprintf("%d-%d", roomID, startedAt.UnixMilli())
}

// ParseReplayID splits an id built by ReplayID.
func ParseReplayID(id string) (roomID int, startedAt time.Time, err error) {
	room, started, ok := strings.Cut(id, "-")
	if !ok {
		return 0, time.Time{}, fmt.Errorf("malformed replay id %q", id)
	}
	roomID, err = strconv.Atoi(room)
	if err != nil || roomID <= 0 {
		return 0, time.Time{}, fmt.Errorf("malformed replay id %q", id)
	}
	ms, err := strconv.ParseInt(started, 10, 64)
	if err != nil || ms < 0 {
		return 0, time.Time{}, fmt.Errorf("malformed replay id %q", id)
	}
	return roomID, time.UnixMilli(ms), nil
}
