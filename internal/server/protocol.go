package server

import (
	"encoding/json"

	"github.com/kotgame/kot-server-go/internal/game"
	"github.com/kotgame/kot-server-go/internal/game/rules"
)

// Inbound message types that are not game actions.
const (
	MsgCreateRoom = "createRoom"
	MsgJoinRoom   = "joinRoom"
	MsgLeaveRoom  = "leaveRoom"
	MsgGetState   = "getState"
)

// Outbound message types that do not come from the event bus.
const (
	MsgConnected = "connected"
	MsgState     = "state"
)

// Inbound is a client request.
type Inbound struct {
	Type   string          `json:"type"`
	RoomID int             `json:"room_id,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Outbound is a server message.
type Outbound struct {
	Type     string `json:"type"`
	RoomID   int    `json:"room_id,omitempty"`
	PlayerID string `json:"player_id,omitempty"`
	Data     any    `json:"data,omitempty"`
}

type roomRequest struct {
	PlayerName string `json:"player_name"`
}

// ConnectedData is sent once per connection.
type ConnectedData struct {
	SessionID string `json:"session_id"`
	PlayerID  string `json:"player_id"`
	RoomID    int    `json:"room_id,omitempty"`
	Resumed   bool   `json:"resumed"`
}

func eventMessage(evt rules.Event) Outbound {
	return Outbound{
		Type:     string(evt.Type),
		RoomID:   evt.RoomID,
		PlayerID: evt.PlayerID,
		Data:     evt.Payload,
	}
}

func errorMessage(roomID int, err error) Outbound {
	return Outbound{
		Type:   string(rules.EventError),
		RoomID: roomID,
		Data: game.ErrorPayload{
			Kind:    game.KindOf(err),
			Message: err.Error(),
		},
	}
}

// decodeAction reads a game action from an inbound message.
func decodeAction(msg Inbound) (game.Action, error) {
	action := game.Action{}
	if len(msg.Data) > 0 && string(msg.Data) != "null" {
		if err := json.Unmarshal(msg.Data, &action); err != nil {
			return game.Action{}, game.NewError(game.KindInvalidAction, "malformed %s payload: %v", msg.Type, err)
		}
	}
	action.Type = game.ActionType(msg.Type)
	return action, nil
}

func isGameAction(t string) bool {
	switch game.ActionType(t) {
	case game.ActionRollDice, game.ActionConfirmDice, game.ActionEndDefending,
		game.ActionYield, game.ActionBuyCard, game.ActionEndTurn:
		return true
	}
	return false
}
