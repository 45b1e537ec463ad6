package game

// Event payloads published on the room event bus.

// PlayerJoinedPayload is published when a player takes a seat.
type PlayerJoinedPayload struct {
	Player          PlayerSnapshot `json:"player"`
	Seat            int            `json:"seat"`
	Players         int            `json:"players"`
	RequiredPlayers int            `json:"required_players"`
}

// PlayerLeftPayload is published when a player leaves the room.
type PlayerLeftPayload struct {
	PlayerID string `json:"player_id"`
	Players  int    `json:"players"`
}

// GameStartedPayload is published once the room is full.
type GameStartedPayload struct {
	Players     []PlayerSnapshot `json:"players"`
	FirstPlayer string           `json:"first_player"`
}

// TurnStartedPayload opens a player's turn.
type TurnStartedPayload struct {
	PlayerID   string `json:"player_id"`
	TurnNumber int    `json:"turn_number"`
	Seat       int    `json:"seat"`
}

// DiceRolledPayload carries the faces after a roll or reroll.
type DiceRolledPayload struct {
	PlayerID    string   `json:"player_id"`
	Dice        []string `json:"dice"`
	RerollsLeft int      `json:"rerolls_left"`
}

// RollResolvedPayload reports what the confirmed dice did.
type RollResolvedPayload struct {
	Report  RollReport       `json:"report"`
	Players []PlayerSnapshot `json:"players"`
}

// DefenseSubmittedPayload records one defender's choice.
type DefenseSubmittedPayload struct {
	PlayerID string        `json:"player_id"`
	Choice   DefenseChoice `json:"choice"`
	TimedOut bool          `json:"timed_out,omitempty"`
}

// DefenseRoundPayload closes a defense round with its combat outcome.
type DefenseRoundPayload struct {
	Outcome CombatOutcome    `json:"outcome"`
	Players []PlayerSnapshot `json:"players"`
}

// ZoneTakeoverPayload announces a change of zone occupant.
type ZoneTakeoverPayload struct {
	NewOccupant      string `json:"new_occupant"`
	PreviousOccupant string `json:"previous_occupant,omitempty"`
	Reason           string `json:"reason"`
}

// CardPurchasedPayload reports a purchase and its effect.
type CardPurchasedPayload struct {
	Purchase Purchase         `json:"purchase"`
	Players  []PlayerSnapshot `json:"players"`
}

// TurnEndedPayload is published when the active player ends the turn.
type TurnEndedPayload struct {
	PlayerID   string           `json:"player_id"`
	TurnNumber int              `json:"turn_number"`
	Players    []PlayerSnapshot `json:"players"`
}

// PlayerEliminatedPayload names a player whose HP reached zero.
type PlayerEliminatedPayload struct {
	PlayerID string `json:"player_id"`
}

// GameOverPayload ends the game. Winner is empty when nobody survived.
type GameOverPayload struct {
	Winner     string           `json:"winner,omitempty"`
	WinnerName string           `json:"winner_name,omitempty"`
	Players    []PlayerSnapshot `json:"players"`
}

// RoomCreatedPayload announces a new room.
type RoomCreatedPayload struct {
	RoomID  int    `json:"room_id"`
	Creator string `json:"creator"`
}

// ErrorPayload is sent privately to the player whose action was rejected.
type ErrorPayload struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}
