package game

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Checksum returns a SHA-256 digest of the game-relevant parts of the
// snapshot. Timestamps are excluded so equal states hash equally.
func (s RoomSnapshot) Checksum() string {
	sum := sha256.Sum256([]byte(s.canonical()))
	return hex.EncodeToString(sum[:])
}

func (s RoomSnapshot) canonical() string {
	var b strings.Builder
	fmt.Fprintf(&b, "room=%d|phase=%s|turn=%d|index=%d|current=%s|occupant=%s|winner=%s\n",
		s.ID, s.Phase, s.TurnNumber, s.CurrentTurnIndex, s.CurrentPlayer, s.Occupant, s.Winner)
	fmt.Fprintf(&b, "dice=%s|rerolls=%d\n", strings.Join(s.Dice, ","), s.RerollsLeft)
	if s.PendingAttack != nil {
		fmt.Fprintf(&b, "attack=%s:%d|defended=%s\n",
			s.PendingAttack.Source, s.PendingAttack.Damage, strings.Join(s.Defended, ","))
	}
	for _, p := range s.Players {
		fmt.Fprintf(&b, "player=%s|%s|hp=%d/%d|vp=%d|energy=%d|zone=%t|cards=%s|out=%t|left=%t\n",
			p.ID, p.Name, p.HP, p.MaxHP, p.VictoryPoints, p.Energy, p.InZone,
			strings.Join(p.OwnedCards, ","), p.Eliminated, p.Left)
	}
	return b.String()
}
