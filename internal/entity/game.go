package entity

import (
	"errors"
	"fmt"

	"github.com/playludo/ludo-backend/internal/apperror"
)

const (
	StatusWaiting  = "waiting"
	StatusOngoing  = "ongoing"
	StatusFinished = "finished"
)

// MaxConsecutiveSixes is the forfeit threshold: the third 6 in a row ends the
// turn with no move.
const MaxConsecutiveSixes = 3

var (
	ErrInvalidColor      = errors.New("invalid color")
	ErrUnknownGameStatus = errors.New("unknown game status")
)

// Game aggregates a room's players, board and turn state. It is a plain state
// machine: serialization of concurrent access is the room's job.
type Game struct {
	ID               string        `json:"id"`
	Players          []*Player     `json:"players"`
	Board            Board         `json:"board"`
	CurrentPlayer    int           `json:"current_player"`
	DiceValue        int           `json:"dice_value"`
	ConsecutiveSixes int           `json:"consecutive_sixes"`
	Status           string        `json:"status"`
	Winner           Color         `json:"winner,omitempty"`
	Chat             []ChatMessage `json:"chat,omitempty"`
}

func NewGame(id string) *Game {
	return &Game{
		ID:     id,
		Board:  NewBoard(),
		Status: StatusWaiting,
	}
}

// AddPlayer seats a player. The first joiner is the host; seat order is join
// order and defines turn order.
func (that *Game) AddPlayer(player *Player) error {
	if !player.Color.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidColor, player.Color)
	}

	if len(that.Players) >= MaxPlayers {
		return apperror.ErrRoomFull
	}

	for _, seated := range that.Players {
		if seated.Color == player.Color {
			return fmt.Errorf("%w: %s", apperror.ErrColorTaken, player.Color)
		}
	}

	that.Players = append(that.Players, player)

	return nil
}

// RemovePlayer unseats a player and keeps the turn pointer consistent: seats
// before the current one shift it down, and a leaver holding the turn hands it
// to the next seat with a fresh dice.
func (that *Game) RemovePlayer(playerID string) (*Player, bool) {
	index := that.PlayerIndex(playerID)
	if index < 0 {
		return nil, false
	}

	removed := that.Players[index]
	that.Players = append(that.Players[:index], that.Players[index+1:]...)

	switch {
	case len(that.Players) == 0:
		that.CurrentPlayer = 0
	case index < that.CurrentPlayer:
		that.CurrentPlayer--
	case index == that.CurrentPlayer:
		that.CurrentPlayer %= len(that.Players)
		that.DiceValue = 0
		that.ConsecutiveSixes = 0
	}

	return removed, true
}

func (that *Game) PlayerIndex(playerID string) int {
	for i, player := range that.Players {
		if player.ID == playerID {
			return i
		}
	}
	return -1
}

func (that *Game) PlayerByID(playerID string) *Player {
	if index := that.PlayerIndex(playerID); index >= 0 {
		return that.Players[index]
	}
	return nil
}

func (that *Game) HostID() string {
	if len(that.Players) == 0 {
		return ""
	}
	return that.Players[0].ID
}

// Start transitions waiting -> ongoing. Host only, 2+ players.
func (that *Game) Start(playerID string) error {
	if !that.IsWaiting() {
		return apperror.ErrGameAlreadyBegun
	}

	if playerID != that.HostID() {
		return apperror.ErrNotHost
	}

	if len(that.Players) < MinPlayers {
		return apperror.ErrNotEnoughPlayers
	}

	that.Status = StatusOngoing
	that.CurrentPlayer = 0
	that.DiceValue = 0
	that.ConsecutiveSixes = 0

	return nil
}

func (that *Game) CurrentPlayerEntity() *Player {
	if len(that.Players) == 0 {
		return nil
	}
	return that.Players[that.CurrentPlayer]
}

// RecordRoll stores a roll and tracks the consecutive-six counter; the counter
// resets on any non-six.
func (that *Game) RecordRoll(value int) {
	that.DiceValue = value
	if value == 6 {
		that.ConsecutiveSixes++
	} else {
		that.ConsecutiveSixes = 0
	}
}

// AdvanceTurn passes control to the next seat in join order, discarding any
// unused dice value.
func (that *Game) AdvanceTurn() {
	that.DiceValue = 0
	that.ConsecutiveSixes = 0
	if len(that.Players) > 0 {
		that.CurrentPlayer = (that.CurrentPlayer + 1) % len(that.Players)
	}
}

func (that *Game) DeclareWinner(color Color) {
	that.Winner = color
	that.Status = StatusFinished
	that.DiceValue = 0
	that.ConsecutiveSixes = 0
}

func (that *Game) AppendChat(message ChatMessage) {
	that.Chat = append(that.Chat, message)
	if len(that.Chat) > ChatLogLimit {
		that.Chat = that.Chat[len(that.Chat)-ChatLogLimit:]
	}
}

func (that *Game) IsFinished() bool {
	return that.Status == StatusFinished
}

func (that *Game) IsOngoing() bool {
	return that.Status == StatusOngoing
}

func (that *Game) IsWaiting() bool {
	return that.Status == StatusWaiting
}

func (that *Game) ConfirmOngoingState() error {
	switch {
	case that.IsWaiting():
		return apperror.ErrGameNotStarted
	case that.IsFinished():
		return apperror.ErrGameFinished
	case that.IsOngoing():
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownGameStatus, that.Status)
	}
}
