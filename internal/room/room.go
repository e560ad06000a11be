// Package room owns the live games. A Room serializes every mutating intent
// for one game behind its own mutex, so two players racing a dice roll are
// ordered, and no room ever blocks another. The Registry keys rooms by id.
package room

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/playludo/ludo-backend/internal/apperror"
	"github.com/playludo/ludo-backend/internal/dice"
	"github.com/playludo/ludo-backend/internal/entity"
	"github.com/playludo/ludo-backend/internal/ludo"
)

type gameRepo interface {
	CreateOrUpdate(ctx context.Context, game *entity.Game) error
	GetByID(ctx context.Context, id string) (*entity.Game, error)
	DeleteByID(ctx context.Context, id string) error
}

// Room serializes all mutations of one game. Every operation validates at the
// boundary, mutates, persists a write-through snapshot and returns deep-copied
// state; failed operations change nothing and are reported only to the caller.
type Room struct {
	logger *slog.Logger
	games  gameRepo
	roller dice.Roller

	// sendMu orders event delivery; see Serialized
	sendMu sync.Mutex

	mu         sync.Mutex
	game       *entity.Game
	lastActive time.Time
}

func newRoom(logger *slog.Logger, games gameRepo, roller dice.Roller, game *entity.Game) *Room {
	return &Room{
		logger:     logger.With("component", "room", "gameID", game.ID),
		games:      games,
		roller:     roller,
		game:       game,
		lastActive: time.Now(),
	}
}

func (that *Room) ID() string {
	return that.game.ID
}

// Serialized runs fn under the room's delivery lock. The transport wraps a
// mutation together with the events it produces, so every member observes
// updates in the order the room applied them. The lock is separate from the
// state mutex: fn may call any room operation.
func (that *Room) Serialized(fn func() error) error {
	that.sendMu.Lock()
	defer that.sendMu.Unlock()

	return fn()
}

// Snapshot returns a deep copy of the current state; safe to hold while the
// room keeps mutating.
func (that *Room) Snapshot() *entity.GameState {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.game.Snapshot()
}

// MemberIDs lists the seated players, join-ordered.
func (that *Room) MemberIDs() []string {
	that.mu.Lock()
	defer that.mu.Unlock()

	ids := make([]string, 0, len(that.game.Players))
	for _, player := range that.game.Players {
		ids = append(ids, player.ID)
	}
	return ids
}

// Join seats a new player.
func (that *Room) Join(ctx context.Context, player *entity.Player) (*entity.GameState, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if err := that.game.AddPlayer(player); err != nil {
		return nil, err
	}

	that.touch()
	that.persist(ctx)

	return that.game.Snapshot(), nil
}

// Rejoin re-binds a returning player identity. If the seat is still held the
// game is untouched; if the player had been dropped, the seat is retaken with
// the stored color.
func (that *Room) Rejoin(ctx context.Context, player *entity.Player) (*entity.GameState, bool, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.game.PlayerByID(player.ID) != nil {
		that.touch()
		return that.game.Snapshot(), false, nil
	}

	if err := that.game.AddPlayer(player); err != nil {
		return nil, false, err
	}

	that.touch()
	that.persist(ctx)

	return that.game.Snapshot(), true, nil
}

// LeaveOutcome reports what a departure left behind.
type LeaveOutcome struct {
	Player   *entity.Player
	Empty    bool
	Started  bool
	Snapshot *entity.GameState
}

// Leave unseats a player; their pieces stay where they are. The turn pointer
// is repaired by the game entity.
func (that *Room) Leave(ctx context.Context, playerID string) (*LeaveOutcome, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	removed, ok := that.game.RemovePlayer(playerID)
	if !ok {
		return nil, apperror.ErrPlayerNotFound
	}

	that.touch()
	that.persist(ctx)

	return &LeaveOutcome{
		Player:   removed,
		Empty:    len(that.game.Players) == 0,
		Started:  !that.game.IsWaiting(),
		Snapshot: that.game.Snapshot(),
	}, nil
}

// Start begins play. Host only, 2+ players.
func (that *Room) Start(ctx context.Context, playerID string) (*entity.GameState, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if err := that.game.Start(playerID); err != nil {
		return nil, err
	}

	that.touch()
	that.persist(ctx)

	return that.game.Snapshot(), nil
}

// RollOutcome carries the roll broadcast plus, when the roll itself ended the
// turn (third six or no legal move), the follow-up turn change.
type RollOutcome struct {
	Dice           int
	RolledSnapshot *entity.GameState
	TurnChanged    bool
	TurnSnapshot   *entity.GameState
	Message        string
}

// RollDice rolls for the current player. A third consecutive six forfeits the
// turn with the value discarded; a roll with no usable move auto-passes.
func (that *Room) RollDice(ctx context.Context, playerID string) (*RollOutcome, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if err := that.game.ConfirmOngoingState(); err != nil {
		return nil, err
	}

	current := that.game.CurrentPlayerEntity()
	if current == nil || current.ID != playerID {
		return nil, apperror.ErrNotYourTurn
	}

	if that.game.DiceValue != 0 {
		return nil, apperror.ErrAlreadyRolled
	}

	value := that.roller.Roll()
	that.game.RecordRoll(value)

	outcome := &RollOutcome{
		Dice:           value,
		RolledSnapshot: that.game.Snapshot(),
	}

	switch {
	case value == 6 && that.game.ConsecutiveSixes >= entity.MaxConsecutiveSixes:
		that.game.AdvanceTurn()
		outcome.TurnChanged = true
		outcome.Message = fmt.Sprintf("Three sixes in a row! Turn forfeited, %s is up.", that.currentColor())
	case !ludo.HasLegalMove(that.game.Board, current.Color, value):
		that.game.AdvanceTurn()
		outcome.TurnChanged = true
		outcome.Message = fmt.Sprintf("No legal moves for a %d. Turn passed to %s.", value, that.currentColor())
	}

	if outcome.TurnChanged {
		outcome.TurnSnapshot = that.game.Snapshot()
	}

	that.touch()
	that.persist(ctx)

	return outcome, nil
}

// MoveOutcome carries the move broadcast and the resulting turn change.
type MoveOutcome struct {
	Color         entity.Color
	Piece         int
	Dice          int
	Captured      *entity.PieceRef
	Won           bool
	MovedSnapshot *entity.GameState
	TurnSnapshot  *entity.GameState
	Message       string
}

// MovePiece applies a move for the rolled value. The client's "from" hint is
// ignored; legality is derived from the authoritative board. A move consumes
// the dice; a consumed six earns a bonus roll, anything else passes the turn.
func (that *Room) MovePiece(ctx context.Context, playerID string, color entity.Color, piece int) (*MoveOutcome, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if err := that.game.ConfirmOngoingState(); err != nil {
		return nil, err
	}

	current := that.game.CurrentPlayerEntity()
	if current == nil || current.ID != playerID {
		return nil, apperror.ErrNotYourTurn
	}

	if that.game.DiceValue == 0 {
		return nil, apperror.ErrRollRequired
	}

	if current.Color != color {
		return nil, fmt.Errorf("%w: %s cannot move %s pieces", apperror.ErrIllegalMove, current.Color, color)
	}

	rolled := that.game.DiceValue

	result, err := ludo.Apply(that.game.Board, color, piece, rolled)
	if err != nil {
		return nil, err
	}

	outcome := &MoveOutcome{
		Color:         color,
		Piece:         piece,
		Dice:          rolled,
		Captured:      result.Captured,
		Won:           result.Won,
		MovedSnapshot: that.game.Snapshot(),
	}

	switch {
	case result.Won:
		that.game.DeclareWinner(color)
		outcome.Message = fmt.Sprintf("%s wins the game!", color)
	case rolled == 6:
		// bonus roll: dice resets, the consecutive-six counter survives
		that.game.DiceValue = 0
		outcome.Message = "Roll again! You got a 6."
	default:
		that.game.AdvanceTurn()
		outcome.Message = fmt.Sprintf("Turn passed to %s.", that.currentColor())
	}

	outcome.TurnSnapshot = that.game.Snapshot()

	that.touch()
	that.persist(ctx)

	return outcome, nil
}

// PassOutcome is the turn change produced by a voluntary pass.
type PassOutcome struct {
	Snapshot *entity.GameState
	Message  string
}

// PassTurn forfeits a rolled value. A six can never be passed; it must be
// played.
func (that *Room) PassTurn(ctx context.Context, playerID string) (*PassOutcome, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if err := that.game.ConfirmOngoingState(); err != nil {
		return nil, err
	}

	current := that.game.CurrentPlayerEntity()
	if current == nil || current.ID != playerID {
		return nil, apperror.ErrNotYourTurn
	}

	if that.game.DiceValue == 0 {
		return nil, apperror.ErrRollRequired
	}

	if that.game.DiceValue == 6 {
		return nil, apperror.ErrMustUseSix
	}

	that.game.AdvanceTurn()

	that.touch()
	that.persist(ctx)

	return &PassOutcome{
		Snapshot: that.game.Snapshot(),
		Message:  fmt.Sprintf("Turn passed to %s.", that.currentColor()),
	}, nil
}

// PostChat appends a message to the room's chat log.
func (that *Room) PostChat(ctx context.Context, playerID, text string) (*entity.ChatMessage, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	player := that.game.PlayerByID(playerID)
	if player == nil {
		return nil, apperror.ErrPlayerNotFound
	}

	message := entity.ChatMessage{
		PlayerName: player.Name,
		Message:    text,
	}

	that.game.AppendChat(message)

	that.touch()
	that.persist(ctx)

	return &message, nil
}

func (that *Room) currentColor() entity.Color {
	if current := that.game.CurrentPlayerEntity(); current != nil {
		return current.Color
	}
	return ""
}

func (that *Room) touch() {
	that.lastActive = time.Now()
}

// persist is write-through and best-effort: the in-memory room stays
// authoritative, a storage hiccup must not fail a player's move.
func (that *Room) persist(ctx context.Context) {
	if err := that.games.CreateOrUpdate(ctx, that.game); err != nil {
		that.logger.Error("failed to persist game snapshot", "error", err)
	}
}

// reapable reports whether the janitor may collect this room: empty, never
// started, idle past the TTL.
func (that *Room) reapable(idleTTL time.Duration) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.game.Players) == 0 && that.game.IsWaiting() && time.Since(that.lastActive) > idleTTL
}
