package room

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playludo/ludo-backend/internal/apperror"
	"github.com/playludo/ludo-backend/internal/entity"
	"github.com/playludo/ludo-backend/internal/repository"
)

// memGameRepo stores JSON blobs like the redis repository does, so restore
// paths exercise a real round-trip.
type memGameRepo struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemGameRepo() *memGameRepo {
	return &memGameRepo{blobs: make(map[string][]byte)}
}

func (that *memGameRepo) CreateOrUpdate(_ context.Context, game *entity.Game) error {
	blob, err := json.Marshal(game)
	if err != nil {
		return err
	}

	that.mu.Lock()
	that.blobs[game.ID] = blob
	that.mu.Unlock()
	return nil
}

func (that *memGameRepo) GetByID(_ context.Context, id string) (*entity.Game, error) {
	that.mu.Lock()
	blob, ok := that.blobs[id]
	that.mu.Unlock()

	if !ok {
		return nil, repository.ErrGameNotFound
	}

	var game entity.Game
	if err := json.Unmarshal(blob, &game); err != nil {
		return nil, err
	}
	return &game, nil
}

func (that *memGameRepo) DeleteByID(_ context.Context, id string) error {
	that.mu.Lock()
	delete(that.blobs, id)
	that.mu.Unlock()
	return nil
}

// scriptedRoller replays a fixed sequence of rolls.
type scriptedRoller struct {
	mu    sync.Mutex
	rolls []int
	next  int
}

func (that *scriptedRoller) Roll() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	value := that.rolls[that.next%len(that.rolls)]
	that.next++
	return value
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStartedRoom(t *testing.T, rolls ...int) (context.Context, *Room, *entity.Player, *entity.Player) {
	t.Helper()

	ctx := context.Background()
	registry := NewRegistry(testLogger(), newMemGameRepo(), &scriptedRoller{rolls: rolls}, time.Minute)

	alice := &entity.Player{ID: "alice", Name: "Alice", Color: entity.ColorRed}
	bob := &entity.Player{ID: "bob", Name: "Bob", Color: entity.ColorBlue}

	testRoom, err := registry.Create(ctx, alice)
	require.NoError(t, err)

	_, err = testRoom.Join(ctx, bob)
	require.NoError(t, err)

	_, err = testRoom.Start(ctx, alice.ID)
	require.NoError(t, err)

	return ctx, testRoom, alice, bob
}

func TestRoom_RollDice(t *testing.T) {
	t.Run("Only the current player may roll", func(t *testing.T) {
		// Given: an ongoing game, Alice's turn
		ctx, testRoom, _, bob := newStartedRoom(t, 6)

		// When: Bob rolls out of turn
		_, err := testRoom.RollDice(ctx, bob.ID)

		// Then: NotYourTurn
		assert.ErrorIs(t, err, apperror.ErrNotYourTurn)
	})

	t.Run("A second roll in the same turn is rejected", func(t *testing.T) {
		// Given: Alice has already rolled a 6
		ctx, testRoom, alice, _ := newStartedRoom(t, 6)
		_, err := testRoom.RollDice(ctx, alice.ID)
		require.NoError(t, err)

		// When: Alice rolls again before moving
		_, err = testRoom.RollDice(ctx, alice.ID)

		// Then: AlreadyRolled
		assert.ErrorIs(t, err, apperror.ErrAlreadyRolled)
	})

	t.Run("Rolling before the game starts is rejected", func(t *testing.T) {
		// Given: a waiting room
		ctx := context.Background()
		registry := NewRegistry(testLogger(), newMemGameRepo(), &scriptedRoller{rolls: []int{6}}, time.Minute)
		alice := &entity.Player{ID: "alice", Name: "Alice", Color: entity.ColorRed}
		testRoom, err := registry.Create(ctx, alice)
		require.NoError(t, err)

		// When: rolling
		_, err = testRoom.RollDice(ctx, alice.ID)

		// Then: GameNotStarted
		assert.ErrorIs(t, err, apperror.ErrGameNotStarted)
	})

	t.Run("A roll with no usable move auto-passes the turn", func(t *testing.T) {
		// Given: Alice rolled 6, brought a piece out and spent her bonus
		// roll; Bob is up with every piece still at home
		ctx, testRoom, alice, bob := newStartedRoom(t, 6, 3, 3)
		_, err := testRoom.RollDice(ctx, alice.ID)
		require.NoError(t, err)
		_, err = testRoom.MovePiece(ctx, alice.ID, entity.ColorRed, 0)
		require.NoError(t, err)
		_, err = testRoom.RollDice(ctx, alice.ID)
		require.NoError(t, err)
		_, err = testRoom.MovePiece(ctx, alice.ID, entity.ColorRed, 0)
		require.NoError(t, err)

		// When: Bob rolls a 3 with every piece still at home
		outcome, err := testRoom.RollDice(ctx, bob.ID)
		require.NoError(t, err)

		// Then: the turn auto-passes back to Alice
		assert.Equal(t, 3, outcome.Dice)
		assert.True(t, outcome.TurnChanged)
		assert.Contains(t, outcome.Message, "No legal moves")
		assert.Equal(t, 0, outcome.TurnSnapshot.CurrentPlayer)
		assert.Equal(t, 0, outcome.TurnSnapshot.DiceValue)
	})

	t.Run("Three consecutive sixes forfeit the turn with no move", func(t *testing.T) {
		// Given: Alice keeps rolling sixes and moving
		ctx, testRoom, alice, _ := newStartedRoom(t, 6, 6, 6)

		for i := 0; i < 2; i++ {
			_, err := testRoom.RollDice(ctx, alice.ID)
			require.NoError(t, err)
			_, err = testRoom.MovePiece(ctx, alice.ID, entity.ColorRed, 0)
			require.NoError(t, err)
		}

		// When: the third six lands
		outcome, err := testRoom.RollDice(ctx, alice.ID)
		require.NoError(t, err)

		// Then: the value is discarded and the turn is forfeited
		assert.Equal(t, 6, outcome.Dice)
		assert.True(t, outcome.TurnChanged)
		assert.Contains(t, outcome.Message, "forfeited")
		assert.Equal(t, 1, outcome.TurnSnapshot.CurrentPlayer)

		// And: no move is accepted for the discarded six
		_, err = testRoom.MovePiece(ctx, alice.ID, entity.ColorRed, 0)
		assert.ErrorIs(t, err, apperror.ErrNotYourTurn)
	})

	t.Run("Concurrent rolls are serialized, exactly one succeeds", func(t *testing.T) {
		// Given: an ongoing game, Alice's turn
		ctx, testRoom, alice, _ := newStartedRoom(t, 6)

		// When: two connections race the same roll
		errs := make(chan error, 2)
		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := testRoom.RollDice(ctx, alice.ID)
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		// Then: one roll lands, the other is rejected as a duplicate
		var succeeded, rejected int
		for err := range errs {
			if err == nil {
				succeeded++
			} else {
				assert.ErrorIs(t, err, apperror.ErrAlreadyRolled)
				rejected++
			}
		}
		assert.Equal(t, 1, succeeded)
		assert.Equal(t, 1, rejected)
	})
}

func TestRoom_MovePiece(t *testing.T) {
	t.Run("Moving without a roll is rejected", func(t *testing.T) {
		ctx, testRoom, alice, _ := newStartedRoom(t, 6)

		_, err := testRoom.MovePiece(ctx, alice.ID, entity.ColorRed, 0)

		assert.ErrorIs(t, err, apperror.ErrRollRequired)
	})

	t.Run("A player cannot move another color's pieces", func(t *testing.T) {
		// Given: Alice rolled a 6
		ctx, testRoom, alice, _ := newStartedRoom(t, 6)
		_, err := testRoom.RollDice(ctx, alice.ID)
		require.NoError(t, err)

		// When: Alice tries to move a blue piece
		_, err = testRoom.MovePiece(ctx, alice.ID, entity.ColorBlue, 0)

		// Then: the move is illegal and the dice is still live
		require.ErrorIs(t, err, apperror.ErrIllegalMove)
		assert.Equal(t, 6, testRoom.Snapshot().DiceValue)
	})

	t.Run("A consumed six grants a bonus roll", func(t *testing.T) {
		// Given: Alice rolled a 6 and moves out
		ctx, testRoom, alice, _ := newStartedRoom(t, 6)
		_, err := testRoom.RollDice(ctx, alice.ID)
		require.NoError(t, err)

		// When: the move lands
		outcome, err := testRoom.MovePiece(ctx, alice.ID, entity.ColorRed, 0)
		require.NoError(t, err)

		// Then: the turn stays with Alice awaiting a fresh roll
		assert.Contains(t, outcome.Message, "Roll again")
		assert.Equal(t, 0, outcome.TurnSnapshot.CurrentPlayer)
		assert.Equal(t, 0, outcome.TurnSnapshot.DiceValue)
	})

	t.Run("A non-six move passes the turn", func(t *testing.T) {
		// Given: Alice brought a piece out and rolled a 2 on her bonus
		ctx, testRoom, alice, _ := newStartedRoom(t, 6, 2)
		_, err := testRoom.RollDice(ctx, alice.ID)
		require.NoError(t, err)
		_, err = testRoom.MovePiece(ctx, alice.ID, entity.ColorRed, 0)
		require.NoError(t, err)
		_, err = testRoom.RollDice(ctx, alice.ID)
		require.NoError(t, err)

		// When: she moves with the 2
		outcome, err := testRoom.MovePiece(ctx, alice.ID, entity.ColorRed, 0)
		require.NoError(t, err)

		// Then: the turn passes to Bob
		assert.Contains(t, outcome.Message, "Turn passed")
		assert.Equal(t, 1, outcome.TurnSnapshot.CurrentPlayer)
	})

	t.Run("A capture is reported in the outcome", func(t *testing.T) {
		// Given: Bob's piece parked on a plain cell in Alice's path
		ctx, testRoom, alice, _ := newStartedRoom(t, 6, 4)
		testRoom.game.Board[entity.ColorBlue].Pieces[0] = entity.PathLocation(4)
		_, err := testRoom.RollDice(ctx, alice.ID)
		require.NoError(t, err)
		_, err = testRoom.MovePiece(ctx, alice.ID, entity.ColorRed, 0)
		require.NoError(t, err)
		_, err = testRoom.RollDice(ctx, alice.ID)
		require.NoError(t, err)

		// When: Alice advances from cell 0 onto cell 4
		outcome, err := testRoom.MovePiece(ctx, alice.ID, entity.ColorRed, 0)
		require.NoError(t, err)

		// Then: Bob's piece is back home and the capture is flagged
		require.NotNil(t, outcome.Captured)
		assert.Equal(t, entity.PieceRef{Color: entity.ColorBlue, Index: 0}, *outcome.Captured)
		assert.Contains(t, outcome.TurnSnapshot.Board[entity.ColorBlue].Home, 0)
	})

	t.Run("Finishing the last piece wins and freezes the room", func(t *testing.T) {
		// Given: Alice one exact step from her fourth finish
		ctx, testRoom, alice, bob := newStartedRoom(t, 1)
		board := testRoom.game.Board
		board[entity.ColorRed].Pieces[0] = entity.FinishedLocation()
		board[entity.ColorRed].Pieces[1] = entity.FinishedLocation()
		board[entity.ColorRed].Pieces[2] = entity.FinishedLocation()
		board[entity.ColorRed].Pieces[3] = entity.StretchLocation(4)
		_, err := testRoom.RollDice(ctx, alice.ID)
		require.NoError(t, err)

		// When: the final move lands
		outcome, err := testRoom.MovePiece(ctx, alice.ID, entity.ColorRed, 3)
		require.NoError(t, err)

		// Then: Alice wins and no further play is accepted
		assert.True(t, outcome.Won)
		assert.Equal(t, entity.ColorRed, outcome.TurnSnapshot.Winner)

		_, err = testRoom.RollDice(ctx, bob.ID)
		assert.ErrorIs(t, err, apperror.ErrGameFinished)
	})
}

func TestRoom_PassTurn(t *testing.T) {
	t.Run("Passing requires a rolled dice", func(t *testing.T) {
		ctx, testRoom, alice, _ := newStartedRoom(t, 6)

		_, err := testRoom.PassTurn(ctx, alice.ID)

		assert.ErrorIs(t, err, apperror.ErrRollRequired)
	})

	t.Run("A rolled six cannot be passed", func(t *testing.T) {
		// Given: Alice rolled a 6
		ctx, testRoom, alice, _ := newStartedRoom(t, 6)
		_, err := testRoom.RollDice(ctx, alice.ID)
		require.NoError(t, err)

		// When: she tries to pass instead of moving
		_, err = testRoom.PassTurn(ctx, alice.ID)

		// Then: the six must be played
		assert.ErrorIs(t, err, apperror.ErrMustUseSix)
	})

	t.Run("A movable non-six may still be voluntarily passed", func(t *testing.T) {
		// Given: Alice has a piece in play and a rolled 4 she could use
		ctx, testRoom, alice, _ := newStartedRoom(t, 6, 4)
		_, err := testRoom.RollDice(ctx, alice.ID)
		require.NoError(t, err)
		_, err = testRoom.MovePiece(ctx, alice.ID, entity.ColorRed, 0)
		require.NoError(t, err)
		_, err = testRoom.RollDice(ctx, alice.ID)
		require.NoError(t, err)

		// When: she passes
		outcome, err := testRoom.PassTurn(ctx, alice.ID)
		require.NoError(t, err)

		// Then: the turn moves to Bob with the dice discarded
		assert.Equal(t, 1, outcome.Snapshot.CurrentPlayer)
		assert.Equal(t, 0, outcome.Snapshot.DiceValue)
	})
}

func TestRoom_Membership(t *testing.T) {
	t.Run("A fifth joiner is rejected without changing the room", func(t *testing.T) {
		// Given: a full room
		ctx := context.Background()
		registry := NewRegistry(testLogger(), newMemGameRepo(), &scriptedRoller{rolls: []int{1}}, time.Minute)
		testRoom, err := registry.Create(ctx, &entity.Player{ID: "p0", Name: "P0", Color: entity.ColorRed})
		require.NoError(t, err)
		for i, color := range []entity.Color{entity.ColorBlue, entity.ColorGreen, entity.ColorYellow} {
			_, err = testRoom.Join(ctx, &entity.Player{ID: string(rune('a' + i)), Name: "P", Color: color})
			require.NoError(t, err)
		}

		// When: a fifth player joins
		_, err = testRoom.Join(ctx, &entity.Player{ID: "extra", Name: "Extra", Color: entity.ColorRed})

		// Then: RoomFull and the seats are untouched
		require.ErrorIs(t, err, apperror.ErrRoomFull)
		assert.Len(t, testRoom.MemberIDs(), 4)
	})

	t.Run("Rejoin reattaches a seated player without reseating", func(t *testing.T) {
		// Given: an ongoing game
		ctx, testRoom, alice, _ := newStartedRoom(t, 6)

		// When: Alice rejoins over a new connection
		snapshot, reseated, err := testRoom.Rejoin(ctx, alice)
		require.NoError(t, err)

		// Then: nothing changed, the snapshot is current
		assert.False(t, reseated)
		assert.Len(t, snapshot.PlayerOrder, 2)
	})

	t.Run("Rejoin reseats a dropped player with their stored color", func(t *testing.T) {
		// Given: Bob was unseated on disconnect
		ctx, testRoom, _, bob := newStartedRoom(t, 6)
		_, err := testRoom.Leave(ctx, bob.ID)
		require.NoError(t, err)

		// When: Bob rejoins
		snapshot, reseated, err := testRoom.Rejoin(ctx, bob)
		require.NoError(t, err)

		// Then: he is back with blue
		assert.True(t, reseated)
		assert.Equal(t, entity.ColorBlue, snapshot.Players[bob.ID].Color)
	})

	t.Run("Leave reports an empty started room for teardown", func(t *testing.T) {
		// Given: an ongoing two-player game
		ctx, testRoom, alice, bob := newStartedRoom(t, 6)

		// When: both players leave
		_, err := testRoom.Leave(ctx, alice.ID)
		require.NoError(t, err)
		outcome, err := testRoom.Leave(ctx, bob.ID)
		require.NoError(t, err)

		// Then: the outcome marks the room collectable
		assert.True(t, outcome.Empty)
		assert.True(t, outcome.Started)
	})
}

func TestRoom_Chat(t *testing.T) {
	t.Run("Messages are logged and attributed", func(t *testing.T) {
		ctx, testRoom, alice, _ := newStartedRoom(t, 6)

		posted, err := testRoom.PostChat(ctx, alice.ID, "good luck!")
		require.NoError(t, err)

		assert.Equal(t, "Alice", posted.PlayerName)
		assert.Equal(t, []entity.ChatMessage{{PlayerName: "Alice", Message: "good luck!"}}, testRoom.Snapshot().Chat)
	})

	t.Run("Strangers cannot post", func(t *testing.T) {
		ctx, testRoom, _, _ := newStartedRoom(t, 6)

		_, err := testRoom.PostChat(ctx, "stranger", "hello")

		assert.ErrorIs(t, err, apperror.ErrPlayerNotFound)
	})
}
