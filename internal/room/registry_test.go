package room

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playludo/ludo-backend/internal/apperror"
	"github.com/playludo/ludo-backend/internal/entity"
)

func TestRegistry_CreateAndGet(t *testing.T) {
	t.Run("Create issues a short lowercase id and seats the host", func(t *testing.T) {
		// Given: an empty registry
		ctx := context.Background()
		registry := NewRegistry(testLogger(), newMemGameRepo(), &scriptedRoller{rolls: []int{1}}, time.Minute)

		// When: a room is created
		created, err := registry.Create(ctx, &entity.Player{ID: "h", Name: "Host", Color: entity.ColorGreen})
		require.NoError(t, err)

		// Then: the id is URL-safe and the host is seated
		assert.Len(t, created.ID(), 8)
		assert.Equal(t, []string{"h"}, created.MemberIDs())
	})

	t.Run("Get matches ids case-insensitively", func(t *testing.T) {
		// Given: a created room
		ctx := context.Background()
		registry := NewRegistry(testLogger(), newMemGameRepo(), &scriptedRoller{rolls: []int{1}}, time.Minute)
		created, err := registry.Create(ctx, &entity.Player{ID: "h", Name: "Host", Color: entity.ColorGreen})
		require.NoError(t, err)

		// When: looking it up with uppercase letters
		found, err := registry.Get(ctx, strings.ToUpper(created.ID()))
		require.NoError(t, err)

		// Then: the same room is returned
		assert.Same(t, created, found)
	})

	t.Run("Unknown ids are RoomNotFound", func(t *testing.T) {
		ctx := context.Background()
		registry := NewRegistry(testLogger(), newMemGameRepo(), &scriptedRoller{rolls: []int{1}}, time.Minute)

		_, err := registry.Get(ctx, "deadbeef")

		assert.ErrorIs(t, err, apperror.ErrRoomNotFound)
	})

	t.Run("A room missing from memory is restored from storage", func(t *testing.T) {
		// Given: two registries sharing one store, as across a restart
		ctx := context.Background()
		repo := newMemGameRepo()
		first := NewRegistry(testLogger(), repo, &scriptedRoller{rolls: []int{1}}, time.Minute)
		created, err := first.Create(ctx, &entity.Player{ID: "h", Name: "Host", Color: entity.ColorGreen})
		require.NoError(t, err)

		second := NewRegistry(testLogger(), repo, &scriptedRoller{rolls: []int{1}}, time.Minute)

		// When: the second registry resolves the id
		restored, err := second.Get(ctx, created.ID())
		require.NoError(t, err)

		// Then: the room comes back with its players intact
		assert.Equal(t, []string{"h"}, restored.MemberIDs())
	})

	t.Run("Remove deletes the room and its stored snapshot", func(t *testing.T) {
		// Given: a created room
		ctx := context.Background()
		repo := newMemGameRepo()
		registry := NewRegistry(testLogger(), repo, &scriptedRoller{rolls: []int{1}}, time.Minute)
		created, err := registry.Create(ctx, &entity.Player{ID: "h", Name: "Host", Color: entity.ColorGreen})
		require.NoError(t, err)

		// When: removing it
		registry.Remove(ctx, created.ID())

		// Then: it is gone from memory and storage alike
		_, err = registry.Get(ctx, created.ID())
		assert.ErrorIs(t, err, apperror.ErrRoomNotFound)
	})

	t.Run("ReleaseIfEmpty destroys only empty started rooms", func(t *testing.T) {
		// Given: an ongoing game both players abandon
		ctx, testRoom, alice, bob := newStartedRoom(t, 6)
		repo := newMemGameRepo()
		registry := NewRegistry(testLogger(), repo, &scriptedRoller{rolls: []int{1}}, time.Minute)
		registry.rooms[testRoom.ID()] = testRoom

		_, err := testRoom.Leave(ctx, alice.ID)
		require.NoError(t, err)
		outcome, err := testRoom.Leave(ctx, bob.ID)
		require.NoError(t, err)

		// When: the teardown policy runs
		registry.ReleaseIfEmpty(ctx, outcome, testRoom.ID())

		// Then: the room is gone
		_, err = registry.Get(ctx, testRoom.ID())
		assert.ErrorIs(t, err, apperror.ErrRoomNotFound)
	})

	t.Run("The janitor reaps an idle empty unstarted room", func(t *testing.T) {
		// Given: an empty never-started room idle past the TTL
		ctx := context.Background()
		repo := newMemGameRepo()
		registry := NewRegistry(testLogger(), repo, &scriptedRoller{rolls: []int{1}}, time.Nanosecond)
		created, err := registry.Create(ctx, &entity.Player{ID: "h", Name: "Host", Color: entity.ColorGreen})
		require.NoError(t, err)
		_, err = created.Leave(ctx, "h")
		require.NoError(t, err)
		time.Sleep(time.Millisecond)

		// When: a reap pass runs
		registry.reapIdleRooms(ctx)

		// Then: the room is gone
		_, err = registry.Get(ctx, created.ID())
		assert.ErrorIs(t, err, apperror.ErrRoomNotFound)
	})
}

// failingGameRepo simulates a store that is down.
type failingGameRepo struct{ err error }

func (that *failingGameRepo) CreateOrUpdate(context.Context, *entity.Game) error { return that.err }
func (that *failingGameRepo) GetByID(context.Context, string) (*entity.Game, error) {
	return nil, that.err
}
func (that *failingGameRepo) DeleteByID(context.Context, string) error { return that.err }

// gatedGameRepo delegates to an in-memory repo but can hold GetByID until a
// gate channel is closed.
type gatedGameRepo struct {
	inner *memGameRepo

	mu   sync.Mutex
	gate chan struct{}
}

func (that *gatedGameRepo) setGate(gate chan struct{}) {
	that.mu.Lock()
	that.gate = gate
	that.mu.Unlock()
}

func (that *gatedGameRepo) CreateOrUpdate(ctx context.Context, game *entity.Game) error {
	return that.inner.CreateOrUpdate(ctx, game)
}

func (that *gatedGameRepo) GetByID(ctx context.Context, id string) (*entity.Game, error) {
	that.mu.Lock()
	gate := that.gate
	that.mu.Unlock()

	if gate != nil {
		<-gate
	}

	return that.inner.GetByID(ctx, id)
}

func (that *gatedGameRepo) DeleteByID(ctx context.Context, id string) error {
	return that.inner.DeleteByID(ctx, id)
}

func TestRegistry_CreateStoreFaults(t *testing.T) {
	t.Run("A store failure during id probing is reported, not masked", func(t *testing.T) {
		// Given: a registry whose store is down
		ctx := context.Background()
		storeErr := errors.New("connection refused")
		registry := NewRegistry(testLogger(), &failingGameRepo{err: storeErr}, &scriptedRoller{rolls: []int{1}}, time.Minute)

		// When: creating a room
		_, err := registry.Create(ctx, &entity.Player{ID: "h", Name: "Host", Color: entity.ColorGreen})

		// Then: the store failure surfaces instead of an id-exhaustion error
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrIDGeneration)
		assert.ErrorIs(t, err, storeErr)
	})

	t.Run("A slow store during Create does not stall lookups of live rooms", func(t *testing.T) {
		// Given: a live room, then a store that blocks reads
		ctx := context.Background()
		repo := &gatedGameRepo{inner: newMemGameRepo()}
		registry := NewRegistry(testLogger(), repo, &scriptedRoller{rolls: []int{1}}, time.Minute)

		created, err := registry.Create(ctx, &entity.Player{ID: "h", Name: "Host", Color: entity.ColorGreen})
		require.NoError(t, err)

		gate := make(chan struct{})
		repo.setGate(gate)

		createDone := make(chan struct{})
		go func() {
			defer close(createDone)
			_, _ = registry.Create(ctx, &entity.Player{ID: "h2", Name: "Other", Color: entity.ColorRed})
		}()

		// When: looking up the live room while the new Create waits on storage
		found := make(chan error, 1)
		go func() {
			_, getErr := registry.Get(ctx, created.ID())
			found <- getErr
		}()

		// Then: the in-memory room resolves promptly
		select {
		case getErr := <-found:
			assert.NoError(t, getErr)
		case <-time.After(2 * time.Second):
			t.Fatal("lookup stalled behind a slow room creation")
		}

		close(gate)
		<-createDone
	})
}
