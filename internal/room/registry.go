package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/playludo/ludo-backend/internal/apperror"
	"github.com/playludo/ludo-backend/internal/dice"
	"github.com/playludo/ludo-backend/internal/entity"
	"github.com/playludo/ludo-backend/internal/pkg"
	"github.com/playludo/ludo-backend/internal/repository"
)

var ErrIDGeneration = errors.New("could not generate a free room id")

const idAttempts = 5

// Registry owns the arena of rooms keyed by id. There is no global game lock:
// the registry map has its own mutex, each room has its own, and no operation
// holds both while doing game work.
type Registry struct {
	logger  *slog.Logger
	games   gameRepo
	roller  dice.Roller
	idleTTL time.Duration

	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewRegistry(logger *slog.Logger, games gameRepo, roller dice.Roller, idleTTL time.Duration) *Registry {
	return &Registry{
		logger:  logger.With("component", "registry"),
		games:   games,
		roller:  roller,
		idleTTL: idleTTL,
		rooms:   make(map[string]*Room),
	}
}

// Create makes a room with a fresh collision-checked id and seats the host.
// Storage probes and the initial persist run outside the registry lock so a
// slow store never stalls lookups of live rooms.
func (that *Registry) Create(ctx context.Context, host *entity.Player) (*Room, error) {
	for i := 0; i < idAttempts; i++ {
		id := pkg.GenerateRoomID()

		if that.inMemory(id) {
			continue
		}

		// a restorable snapshot in storage also counts as taken
		_, err := that.games.GetByID(ctx, id)
		if err == nil {
			continue
		}
		if !errors.Is(err, repository.ErrGameNotFound) {
			return nil, fmt.Errorf("failed to probe room id: %w", err)
		}

		game := entity.NewGame(id)
		if err = game.AddPlayer(host); err != nil {
			return nil, fmt.Errorf("failed to seat host: %w", err)
		}

		created := newRoom(that.logger, that.games, that.roller, game)

		that.mu.Lock()
		if _, taken := that.rooms[id]; taken {
			// lost the id to a concurrent Create between probe and insert
			that.mu.Unlock()
			continue
		}
		that.rooms[id] = created
		that.mu.Unlock()

		created.persist(ctx)

		that.logger.Info("room created", "gameID", id)

		return created, nil
	}

	return nil, ErrIDGeneration
}

func (that *Registry) inMemory(id string) bool {
	that.mu.RLock()
	defer that.mu.RUnlock()

	_, ok := that.rooms[id]
	return ok
}

// Get resolves a room id. Ids are matched case-insensitively. A room missing
// from memory but present in storage is restored, which is what lets clients
// rejoin across a server restart.
func (that *Registry) Get(ctx context.Context, id string) (*Room, error) {
	id = strings.ToLower(id)

	that.mu.RLock()
	existing, ok := that.rooms[id]
	that.mu.RUnlock()

	if ok {
		return existing, nil
	}

	game, err := that.games.GetByID(ctx, id)
	if errors.Is(err, repository.ErrGameNotFound) {
		return nil, apperror.ErrRoomNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to look up room: %w", err)
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	// another connection may have restored it while we read storage
	if existing, ok = that.rooms[id]; ok {
		return existing, nil
	}

	restored := newRoom(that.logger, that.games, that.roller, game)
	that.rooms[id] = restored

	that.logger.Info("room restored from storage", "gameID", id)

	return restored, nil
}

// Remove drops a room from the arena and deletes its stored snapshot.
func (that *Registry) Remove(ctx context.Context, id string) {
	id = strings.ToLower(id)

	that.mu.Lock()
	delete(that.rooms, id)
	that.mu.Unlock()

	if err := that.games.DeleteByID(ctx, id); err != nil {
		that.logger.Error("failed to delete stored game", "gameID", id, "error", err)
	}

	that.logger.Info("room removed", "gameID", id)
}

// ReleaseIfEmpty applies the teardown policy after a departure: an empty
// started room is destroyed immediately, an empty unstarted room is kept for
// rejoining players until the janitor's idle TTL expires.
func (that *Registry) ReleaseIfEmpty(ctx context.Context, outcome *LeaveOutcome, roomID string) {
	if outcome.Empty && outcome.Started {
		that.Remove(ctx, roomID)
	}
}

// RunJanitor reaps idle empty rooms until the context is canceled.
func (that *Registry) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			that.reapIdleRooms(ctx)
		}
	}
}

func (that *Registry) reapIdleRooms(ctx context.Context) {
	that.mu.RLock()
	var stale []string
	for id, idleRoom := range that.rooms {
		if idleRoom.reapable(that.idleTTL) {
			stale = append(stale, id)
		}
	}
	that.mu.RUnlock()

	for _, id := range stale {
		that.logger.Info("reaping idle room", "gameID", id)
		that.Remove(ctx, id)
	}
}
