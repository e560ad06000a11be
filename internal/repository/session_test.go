package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playludo/ludo-backend/internal/entity"
	"github.com/playludo/ludo-backend/testing/suite"
)

func TestSessionRepository_GetByID(t *testing.T) {
	t.Run("GetByID_Success", func(t *testing.T) {
		ctx, st := suite.New(t)

		sessionRepo := NewSessionRepository(st.Storage)

		// Given: a stored session bound to a seated player
		session := &entity.Session{
			ID:       "sess-1",
			PlayerID: "p1",
			Name:     "Alice",
			Color:    entity.ColorRed,
			RoomID:   "ab12cd34",
		}
		require.NoError(t, sessionRepo.CreateOrUpdate(ctx, session))

		// When: GetByID is called with existing ID
		retrievedSession, err := sessionRepo.GetByID(ctx, session.ID)

		// Then: the stored identity comes back intact
		require.NoError(t, err)
		assert.Equal(t, session, retrievedSession)
	})

	t.Run("GetByID_NotFound", func(t *testing.T) {
		ctx, st := suite.New(t)

		sessionRepo := NewSessionRepository(st.Storage)

		// When: GetByID is called with an unknown ID
		_, err := sessionRepo.GetByID(ctx, "missing")

		// Then: ErrSessionNotFound is returned
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})
}

func TestSessionRepository_DeleteByID(t *testing.T) {
	ctx, st := suite.New(t)

	sessionRepo := NewSessionRepository(st.Storage)

	// Given: a stored session
	session := &entity.Session{ID: "sess-1", PlayerID: "p1", Name: "Alice"}
	require.NoError(t, sessionRepo.CreateOrUpdate(ctx, session))

	// When: DeleteByID is called
	err := sessionRepo.DeleteByID(ctx, session.ID)

	// Then: the session is gone
	require.NoError(t, err)
	_, err = sessionRepo.GetByID(ctx, session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
