package repository

import (
	"testing"

	"github.com/playtrio/tictactoe-backend/internal/apperror"
	"github.com/playtrio/tictactoe-backend/internal/entity"
	"github.com/playtrio/tictactoe-backend/testing/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository(t *testing.T) {
	t.Run("Save then Find round-trips", func(t *testing.T) {
		ctx, st := suite.NewSQLite(t)

		userRepo := NewUserRepository(st.Connection)

		require.NoError(t, userRepo.Save(ctx, &entity.User{ID: "user-1", Username: "alice"}))

		found, err := userRepo.Find(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, "alice", found.Username)
	})

	t.Run("Save overwrites the stored username", func(t *testing.T) {
		ctx, st := suite.NewSQLite(t)

		userRepo := NewUserRepository(st.Connection)

		require.NoError(t, userRepo.Save(ctx, &entity.User{ID: "user-1", Username: "alice"}))
		require.NoError(t, userRepo.Save(ctx, &entity.User{ID: "user-1", Username: "alice2"}))

		found, err := userRepo.Find(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, "alice2", found.Username)
	})

	t.Run("Find of an unknown user reports not found", func(t *testing.T) {
		ctx, st := suite.NewSQLite(t)

		userRepo := NewUserRepository(st.Connection)

		_, err := userRepo.Find(ctx, "user-9")
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})
}
