package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carp/internal/identity/models"
	id "carp/pkg/domain"
	"carp/pkg/platform/sentinel"
	"carp/pkg/platform/tx"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("national ID is unique", func(t *testing.T) {
		s := NewInMemoryStore()
		require.NoError(t, s.Create(ctx, models.NewParticipant("S1234567A", "Jane", now)))
		err := s.Create(ctx, models.NewParticipant("S1234567A", "Someone", now))
		assert.ErrorIs(t, err, sentinel.ErrAlreadyUsed)
	})

	t.Run("account is set once and owns one participant", func(t *testing.T) {
		s := NewInMemoryStore()
		a := models.NewParticipant("S1234567A", "Jane", now)
		b := models.NewParticipant("T7654321Z", "Lim", now)
		require.NoError(t, s.Create(ctx, a))
		require.NoError(t, s.Create(ctx, b))
		account := id.AccountID(uuid.New())

		require.NoError(t, s.SetAccount(ctx, a.ID, account, now))
		assert.ErrorIs(t, s.SetAccount(ctx, a.ID, id.AccountID(uuid.New()), now), sentinel.ErrAlreadyUsed)
		assert.ErrorIs(t, s.SetAccount(ctx, b.ID, account, now), sentinel.ErrAlreadyUsed)

		owned, err := s.FindByAccount(ctx, account)
		require.NoError(t, err)
		assert.Equal(t, a.ID, owned.ID)
	})

	t.Run("failed transaction undoes every write", func(t *testing.T) {
		s := NewInMemoryStore()
		existing := models.NewParticipant("G1111111B", "Tan", now)
		require.NoError(t, s.Create(ctx, existing))
		runner := tx.NewMemoryRunner()

		err := runner.RunInTx(ctx, func(txCtx context.Context) error {
			require.NoError(t, s.Create(txCtx, models.NewParticipant("S1234567A", "Jane", now)))
			require.NoError(t, s.UpdateName(txCtx, existing.ID, "Tan Ah Kow", now))
			require.NoError(t, s.SetAccount(txCtx, existing.ID, id.AccountID(uuid.New()), now))
			return errors.New("abort")
		})
		require.Error(t, err)

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		restored, err := s.FindByID(ctx, existing.ID)
		require.NoError(t, err)
		assert.Equal(t, "Tan", restored.FullName)
		assert.True(t, restored.IsShadow())
		_, err = s.FindByNationalID(ctx, "S1234567A")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}
