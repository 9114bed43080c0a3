package promo_test

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domremont/backend/internal/promo"
)

type mockRepository struct {
	getByCodeFunc             func(ctx context.Context, code string) (*promo.PromoCode, error)
	listActiveFunc            func(ctx context.Context) ([]promo.PromoCode, error)
	listActivationsByUserFunc func(ctx context.Context, userID uuid.UUID) ([]promo.Activation, error)
	activateFunc              func(ctx context.Context, promoID, userID uuid.UUID) (*promo.PromoCode, error)
}

func (m *mockRepository) GetByCode(ctx context.Context, code string) (*promo.PromoCode, error) {
	return m.getByCodeFunc(ctx, code)
}

func (m *mockRepository) ListActive(ctx context.Context) ([]promo.PromoCode, error) {
	return m.listActiveFunc(ctx)
}

func (m *mockRepository) ListActivationsByUser(ctx context.Context, userID uuid.UUID) ([]promo.Activation, error) {
	return m.listActivationsByUserFunc(ctx, userID)
}

func (m *mockRepository) Activate(ctx context.Context, promoID, userID uuid.UUID) (*promo.PromoCode, error) {
	return m.activateFunc(ctx, promoID, userID)
}

func mustUUID(t *testing.T) uuid.UUID {
	t.Helper()
	id, err := uuid.NewV4()
	require.NoError(t, err)
	return id
}

func TestServiceActivate(t *testing.T) {
	ctx := context.Background()

	userID := mustUUID(t)
	promoID := mustUUID(t)

	activeCode := func() *promo.PromoCode {
		return &promo.PromoCode{ID: promoID, Code: "WELCOME500", Points: 500, IsActive: true}
	}

	t.Run("activates code case-insensitively", func(t *testing.T) {
		repo := &mockRepository{
			getByCodeFunc: func(ctx context.Context, code string) (*promo.PromoCode, error) {
				assert.Equal(t, "WELCOME500", code)
				return activeCode(), nil
			},
			activateFunc: func(ctx context.Context, pID, uID uuid.UUID) (*promo.PromoCode, error) {
				assert.Equal(t, promoID, pID)
				assert.Equal(t, userID, uID)
				p := activeCode()
				p.UsedCount = 1
				return p, nil
			},
		}
		svc := promo.NewService(repo)

		result, err := svc.Activate(ctx, userID, "welcome500")
		require.NoError(t, err)

		assert.True(t, result.Success)
		assert.Equal(t, 500, result.Points)
		assert.Equal(t, 1, result.PromoCode.UsedCount)
	})

	t.Run("rejects unknown code", func(t *testing.T) {
		repo := &mockRepository{
			getByCodeFunc: func(ctx context.Context, code string) (*promo.PromoCode, error) {
				return nil, promo.ErrNotFound
			},
		}
		svc := promo.NewService(repo)

		_, err := svc.Activate(ctx, userID, "NOPE")
		assert.ErrorIs(t, err, promo.ErrCodeNotFound)
	})

	t.Run("rejects inactive code", func(t *testing.T) {
		repo := &mockRepository{
			getByCodeFunc: func(ctx context.Context, code string) (*promo.PromoCode, error) {
				p := activeCode()
				p.IsActive = false
				return p, nil
			},
		}
		svc := promo.NewService(repo)

		_, err := svc.Activate(ctx, userID, "WELCOME500")
		assert.ErrorIs(t, err, promo.ErrInactive)
	})

	t.Run("rejects expired code", func(t *testing.T) {
		expired := time.Now().Add(-time.Hour)
		repo := &mockRepository{
			getByCodeFunc: func(ctx context.Context, code string) (*promo.PromoCode, error) {
				p := activeCode()
				p.ExpiresAt = &expired
				return p, nil
			},
		}
		svc := promo.NewService(repo)

		_, err := svc.Activate(ctx, userID, "WELCOME500")
		assert.ErrorIs(t, err, promo.ErrExpired)
	})

	t.Run("rejects exhausted code before transaction", func(t *testing.T) {
		limit := 10
		repo := &mockRepository{
			getByCodeFunc: func(ctx context.Context, code string) (*promo.PromoCode, error) {
				p := activeCode()
				p.UsageLimit = &limit
				p.UsedCount = 10
				return p, nil
			},
			// activateFunc не задан: попадание в транзакцию уронит тест.
		}
		svc := promo.NewService(repo)

		_, err := svc.Activate(ctx, userID, "WELCOME500")
		assert.ErrorIs(t, err, promo.ErrLimitReached)
	})

	t.Run("limit race lost inside transaction", func(t *testing.T) {
		limit := 10
		repo := &mockRepository{
			getByCodeFunc: func(ctx context.Context, code string) (*promo.PromoCode, error) {
				p := activeCode()
				p.UsageLimit = &limit
				p.UsedCount = 9
				return p, nil
			},
			activateFunc: func(ctx context.Context, pID, uID uuid.UUID) (*promo.PromoCode, error) {
				return nil, promo.ErrLimitReached
			},
		}
		svc := promo.NewService(repo)

		_, err := svc.Activate(ctx, userID, "WELCOME500")
		assert.ErrorIs(t, err, promo.ErrLimitReached)
	})

	t.Run("rejects second activation by same user", func(t *testing.T) {
		repo := &mockRepository{
			getByCodeFunc: func(ctx context.Context, code string) (*promo.PromoCode, error) {
				return activeCode(), nil
			},
			activateFunc: func(ctx context.Context, pID, uID uuid.UUID) (*promo.PromoCode, error) {
				return nil, promo.ErrAlreadyUsed
			},
		}
		svc := promo.NewService(repo)

		_, err := svc.Activate(ctx, userID, "WELCOME500")
		assert.ErrorIs(t, err, promo.ErrAlreadyUsed)
	})
}

func TestServiceListForUser(t *testing.T) {
	ctx := context.Background()
	userID := mustUUID(t)

	repo := &mockRepository{
		listActivationsByUserFunc: func(ctx context.Context, uID uuid.UUID) ([]promo.Activation, error) {
			assert.Equal(t, userID, uID)
			return []promo.Activation{{Code: "WELCOME500", Points: 500}}, nil
		},
	}
	svc := promo.NewService(repo)

	activations, err := svc.ListForUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, activations, 1)
	assert.Equal(t, "WELCOME500", activations[0].Code)
}
