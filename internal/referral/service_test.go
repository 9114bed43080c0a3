package referral_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domremont/backend/internal/referral"
)

type mockRepository struct {
	getByReferredIDFunc          func(ctx context.Context, referredID uuid.UUID) (*referral.Referral, error)
	createFunc                   func(ctx context.Context, referrerID, referredID uuid.UUID) (*referral.Referral, error)
	listByReferrerIDFunc         func(ctx context.Context, referrerID uuid.UUID) ([]referral.ReferredUser, error)
	completeFunc                 func(ctx context.Context, referralID, referrerID, referredID uuid.UUID, points int) error
	getUserReferralCodeFunc      func(ctx context.Context, userID uuid.UUID) (*string, error)
	findUserIDByReferralCodeFunc func(ctx context.Context, code string) (uuid.UUID, error)
	setUserReferralCodeFunc      func(ctx context.Context, userID uuid.UUID, code string) error
}

func (m *mockRepository) GetByReferredID(ctx context.Context, referredID uuid.UUID) (*referral.Referral, error) {
	return m.getByReferredIDFunc(ctx, referredID)
}

func (m *mockRepository) Create(ctx context.Context, referrerID, referredID uuid.UUID) (*referral.Referral, error) {
	return m.createFunc(ctx, referrerID, referredID)
}

func (m *mockRepository) ListByReferrerID(ctx context.Context, referrerID uuid.UUID) ([]referral.ReferredUser, error) {
	return m.listByReferrerIDFunc(ctx, referrerID)
}

func (m *mockRepository) Complete(ctx context.Context, referralID, referrerID, referredID uuid.UUID, points int) error {
	return m.completeFunc(ctx, referralID, referrerID, referredID, points)
}

func (m *mockRepository) GetUserReferralCode(ctx context.Context, userID uuid.UUID) (*string, error) {
	return m.getUserReferralCodeFunc(ctx, userID)
}

func (m *mockRepository) FindUserIDByReferralCode(ctx context.Context, code string) (uuid.UUID, error) {
	return m.findUserIDByReferralCodeFunc(ctx, code)
}

func (m *mockRepository) SetUserReferralCode(ctx context.Context, userID uuid.UUID, code string) error {
	return m.setUserReferralCodeFunc(ctx, userID, code)
}

func mustUUID(t *testing.T) uuid.UUID {
	t.Helper()
	id, err := uuid.NewV4()
	require.NoError(t, err)
	return id
}

func TestServiceActivate(t *testing.T) {
	ctx := context.Background()

	referrerID := mustUUID(t)
	userID := mustUUID(t)

	t.Run("activates code case-insensitively", func(t *testing.T) {
		repo := &mockRepository{
			findUserIDByReferralCodeFunc: func(ctx context.Context, code string) (uuid.UUID, error) {
				assert.Equal(t, "ABCD2345", code)
				return referrerID, nil
			},
			getByReferredIDFunc: func(ctx context.Context, id uuid.UUID) (*referral.Referral, error) {
				return nil, referral.ErrNotFound
			},
			createFunc: func(ctx context.Context, rID, uID uuid.UUID) (*referral.Referral, error) {
				return &referral.Referral{ReferrerID: rID, ReferredID: uID, Status: referral.StatusPending}, nil
			},
		}
		svc := referral.NewService(repo)

		ref, err := svc.Activate(ctx, userID, "abcd2345")
		require.NoError(t, err)
		assert.Equal(t, referrerID, ref.ReferrerID)
		assert.Equal(t, referral.StatusPending, ref.Status)
	})

	t.Run("rejects own code", func(t *testing.T) {
		repo := &mockRepository{
			findUserIDByReferralCodeFunc: func(ctx context.Context, code string) (uuid.UUID, error) {
				return userID, nil
			},
		}
		svc := referral.NewService(repo)

		_, err := svc.Activate(ctx, userID, "ABCD2345")
		assert.ErrorIs(t, err, referral.ErrOwnCode)
	})

	t.Run("rejects unknown code", func(t *testing.T) {
		repo := &mockRepository{
			findUserIDByReferralCodeFunc: func(ctx context.Context, code string) (uuid.UUID, error) {
				return uuid.Nil, referral.ErrNotFound
			},
		}
		svc := referral.NewService(repo)

		_, err := svc.Activate(ctx, userID, "NOPE2345")
		assert.ErrorIs(t, err, referral.ErrCodeNotFound)
	})

	t.Run("rejects second activation", func(t *testing.T) {
		repo := &mockRepository{
			findUserIDByReferralCodeFunc: func(ctx context.Context, code string) (uuid.UUID, error) {
				return referrerID, nil
			},
			getByReferredIDFunc: func(ctx context.Context, id uuid.UUID) (*referral.Referral, error) {
				return &referral.Referral{ReferredID: id, Status: referral.StatusPending}, nil
			},
		}
		svc := referral.NewService(repo)

		_, err := svc.Activate(ctx, userID, "ABCD2345")
		assert.ErrorIs(t, err, referral.ErrAlreadyActivated)
	})
}

func TestServiceGetOrCreateCode(t *testing.T) {
	ctx := context.Background()
	userID := mustUUID(t)

	t.Run("returns existing code", func(t *testing.T) {
		existing := "XYZW2345"
		repo := &mockRepository{
			getUserReferralCodeFunc: func(ctx context.Context, id uuid.UUID) (*string, error) {
				return &existing, nil
			},
		}
		svc := referral.NewService(repo)

		code, err := svc.GetOrCreateCode(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, existing, code)
	})

	t.Run("generates and retries on taken code", func(t *testing.T) {
		attempts := 0
		repo := &mockRepository{
			getUserReferralCodeFunc: func(ctx context.Context, id uuid.UUID) (*string, error) {
				return nil, nil
			},
			setUserReferralCodeFunc: func(ctx context.Context, id uuid.UUID, code string) error {
				attempts++
				if attempts == 1 {
					return referral.ErrCodeTaken
				}
				return nil
			},
		}
		svc := referral.NewService(repo)

		code, err := svc.GetOrCreateCode(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, 2, attempts)

		assert.Len(t, code, 8)
		for _, r := range code {
			assert.True(t, strings.ContainsRune("ABCDEFGHJKLMNPQRSTUVWXYZ23456789", r), "unexpected rune %q", r)
		}
	})
}

func TestServiceComplete(t *testing.T) {
	ctx := context.Background()

	referredID := mustUUID(t)
	referrerID := mustUUID(t)
	referralID := mustUUID(t)

	t.Run("awards points to both sides", func(t *testing.T) {
		var gotPoints int
		repo := &mockRepository{
			getByReferredIDFunc: func(ctx context.Context, id uuid.UUID) (*referral.Referral, error) {
				return &referral.Referral{ID: referralID, ReferrerID: referrerID, ReferredID: referredID, Status: referral.StatusPending}, nil
			},
			completeFunc: func(ctx context.Context, refID, rID, uID uuid.UUID, points int) error {
				assert.Equal(t, referralID, refID)
				assert.Equal(t, referrerID, rID)
				assert.Equal(t, referredID, uID)
				gotPoints = points
				return nil
			},
		}
		svc := referral.NewService(repo)

		err := svc.Complete(ctx, referredID)
		require.NoError(t, err)
		assert.Equal(t, referral.RewardPoints, gotPoints)
	})

	t.Run("no referral is a no-op", func(t *testing.T) {
		repo := &mockRepository{
			getByReferredIDFunc: func(ctx context.Context, id uuid.UUID) (*referral.Referral, error) {
				return nil, referral.ErrNotFound
			},
		}
		svc := referral.NewService(repo)

		assert.NoError(t, svc.Complete(ctx, referredID))
	})

	t.Run("completed referral is a no-op", func(t *testing.T) {
		completedAt := time.Now()
		repo := &mockRepository{
			getByReferredIDFunc: func(ctx context.Context, id uuid.UUID) (*referral.Referral, error) {
				return &referral.Referral{
					ID:          referralID,
					Status:      referral.StatusCompleted,
					Points:      referral.RewardPoints,
					CompletedAt: &completedAt,
				}, nil
			},
			// completeFunc не задан: повторное начисление уронит тест.
		}
		svc := referral.NewService(repo)

		assert.NoError(t, svc.Complete(ctx, referredID))
	})

	t.Run("repository failure propagates", func(t *testing.T) {
		repo := &mockRepository{
			getByReferredIDFunc: func(ctx context.Context, id uuid.UUID) (*referral.Referral, error) {
				return &referral.Referral{ID: referralID, Status: referral.StatusPending}, nil
			},
			completeFunc: func(ctx context.Context, refID, rID, uID uuid.UUID, points int) error {
				return errors.New("tx failed")
			},
		}
		svc := referral.NewService(repo)

		assert.Error(t, svc.Complete(ctx, referredID))
	})
}

func TestServiceStats(t *testing.T) {
	ctx := context.Background()
	userID := mustUUID(t)
	code := "QWER2345"

	completedAt := time.Now()
	referred := []referral.ReferredUser{
		{
			Referral: referral.Referral{
				ID:          mustUUID(t),
				Status:      referral.StatusCompleted,
				Points:      referral.RewardPoints,
				CreatedAt:   time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
				CompletedAt: &completedAt,
			},
			FirstName: "Анна",
			LastName:  "Петрова",
		},
		{
			Referral: referral.Referral{
				ID:        mustUUID(t),
				Status:    referral.StatusPending,
				CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
			},
		},
	}

	repo := &mockRepository{
		listByReferrerIDFunc: func(ctx context.Context, id uuid.UUID) ([]referral.ReferredUser, error) {
			return referred, nil
		},
		getUserReferralCodeFunc: func(ctx context.Context, id uuid.UUID) (*string, error) {
			return &code, nil
		},
	}
	svc := referral.NewService(repo)

	stats, err := svc.Stats(ctx, userID)
	require.NoError(t, err)

	assert.Equal(t, code, stats.ReferralCode)
	assert.Equal(t, 2, stats.TotalReferrals)
	assert.Equal(t, referral.RewardPoints, stats.TotalEarned)
	assert.Equal(t, referral.RewardPoints, stats.PendingEarned)

	require.Len(t, stats.Referrals, 2)
	assert.Equal(t, "Анна Петрова", stats.Referrals[0].Name)
	assert.Equal(t, "2026-01-15", stats.Referrals[0].Date)
	assert.Equal(t, referral.RewardPoints, stats.Referrals[0].Earned)
	assert.Equal(t, "Пользователь", stats.Referrals[1].Name)
	assert.Equal(t, 0, stats.Referrals[1].Earned)
}
