package referral

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrOwnCode      = errors.New("cannot activate your own referral code")
	ErrCodeNotFound = errors.New("referral code not found")
)

// Алфавит без похожих символов (0/O, 1/I/L).
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeLength = 8

type Service interface {
	Activate(ctx context.Context, userID uuid.UUID, code string) (*Referral, error)
	GetOrCreateCode(ctx context.Context, userID uuid.UUID) (string, error)
	Stats(ctx context.Context, userID uuid.UUID) (*StatsResponse, error)
	Complete(ctx context.Context, referredID uuid.UUID) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// Activate связывает пользователя с владельцем кода. Повторная активация
// и активация собственного кода запрещены.
func (s *service) Activate(ctx context.Context, userID uuid.UUID, code string) (*Referral, error) {
	referrerID, err := s.repo.FindUserIDByReferralCode(ctx, strings.ToUpper(code))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("service: failed to look up referral code: %w", err)
	}

	if referrerID == userID {
		return nil, ErrOwnCode
	}

	if _, err := s.repo.GetByReferredID(ctx, userID); err == nil {
		return nil, ErrAlreadyActivated
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("service: failed to check existing referral: %w", err)
	}

	ref, err := s.repo.Create(ctx, referrerID, userID)
	if err != nil {
		if errors.Is(err, ErrAlreadyActivated) {
			return nil, ErrAlreadyActivated
		}
		return nil, fmt.Errorf("service: failed to create referral: %w", err)
	}

	log.Info().Stringer("referrer_id", referrerID).Stringer("referred_id", userID).Msg("referral code activated")
	return ref, nil
}

func (s *service) GetOrCreateCode(ctx context.Context, userID uuid.UUID) (string, error) {
	existing, err := s.repo.GetUserReferralCode(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("service: failed to get referral code: %w", err)
	}
	if existing != nil {
		return *existing, nil
	}

	// Повторяем, пока не попадем в свободный код.
	for {
		code, err := generateCode()
		if err != nil {
			return "", fmt.Errorf("service: failed to generate referral code: %w", err)
		}

		err = s.repo.SetUserReferralCode(ctx, userID, code)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, ErrCodeTaken) {
			return "", fmt.Errorf("service: failed to save referral code: %w", err)
		}
	}
}

func (s *service) Stats(ctx context.Context, userID uuid.UUID) (*StatsResponse, error) {
	referred, err := s.repo.ListByReferrerID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list referrals: %w", err)
	}

	code, err := s.GetOrCreateCode(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats := &StatsResponse{
		ReferralCode:   code,
		TotalReferrals: len(referred),
		Referrals:      make([]ReferralInfo, 0, len(referred)),
	}

	for _, ru := range referred {
		if ru.Referral.Status == StatusCompleted {
			stats.TotalEarned += ru.Referral.Points
		} else {
			stats.PendingEarned += RewardPoints
		}

		name := strings.TrimSpace(ru.FirstName + " " + ru.LastName)
		if name == "" {
			name = "Пользователь"
		}

		earned := ru.Referral.Points
		if earned == 0 && ru.Referral.Status == StatusCompleted {
			earned = RewardPoints
		}

		stats.Referrals = append(stats.Referrals, ReferralInfo{
			ID:     ru.Referral.ID,
			Name:   name,
			Date:   ru.Referral.CreatedAt.Format("2006-01-02"),
			Status: ru.Referral.Status,
			Earned: earned,
		})
	}

	return stats, nil
}

// Complete — одноразовый триггер награды: вызывается при завершении первой
// заявки приглашенного. Без реферала или при уже завершенном реферале — no-op.
func (s *service) Complete(ctx context.Context, referredID uuid.UUID) error {
	ref, err := s.repo.GetByReferredID(ctx, referredID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return fmt.Errorf("service: failed to get referral for completion: %w", err)
	}

	if ref.Status == StatusCompleted {
		return nil
	}

	if err := s.repo.Complete(ctx, ref.ID, ref.ReferrerID, ref.ReferredID, RewardPoints); err != nil {
		return fmt.Errorf("service: failed to complete referral: %w", err)
	}

	log.Info().Stringer("referred_id", referredID).Msg("referral completed, points awarded")
	return nil
}

func generateCode() (string, error) {
	var sb strings.Builder
	for i := 0; i < codeLength; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", err
		}
		sb.WriteByte(codeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}
