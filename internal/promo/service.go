package promo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrCodeNotFound = errors.New("promo code not found")
	ErrInactive     = errors.New("promo code is not active")
	ErrExpired      = errors.New("promo code has expired")
)

type Service interface {
	Activate(ctx context.Context, userID uuid.UUID, code string) (*ActivationResult, error)
	ListActive(ctx context.Context) ([]PromoCode, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]Activation, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// Activate начисляет баллы промокода, не больше одного раза на
// пользователя. Лимит и счетчик использований окончательно проверяются
// в транзакции репозитория, здесь только быстрые отказы.
func (s *service) Activate(ctx context.Context, userID uuid.UUID, code string) (*ActivationResult, error) {
	p, err := s.repo.GetByCode(ctx, strings.ToUpper(code))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("service: failed to look up promo code: %w", err)
	}

	if !p.IsActive {
		return nil, ErrInactive
	}
	if p.ExpiresAt != nil && p.ExpiresAt.Before(time.Now()) {
		return nil, ErrExpired
	}
	if p.UsageLimit != nil && p.UsedCount >= *p.UsageLimit {
		return nil, ErrLimitReached
	}

	applied, err := s.repo.Activate(ctx, p.ID, userID)
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadyUsed):
			return nil, ErrAlreadyUsed
		case errors.Is(err, ErrLimitReached):
			return nil, ErrLimitReached
		default:
			return nil, fmt.Errorf("service: failed to activate promo code: %w", err)
		}
	}

	log.Info().Stringer("user_id", userID).Str("code", p.Code).Int("points", p.Points).Msg("promo code activated")

	return &ActivationResult{Success: true, Points: p.Points, PromoCode: applied}, nil
}

func (s *service) ListActive(ctx context.Context) ([]PromoCode, error) {
	codes, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list promo codes: %w", err)
	}
	return codes, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID) ([]Activation, error) {
	activations, err := s.repo.ListActivationsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list promo activations: %w", err)
	}
	return activations, nil
}
