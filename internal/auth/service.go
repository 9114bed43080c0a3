package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/domremont/backend/internal/user"
)

var ErrInvalidCode = errors.New("invalid or expired code")

// Service — вход по SMS-коду: код живет ограниченное время и хранится
// только в виде bcrypt-хэша.
type Service struct {
	db      *pgxpool.Pool
	users   user.Repository
	tokens  *TokenManager
	codeTTL time.Duration
}

func NewService(db *pgxpool.Pool, users user.Repository, tokens *TokenManager, codeTTL time.Duration) *Service {
	return &Service{db: db, users: users, tokens: tokens, codeTTL: codeTTL}
}

// SendCode генерирует 4-значный код и сохраняет его хэш.
// Интеграции с SMS-шлюзом нет: код пишется в лог.
func (s *Service) SendCode(ctx context.Context, phone string) error {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return fmt.Errorf("failed to generate code: %w", err)
	}
	code := fmt.Sprintf("%04d", 1000+n.Int64())

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash code: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO auth_codes (phone, code_hash, expires_at)
		VALUES ($1, $2, $3)
	`, phone, string(hash), time.Now().Add(s.codeTTL))
	if err != nil {
		return fmt.Errorf("failed to store auth code: %w", err)
	}

	log.Info().Str("phone", phone).Str("code", code).Msg("auth code issued")
	return nil
}

// VerifyCode сверяет код с последним неиспользованным хэшем, помечает его
// использованным, находит или создает пользователя и выдает токен.
func (s *Service) VerifyCode(ctx context.Context, phone, code string) (string, *user.User, error) {
	var (
		codeID   string
		codeHash string
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, code_hash
		FROM auth_codes
		WHERE phone = $1 AND NOT used AND expires_at > now()
		ORDER BY created_at DESC
		LIMIT 1
	`, phone).Scan(&codeID, &codeHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil, ErrInvalidCode
		}
		return "", nil, fmt.Errorf("failed to look up auth code: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(codeHash), []byte(code)) != nil {
		return "", nil, ErrInvalidCode
	}

	if _, err := s.db.Exec(ctx, `UPDATE auth_codes SET used = TRUE WHERE id = $1`, codeID); err != nil {
		return "", nil, fmt.Errorf("failed to mark auth code used: %w", err)
	}

	u, err := s.users.GetByPhone(ctx, phone)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			return "", nil, fmt.Errorf("failed to look up user: %w", err)
		}
		u, err = s.users.CreateWithPhone(ctx, phone)
		if err != nil {
			return "", nil, fmt.Errorf("failed to create user: %w", err)
		}
	}

	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}
