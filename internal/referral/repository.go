package referral

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotFound         = errors.New("referral not found")
	ErrAlreadyActivated = errors.New("referral code already activated")
	ErrCodeTaken        = errors.New("referral code already taken")
)

// ReferredUser — имя приглашенного для статистики.
type ReferredUser struct {
	Referral  Referral
	FirstName string
	LastName  string
}

type Repository interface {
	GetByReferredID(ctx context.Context, referredID uuid.UUID) (*Referral, error)
	Create(ctx context.Context, referrerID, referredID uuid.UUID) (*Referral, error)
	ListByReferrerID(ctx context.Context, referrerID uuid.UUID) ([]ReferredUser, error)
	Complete(ctx context.Context, referralID, referrerID, referredID uuid.UUID, points int) error
	GetUserReferralCode(ctx context.Context, userID uuid.UUID) (*string, error)
	FindUserIDByReferralCode(ctx context.Context, code string) (uuid.UUID, error)
	SetUserReferralCode(ctx context.Context, userID uuid.UUID, code string) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) GetByReferredID(ctx context.Context, referredID uuid.UUID) (*Referral, error) {
	query := `
		SELECT id, referrer_id, referred_id, status, points, created_at, completed_at
		FROM referrals
		WHERE referred_id = $1
	`

	var ref Referral
	err := r.db.QueryRow(ctx, query, referredID).Scan(
		&ref.ID,
		&ref.ReferrerID,
		&ref.ReferredID,
		&ref.Status,
		&ref.Points,
		&ref.CreatedAt,
		&ref.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to select referral: %w", err)
	}
	return &ref, nil
}

func (r *postgresRepository) Create(ctx context.Context, referrerID, referredID uuid.UUID) (*Referral, error) {
	query := `
		INSERT INTO referrals (referrer_id, referred_id, status, points)
		VALUES ($1, $2, 'PENDING', 0)
		RETURNING id, referrer_id, referred_id, status, points, created_at, completed_at
	`

	var ref Referral
	err := r.db.QueryRow(ctx, query, referrerID, referredID).Scan(
		&ref.ID,
		&ref.ReferrerID,
		&ref.ReferredID,
		&ref.Status,
		&ref.Points,
		&ref.CreatedAt,
		&ref.CompletedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, ErrAlreadyActivated
		}
		return nil, fmt.Errorf("repository: failed to insert referral: %w", err)
	}
	return &ref, nil
}

func (r *postgresRepository) ListByReferrerID(ctx context.Context, referrerID uuid.UUID) ([]ReferredUser, error) {
	query := `
		SELECT r.id, r.referrer_id, r.referred_id, r.status, r.points, r.created_at, r.completed_at,
		       u.first_name, u.last_name
		FROM referrals r
		JOIN users u ON u.id = r.referred_id
		WHERE r.referrer_id = $1
		ORDER BY r.created_at DESC
	`

	rows, err := r.db.Query(ctx, query, referrerID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query referrals: %w", err)
	}
	defer rows.Close()

	referred := make([]ReferredUser, 0)
	for rows.Next() {
		var ru ReferredUser
		err := rows.Scan(
			&ru.Referral.ID,
			&ru.Referral.ReferrerID,
			&ru.Referral.ReferredID,
			&ru.Referral.Status,
			&ru.Referral.Points,
			&ru.Referral.CreatedAt,
			&ru.Referral.CompletedAt,
			&ru.FirstName,
			&ru.LastName,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan referral: %w", err)
		}
		referred = append(referred, ru)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating referrals: %w", err)
	}

	return referred, nil
}

// Complete переводит реферал в COMPLETED и начисляет баллы обеим сторонам
// одной транзакцией. Условие на статус делает операцию идемпотентной при
// конкурентных вызовах.
func (r *postgresRepository) Complete(ctx context.Context, referralID, referrerID, referredID uuid.UUID, points int) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Error().Err(rbErr).Msg("failed to rollback referral completion")
			}
		}
	}()

	cmdTag, err := tx.Exec(ctx, `
		UPDATE referrals
		SET status = 'COMPLETED', points = $2, completed_at = $3
		WHERE id = $1 AND status <> 'COMPLETED'
	`, referralID, points, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("repository: failed to complete referral: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		// Уже завершен конкурентным вызовом.
		return tx.Rollback(ctx)
	}

	_, err = tx.Exec(ctx, `UPDATE users SET points = points + $2 WHERE id = $1`, referrerID, points)
	if err != nil {
		return fmt.Errorf("repository: failed to award referrer points: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE users SET points = points + $2 WHERE id = $1`, referredID, points)
	if err != nil {
		return fmt.Errorf("repository: failed to award referred points: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository: failed to commit referral completion: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetUserReferralCode(ctx context.Context, userID uuid.UUID) (*string, error) {
	var code *string
	err := r.db.QueryRow(ctx, `SELECT referral_code FROM users WHERE id = $1`, userID).Scan(&code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to select referral code: %w", err)
	}
	return code, nil
}

func (r *postgresRepository) FindUserIDByReferralCode(ctx context.Context, code string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.QueryRow(ctx, `SELECT id FROM users WHERE referral_code = $1`, code).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("repository: failed to select user by referral code: %w", err)
	}
	return id, nil
}

func (r *postgresRepository) SetUserReferralCode(ctx context.Context, userID uuid.UUID, code string) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET referral_code = $2 WHERE id = $1`, userID, code)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrCodeTaken
		}
		return fmt.Errorf("repository: failed to set referral code: %w", err)
	}
	return nil
}
