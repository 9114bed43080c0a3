package promo

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotFound     = errors.New("promo code not found")
	ErrAlreadyUsed  = errors.New("promo code already used")
	ErrLimitReached = errors.New("promo code usage limit reached")
)

type Repository interface {
	GetByCode(ctx context.Context, code string) (*PromoCode, error)
	ListActive(ctx context.Context) ([]PromoCode, error)
	ListActivationsByUser(ctx context.Context, userID uuid.UUID) ([]Activation, error)
	Activate(ctx context.Context, promoID, userID uuid.UUID) (*PromoCode, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

const promoColumns = `id, code, description, points, is_active, expires_at, usage_limit, used_count, created_at`

func scanPromo(row pgx.Row) (*PromoCode, error) {
	var p PromoCode
	err := row.Scan(
		&p.ID,
		&p.Code,
		&p.Description,
		&p.Points,
		&p.IsActive,
		&p.ExpiresAt,
		&p.UsageLimit,
		&p.UsedCount,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *postgresRepository) GetByCode(ctx context.Context, code string) (*PromoCode, error) {
	p, err := scanPromo(r.db.QueryRow(ctx, `SELECT `+promoColumns+` FROM promo_codes WHERE code = $1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to select promo code: %w", err)
	}
	return p, nil
}

func (r *postgresRepository) ListActive(ctx context.Context) ([]PromoCode, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+promoColumns+`
		FROM promo_codes
		WHERE is_active AND (expires_at IS NULL OR expires_at > NOW())
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query promo codes: %w", err)
	}
	defer rows.Close()

	codes := make([]PromoCode, 0)
	for rows.Next() {
		p, err := scanPromo(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan promo code: %w", err)
		}
		codes = append(codes, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating promo codes: %w", err)
	}

	return codes, nil
}

func (r *postgresRepository) ListActivationsByUser(ctx context.Context, userID uuid.UUID) ([]Activation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT p.id, p.code, p.description, u.points, u.created_at
		FROM promo_code_usages u
		JOIN promo_codes p ON p.id = u.promo_code_id
		WHERE u.user_id = $1
		ORDER BY u.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query promo activations: %w", err)
	}
	defer rows.Close()

	activations := make([]Activation, 0)
	for rows.Next() {
		var a Activation
		if err := rows.Scan(&a.PromoCodeID, &a.Code, &a.Description, &a.Points, &a.UsedAt); err != nil {
			return nil, fmt.Errorf("repository: failed to scan promo activation: %w", err)
		}
		activations = append(activations, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating promo activations: %w", err)
	}

	return activations, nil
}

// Activate применяет промокод в одной транзакции: строка кода
// блокируется, лимит проверяется по числу записей активаций, и
// used_count после вставки пересчитывается из того же источника.
func (r *postgresRepository) Activate(ctx context.Context, promoID, userID uuid.UUID) (p *PromoCode, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Error().Err(rbErr).Stringer("promo_id", promoID).Msg("failed to rollback promo activation")
			}
		}
	}()

	p, err = scanPromo(tx.QueryRow(ctx, `SELECT `+promoColumns+` FROM promo_codes WHERE id = $1 FOR UPDATE`, promoID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to lock promo code %s: %w", promoID, err)
	}

	var used int
	if err = tx.QueryRow(ctx, `SELECT COUNT(*) FROM promo_code_usages WHERE promo_code_id = $1`, promoID).Scan(&used); err != nil {
		return nil, fmt.Errorf("repository: failed to count promo activations: %w", err)
	}
	if p.UsageLimit != nil && used >= *p.UsageLimit {
		return nil, ErrLimitReached
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO promo_code_usages (promo_code_id, user_id, points)
		VALUES ($1, $2, $3)
	`, promoID, userID, p.Points)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, ErrAlreadyUsed
		}
		return nil, fmt.Errorf("repository: failed to insert promo activation: %w", err)
	}

	err = tx.QueryRow(ctx, `
		UPDATE promo_codes
		SET used_count = (SELECT COUNT(*) FROM promo_code_usages WHERE promo_code_id = $1)
		WHERE id = $1
		RETURNING used_count
	`, promoID).Scan(&p.UsedCount)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to recalculate promo usage count: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE users SET points = points + $2 WHERE id = $1`, userID, p.Points)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to award promo points: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("repository: failed to commit promo activation: %w", err)
	}
	return p, nil
}
