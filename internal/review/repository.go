package review

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

	"github.com/domremont/backend/internal/order"
)

var (
	ErrNotFound        = errors.New("review not found")
	ErrAlreadyReviewed = errors.New("order already has a review")
)

type Repository interface {
	Create(ctx context.Context, rv *Review) error
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*Review, error)
	ListByServiceID(ctx context.Context, serviceID uuid.UUID, p order.Pagination) ([]Review, int, float64, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

const reviewColumns = `id, order_id, service_id, author_id, master_id, rating, comment, created_at`

func scanReview(row pgx.Row) (*Review, error) {
	var rv Review
	err := row.Scan(
		&rv.ID,
		&rv.OrderID,
		&rv.ServiceID,
		&rv.AuthorID,
		&rv.MasterID,
		&rv.Rating,
		&rv.Comment,
		&rv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rv, nil
}

// Create сохраняет отзыв и пересчитывает рейтинг мастера в одной
// транзакции. Рейтинг и число отзывов берутся заново из таблицы
// отзывов, а не инкрементируются.
func (r *postgresRepository) Create(ctx context.Context, rv *Review) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Error().Err(rbErr).Stringer("order_id", rv.OrderID).Msg("failed to rollback review creation")
			}
		}
	}()

	err = tx.QueryRow(ctx, `
		INSERT INTO reviews (order_id, service_id, author_id, master_id, rating, comment)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, rv.OrderID, rv.ServiceID, rv.AuthorID, rv.MasterID, rv.Rating, rv.Comment).Scan(&rv.ID, &rv.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrAlreadyReviewed
		}
		return fmt.Errorf("repository: failed to insert review: %w", err)
	}

	if rv.MasterID != nil {
		_, err = tx.Exec(ctx, `
			UPDATE users
			SET rating = agg.avg_rating, reviews_count = agg.cnt
			FROM (
				SELECT COALESCE(AVG(rating), 0)::double precision AS avg_rating, COUNT(*) AS cnt
				FROM reviews
				WHERE master_id = $1
			) agg
			WHERE users.id = $1
		`, rv.MasterID)
		if err != nil {
			return fmt.Errorf("repository: failed to recalculate master rating: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository: failed to commit review creation: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*Review, error) {
	rv, err := scanReview(r.db.QueryRow(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE order_id = $1`, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to select review for order %s: %w", orderID, err)
	}
	return rv, nil
}

func (r *postgresRepository) ListByServiceID(ctx context.Context, serviceID uuid.UUID, p order.Pagination) ([]Review, int, float64, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+reviewColumns+`
		FROM reviews
		WHERE service_id = $1
		ORDER BY created_at DESC
		OFFSET $2 LIMIT $3
	`, serviceID, p.Offset(), p.Limit)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("repository: failed to query reviews: %w", err)
	}
	defer rows.Close()

	reviews := make([]Review, 0, p.Limit)
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("repository: failed to scan review: %w", err)
		}
		reviews = append(reviews, *rv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, 0, fmt.Errorf("repository: error iterating reviews: %w", err)
	}

	var (
		total int
		avg   float64
	)
	err = r.db.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(AVG(rating), 0)::double precision
		FROM reviews
		WHERE service_id = $1
	`, serviceID).Scan(&total, &avg)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("repository: failed to aggregate reviews: %w", err)
	}

	return reviews, total, avg, nil
}
