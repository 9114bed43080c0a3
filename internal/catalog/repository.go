package catalog

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Service, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

// FindByIDs возвращает только найденные услуги: неизвестные id
// просто отсутствуют в результате.
func (r *postgresRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Service, error) {
	if len(ids) == 0 {
		return []Service{}, nil
	}

	query := `SELECT id, name, price FROM services WHERE id = ANY($1)`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query services: %w", err)
	}
	defer rows.Close()

	services := make([]Service, 0, len(ids))
	for rows.Next() {
		var s Service
		if err := rows.Scan(&s.ID, &s.Name, &s.Price); err != nil {
			return nil, fmt.Errorf("repository: failed to scan service: %w", err)
		}
		services = append(services, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating services: %w", err)
	}

	return services, nil
}
