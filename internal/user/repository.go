package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound     = errors.New("user not found")
	ErrCityNotFound = errors.New("city not found")
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByPhone(ctx context.Context, phone string) (*User, error)
	CreateWithPhone(ctx context.Context, phone string) (*User, error)
	GetCityByID(ctx context.Context, id uuid.UUID) (*City, error)
	GetCityByName(ctx context.Context, name string) (*City, error)
	ListActiveCities(ctx context.Context) ([]City, error)
	FindActiveMasterTokensByCity(ctx context.Context, cityID uuid.UUID) ([]string, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

const userColumns = `id, phone, first_name, last_name, role, city_id, is_active, push_token, points, referral_code, rating, reviews_count, created_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.Phone,
		&u.FirstName,
		&u.LastName,
		&u.Role,
		&u.CityID,
		&u.IsActive,
		&u.PushToken,
		&u.Points,
		&u.ReferralCode,
		&u.Rating,
		&u.ReviewsCount,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to select user by id %s: %w", id, err)
	}
	return u, nil
}

func (r *postgresRepository) GetByPhone(ctx context.Context, phone string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE phone = $1`

	u, err := scanUser(r.db.QueryRow(ctx, query, phone))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to select user by phone: %w", err)
	}
	return u, nil
}

func (r *postgresRepository) CreateWithPhone(ctx context.Context, phone string) (*User, error) {
	query := `
		INSERT INTO users (phone, role)
		VALUES ($1, 'CLIENT')
		RETURNING ` + userColumns

	u, err := scanUser(r.db.QueryRow(ctx, query, phone))
	if err != nil {
		return nil, fmt.Errorf("repository: failed to insert user: %w", err)
	}
	return u, nil
}

func (r *postgresRepository) GetCityByID(ctx context.Context, id uuid.UUID) (*City, error) {
	query := `SELECT id, name, region, is_active FROM cities WHERE id = $1`

	var c City
	err := r.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.Region, &c.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCityNotFound
		}
		return nil, fmt.Errorf("repository: failed to select city by id %s: %w", id, err)
	}
	return &c, nil
}

func (r *postgresRepository) GetCityByName(ctx context.Context, name string) (*City, error) {
	query := `SELECT id, name, region, is_active FROM cities WHERE name = $1`

	var c City
	err := r.db.QueryRow(ctx, query, name).Scan(&c.ID, &c.Name, &c.Region, &c.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCityNotFound
		}
		return nil, fmt.Errorf("repository: failed to select city by name: %w", err)
	}
	return &c, nil
}

func (r *postgresRepository) ListActiveCities(ctx context.Context) ([]City, error) {
	query := `SELECT id, name, region, is_active FROM cities WHERE is_active ORDER BY name ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query cities: %w", err)
	}
	defer rows.Close()

	cities := make([]City, 0)
	for rows.Next() {
		var c City
		if err := rows.Scan(&c.ID, &c.Name, &c.Region, &c.IsActive); err != nil {
			return nil, fmt.Errorf("repository: failed to scan city: %w", err)
		}
		cities = append(cities, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating cities: %w", err)
	}

	return cities, nil
}

func (r *postgresRepository) FindActiveMasterTokensByCity(ctx context.Context, cityID uuid.UUID) ([]string, error) {
	query := `
		SELECT push_token
		FROM users
		WHERE role = 'MASTER' AND is_active AND city_id = $1 AND push_token IS NOT NULL
	`

	rows, err := r.db.Query(ctx, query, cityID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query master push tokens: %w", err)
	}
	defer rows.Close()

	tokens := make([]string, 0)
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("repository: failed to scan push token: %w", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating push tokens: %w", err)
	}

	return tokens, nil
}
