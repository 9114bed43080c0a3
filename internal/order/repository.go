package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/domremont/backend/internal/metrics"
)

var (
	ErrNotFound             = errors.New("order not found")
	ErrStepNotFound         = errors.New("order step not found")
	ErrDuplicateOrderNumber = errors.New("order number already exists")
)

type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	ListByClientID(ctx context.Context, clientID uuid.UUID, p Pagination) ([]Order, int, error)
	ListByMasterID(ctx context.Context, masterID uuid.UUID, p Pagination) ([]Order, int, error)
	ListAvailableByCity(ctx context.Context, city string, p Pagination) ([]Order, int, error)
	Claim(ctx context.Context, orderID, masterID uuid.UUID) (bool, error)
	Complete(ctx context.Context, orderID uuid.UUID, completedAt time.Time) error
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status Status, cancelReason *string) error
	CancelIfUnassigned(ctx context.Context, orderID uuid.UUID, reason string) (bool, error)
	CountCompletedByClient(ctx context.Context, clientID, excludeOrderID uuid.UUID) (int, error)
	GetStep(ctx context.Context, stepID uuid.UUID) (*OrderStep, error)
	UpdateStep(ctx context.Context, stepID uuid.UUID, status StepStatus, completedAt *time.Time) (*OrderStep, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const orderColumns = `id, order_number, client_id, master_id, recipient, client_name, client_phone,
	city, address, apartment, is_private_house, description, urgency, scheduled_date, scheduled_time,
	total_price, status, cancel_reason, created_at, completed_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.ClientID,
		&o.MasterID,
		&o.Recipient,
		&o.ClientName,
		&o.ClientPhone,
		&o.City,
		&o.Address,
		&o.Apartment,
		&o.IsPrivateHouse,
		&o.Description,
		&o.Urgency,
		&o.ScheduledDate,
		&o.ScheduledTime,
		&o.TotalPrice,
		&o.Status,
		&o.CancelReason,
		&o.CreatedAt,
		&o.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Create сохраняет заказ вместе с позициями и чек-листом одной транзакцией.
func (r *postgresRepository) Create(ctx context.Context, o *Order) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Error().Err(rbErr).Str("order_number", o.OrderNumber).Msg("failed to rollback order creation")
			}
		}
	}()

	query := `
		INSERT INTO orders (order_number, client_id, recipient, client_name, client_phone,
			city, address, apartment, is_private_house, description, urgency,
			scheduled_date, scheduled_time, total_price, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at
	`
	err = tx.QueryRow(ctx, query,
		o.OrderNumber,
		o.ClientID,
		o.Recipient,
		o.ClientName,
		o.ClientPhone,
		o.City,
		o.Address,
		o.Apartment,
		o.IsPrivateHouse,
		o.Description,
		o.Urgency,
		o.ScheduledDate,
		o.ScheduledTime,
		o.TotalPrice,
		o.Status,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrDuplicateOrderNumber
		}
		metrics.DBErrors.WithLabelValues("order_create").Inc()
		return fmt.Errorf("repository: failed to insert order: %w", err)
	}

	for i := range o.Items {
		item := &o.Items[i]
		item.OrderID = o.ID

		err = tx.QueryRow(ctx, `
			INSERT INTO order_items (order_id, service_id, quantity, price)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, item.OrderID, item.ServiceID, item.Quantity, item.Price).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("repository: failed to insert order item for order %s: %w", o.ID, err)
		}
	}

	for i := range o.Steps {
		step := &o.Steps[i]
		step.OrderID = o.ID
		step.SortOrder = i

		err = tx.QueryRow(ctx, `
			INSERT INTO order_steps (order_id, title, description, status, completed_at, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, step.OrderID, step.Title, step.Description, step.Status, step.CompletedAt, step.SortOrder).Scan(&step.ID)
		if err != nil {
			return fmt.Errorf("repository: failed to insert order step for order %s: %w", o.ID, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository: failed to commit order creation: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", id, err)
	}

	if err := r.attachItems(ctx, []*Order{o}); err != nil {
		return nil, err
	}
	if err := r.attachSteps(ctx, []*Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *postgresRepository) ListByClientID(ctx context.Context, clientID uuid.UUID, p Pagination) ([]Order, int, error) {
	builder := psql.Select(orderColumns).
		From("orders").
		Where(sq.Eq{"client_id": clientID}).
		OrderBy("created_at DESC")

	return r.listOrders(ctx, builder, sq.Eq{"client_id": clientID}, p, false)
}

func (r *postgresRepository) ListByMasterID(ctx context.Context, masterID uuid.UUID, p Pagination) ([]Order, int, error) {
	builder := psql.Select(orderColumns).
		From("orders").
		Where(sq.Eq{"master_id": masterID}).
		OrderBy("created_at DESC")

	return r.listOrders(ctx, builder, sq.Eq{"master_id": masterID}, p, true)
}

// ListAvailableByCity возвращает свободные заказы города: срочные раньше
// плановых, внутри одной срочности — старые раньше новых.
func (r *postgresRepository) ListAvailableByCity(ctx context.Context, city string, p Pagination) ([]Order, int, error) {
	builder, filter := availableOrdersQuery(city)
	return r.listOrders(ctx, builder, filter, p, false)
}

func availableOrdersQuery(city string) (sq.SelectBuilder, sq.And) {
	filter := sq.And{
		sq.Eq{"city": city},
		sq.Eq{"status": []string{string(StatusPending), string(StatusConfirmed)}},
		sq.Eq{"master_id": nil},
	}

	builder := psql.Select(orderColumns).
		From("orders").
		Where(filter).
		OrderBy("CASE WHEN urgency = 'URGENT' THEN 0 ELSE 1 END", "created_at ASC")

	return builder, filter
}

func (r *postgresRepository) listOrders(ctx context.Context, builder sq.SelectBuilder, filter interface{}, p Pagination, withSteps bool) ([]Order, int, error) {
	query, args, err := builder.
		Offset(uint64(p.Offset())).
		Limit(uint64(p.Limit)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("repository: failed to build list query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		metrics.DBErrors.WithLabelValues("order_list").Inc()
		return nil, 0, fmt.Errorf("repository: failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]Order, 0, p.Limit)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repository: failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repository: error iterating orders: %w", err)
	}

	countQuery, countArgs, err := psql.Select("COUNT(*)").From("orders").Where(filter).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("repository: failed to build count query: %w", err)
	}

	var total int
	if err := r.db.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repository: failed to count orders: %w", err)
	}

	refs := make([]*Order, len(orders))
	for i := range orders {
		refs[i] = &orders[i]
	}
	if err := r.attachItems(ctx, refs); err != nil {
		return nil, 0, err
	}
	if withSteps {
		if err := r.attachSteps(ctx, refs); err != nil {
			return nil, 0, err
		}
	}

	return orders, total, nil
}

func (r *postgresRepository) attachItems(ctx context.Context, orders []*Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*Order, len(orders))
	ids := make([]uuid.UUID, 0, len(orders))
	for _, o := range orders {
		o.Items = make([]OrderItem, 0)
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, service_id, quantity, price
		FROM order_items
		WHERE order_id = ANY($1)
	`, ids)
	if err != nil {
		return fmt.Errorf("repository: failed to query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ServiceID, &item.Quantity, &item.Price); err != nil {
			return fmt.Errorf("repository: failed to scan order item: %w", err)
		}
		if o, ok := byID[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("repository: error iterating order items: %w", err)
	}
	return nil
}

func (r *postgresRepository) attachSteps(ctx context.Context, orders []*Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*Order, len(orders))
	ids := make([]uuid.UUID, 0, len(orders))
	for _, o := range orders {
		o.Steps = make([]OrderStep, 0)
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, title, description, status, completed_at, sort_order
		FROM order_steps
		WHERE order_id = ANY($1)
		ORDER BY sort_order ASC
	`, ids)
	if err != nil {
		return fmt.Errorf("repository: failed to query order steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var step OrderStep
		if err := rows.Scan(&step.ID, &step.OrderID, &step.Title, &step.Description, &step.Status, &step.CompletedAt, &step.SortOrder); err != nil {
			return fmt.Errorf("repository: failed to scan order step: %w", err)
		}
		if o, ok := byID[step.OrderID]; ok {
			o.Steps = append(o.Steps, step)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("repository: error iterating order steps: %w", err)
	}
	return nil
}

// Claim атомарно назначает мастера. Условие master_id IS NULL в самом
// UPDATE исключает двойное назначение при конкурентных запросах:
// из двух гонщиков ноль строк затронет ровно один.
func (r *postgresRepository) Claim(ctx context.Context, orderID, masterID uuid.UUID) (claimed bool, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Error().Err(rbErr).Stringer("order_id", orderID).Msg("failed to rollback claim")
			}
		}
	}()

	cmdTag, err := tx.Exec(ctx, `
		UPDATE orders
		SET master_id = $2, status = $3
		WHERE id = $1 AND master_id IS NULL AND status IN ($4, $5)
	`, orderID, masterID, StatusInProgress, StatusPending, StatusConfirmed)
	if err != nil {
		metrics.DBErrors.WithLabelValues("order_claim").Inc()
		return false, fmt.Errorf("repository: failed to claim order %s: %w", orderID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return false, tx.Rollback(ctx)
	}

	now := time.Now().UTC()
	_, err = tx.Exec(ctx, `
		UPDATE order_steps
		SET status = $3, completed_at = $4
		WHERE order_id = $1 AND title = ANY($2)
	`, orderID, []string{StepTitleMasterAssigned, StepTitleMasterOnTheWay}, StepCompleted, now)
	if err != nil {
		return false, fmt.Errorf("repository: failed to complete assignment steps for order %s: %w", orderID, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("repository: failed to commit claim: %w", err)
	}
	return true, nil
}

// Complete закрывает заказ и принудительно завершает все этапы
// в одной транзакции.
func (r *postgresRepository) Complete(ctx context.Context, orderID uuid.UUID, completedAt time.Time) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Error().Err(rbErr).Stringer("order_id", orderID).Msg("failed to rollback completion")
			}
		}
	}()

	cmdTag, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = $2, completed_at = $3
		WHERE id = $1
	`, orderID, StatusCompleted, completedAt)
	if err != nil {
		metrics.DBErrors.WithLabelValues("order_complete").Inc()
		return fmt.Errorf("repository: failed to complete order %s: %w", orderID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}

	_, err = tx.Exec(ctx, `
		UPDATE order_steps
		SET status = $2, completed_at = $3
		WHERE order_id = $1 AND status <> $2
	`, orderID, StepCompleted, completedAt)
	if err != nil {
		return fmt.Errorf("repository: failed to complete steps for order %s: %w", orderID, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository: failed to commit completion: %w", err)
	}
	return nil
}

func (r *postgresRepository) UpdateStatus(ctx context.Context, orderID uuid.UUID, status Status, cancelReason *string) error {
	cmdTag, err := r.db.Exec(ctx, `
		UPDATE orders
		SET status = $2, cancel_reason = COALESCE($3, cancel_reason)
		WHERE id = $1
	`, orderID, status, cancelReason)
	if err != nil {
		return fmt.Errorf("repository: failed to update order status %s: %w", orderID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CancelIfUnassigned — клиентская отмена: условие прямо в UPDATE, чтобы
// заказ не отменился после того, как его успел взять мастер.
func (r *postgresRepository) CancelIfUnassigned(ctx context.Context, orderID uuid.UUID, reason string) (bool, error) {
	cmdTag, err := r.db.Exec(ctx, `
		UPDATE orders
		SET status = $2, cancel_reason = $3
		WHERE id = $1 AND master_id IS NULL AND status IN ($4, $5)
	`, orderID, StatusCancelled, reason, StatusPending, StatusConfirmed)
	if err != nil {
		return false, fmt.Errorf("repository: failed to cancel order %s: %w", orderID, err)
	}
	return cmdTag.RowsAffected() > 0, nil
}

func (r *postgresRepository) CountCompletedByClient(ctx context.Context, clientID, excludeOrderID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM orders
		WHERE client_id = $1 AND status = $2 AND id <> $3
	`, clientID, StatusCompleted, excludeOrderID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("repository: failed to count completed orders: %w", err)
	}
	return count, nil
}

func (r *postgresRepository) GetStep(ctx context.Context, stepID uuid.UUID) (*OrderStep, error) {
	var step OrderStep
	err := r.db.QueryRow(ctx, `
		SELECT id, order_id, title, description, status, completed_at, sort_order
		FROM order_steps
		WHERE id = $1
	`, stepID).Scan(&step.ID, &step.OrderID, &step.Title, &step.Description, &step.Status, &step.CompletedAt, &step.SortOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStepNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order step %s: %w", stepID, err)
	}
	return &step, nil
}

func (r *postgresRepository) UpdateStep(ctx context.Context, stepID uuid.UUID, status StepStatus, completedAt *time.Time) (*OrderStep, error) {
	var step OrderStep
	err := r.db.QueryRow(ctx, `
		UPDATE order_steps
		SET status = $2, completed_at = $3
		WHERE id = $1
		RETURNING id, order_id, title, description, status, completed_at, sort_order
	`, stepID, status, completedAt).Scan(&step.ID, &step.OrderID, &step.Title, &step.Description, &step.Status, &step.CompletedAt, &step.SortOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStepNotFound
		}
		return nil, fmt.Errorf("repository: failed to update order step %s: %w", stepID, err)
	}
	return &step, nil
}
