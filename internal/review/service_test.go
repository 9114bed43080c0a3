package review_test

import (
	"context"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domremont/backend/internal/order"
	"github.com/domremont/backend/internal/review"
)

type mockRepository struct {
	createFunc          func(ctx context.Context, rv *review.Review) error
	getByOrderIDFunc    func(ctx context.Context, orderID uuid.UUID) (*review.Review, error)
	listByServiceIDFunc func(ctx context.Context, serviceID uuid.UUID, p order.Pagination) ([]review.Review, int, float64, error)
}

func (m *mockRepository) Create(ctx context.Context, rv *review.Review) error {
	return m.createFunc(ctx, rv)
}

func (m *mockRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*review.Review, error) {
	return m.getByOrderIDFunc(ctx, orderID)
}

func (m *mockRepository) ListByServiceID(ctx context.Context, serviceID uuid.UUID, p order.Pagination) ([]review.Review, int, float64, error) {
	return m.listByServiceIDFunc(ctx, serviceID, p)
}

type mockOrders struct {
	getByIDFunc func(ctx context.Context, id uuid.UUID) (*order.Order, error)
}

func (m *mockOrders) GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return m.getByIDFunc(ctx, id)
}

func mustUUID(t *testing.T) uuid.UUID {
	t.Helper()
	id, err := uuid.NewV4()
	require.NoError(t, err)
	return id
}

func TestServiceCreate(t *testing.T) {
	ctx := context.Background()

	clientID := mustUUID(t)
	masterID := mustUUID(t)
	orderID := mustUUID(t)
	serviceID := mustUUID(t)

	completedOrder := func() *order.Order {
		return &order.Order{
			ID:       orderID,
			ClientID: &clientID,
			MasterID: &masterID,
			Status:   order.StatusCompleted,
			Items:    []order.OrderItem{{ServiceID: serviceID, Quantity: 1, Price: 1000}},
		}
	}

	t.Run("creates review from first order item", func(t *testing.T) {
		var saved *review.Review
		repo := &mockRepository{
			createFunc: func(ctx context.Context, rv *review.Review) error {
				saved = rv
				return nil
			},
		}
		orders := &mockOrders{
			getByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
				return completedOrder(), nil
			},
		}
		svc := review.NewService(repo, orders)

		comment := "Все сделали быстро"
		rv, err := svc.Create(ctx, clientID, review.CreateReviewInput{OrderID: orderID, Rating: 5, Comment: &comment})
		require.NoError(t, err)
		require.NotNil(t, saved)

		assert.Equal(t, serviceID, rv.ServiceID)
		assert.Equal(t, &masterID, rv.MasterID)
		assert.Equal(t, clientID, rv.AuthorID)
		assert.Equal(t, 5, rv.Rating)
	})

	t.Run("rejects rating outside one to five", func(t *testing.T) {
		svc := review.NewService(&mockRepository{}, &mockOrders{})

		for _, rating := range []int{0, 6, -1} {
			_, err := svc.Create(ctx, clientID, review.CreateReviewInput{OrderID: orderID, Rating: rating})
			assert.ErrorIs(t, err, review.ErrInvalidRating, "rating %d", rating)
		}
	})

	t.Run("rejects foreign order", func(t *testing.T) {
		other := mustUUID(t)
		orders := &mockOrders{
			getByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
				o := completedOrder()
				o.ClientID = &other
				return o, nil
			},
		}
		svc := review.NewService(&mockRepository{}, orders)

		_, err := svc.Create(ctx, clientID, review.CreateReviewInput{OrderID: orderID, Rating: 4})
		assert.ErrorIs(t, err, review.ErrNotYourOrder)
	})

	t.Run("rejects guest order", func(t *testing.T) {
		orders := &mockOrders{
			getByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
				o := completedOrder()
				o.ClientID = nil
				return o, nil
			},
		}
		svc := review.NewService(&mockRepository{}, orders)

		_, err := svc.Create(ctx, clientID, review.CreateReviewInput{OrderID: orderID, Rating: 4})
		assert.ErrorIs(t, err, review.ErrNotYourOrder)
	})

	t.Run("rejects unfinished order", func(t *testing.T) {
		for _, status := range []order.Status{order.StatusPending, order.StatusInProgress, order.StatusCancelled} {
			orders := &mockOrders{
				getByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
					o := completedOrder()
					o.Status = status
					return o, nil
				},
			}
			svc := review.NewService(&mockRepository{}, orders)

			_, err := svc.Create(ctx, clientID, review.CreateReviewInput{OrderID: orderID, Rating: 4})
			assert.ErrorIs(t, err, review.ErrOrderNotCompleted, "status %s", status)
		}
	})

	t.Run("rejects order without items", func(t *testing.T) {
		orders := &mockOrders{
			getByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
				o := completedOrder()
				o.Items = nil
				return o, nil
			},
		}
		svc := review.NewService(&mockRepository{}, orders)

		_, err := svc.Create(ctx, clientID, review.CreateReviewInput{OrderID: orderID, Rating: 4})
		assert.ErrorIs(t, err, review.ErrEmptyOrder)
	})

	t.Run("second review on same order rejected", func(t *testing.T) {
		repo := &mockRepository{
			createFunc: func(ctx context.Context, rv *review.Review) error {
				return review.ErrAlreadyReviewed
			},
		}
		orders := &mockOrders{
			getByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
				return completedOrder(), nil
			},
		}
		svc := review.NewService(repo, orders)

		_, err := svc.Create(ctx, clientID, review.CreateReviewInput{OrderID: orderID, Rating: 4})
		assert.ErrorIs(t, err, review.ErrAlreadyReviewed)
	})
}

func TestServiceListForService(t *testing.T) {
	ctx := context.Background()
	serviceID := mustUUID(t)

	repo := &mockRepository{
		listByServiceIDFunc: func(ctx context.Context, sID uuid.UUID, p order.Pagination) ([]review.Review, int, float64, error) {
			assert.Equal(t, serviceID, sID)
			assert.Equal(t, 1, p.Page)
			assert.Equal(t, 10, p.Limit)
			return []review.Review{{ServiceID: sID, Rating: 5}, {ServiceID: sID, Rating: 4}}, 2, 4.5, nil
		},
	}
	svc := review.NewService(repo, &mockOrders{})

	page, err := svc.ListForService(ctx, serviceID, order.Pagination{})
	require.NoError(t, err)

	assert.Len(t, page.Reviews, 2)
	assert.Equal(t, 2, page.Total)
	assert.InDelta(t, 4.5, page.AverageRating, 0.0001)
}
