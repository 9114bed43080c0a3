package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/domremont/backend/internal/order"
)

var (
	ErrNotYourOrder      = errors.New("you can only review your own orders")
	ErrOrderNotCompleted = errors.New("only completed orders can be reviewed")
	ErrEmptyOrder        = errors.New("order has no services to review")
	ErrInvalidRating     = errors.New("rating must be between 1 and 5")
)

// Orders — выборка заказа для проверки предусловий отзыва.
// Подмножество order.Repository.
type Orders interface {
	GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error)
}

type CreateReviewInput struct {
	OrderID uuid.UUID
	Rating  int
	Comment *string
}

type Service interface {
	Create(ctx context.Context, authorID uuid.UUID, input CreateReviewInput) (*Review, error)
	ListForService(ctx context.Context, serviceID uuid.UUID, p order.Pagination) (*ServicePage, error)
	GetForOrder(ctx context.Context, orderID uuid.UUID) (*Review, error)
}

type service struct {
	repo   Repository
	orders Orders
}

func NewService(repo Repository, orders Orders) Service {
	return &service{repo: repo, orders: orders}
}

// Create принимает отзыв только от автора завершенного заказа,
// по одному отзыву на заказ. Услуга отзыва — первая позиция заказа.
func (s *service) Create(ctx context.Context, authorID uuid.UUID, input CreateReviewInput) (*Review, error) {
	if input.Rating < 1 || input.Rating > 5 {
		return nil, ErrInvalidRating
	}

	o, err := s.orders.GetByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if o.ClientID == nil || *o.ClientID != authorID {
		return nil, ErrNotYourOrder
	}
	if o.Status != order.StatusCompleted {
		return nil, ErrOrderNotCompleted
	}
	if len(o.Items) == 0 {
		return nil, ErrEmptyOrder
	}

	rv := &Review{
		OrderID:   o.ID,
		ServiceID: o.Items[0].ServiceID,
		AuthorID:  authorID,
		MasterID:  o.MasterID,
		Rating:    input.Rating,
		Comment:   input.Comment,
	}

	if err := s.repo.Create(ctx, rv); err != nil {
		if errors.Is(err, ErrAlreadyReviewed) {
			return nil, ErrAlreadyReviewed
		}
		return nil, fmt.Errorf("service: failed to create review: %w", err)
	}

	log.Info().Stringer("order_id", o.ID).Int("rating", rv.Rating).Msg("review created")
	return rv, nil
}

func (s *service) ListForService(ctx context.Context, serviceID uuid.UUID, p order.Pagination) (*ServicePage, error) {
	p = p.Normalize()
	reviews, total, avg, err := s.repo.ListByServiceID(ctx, serviceID, p)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list reviews: %w", err)
	}
	return &ServicePage{Reviews: reviews, Total: total, AverageRating: avg}, nil
}

func (s *service) GetForOrder(ctx context.Context, orderID uuid.UUID) (*Review, error) {
	return s.repo.GetByOrderID(ctx, orderID)
}
