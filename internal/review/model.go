package review

import (
	"time"

	"github.com/gofrs/uuid"
)

// Review — отзыв клиента на завершенный заказ, не больше одного на заказ.
// ServiceID берется из первой позиции заказа, MasterID — из назначения.
type Review struct {
	ID        uuid.UUID  `json:"id"`
	OrderID   uuid.UUID  `json:"order_id"`
	ServiceID uuid.UUID  `json:"service_id"`
	AuthorID  uuid.UUID  `json:"author_id"`
	MasterID  *uuid.UUID `json:"master_id,omitempty"`
	Rating    int        `json:"rating"`
	Comment   *string    `json:"comment,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ServicePage — страница отзывов по услуге со средней оценкой.
type ServicePage struct {
	Reviews       []Review `json:"reviews"`
	Total         int      `json:"total"`
	AverageRating float64  `json:"averageRating"`
}
