package promo

import (
	"time"

	"github.com/gofrs/uuid"
)

// PromoCode — разовый код на начисление баллов. UsedCount не
// инкрементируется, а пересчитывается из таблицы активаций.
type PromoCode struct {
	ID          uuid.UUID  `json:"id"`
	Code        string     `json:"code"`
	Description string     `json:"description"`
	Points      int        `json:"points"`
	IsActive    bool       `json:"is_active"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	UsageLimit  *int       `json:"usage_limit,omitempty"`
	UsedCount   int        `json:"used_count"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Activation — активация промокода пользователем.
type Activation struct {
	PromoCodeID uuid.UUID `json:"id"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
	Points      int       `json:"points"`
	UsedAt      time.Time `json:"usedAt"`
}

// ActivationResult — ответ на успешную активацию.
type ActivationResult struct {
	Success   bool       `json:"success"`
	Points    int        `json:"points"`
	PromoCode *PromoCode `json:"promoCode"`
}
