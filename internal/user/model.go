package user

import (
	"time"

	"github.com/gofrs/uuid"
)

type Role string

const (
	RoleClient Role = "CLIENT"
	RoleMaster Role = "MASTER"
	RoleAdmin  Role = "ADMIN"
)

func (r Role) String() string {
	return string(r)
}

// User представляет пользователя: клиента, мастера или администратора.
type User struct {
	ID           uuid.UUID  `json:"id"`
	Phone        string     `json:"phone"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Role         Role       `json:"role"`
	CityID       *uuid.UUID `json:"city_id,omitempty"`
	IsActive     bool       `json:"is_active"`
	PushToken    *string    `json:"-"`
	Points       int        `json:"points"`
	ReferralCode *string    `json:"referral_code,omitempty"`
	// Rating и ReviewsCount пересчитываются из таблицы отзывов
	// при каждом новом отзыве, счетчики не инкрементируются.
	Rating       float64   `json:"rating"`
	ReviewsCount int       `json:"reviews_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// City — справочник городов. Привязка заказа к городу идет по имени,
// а не по внешнему ключу (совместимость с мобильными клиентами).
type City struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Region   string    `json:"region"`
	IsActive bool      `json:"is_active"`
}
