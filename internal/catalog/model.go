package catalog

import "github.com/gofrs/uuid"

// Service — позиция каталога услуг. Цена в рублях, фиксируется
// в заказе на момент создания.
type Service struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Price int       `json:"price"`
}
