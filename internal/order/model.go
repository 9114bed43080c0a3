package order

import (
	"time"

	"github.com/gofrs/uuid"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusConfirmed  Status = "CONFIRMED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

func (s Status) String() string {
	return string(s)
}

// Valid сообщает, входит ли значение в закрытый набор статусов заказа.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type Urgency string

const (
	UrgencyUrgent    Urgency = "URGENT"
	UrgencyScheduled Urgency = "SCHEDULED"
)

func (u Urgency) Valid() bool {
	return u == UrgencyUrgent || u == UrgencyScheduled
}

type StepStatus string

const (
	StepPending    StepStatus = "PENDING"
	StepInProgress StepStatus = "IN_PROGRESS"
	StepCompleted  StepStatus = "COMPLETED"
)

func (s StepStatus) Valid() bool {
	return s == StepPending || s == StepInProgress || s == StepCompleted
}

// Названия этапов фиксированы: по ним движок находит этапы,
// которые закрываются при назначении мастера.
const (
	StepTitleAccepted       = "Заявка принята"
	StepTitleMasterAssigned = "Мастер назначен"
	StepTitleMasterOnTheWay = "Мастер в пути"
	StepTitleDiagnostics    = "Диагностика"
	StepTitleWork           = "Выполнение работ"
	StepTitleDone           = "Заказ завершен"
)

// StepTemplate описывает один этап чек-листа при создании заказа.
type StepTemplate struct {
	Title       string
	Description string
	Status      StepStatus
}

// StepTemplates — шесть этапов каждого заказа в фиксированном порядке.
// Первый этап закрывается сразу при создании.
var StepTemplates = []StepTemplate{
	{Title: StepTitleAccepted, Description: "Ваша заявка принята в обработку", Status: StepCompleted},
	{Title: StepTitleMasterAssigned, Description: "Ожидайте назначения мастера", Status: StepPending},
	{Title: StepTitleMasterOnTheWay, Description: "Мастер выехал к вам", Status: StepPending},
	{Title: StepTitleDiagnostics, Description: "Проводится диагностика", Status: StepPending},
	{Title: StepTitleWork, Description: "Мастер выполняет работы", Status: StepPending},
	{Title: StepTitleDone, Description: "Все работы выполнены, заказ закрыт", Status: StepPending},
}

// allowedTransitions — переходы, доступные мастеру через смену статуса.
// Взятие заказа идет отдельным путем (Assign) и переводит PENDING/CONFIRMED
// сразу в IN_PROGRESS.
var allowedTransitions = map[Status]map[Status]bool{
	StatusInProgress: {
		StatusCompleted: true,
		StatusCancelled: true,
	},
	StatusConfirmed: {
		StatusCancelled: true,
	},
}

// CanTransition проверяет переход по таблице.
func CanTransition(from, to Status) bool {
	return allowedTransitions[from][to]
}

type OrderItem struct {
	ID        uuid.UUID `json:"id"`
	OrderID   uuid.UUID `json:"order_id"`
	ServiceID uuid.UUID `json:"service_id"`
	Quantity  int       `json:"quantity"`
	// Price — цена услуги на момент создания заказа, далее не пересчитывается.
	Price int `json:"price"`
}

type OrderStep struct {
	ID          uuid.UUID  `json:"id"`
	OrderID     uuid.UUID  `json:"order_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      StepStatus `json:"status"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	SortOrder   int        `json:"sort_order"`
}

type Order struct {
	ID             uuid.UUID   `json:"id"`
	OrderNumber    string      `json:"order_number"`
	ClientID       *uuid.UUID  `json:"client_id,omitempty"`
	MasterID       *uuid.UUID  `json:"master_id,omitempty"`
	Recipient      string      `json:"recipient"`
	ClientName     string      `json:"client_name"`
	ClientPhone    string      `json:"client_phone"`
	City           string      `json:"city"`
	Address        string      `json:"address"`
	Apartment      *string     `json:"apartment,omitempty"`
	IsPrivateHouse bool        `json:"is_private_house"`
	Description    *string     `json:"description,omitempty"`
	Urgency        Urgency     `json:"urgency"`
	ScheduledDate  *time.Time  `json:"scheduled_date,omitempty"`
	ScheduledTime  *string     `json:"scheduled_time,omitempty"`
	TotalPrice     int         `json:"total_price"`
	Status         Status      `json:"status"`
	CancelReason   *string     `json:"cancel_reason,omitempty"`
	Items          []OrderItem `json:"items"`
	Steps          []OrderStep `json:"steps"`
	CreatedAt      time.Time   `json:"created_at"`
	CompletedAt    *time.Time  `json:"completed_at,omitempty"`
}

// Pagination задает параметры страницы для списочных запросов.
type Pagination struct {
	Page  int
	Limit int
}

func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = 10
	}
	return p
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// PageInfo — метаданные страницы в ответе.
type PageInfo struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// OrderPage — страница заказов со сводкой пагинации.
type OrderPage struct {
	Orders     []Order  `json:"orders"`
	Pagination PageInfo `json:"pagination"`
}

func NewOrderPage(orders []Order, p Pagination, total int) *OrderPage {
	totalPages := 0
	if total > 0 {
		totalPages = (total + p.Limit - 1) / p.Limit
	}
	return &OrderPage{
		Orders: orders,
		Pagination: PageInfo{
			Page:       p.Page,
			Limit:      p.Limit,
			Total:      total,
			TotalPages: totalPages,
		},
	}
}
