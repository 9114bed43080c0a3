package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/domremont/backend/internal/catalog"
	"github.com/domremont/backend/internal/metrics"
	"github.com/domremont/backend/internal/user"
)

var (
	ErrNoItems           = errors.New("order must contain at least one item")
	ErrNotMaster         = errors.New("only masters can perform this action")
	ErrMasterInactive    = errors.New("master account is not active")
	ErrAlreadyAssigned   = errors.New("order is already assigned to another master")
	ErrNotClaimable      = errors.New("order cannot be assigned in its current status")
	ErrCityMismatch      = errors.New("order city does not match master city")
	ErrClaimConflict     = errors.New("order was claimed by another master")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrNotYourOrder      = errors.New("order is not assigned to you")
	ErrAccessDenied      = errors.New("access denied")
	ErrNotCancellable    = errors.New("order cannot be cancelled in its current status")
	ErrMasterAssigned    = errors.New("cannot cancel order: master is already assigned")
)

// Directory — выборки по пользователям и городам, нужные движку.
// Подмножество user.Repository.
type Directory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	GetCityByID(ctx context.Context, id uuid.UUID) (*user.City, error)
	GetCityByName(ctx context.Context, name string) (*user.City, error)
	FindActiveMasterTokensByCity(ctx context.Context, cityID uuid.UUID) ([]string, error)
}

// Catalog резолвит id услуг в цены на момент создания заказа.
type Catalog interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]catalog.Service, error)
}

// Notifier — best-effort push-рассылка.
type Notifier interface {
	SendBatch(ctx context.Context, tokens []string, title, body string, data map[string]string) int
}

// Referrals — одноразовый триггер награды за первую завершенную заявку.
type Referrals interface {
	Complete(ctx context.Context, referredID uuid.UUID) error
}

type CreateOrderItemInput struct {
	ServiceID uuid.UUID
	Quantity  int
}

type CreateOrderInput struct {
	Recipient      string
	ClientName     string
	ClientPhone    string
	City           string
	Address        string
	Apartment      *string
	IsPrivateHouse bool
	Urgency        Urgency
	ScheduledDate  *time.Time
	ScheduledTime  *string
	Items          []CreateOrderItemInput
}

type CreateUrgentOrderInput struct {
	Phone       string
	Description *string
	City        *string
}

type Service interface {
	Create(ctx context.Context, input CreateOrderInput, clientID *uuid.UUID) (*Order, error)
	CreateUrgent(ctx context.Context, input CreateUrgentOrderInput) (*Order, error)
	GetForClient(ctx context.Context, orderID, callerID uuid.UUID) (*Order, error)
	GetForMaster(ctx context.Context, orderID, masterID uuid.UUID) (*Order, error)
	ListForClient(ctx context.Context, clientID uuid.UUID, p Pagination) (*OrderPage, error)
	ListForMaster(ctx context.Context, masterID uuid.UUID, p Pagination) (*OrderPage, error)
	ListAvailable(ctx context.Context, masterID uuid.UUID, p Pagination) (*OrderPage, error)
	Assign(ctx context.Context, orderID, masterID uuid.UUID) (*Order, error)
	UpdateStatus(ctx context.Context, orderID, masterID uuid.UUID, status Status, reason *string) (*Order, error)
	UpdateStep(ctx context.Context, orderID, stepID, masterID uuid.UUID, status StepStatus) (*OrderStep, error)
	CancelByClient(ctx context.Context, orderID, clientID uuid.UUID, reason string) (*Order, error)
}

type service struct {
	repo      Repository
	directory Directory
	catalog   Catalog
	notifier  Notifier
	referrals Referrals
}

func NewService(repo Repository, directory Directory, cat Catalog, notifier Notifier, referrals Referrals) Service {
	return &service{
		repo:      repo,
		directory: directory,
		catalog:   cat,
		notifier:  notifier,
		referrals: referrals,
	}
}

// Create сохраняет заказ со статусом PENDING, фиксированным чек-листом
// и замороженными ценами позиций. Неизвестные id услуг пропускаются и
// дают нулевой вклад в сумму.
func (s *service) Create(ctx context.Context, input CreateOrderInput, clientID *uuid.UUID) (*Order, error) {
	if len(input.Items) == 0 {
		return nil, ErrNoItems
	}

	urgency := input.Urgency
	if urgency == "" {
		urgency = UrgencyUrgent
	}
	if !urgency.Valid() {
		return nil, fmt.Errorf("unknown urgency %q", input.Urgency)
	}

	serviceIDs := make([]uuid.UUID, 0, len(input.Items))
	for _, item := range input.Items {
		serviceIDs = append(serviceIDs, item.ServiceID)
	}

	services, err := s.catalog.FindByIDs(ctx, serviceIDs)
	if err != nil {
		return nil, fmt.Errorf("service: failed to resolve services: %w", err)
	}
	priceByID := make(map[uuid.UUID]int, len(services))
	for _, svc := range services {
		priceByID[svc.ID] = svc.Price
	}

	totalPrice := 0
	items := make([]OrderItem, 0, len(input.Items))
	for _, item := range input.Items {
		quantity := item.Quantity
		if quantity < 1 {
			quantity = 1
		}
		price := priceByID[item.ServiceID] // 0 для неизвестной услуги
		totalPrice += price * quantity
		items = append(items, OrderItem{
			ServiceID: item.ServiceID,
			Quantity:  quantity,
			Price:     price,
		})
	}

	o := &Order{
		ClientID:       clientID,
		Recipient:      input.Recipient,
		ClientName:     input.ClientName,
		ClientPhone:    input.ClientPhone,
		City:           input.City,
		Address:        input.Address,
		Apartment:      input.Apartment,
		IsPrivateHouse: input.IsPrivateHouse,
		Urgency:        urgency,
		ScheduledDate:  input.ScheduledDate,
		ScheduledTime:  input.ScheduledTime,
		TotalPrice:     totalPrice,
		Status:         StatusPending,
		Items:          items,
		Steps:          newSteps(),
	}

	if err := s.persistWithFreshNumber(ctx, o); err != nil {
		return nil, err
	}

	metrics.OrdersCreated.Inc()
	log.Info().Stringer("order_id", o.ID).Str("order_number", o.OrderNumber).Int("total_price", o.TotalPrice).Msg("order created")

	go s.notifyMastersAboutNewOrder(o.ID, o.City)

	return o, nil
}

// CreateUrgent — упрощенный гостевой прием заявки: только телефон,
// опциональные описание и город, без позиций.
func (s *service) CreateUrgent(ctx context.Context, input CreateUrgentOrderInput) (*Order, error) {
	o := &Order{
		ClientPhone: input.Phone,
		Description: input.Description,
		Urgency:     UrgencyUrgent,
		Status:      StatusPending,
		Items:       []OrderItem{},
		Steps:       newSteps(),
	}
	if input.City != nil {
		o.City = *input.City
	}

	if err := s.persistWithFreshNumber(ctx, o); err != nil {
		return nil, err
	}

	metrics.OrdersCreated.Inc()
	log.Info().Stringer("order_id", o.ID).Str("order_number", o.OrderNumber).Msg("urgent order created")

	if o.City != "" {
		go s.notifyMastersAboutNewOrder(o.ID, o.City)
	}

	return o, nil
}

func (s *service) persistWithFreshNumber(ctx context.Context, o *Order) error {
	// Одна повторная попытка на случай коллизии номера.
	for attempt := 0; attempt < 2; attempt++ {
		number, err := NewOrderNumber()
		if err != nil {
			return fmt.Errorf("service: failed to generate order number: %w", err)
		}
		o.OrderNumber = number

		err = s.repo.Create(ctx, o)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrDuplicateOrderNumber) {
			return fmt.Errorf("service: failed to create order: %w", err)
		}
		log.Warn().Str("order_number", number).Msg("order number collision, retrying")
	}
	return fmt.Errorf("service: failed to create order: %w", ErrDuplicateOrderNumber)
}

func newSteps() []OrderStep {
	now := time.Now().UTC()
	steps := make([]OrderStep, 0, len(StepTemplates))
	for i, tpl := range StepTemplates {
		step := OrderStep{
			Title:       tpl.Title,
			Description: tpl.Description,
			Status:      tpl.Status,
			SortOrder:   i,
		}
		if tpl.Status == StepCompleted {
			completedAt := now
			step.CompletedAt = &completedAt
		}
		steps = append(steps, step)
	}
	return steps
}

// notifyMastersAboutNewOrder запускается в отдельной горутине: рассылка
// не должна блокировать ответ и не может провалить создание заказа.
func (s *service) notifyMastersAboutNewOrder(orderID uuid.UUID, cityName string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	city, err := s.directory.GetCityByName(ctx, cityName)
	if err != nil {
		if !errors.Is(err, user.ErrCityNotFound) {
			log.Error().Err(err).Str("city", cityName).Msg("failed to resolve order city for notification")
		}
		return
	}

	tokens, err := s.directory.FindActiveMasterTokensByCity(ctx, city.ID)
	if err != nil {
		log.Error().Err(err).Str("city", cityName).Msg("failed to load master push tokens")
		return
	}
	if len(tokens) == 0 {
		return
	}

	s.notifier.SendBatch(ctx, tokens,
		"Новый заказ в вашем городе!",
		fmt.Sprintf("Появился новый заказ в городе %s. Посмотрите доступные заказы.", cityName),
		map[string]string{
			"route":   "/master/available-orders",
			"orderId": orderID.String(),
			"type":    "new_order",
		},
	)
}

func (s *service) GetForClient(ctx context.Context, orderID, callerID uuid.UUID) (*Order, error) {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.ClientID != nil && *o.ClientID != callerID {
		return nil, ErrAccessDenied
	}
	return o, nil
}

func (s *service) GetForMaster(ctx context.Context, orderID, masterID uuid.UUID) (*Order, error) {
	if _, err := s.requireMaster(ctx, masterID); err != nil {
		return nil, err
	}

	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.MasterID != nil && *o.MasterID != masterID {
		return nil, ErrAccessDenied
	}
	return o, nil
}

func (s *service) ListForClient(ctx context.Context, clientID uuid.UUID, p Pagination) (*OrderPage, error) {
	p = p.Normalize()
	orders, total, err := s.repo.ListByClientID(ctx, clientID, p)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list client orders: %w", err)
	}
	return NewOrderPage(orders, p, total), nil
}

func (s *service) ListForMaster(ctx context.Context, masterID uuid.UUID, p Pagination) (*OrderPage, error) {
	if _, err := s.requireMaster(ctx, masterID); err != nil {
		return nil, err
	}

	p = p.Normalize()
	orders, total, err := s.repo.ListByMasterID(ctx, masterID, p)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list master orders: %w", err)
	}
	return NewOrderPage(orders, p, total), nil
}

// ListAvailable возвращает свободные заказы в городе мастера.
// Мастер без города получает пустую страницу, это не ошибка.
func (s *service) ListAvailable(ctx context.Context, masterID uuid.UUID, p Pagination) (*OrderPage, error) {
	master, err := s.requireMaster(ctx, masterID)
	if err != nil {
		return nil, err
	}

	p = p.Normalize()
	if master.CityID == nil {
		return NewOrderPage([]Order{}, p, 0), nil
	}

	city, err := s.directory.GetCityByID(ctx, *master.CityID)
	if err != nil {
		return nil, err
	}

	orders, total, err := s.repo.ListAvailableByCity(ctx, city.Name, p)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list available orders: %w", err)
	}
	return NewOrderPage(orders, p, total), nil
}

// Assign — протокол взятия заказа. Предусловия проверяются на свежем
// состоянии, но решающая проверка "master_id еще NULL" выполняется
// атомарно в самом UPDATE (см. Repository.Claim).
func (s *service) Assign(ctx context.Context, orderID, masterID uuid.UUID) (*Order, error) {
	master, err := s.requireMaster(ctx, masterID)
	if err != nil {
		return nil, err
	}
	if !master.IsActive {
		return nil, ErrMasterInactive
	}

	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if o.MasterID != nil {
		return nil, ErrAlreadyAssigned
	}
	if o.Status != StatusPending && o.Status != StatusConfirmed {
		return nil, fmt.Errorf("%w: status %s", ErrNotClaimable, o.Status)
	}

	// Мастер без города может взять любой заказ.
	if master.CityID != nil {
		city, err := s.directory.GetCityByID(ctx, *master.CityID)
		if err != nil && !errors.Is(err, user.ErrCityNotFound) {
			return nil, fmt.Errorf("service: failed to resolve master city: %w", err)
		}
		if city != nil && o.City != city.Name {
			return nil, ErrCityMismatch
		}
	}

	claimed, err := s.repo.Claim(ctx, orderID, masterID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to claim order: %w", err)
	}
	if !claimed {
		// Предусловия прошли на прочитанном состоянии, но UPDATE не затронул
		// строку: заказ увели между чтением и записью.
		metrics.ClaimConflicts.Inc()
		log.Warn().Stringer("order_id", orderID).Stringer("master_id", masterID).Msg("order claim lost to concurrent master")
		return nil, ErrClaimConflict
	}

	metrics.OrdersClaimed.Inc()
	log.Info().Stringer("order_id", orderID).Stringer("master_id", masterID).Msg("order claimed")

	return s.repo.GetByID(ctx, orderID)
}

// UpdateStatus проводит заказ по таблице переходов. Отклоненный переход
// называет и текущий, и запрошенный статус.
func (s *service) UpdateStatus(ctx context.Context, orderID, masterID uuid.UUID, status Status, reason *string) (*Order, error) {
	if _, err := s.requireMaster(ctx, masterID); err != nil {
		return nil, err
	}

	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.MasterID == nil || *o.MasterID != masterID {
		return nil, ErrNotYourOrder
	}

	if !status.Valid() || !CanTransition(o.Status, status) {
		return nil, fmt.Errorf("%w: cannot change status from %s to %s", ErrInvalidTransition, o.Status, status)
	}

	switch status {
	case StatusCompleted:
		completedAt := time.Now().UTC()
		if err := s.repo.Complete(ctx, orderID, completedAt); err != nil {
			return nil, fmt.Errorf("service: failed to complete order: %w", err)
		}
		s.maybeCompleteReferral(ctx, o)
	case StatusCancelled:
		if err := s.repo.UpdateStatus(ctx, orderID, status, reason); err != nil {
			return nil, fmt.Errorf("service: failed to cancel order: %w", err)
		}
	default:
		if err := s.repo.UpdateStatus(ctx, orderID, status, nil); err != nil {
			return nil, fmt.Errorf("service: failed to update order status: %w", err)
		}
	}

	log.Info().Stringer("order_id", orderID).Stringer("old_status", o.Status).Stringer("new_status", status).Msg("order status updated")

	return s.repo.GetByID(ctx, orderID)
}

// maybeCompleteReferral срабатывает на первой завершенной заявке клиента.
// Ошибки только логируются: завершение заказа они не откатывают.
func (s *service) maybeCompleteReferral(ctx context.Context, o *Order) {
	if o.ClientID == nil {
		return
	}

	count, err := s.repo.CountCompletedByClient(ctx, *o.ClientID, o.ID)
	if err != nil {
		log.Error().Err(err).Stringer("client_id", *o.ClientID).Msg("failed to count completed orders for referral check")
		return
	}
	if count > 0 {
		return
	}

	if err := s.referrals.Complete(ctx, *o.ClientID); err != nil {
		log.Error().Err(err).Stringer("client_id", *o.ClientID).Msg("failed to complete referral, manual reconciliation needed")
	}
}

// UpdateStep обновляет один этап напрямую, без таблицы переходов:
// в отличие от статуса заказа этапы носят информационный характер.
func (s *service) UpdateStep(ctx context.Context, orderID, stepID, masterID uuid.UUID, status StepStatus) (*OrderStep, error) {
	if _, err := s.requireMaster(ctx, masterID); err != nil {
		return nil, err
	}

	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.MasterID == nil || *o.MasterID != masterID {
		return nil, ErrNotYourOrder
	}

	step, err := s.repo.GetStep(ctx, stepID)
	if err != nil {
		return nil, err
	}
	if step.OrderID != orderID {
		return nil, ErrStepNotFound
	}

	var completedAt *time.Time
	if status == StepCompleted {
		now := time.Now().UTC()
		completedAt = &now
	}

	return s.repo.UpdateStep(ctx, stepID, status, completedAt)
}

// CancelByClient — клиентская отмена, отдельный путь в обход таблицы
// переходов: только PENDING/CONFIRMED и только пока мастер не назначен.
func (s *service) CancelByClient(ctx context.Context, orderID, clientID uuid.UUID, reason string) (*Order, error) {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.ClientID != nil && *o.ClientID != clientID {
		return nil, ErrAccessDenied
	}

	if o.Status != StatusPending && o.Status != StatusConfirmed {
		return nil, fmt.Errorf("%w: status %s", ErrNotCancellable, o.Status)
	}
	if o.MasterID != nil {
		return nil, ErrMasterAssigned
	}

	cancelled, err := s.repo.CancelIfUnassigned(ctx, orderID, reason)
	if err != nil {
		return nil, fmt.Errorf("service: failed to cancel order: %w", err)
	}
	if !cancelled {
		// Состояние поменялось между чтением и записью.
		fresh, err := s.repo.GetByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if fresh.MasterID != nil {
			return nil, ErrMasterAssigned
		}
		return nil, fmt.Errorf("%w: status %s", ErrNotCancellable, fresh.Status)
	}

	log.Info().Stringer("order_id", orderID).Str("reason", reason).Msg("order cancelled by client")

	return s.repo.GetByID(ctx, orderID)
}

func (s *service) requireMaster(ctx context.Context, id uuid.UUID) (*user.User, error) {
	u, err := s.directory.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrNotMaster
		}
		return nil, fmt.Errorf("service: failed to load user %s: %w", id, err)
	}
	if u.Role != user.RoleMaster {
		return nil, ErrNotMaster
	}
	return u, nil
}
