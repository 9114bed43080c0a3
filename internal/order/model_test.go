package order_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/domremont/backend/internal/order"
)

func TestCanTransition(t *testing.T) {
	statuses := []order.Status{
		order.StatusPending,
		order.StatusConfirmed,
		order.StatusInProgress,
		order.StatusCompleted,
		order.StatusCancelled,
	}

	allowed := map[[2]order.Status]bool{
		{order.StatusInProgress, order.StatusCompleted}: true,
		{order.StatusInProgress, order.StatusCancelled}: true,
		{order.StatusConfirmed, order.StatusCancelled}:  true,
	}

	// Перебираем все пары: разрешены только пары из таблицы.
	for _, from := range statuses {
		for _, to := range statuses {
			got := order.CanTransition(from, to)
			want := allowed[[2]order.Status{from, to}]
			assert.Equal(t, want, got, "transition %s -> %s", from, to)
		}
	}
}

func TestStepTemplates(t *testing.T) {
	assert.Len(t, order.StepTemplates, 6)

	wantTitles := []string{
		"Заявка принята",
		"Мастер назначен",
		"Мастер в пути",
		"Диагностика",
		"Выполнение работ",
		"Заказ завершен",
	}
	for i, tpl := range order.StepTemplates {
		assert.Equal(t, wantTitles[i], tpl.Title)
	}

	assert.Equal(t, order.StepCompleted, order.StepTemplates[0].Status)
	for _, tpl := range order.StepTemplates[1:] {
		assert.Equal(t, order.StepPending, tpl.Status)
	}
}

func TestStatusValid(t *testing.T) {
	assert.True(t, order.StatusPending.Valid())
	assert.True(t, order.StatusCancelled.Valid())
	assert.False(t, order.Status("ASSIGNED").Valid())
	assert.False(t, order.Status("").Valid())
}

func TestPaginationNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   order.Pagination
		want order.Pagination
	}{
		{name: "zero_values", in: order.Pagination{}, want: order.Pagination{Page: 1, Limit: 10}},
		{name: "negative", in: order.Pagination{Page: -3, Limit: -1}, want: order.Pagination{Page: 1, Limit: 10}},
		{name: "unchanged", in: order.Pagination{Page: 4, Limit: 25}, want: order.Pagination{Page: 4, Limit: 25}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize())
		})
	}
}

func TestNewOrderPage(t *testing.T) {
	p := order.Pagination{Page: 2, Limit: 10}

	page := order.NewOrderPage([]order.Order{}, p, 35)
	assert.Equal(t, 2, page.Pagination.Page)
	assert.Equal(t, 35, page.Pagination.Total)
	assert.Equal(t, 4, page.Pagination.TotalPages)

	empty := order.NewOrderPage([]order.Order{}, p, 0)
	assert.Equal(t, 0, empty.Pagination.TotalPages)
}
