package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal - счетчик HTTP-запросов по хэндлеру и статусу.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Количество HTTP запросов",
		},
		[]string{"handler", "status"},
	)

	// HTTPRequestDuration - гистограмма длительности HTTP-запросов.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "Длительность HTTP запросов",
		},
		[]string{"handler"},
	)

	// OrdersCreated - счетчик созданных заказов.
	OrdersCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Количество созданных заказов",
		},
	)

	// OrdersClaimed - счетчик заказов, взятых мастерами.
	OrdersClaimed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_claimed_total",
			Help: "Количество заказов, взятых мастерами",
		},
	)

	// ClaimConflicts - счетчик проигранных гонок за заказ.
	ClaimConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "order_claim_conflicts_total",
			Help: "Количество проигранных попыток взять заказ",
		},
	)

	// PushNotificationsSent - счетчик доставленных push-уведомлений.
	PushNotificationsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "push_notifications_sent_total",
			Help: "Количество доставленных push-уведомлений",
		},
	)

	// DBErrors - счетчик ошибок базы данных по операциям.
	DBErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_errors_total",
			Help: "Количество ошибок при работе с БД",
		},
		[]string{"operation"},
	)
)
