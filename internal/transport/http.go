package transport

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/domremont/backend/internal/auth"
	"github.com/domremont/backend/internal/handler"
	"github.com/domremont/backend/internal/metrics"
	"github.com/domremont/backend/internal/order"
	"github.com/domremont/backend/internal/promo"
	"github.com/domremont/backend/internal/referral"
	"github.com/domremont/backend/internal/review"
	"github.com/domremont/backend/internal/user"
)

type Deps struct {
	Orders    order.Service
	Referrals referral.Service
	Reviews   review.Service
	Promos    promo.Service
	Auth      *auth.Service
	Users     user.Repository
	Tokens    *auth.TokenManager
}

func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(instrument)
	r.Use(deps.Tokens.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	handler.NewOrderHandler(deps.Orders).RegisterRoutes(r)
	handler.NewReferralHandler(deps.Referrals).RegisterRoutes(r)
	handler.NewReviewHandler(deps.Reviews).RegisterRoutes(r)
	handler.NewPromoHandler(deps.Promos).RegisterRoutes(r)
	handler.NewAuthHandler(deps.Auth).RegisterRoutes(r)
	handler.NewCityHandler(deps.Users).RegisterRoutes(r)

	return r
}

// instrument пишет метрики по шаблону маршрута, а не по сырому URL,
// чтобы не плодить кардинальность на id.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		pattern := "unknown"
		if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
			if p := routeCtx.RoutePattern(); p != "" {
				pattern = p
			}
		}
		metrics.HTTPRequestsTotal.WithLabelValues(pattern, strconv.Itoa(ww.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(pattern).Observe(time.Since(start).Seconds())
	})
}
