package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/domremont/backend/internal/auth"
	"github.com/domremont/backend/internal/catalog"
	"github.com/domremont/backend/internal/config"
	"github.com/domremont/backend/internal/db"
	"github.com/domremont/backend/internal/notification"
	"github.com/domremont/backend/internal/order"
	"github.com/domremont/backend/internal/promo"
	"github.com/domremont/backend/internal/referral"
	"github.com/domremont/backend/internal/review"
	"github.com/domremont/backend/internal/transport"
	"github.com/domremont/backend/internal/user"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Logger = log.With().Str("service", "backend").Logger()

	log.Info().Msg("Service starting...")

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	pg, err := db.New(context.Background(), cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pg.Close()

	userRepo := user.NewRepository(pg.Pool)
	catalogRepo := catalog.NewRepository(pg.Pool)
	orderRepo := order.NewRepository(pg.Pool)
	referralRepo := referral.NewRepository(pg.Pool)
	reviewRepo := review.NewRepository(pg.Pool)
	promoRepo := promo.NewRepository(pg.Pool)

	referralSvc := referral.NewService(referralRepo)
	dispatcher := notification.NewExpoDispatcher()
	orderSvc := order.NewService(orderRepo, userRepo, catalogRepo, dispatcher, referralSvc)
	reviewSvc := review.NewService(reviewRepo, orderRepo)
	promoSvc := promo.NewService(promoRepo)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authSvc := auth.NewService(pg.Pool, userRepo, tokens, cfg.Auth.CodeTTL)

	router := transport.NewRouter(transport.Deps{
		Orders:    orderSvc,
		Referrals: referralSvc,
		Reviews:   reviewSvc,
		Promos:    promoSvc,
		Auth:      authSvc,
		Users:     userRepo,
		Tokens:    tokens,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Shutdown failed")
	}
	log.Info().Msg("Server stopped")
}
