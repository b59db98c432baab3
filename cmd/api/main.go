package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"missionflow/admin"
	"missionflow/auth"
	"missionflow/chat"
	"missionflow/config"
	"missionflow/db"
	"missionflow/httpapi"
	"missionflow/mission"
	"missionflow/payment"
	"missionflow/push"
	"missionflow/user"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("api: %v", err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("bootstrap database pool: %w", err)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	authRepo := auth.NewRepository(pool)
	userRepo := user.NewRepository(pool)
	missionRepo := mission.NewRepository(pool)
	paymentRepo := payment.NewRepository(pool)
	messageRepo := chat.NewRepository(pool)

	authSvc := auth.NewService(authRepo, cfg.JWTSecret, cfg.JWTExpiry)
	userSvc := user.NewService(userRepo)
	missionSvc := mission.NewService(missionRepo, cfg.CommissionRate)
	adminSvc := admin.NewService(pool)
	hub := chat.NewHub(messageRepo)

	stripeProvider := payment.NewStripeProvider(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	paymentSvc := payment.NewService(paymentRepo, stripeProvider, missionSvc, userRepo)
	missionSvc.WithPayments(paymentSvc)

	if cfg.FirebaseCredentialsJSON != "" {
		fcm, err := push.NewFCMClient(ctx, cfg.FirebaseProjectID, []byte(cfg.FirebaseCredentialsJSON))
		if err != nil {
			return fmt.Errorf("bootstrap push client: %w", err)
		}
		missionSvc.WithNotifier(fcm, cfg.PushTimeout)
	} else {
		log.Printf("api: push notifications disabled, no Firebase credentials")
	}

	handler := httpapi.New(httpapi.Config{
		Auth:     authSvc,
		Users:    userSvc,
		Missions: missionSvc,
		Payments: paymentSvc,
		Admin:    adminSvc,
		Hub:      hub,
		Messages: messageRepo,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("api: listening on %s (env=%s)", srv.Addr, cfg.Env)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Printf("api: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}

	return nil
}
