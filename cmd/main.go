package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stripe-checkout-portal/config"
	"stripe-checkout-portal/internal/server"
	"stripe-checkout-portal/internal/services/checkout"
	checkouthandler "stripe-checkout-portal/internal/services/checkout/handler"
	paymentshandler "stripe-checkout-portal/internal/services/payments/handler"
	"stripe-checkout-portal/internal/services/payments/providers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Panicf("failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	policy := checkout.Policy{
		Currency: cfg.Checkout.Currency,
		Minimum:  cfg.Checkout.MinimumAmount,
		Maximum:  cfg.Checkout.MaximumAmount,
	}

	stripeClient := providers.NewStripeClient(cfg.Stripe.SecretKey, cfg.Stripe.APIURL)
	stripeProvider := providers.NewStripeProvider(stripeClient, cfg.Checkout.Currency)

	store := checkout.NewStore(policy, cfg.Checkout.DefaultAmount)

	pages := checkouthandler.NewHandler(store, stripeProvider, checkouthandler.Options{
		MerchantName:   cfg.Checkout.MerchantName,
		PublishableKey: cfg.Stripe.PublishableKey,
		PublicURL:      cfg.Http.PublicURL,
		SecureCookies:  cfg.Http.SecureCookies,
	})
	api := paymentshandler.NewHandler(stripeProvider, policy)

	router := server.NewRouter(logger, pages, api)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sweepSessions(ctx, store, cfg.Checkout.SessionTTL)

	slog.Info(fmt.Sprintf("Server running on %s", cfg.Http.Addr))

	if err := server.Run(ctx, cfg.Http.Addr, router); err != nil {
		slog.Error("failed to serve server", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}

func sweepSessions(ctx context.Context, store *checkout.Store, ttl time.Duration) {
	ticker := time.NewTicker(ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := store.Sweep(ttl); removed > 0 {
				slog.Info("expired checkout sessions", "removed", removed, "active", store.Len())
			}
		}
	}
}
