// cmd/dashboard-service/main.go
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tmis-business-guru/internal/api"
	"tmis-business-guru/internal/common/auth"
	"tmis-business-guru/internal/common/config"
	"tmis-business-guru/internal/common/database"
	commonhttp "tmis-business-guru/internal/common/http"
	"tmis-business-guru/internal/common/logger"
	"tmis-business-guru/internal/common/observability"
	"tmis-business-guru/internal/dashboard"
	"tmis-business-guru/internal/gateway"
	"tmis-business-guru/internal/notifications"
	"tmis-business-guru/internal/wizard"
)

const (
	fieldUpdateDelay = time.Second
	wizardSessionTTL = 2 * time.Hour
	sweepInterval    = 10 * time.Minute
	dashboardIdleTTL = time.Hour
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting dashboard service...",
		zap.String("environment", cfg.App.Environment),
		zap.String("watermarkStore", cfg.Notifications.Store),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Watermark store backends ---
	var redisClient *database.RedisClient
	var pg *database.PostgresClient
	var readiness []func(context.Context) error

	switch cfg.Notifications.Store {
	case config.StoreRedis:
		err = retryWithBackoff(func() error {
			var err error
			redisClient, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return redisClient.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redisClient.Close()
		readiness = append(readiness, redisClient.Ping)
		zapLog.Info("Redis connected successfully")

	case config.StorePostgres:
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		readiness = append(readiness, pg.Ping)
		zapLog.Info("PostgreSQL connected successfully")
	}

	store, err := notifications.OpenStore(ctx, cfg.Notifications, redisClient, pg)
	if err != nil {
		zapLog.Fatal("watermark store init failed", zap.Error(err))
	}

	// --- Remote Data Gateway ---
	tokens := auth.RequestTokenSource{}
	if cfg.Backend.ServiceAccountEmail != "" {
		session := auth.NewSession(
			cfg.Backend.BaseURL,
			cfg.Backend.ServiceAccountEmail,
			cfg.Backend.ServiceAccountPassword,
			config.GetDuration(cfg.Backend.Timeout),
		)
		tokens.Fallback = session

		loginCtx, cancelLogin := context.WithTimeout(ctx, config.GetDuration(cfg.Backend.Timeout))
		if _, err := session.Token(loginCtx); err != nil {
			zapLog.Warn("service account login failed, will retry on first refresh", zap.Error(err))
		} else if sa := session.User(); !sa.IsAdmin() {
			// the background view only covers what this account may see
			zapLog.Warn("service account is not an admin", zap.String("role", sa.Role), zap.String("email", sa.Email))
		} else {
			zapLog.Info("service account logged in", zap.String("email", sa.Email))
		}
		cancelLogin()
	}

	retry := commonhttp.NewRetryPolicy(cfg.Retry.MaxAttempts, config.GetDuration(cfg.Retry.BaseDelay))
	client, err := gateway.NewClient(gateway.Options{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: config.GetDuration(cfg.Backend.Timeout),
		Tokens:  tokens,
		Retry:   retry,
		Logger:  log,
	})
	if err != nil {
		zapLog.Fatal("gateway init failed", zap.Error(err))
	}

	fields := gateway.NewFieldUpdater(client.UpdateClientField, fieldUpdateDelay, log)
	fields.OnOutcome(func(o gateway.FieldUpdateOutcome) {
		if o.Err != nil {
			log.Warn("inline field update failed", map[string]interface{}{
				"clientId": o.ClientID,
				"field":    o.Field,
				"error":    o.Err,
			})
			return
		}
		if o.Result != nil && o.Result.SoftFailure {
			log.Warn("field updated but WhatsApp notification was not sent", map[string]interface{}{
				"clientId": o.ClientID,
				"field":    o.Field,
				"message":  o.Result.Message,
			})
		}
	})

	// --- Domain services ---
	dash := dashboard.NewService(dashboard.Options{
		Source:        client,
		Config:        cfg.Dashboard,
		Location:      cfg.App.Location(),
		Logger:        log,
		Observability: obs,
	})
	notes := notifications.NewService(notifications.Options{
		Store:         store,
		Source:        client,
		Config:        cfg.Notifications,
		Logger:        log,
		Observability: obs,
	})
	wizards := wizard.NewRegistry(wizardSessionTTL, log)

	router := api.NewRouter(api.Deps{
		Backend:       client,
		Dashboard:     dash,
		Notifications: notes,
		Wizards:       wizards,
		Fields:        fields,
		JWTSecret:     cfg.Auth.JWTSecret,
		CompactLegend: cfg.Dashboard.CompactLegend,
		Logger:        log,
		Ready: func(ctx context.Context) error {
			for _, check := range readiness {
				if err := check(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	})

	// --- Background loops ---
	if tokens.Fallback != nil {
		go dash.Run(ctx)
	} else if cfg.Dashboard.RefreshInterval > 0 {
		zapLog.Warn("background refresh disabled: no service account configured")
	}
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				wizards.Sweep()
				dash.Sweep(dashboardIdleTTL)
			}
		}
	}()

	// --- HTTP Server ---
	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			zapLog.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}
	fields.Close()

	zapLog.Info("Dashboard service stopped")
}
