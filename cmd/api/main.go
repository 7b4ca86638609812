package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	cloudstorage "cloud.google.com/go/storage"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/arbona-turismo/storefront/internal/di"
	"github.com/arbona-turismo/storefront/internal/handlers"
	"github.com/arbona-turismo/storefront/internal/platform/auth"
	"github.com/arbona-turismo/storefront/internal/platform/config"
	pfirestore "github.com/arbona-turismo/storefront/internal/platform/firestore"
	"github.com/arbona-turismo/storefront/internal/platform/idempotency"
	"github.com/arbona-turismo/storefront/internal/platform/jobs"
	"github.com/arbona-turismo/storefront/internal/platform/observability"
	platformstorage "github.com/arbona-turismo/storefront/internal/platform/storage"
	"github.com/arbona-turismo/storefront/internal/repositories"
	firestoreRepo "github.com/arbona-turismo/storefront/internal/repositories/firestore"
	"github.com/arbona-turismo/storefront/internal/services"
)

const (
	publicCartRateLimit  = 60
	publicCartRateWindow = time.Minute
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}

	registry, err := firestoreRepo.NewRegistry(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise repository registry", zap.Error(err))
	}

	publisher, pubsubClient := newOrderPublisher(ctx, logger, cfg.Events)
	if pubsubClient != nil {
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
	}

	exports, storageClient := newReportExporter(ctx, logger, cfg.Reports)
	if storageClient != nil {
		defer func() {
			if err := storageClient.Close(); err != nil {
				logger.Warn("storage close error", zap.Error(err))
			}
		}()
	}

	container, err := di.NewContainer(ctx, cfg, registry, di.Deps{
		Publisher: publisher,
		Exports:   exports,
		Logger:    observability.EventLogger(logger.Named("services")),
	})
	if err != nil {
		logger.Fatal("failed to assemble services", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("container close error", zap.Error(err))
		}
	}()

	authenticator := newAuthenticator(ctx, logger, cfg)

	systemService := container.Services.System
	if systemService == nil {
		systemService = newDependencySystemService(logger, firestoreClient)
	}

	idempotencyStore := idempotency.NewFirestoreStore(firestoreClient)
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(zap.NewStdLog(logger.Named("idempotency"))),
	)

	pricingHandlers := handlers.NewPricingHandlers(
		container.Services.Pricing,
		handlers.WithPricingRateLimit(publicCartRateLimit, publicCartRateWindow),
	)
	orderHandlers := handlers.NewOrderHandlers(container.Services.Checkout)
	promotionHandlers := handlers.NewPromotionAdminHandlers(container.Services.PromotionAdmin)
	couponHandlers := handlers.NewCouponAdminHandlers(container.Services.CouponAdmin)
	zoneHandlers := handlers.NewShippingZoneAdminHandlers(container.Services.ZoneAdmin)
	reportHandlers := handlers.NewReportAdminHandlers(container.Services.Reports)

	projectID := strings.TrimSpace(cfg.Firestore.ProjectID)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
	}

	opts := []handlers.Option{
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(systemService)),
		handlers.WithPricingRoutes(pricingHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithOrderMiddlewares(idempotencyMiddleware),
		handlers.WithAdminRoutes(func(r chi.Router) {
			promotionHandlers.Routes(r)
			couponHandlers.Routes(r)
			zoneHandlers.Routes(r)
			reportHandlers.Routes(r)
		}),
	}
	if authenticator != nil {
		opts = append(opts,
			handlers.WithOrderMiddlewares(authenticator.RequireFirebaseAuth()),
			handlers.WithAdminMiddlewares(authenticator.RequireFirebaseAuth(auth.RoleAdmin, auth.RoleStaff)),
		)
	} else {
		logger.Warn("firebase auth disabled; order and admin routes are unauthenticated")
	}

	router := handlers.NewRouter(opts...)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("storefront api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// newOrderPublisher connects the Pub/Sub order event publisher when a topic is
// configured; otherwise checkout proceeds without events.
func newOrderPublisher(ctx context.Context, logger *zap.Logger, cfg config.EventsConfig) (services.OrderEventPublisher, *pubsub.Client) {
	projectID := strings.TrimSpace(cfg.ProjectID)
	topicName := strings.TrimSpace(cfg.OrderTopic)
	if projectID == "" || topicName == "" {
		logger.Info("order events disabled; no pubsub topic configured")
		return nil, nil
	}

	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		logger.Warn("failed to initialise pubsub client; order events disabled", zap.Error(err))
		return nil, nil
	}
	publisher, err := jobs.NewPubSubOrderPublisher(client.Topic(topicName))
	if err != nil {
		logger.Warn("failed to initialise order publisher; order events disabled", zap.Error(err))
		_ = client.Close()
		return nil, nil
	}
	return publisher, client
}

// newReportExporter connects the Cloud Storage uploader when an exports bucket
// is configured; otherwise report exports return an unavailable error.
func newReportExporter(ctx context.Context, logger *zap.Logger, cfg config.ReportsConfig) (services.ReportObjectWriter, *cloudstorage.Client) {
	if strings.TrimSpace(cfg.ExportsBucket) == "" {
		logger.Info("report exports disabled; no bucket configured")
		return nil, nil
	}

	client, err := cloudstorage.NewClient(ctx)
	if err != nil {
		logger.Warn("failed to initialise storage client; report exports disabled", zap.Error(err))
		return nil, nil
	}
	uploader, err := platformstorage.NewUploader(client)
	if err != nil {
		logger.Warn("failed to initialise uploader; report exports disabled", zap.Error(err))
		_ = client.Close()
		return nil, nil
	}
	return uploader, client
}

func newAuthenticator(ctx context.Context, logger *zap.Logger, cfg config.Config) *auth.Authenticator {
	if strings.TrimSpace(cfg.Firebase.ProjectID) == "" {
		return nil
	}
	verifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	return auth.NewAuthenticator(verifier, auth.WithUserGetter(verifier))
}

// newDependencySystemService builds a readiness prober over the live Firestore
// client when the registry did not supply one.
func newDependencySystemService(logger *zap.Logger, client *firestore.Client) services.SystemService {
	if client == nil {
		return nil
	}
	repo, err := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{
		{
			Name:    "firestore",
			Timeout: 1500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				iter := client.Collections(ctx)
				_, err := iter.Next()
				if errors.Is(err, iterator.Done) {
					return nil
				}
				return err
			},
		},
	})
	if err != nil {
		logger.Warn("health: dependency repository init failed", zap.Error(err))
		return nil
	}
	system, err := services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: repo,
		Clock:            time.Now,
	})
	if err != nil {
		logger.Warn("health: system service init failed", zap.Error(err))
		return nil
	}
	return system
}
