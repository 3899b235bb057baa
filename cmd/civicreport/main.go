package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	commentApp "github.com/davicafu/civicreport/internal/comment/application"
	commentDomain "github.com/davicafu/civicreport/internal/comment/domain"
	commentHttp "github.com/davicafu/civicreport/internal/comment/infra/inbound/http"
	commentRepo "github.com/davicafu/civicreport/internal/comment/infra/outbound/db/mongodb"
	"github.com/davicafu/civicreport/internal/config"
	issueApp "github.com/davicafu/civicreport/internal/issue/application"
	issueDomain "github.com/davicafu/civicreport/internal/issue/domain"
	issueEvents "github.com/davicafu/civicreport/internal/issue/infra/inbound/events"
	issueHttp "github.com/davicafu/civicreport/internal/issue/infra/inbound/http"
	issueAnalytics "github.com/davicafu/civicreport/internal/issue/infra/outbound/analytics/clickhouse"
	issueRepo "github.com/davicafu/civicreport/internal/issue/infra/outbound/db/mongodb"
	messageApp "github.com/davicafu/civicreport/internal/message/application"
	messageDomain "github.com/davicafu/civicreport/internal/message/domain"
	messageHttp "github.com/davicafu/civicreport/internal/message/infra/inbound/http"
	messageRepo "github.com/davicafu/civicreport/internal/message/infra/outbound/db/mongodb"
	sharedEvents "github.com/davicafu/civicreport/internal/shared/domain/events"
	infraEvents "github.com/davicafu/civicreport/internal/shared/infra/events"
	"github.com/davicafu/civicreport/internal/shared/infra/http/middleware"
	sharedBus "github.com/davicafu/civicreport/internal/shared/infra/platform/bus"
	sharedCache "github.com/davicafu/civicreport/internal/shared/infra/platform/cache"
	sharedMongo "github.com/davicafu/civicreport/internal/shared/infra/platform/db/mongodb"
	"github.com/davicafu/civicreport/internal/shared/infra/platform/invalidation"
	"github.com/davicafu/civicreport/internal/shared/infra/platform/metrics"
	"github.com/davicafu/civicreport/internal/shared/infra/relayer"
	userApp "github.com/davicafu/civicreport/internal/user/application"
	userDomain "github.com/davicafu/civicreport/internal/user/domain"
	userHttp "github.com/davicafu/civicreport/internal/user/infra/inbound/http"
	userRepo "github.com/davicafu/civicreport/internal/user/infra/outbound/db/mongodb"
	"github.com/davicafu/civicreport/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}
	if err := logger.Init(cfg.Log.Level); err != nil {
		panic(err)
	}
	log := logger.Logger()
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec := metrics.NewRecorder(prometheus.NewRegistry())

	// ---------------- Cache ----------------
	store, err := sharedCache.OpenStore(ctx, sharedCache.StoreConfig{
		Backend:         cfg.Cache.Backend,
		Addr:            cfg.Cache.Addr,
		Username:        cfg.Cache.Username,
		Password:        cfg.Cache.Password,
		DB:              cfg.Cache.DB,
		CleanupInterval: cfg.Cache.CleanupInterval,
	})
	if err != nil {
		log.Warn("⚠️ Cache no disponible, usando memoria", zap.Error(err))
		store = sharedCache.NewMemoryStore(cfg.Cache.CleanupInterval)
	}
	cacheClient := sharedCache.NewClient(store, sharedCache.Options{
		Prefix:     cfg.Cache.Prefix,
		DefaultTTL: cfg.Cache.DefaultTTL,
		ScanCount:  cfg.Cache.ScanCount,
	}, log, rec)
	defer cacheClient.Close()

	executor := invalidation.NewExecutor(cacheClient, invalidation.ParseMode(cfg.Cache.InvalidationMode), log, rec)

	// ---------------- DB ----------------
	db, err := sharedMongo.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Timeout, cfg.Mongo.Transactions)
	if err != nil {
		log.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = db.Close(closeCtx)
	}()

	outboxRepo := sharedMongo.NewOutboxRepo(db)
	issues := issueRepo.NewIssueRepoMongoDB(db, outboxRepo)
	comments := commentRepo.NewCommentRepoMongoDB(db, outboxRepo)
	users := userRepo.NewUserRepoMongoDB(db, outboxRepo)
	messages := messageRepo.NewMessageRepoMongoDB(db, outboxRepo)

	for name, ensure := range map[string]func(context.Context) error{
		"outbox":   outboxRepo.EnsureIndexes,
		"issues":   issues.EnsureIndexes,
		"comments": comments.EnsureIndexes,
		"users":    users.EnsureIndexes,
		"messages": messages.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			log.Fatal("failed to create indexes", zap.String("collection", name), zap.Error(err))
		}
	}

	// --------------- Servicios --------------
	issueService := issueApp.NewIssueService(issues, cacheClient, executor, log)
	commentService := commentApp.NewCommentService(comments, issueService, cacheClient, executor, log)
	userService := userApp.NewUserService(users, cacheClient, executor, log)
	messageService := messageApp.NewMessageService(messages, issueService, cacheClient, executor, log)

	// -------------- Consumidores -------------
	var handlers infraEvents.Dispatcher
	if executor.Mode() == invalidation.ModeAsync {
		handlers = append(handlers, invalidation.NewConsumer(executor, log))
	}
	if cfg.ClickHouse.Enabled {
		analytics, err := issueAnalytics.NewIssueAnalyticsRepo(ctx, issueAnalytics.Options{
			Addr:     cfg.ClickHouse.Addr,
			Database: cfg.ClickHouse.Database,
			Username: cfg.ClickHouse.Username,
			Password: cfg.ClickHouse.Password,
		})
		if err != nil {
			log.Warn("⚠️ ClickHouse no disponible, analítica desactivada", zap.Error(err))
		} else {
			defer analytics.Close()
			if err := analytics.InitSchema(ctx); err != nil {
				log.Fatal("failed to init ClickHouse schema", zap.Error(err))
			}
			issueService.WithAnalytics(analytics)
			consumer := issueEvents.NewAnalyticsConsumer(analytics, cfg.ClickHouse.BatchSize, log)
			go consumer.Run(ctx, cfg.ClickHouse.FlushInterval)
			handlers = append(handlers, consumer)
		}
	}

	// ---------------- Events ---------------
	registry := sharedEvents.MergeRegistries(
		issueDomain.NewEventRegistry(),
		commentDomain.NewEventRegistry(),
		userDomain.NewEventRegistry(),
		messageDomain.NewEventRegistry(),
	)
	topics := sharedEvents.Topics(registry)

	var publisher sharedBus.EventBus
	if cfg.Kafka.Enabled {
		log.Info("🚀 Usando Kafka como bus de eventos", zap.Strings("brokers", cfg.Kafka.Brokers))
		writer := infraEvents.NewKafkaWriter(cfg.Kafka.Brokers)
		kafkaPublisher := infraEvents.NewKafkaPublisher(writer, log)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher

		if len(handlers) > 0 {
			reader := infraEvents.NewKafkaReader(cfg.Kafka.Brokers, cfg.Kafka.GroupID, topics...)
			infraEvents.NewConsumerAdapter(reader, handlers, log).Start(ctx)
		}
	} else {
		log.Info("⚡️ Usando bus de eventos en memoria")
		bus := infraEvents.NewInMemoryEventBus(log)
		publisher = bus
		if len(handlers) > 0 {
			infraEvents.Consume(ctx, bus.Subscribe(256, topics...), handlers, log)
		}
	}

	// ------------ Outbox Worker ------------
	worker := relayer.NewOutboxWorker(outboxRepo, publisher, registry, cfg.Outbox.Interval, cfg.Outbox.BatchSize, log)
	go worker.Start(ctx)

	// ---------------- HTTP ----------------
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.AccessLog(log, rec))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.HTTP.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	if cfg.Auth.JWTSecret == "" {
		// Sin secreto todos los tokens fallan: solo quedan rutas de invitado.
		logger.Sugar().Warnf("auth.jwt_secret vacío; las rutas autenticadas responderán %d", http.StatusUnauthorized)
	}
	router.Use(middleware.Authenticate([]byte(cfg.Auth.JWTSecret)))

	issueHttp.RegisterIssueRoutes(router, issueHttp.NewIssueHandler(issueService))
	commentHttp.RegisterCommentRoutes(router, commentHttp.NewCommentHandler(commentService))
	userHttp.RegisterUserRoutes(router, userHttp.NewUserHandler(userService))
	messageHttp.RegisterMessageRoutes(router, messageHttp.NewMessageHandler(messageService))

	router.GET("/health", func(c *gin.Context) {
		status := gin.H{"status": "ok", "cache": "ok"}
		if err := cacheClient.Ping(c.Request.Context()); err != nil {
			status["cache"] = err.Error()
		}
		c.JSON(http.StatusOK, status)
	})
	router.GET("/metrics", gin.WrapH(rec.Handler()))

	srv := &http.Server{Addr: ":" + cfg.HTTP.Port, Handler: router}
	go func() {
		log.Info("🚀 Server running", zap.String("url", "http://localhost:"+cfg.HTTP.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown failed", zap.Error(err))
	}
}
