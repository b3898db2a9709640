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

	"timearchitect/config"
	"timearchitect/handler"
	"timearchitect/middleware"
	"timearchitect/repository"
	"timearchitect/services"
	"timearchitect/usecase"
	"timearchitect/utils"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

func init() {
	// A missing .env is fine; the environment may already be populated.
	if err := godotenv.Load(); err != nil && os.Getenv("GO_ENV") != "test" {
		log.Printf("No .env file loaded: %v", err)
	}
	utils.InitValidator()
}

type eventBus interface {
	usecase.Publisher
	handler.Subscriber
}

type dependencies struct {
	config   config.ServerConfig
	sessions *usecase.SessionService
	settings *usecase.SettingsService
	bus      eventBus
	checks   map[string]handler.HealthCheck
}

func setupRouter(deps dependencies) *gin.Engine {
	router := gin.New()

	router.Use(gin.Logger())
	router.Use(middleware.RequestTracingMiddleware())
	router.Use(middleware.EnhancedRecoveryMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.CORSMiddleware(deps.config.AllowedOrigins))
	router.Use(middleware.RequestSizeLimiter(deps.config.MaxRequestBytes))

	sessionHandler := handler.NewSessionHandler(deps.sessions)
	activityHandler := handler.NewActivityHandler(deps.sessions)
	settingsHandler := handler.NewSettingsHandler(deps.settings)
	eventsHandler := handler.NewEventsHandler(deps.bus)
	healthHandler := handler.NewHealthHandler(deps.checks)

	router.GET("/health", healthHandler.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.Use(middleware.NoStoreMiddleware())
	api.Use(middleware.RequireJSON())
	{
		// Session lifecycle
		api.POST("/clock-in", sessionHandler.ClockIn)
		api.POST("/clock-out", sessionHandler.ClockOut)
		api.POST("/break-start", sessionHandler.StartBreak)
		api.POST("/break-end", sessionHandler.EndBreak)

		// Activity reporting, live and replayed
		api.POST("/activity", activityHandler.ReportActivity)

		sessions := api.Group("/sessions")
		{
			sessions.GET("", sessionHandler.ListSessions)
			sessions.GET("/active/:userId", sessionHandler.GetActiveSession)
			sessions.POST("/:id/sync", sessionHandler.SyncDuration)
			sessions.GET("/:id/timeline", sessionHandler.Timeline)
		}
		api.GET("/session/:id", sessionHandler.GetSession)
		api.GET("/total-shift-time/:userId", sessionHandler.TotalShiftTime)

		settings := api.Group("/settings")
		settings.Use(middleware.CacheControlMiddleware(10 * time.Second))
		{
			settings.GET("", settingsHandler.ListSettings)
			settings.GET("/:key", settingsHandler.GetSetting)
			settings.PUT("/:key", settingsHandler.UpdateSetting)
		}

		api.GET("/events", eventsHandler.Stream)
	}

	return router
}

func buildDependencies(ctx context.Context, cfg config.ServerConfig) (dependencies, func(), error) {
	var (
		sessionStore  usecase.SessionStore
		settingsStore usecase.SettingsStore
		cleanups      []func()
	)
	checks := map[string]handler.HealthCheck{}
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	switch cfg.Storage {
	case config.StorageMemory:
		log.Println("Using in-memory storage; data is lost on restart")
		sessionStore = repository.NewMemorySessionRepo()
		settingsStore = repository.NewMemorySettingsRepo()
	case config.StorageMongo:
		client, err := cfg.Database.Connect(ctx)
		if err != nil {
			return dependencies{}, cleanup, err
		}
		cleanups = append(cleanups, func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Printf("Error disconnecting from MongoDB: %v", err)
			}
		})
		log.Printf("Connected to MongoDB database %s", cfg.Database.DatabaseName)

		db := client.Database(cfg.Database.DatabaseName)
		if err := repository.SetupIndexes(db, cfg.Database.SessionsCollection, cfg.Database.SettingsCollection); err != nil {
			return dependencies{}, cleanup, err
		}
		sessionStore = repository.GetSessionRepo(client, cfg.Database.DatabaseName, cfg.Database.SessionsCollection)
		settingsStore = repository.GetSettingsRepo(client, cfg.Database.DatabaseName, cfg.Database.SettingsCollection)
		checks["mongodb"] = func(ctx context.Context) error {
			return client.Ping(ctx, readpref.Primary())
		}
	default:
		return dependencies{}, cleanup, fmt.Errorf("unknown STORAGE %q", cfg.Storage)
	}

	sessionService := usecase.NewSessionService(sessionStore, utils.RealClock{})
	sessionService.LiveSkew = cfg.LiveSkew
	sessionService.ReplayWindow = cfg.ReplayWindow
	settingsService := usecase.NewSettingsService(settingsStore, utils.RealClock{})

	var bus eventBus = services.NewLocalBus()
	if cfg.RedisURL != "" {
		redisClient, err := services.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Printf("Warning: Redis unavailable, using in-process events and no timeline cache: %v", err)
		} else {
			redisBus, err := services.NewRedisBus(ctx, redisClient)
			if err != nil {
				redisClient.Close()
				return dependencies{}, cleanup, err
			}
			cleanups = append(cleanups, func() {
				redisBus.Close()
				redisClient.Close()
			})
			bus = redisBus
			sessionService.Cache = services.NewTimelineCache(redisClient, cfg.TimelineTTL)
			checks["redis"] = redisCheck(redisClient)
			log.Println("Connected to Redis")
		}
	}
	sessionService.Events = bus
	settingsService.Events = bus

	if err := settingsService.Initialize(ctx); err != nil {
		return dependencies{}, cleanup, err
	}

	return dependencies{
		config:   cfg,
		sessions: sessionService,
		settings: settingsService,
		bus:      bus,
		checks:   checks,
	}, cleanup, nil
}

func redisCheck(client *redis.Client) handler.HealthCheck {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

func main() {
	cfg := config.LoadServerConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, cleanup, err := buildDependencies(ctx, cfg)
	defer cleanup()
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           setupRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Server shutdown complete")
}
