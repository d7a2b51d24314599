package docstore

import (
	"context"
	"fmt"
	"time"

	httpadapter "rtdb-bridge/internal/docstore/adapter/http"
	"rtdb-bridge/internal/docstore/adapter/persistence/memory"
	"rtdb-bridge/internal/docstore/adapter/persistence/mongodb"
	"rtdb-bridge/internal/docstore/adapter/realtime"
	"rtdb-bridge/internal/docstore/config"
	"rtdb-bridge/internal/docstore/domain/repository"
	"rtdb-bridge/internal/docstore/usecase"
	"rtdb-bridge/internal/shared/eventbus"
	"rtdb-bridge/internal/shared/logger"
	"rtdb-bridge/internal/shared/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Module is the reference document store: persistence, the document service,
// the change feed and the HTTP surface.
type Module struct {
	Config    *config.ServerConfig
	Store     repository.DocumentStore
	Bus       *eventbus.EventBus
	Service   usecase.DocumentService
	Feed      *realtime.ChangeFeed
	Publisher repository.ChangePublisher
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics
	Logger    logger.Logger

	stopForward func()
}

// NewModule connects the configured backend and change publisher.
func NewModule(ctx context.Context, cfg *config.ServerConfig, log logger.Logger) (*Module, error) {
	log = logger.OrNop(log)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var store repository.DocumentStore
	switch cfg.Backend {
	case config.BackendMongoDB:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoDBURI))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			client.Disconnect(context.Background())
			return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
		}
		s, err := mongodb.NewStore(ctx, client.Database(cfg.MongoDBDatabase), mongodb.DefaultCollection, log)
		if err != nil {
			client.Disconnect(context.Background())
			return nil, err
		}
		store = s
		log.Info("MongoDB document store ready", zap.String("database", cfg.MongoDBDatabase))
	default:
		store = memory.NewStore()
		log.Info("In-memory document store ready")
	}

	m := NewModuleWithStore(cfg, store, log)

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			m.Close(context.Background())
			return nil, fmt.Errorf("failed to ping Redis: %w", err)
		}
		m.Publisher = realtime.NewRedisPublisher(client, cfg.RedisChannel, log)
		m.stopForward = realtime.Forward(m.Bus, m.Publisher)
		log.Info("Publishing changes to Redis", zap.String("channel", cfg.RedisChannel))
	}
	return m, nil
}

// NewModuleWithStore wires a module over an existing store without a Redis
// publisher.
func NewModuleWithStore(cfg *config.ServerConfig, store repository.DocumentStore, log logger.Logger) *Module {
	if cfg == nil {
		cfg = config.DefaultServerConfig()
	}
	log = logger.OrNop(log)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	bus := eventbus.NewEventBus(log)

	return &Module{
		Config:   cfg,
		Store:    store,
		Bus:      bus,
		Service:  usecase.NewDocumentService(store, bus, cfg.IDField, log, m),
		Feed:     realtime.NewChangeFeed(bus, log),
		Registry: reg,
		Metrics:  m,
		Logger:   log,
	}
}

// RegisterRoutes mounts the REST API, the change feed, /health and /metrics.
func (m *Module) RegisterRoutes(router fiber.Router) {
	router.Get("/health", m.health)
	router.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	httpadapter.NewDocumentHandler(m.Service, m.Logger).RegisterRoutes(router)
	m.Feed.RegisterRoutes(router)
}

// NewApp builds the fiber application serving the module.
func (m *Module) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "rtdb-bridge docstore",
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		IdleTimeout:           60 * time.Second,
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if fe, ok := err.(*fiber.Error); ok {
				code = fe.Code
			}
			if code >= fiber.StatusInternalServerError {
				m.Logger.Error("HTTP error", zap.String("path", c.Path()), zap.Error(err))
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(recover.New())
	app.Use(httpadapter.RequestID())
	app.Use(httpadapter.RequestMetrics(m.Metrics))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,HEAD,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, X-Request-ID",
	}))

	m.RegisterRoutes(app)
	return app
}

// HealthCheck pings the backends that support it.
func (m *Module) HealthCheck(ctx context.Context) error {
	if p, ok := m.Store.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("document store: %w", err)
		}
	}
	if p, ok := m.Publisher.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("change publisher: %w", err)
		}
	}
	return nil
}

func (m *Module) health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	if err := m.HealthCheck(ctx); err != nil {
		m.Logger.Error("Health check failed", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "UNHEALTHY",
			"error":  err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"status":    "HEALTHY",
		"backend":   m.Config.Backend,
		"clients":   m.Feed.Clients(),
		"timestamp": time.Now().UTC(),
	})
}

// Close stops the change feed and releases the store and publisher.
func (m *Module) Close(ctx context.Context) error {
	m.Feed.Close()
	if m.stopForward != nil {
		m.stopForward()
	}
	var firstErr error
	if m.Publisher != nil {
		if err := m.Publisher.Close(); err != nil {
			firstErr = err
		}
	}
	if err := m.Store.Close(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
