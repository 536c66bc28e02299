package app

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"

	"impostor/internal/api"
	"impostor/internal/config"
	"impostor/internal/database"
	"impostor/internal/hub"
	"impostor/internal/logging"
	"impostor/internal/router"
	"impostor/internal/secret"
	"impostor/internal/session"
	"impostor/internal/websocket"
	pkgdatabase "impostor/pkg/database"
	"impostor/pkg/types"
)

const rateLimitCleanupInterval = 5 * time.Minute

// Application coordinates all system components.
type Application struct {
	config        *config.Config
	dbManager     *database.Manager
	sessions      *session.Registry
	registry      *websocket.Registry
	messageRouter *router.Router
	messageHub    *hub.Hub
	apiServer     *api.Server
	httpServer    *http.Server
	cancelCleanup context.CancelFunc
}

// NewApplication builds every component in dependency order:
// Database -> Catalog -> Connections -> Sessions -> Router -> Hub -> API -> HTTP
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logging.SetDebug(cfg.Logging.Debug)

	dbConfig := &pkgdatabase.Config{
		DatabasePath:    cfg.Database.Path,
		MaxConnections:  10,
		ConnMaxLifetime: cfg.Database.Timeout,
		ConnMaxIdleTime: cfg.Database.Timeout / 3,
		MigrationsPath:  cfg.Database.MigrationsPath,
	}

	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database manager: %w", err)
	}

	migrationManager := pkgdatabase.NewMigrationManager(dbManager.GetDB(), dbConfig.MigrationsPath)
	if err := migrationManager.ApplyMigrations(); err != nil {
		dbManager.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}
	log.Println("Database migrations applied successfully")

	catalog, err := loadCatalog(cfg.Game.CatalogPath)
	if err != nil {
		dbManager.Close()
		return nil, err
	}
	provider, err := secret.NewProvider(catalog, rand.New(rand.NewSource(time.Now().UnixNano())))
	if err != nil {
		dbManager.Close()
		return nil, fmt.Errorf("failed to create item provider: %w", err)
	}
	log.Printf("Loaded %d secret items", provider.Size())

	registry := websocket.NewRegistry()

	sessions := session.NewRegistry(session.Config{
		Provider: provider,
		Notifier: registry,
		Store:    dbManager,
		Options:  cfg.GameOptions(),
		BotDelay: cfg.Game.SimulatedDelay,
	})

	messageRouter := router.NewRouter(sessions, registry)
	messageHub := hub.NewHub(registry, messageRouter)

	wsHandler := websocket.NewHandler(registry, sessions, messageHub, websocket.Settings{
		PingInterval: cfg.WebSocket.PingInterval,
		ReadTimeout:  cfg.WebSocket.ReadTimeout,
		WriteTimeout: cfg.WebSocket.WriteTimeout,
		BufferSize:   cfg.WebSocket.BufferSize,
	})

	apiServer := api.NewServer(sessions, registry, dbManager, cfg.Game.PublicBaseURL)
	apiServer.MountWebSocket("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      apiServer,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:        cfg,
		dbManager:     dbManager,
		sessions:      sessions,
		registry:      registry,
		messageRouter: messageRouter,
		messageHub:    messageHub,
		apiServer:     apiServer,
		httpServer:    httpServer,
	}, nil
}

func loadCatalog(path string) ([]types.Item, error) {
	if path == "" {
		return secret.DefaultCatalog(), nil
	}
	catalog, err := secret.LoadCatalog(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load item catalog: %w", err)
	}
	return catalog, nil
}

// Start runs the hub before the HTTP server so no inbound frame is accepted
// without a consumer.
func (app *Application) Start(ctx context.Context) error {
	log.Printf("Starting Impostor server on %s", app.httpServer.Addr)

	if err := app.messageHub.Start(ctx); err != nil {
		return fmt.Errorf("failed to start message hub: %w", err)
	}

	cleanupCtx, cancel := context.WithCancel(ctx)
	app.cancelCleanup = cancel
	app.messageRouter.StartCleanup(cleanupCtx, rateLimitCleanupInterval)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		cancel()
		app.messageHub.Stop()
		return err
	case <-time.After(100 * time.Millisecond):
		log.Printf("Impostor server started successfully")
		return nil
	case <-ctx.Done():
		cancel()
		app.messageHub.Stop()
		return ctx.Err()
	}
}

// Stop shuts down in reverse dependency order:
// HTTP -> Sessions -> Hub -> Database
func (app *Application) Stop(ctx context.Context) error {
	log.Printf("Shutting down Impostor server")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	app.sessions.Shutdown("server shutting down")
	if err := app.sessions.WaitFlushed(ctx); err != nil {
		log.Printf("Game history flush incomplete: %v", err)
	}

	if app.cancelCleanup != nil {
		app.cancelCleanup()
	}
	if err := app.messageHub.Stop(); err != nil {
		log.Printf("Message hub shutdown error: %v", err)
	}

	if err := app.dbManager.Close(); err != nil {
		log.Printf("Database shutdown error: %v", err)
	}

	log.Printf("Impostor server shutdown complete")
	return nil
}

// GetAddr returns the server address for external connections
func (app *Application) GetAddr() string {
	return app.httpServer.Addr
}

// Handler exposes the full HTTP surface, including the websocket endpoint.
func (app *Application) Handler() http.Handler {
	return app.apiServer
}
