package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"ecosort/internal/config"
	"ecosort/internal/logger"
	"ecosort/internal/repository/sqlite"
	"ecosort/internal/route"
	"ecosort/internal/service"
	"ecosort/internal/service/ai"
	"ecosort/internal/service/capture"
	"ecosort/internal/service/imaging"
	"ecosort/internal/service/mqtt"
	"ecosort/internal/service/storage"
	"ecosort/internal/service/websocket"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config  *config.Config
	logger  *logger.Logger
	db      *sqlite.DB
	history *storage.HistoryBuffer
	hub     *websocket.Hub
	manager *service.Manager
	bridge  *mqtt.Bridge
	server  *http.Server
}

// New wires every service from cfg. It fails when the database or the
// classifier credentials are unusable, since no capture could complete.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log, err := logger.New(cfg.LogDirectory)
	if err != nil {
		return nil, err
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	repo := sqlite.NewCaptureRepository(db)
	history := storage.NewHistoryBuffer(cfg, log, repo)

	creds, err := ai.LoadCredentials(ctx, cfg.CredentialsFile, cfg.ProjectID)
	if err != nil {
		db.Close()
		log.Close()
		return nil, fmt.Errorf("failed to initialize classifier: %w", err)
	}

	var encoder ai.ImageEncoder
	if cfg.MaxImageDimension > 0 {
		encoder = imaging.NewJPEGEncoder(cfg, log)
	}
	classifier := ai.NewClassifier(cfg.ClassifierEndpoint(creds.ProjectID), creds.TokenSource, encoder, cfg.ClassifierTimeout, log)

	var archiver storage.Archiver
	s3Archiver, err := storage.NewS3Archiver(ctx, cfg, log)
	if err != nil {
		log.Warning("S3 archive disabled: %v", err)
	} else if s3Archiver != nil {
		archiver = s3Archiver
	}

	store := storage.NewImageStore(cfg, log)
	pipeline := capture.NewPipeline(store, classifier, capture.NewRegisters(), archiver, history, log)
	hub := websocket.NewHub(cfg, log)
	manager := service.NewManager(hub, pipeline, cfg, log)

	var bridge *mqtt.Bridge
	if cfg.MQTTBroker != "" {
		bridge = mqtt.NewBridge(cfg, manager, log)
	}

	log.Info("Classifier ready for project %s using %s", creds.ProjectID, cfg.VertexModel)

	return &App{
		config:  cfg,
		logger:  log,
		db:      db,
		history: history,
		hub:     hub,
		manager: manager,
		bridge:  bridge,
		server: &http.Server{
			Addr:    cfg.ServerAddress(),
			Handler: route.SetupRoutes(manager, repo, log),
		},
	}, nil
}

// Run serves until ctx is done or the process receives SIGINT or SIGTERM,
// then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.hub.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		a.history.Run(ctx)
	}()

	if a.bridge != nil {
		if err := a.bridge.Connect(); err != nil {
			a.logger.Error("MQTT bridge unavailable: %v", err)
		}
	}

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("EcoSort server listening on http://%s", a.config.ServerAddress())
		a.logger.Info("Uploads: %s, database: %s", a.config.UploadDir, a.config.DatabasePath)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("failed to start server: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Context cancelled")
	case sig := <-sigCh:
		a.logger.Info("Received signal %v", sig)
	case runErr = <-serverErr:
	}

	shutdownErr := a.shutdown()
	cancel()
	wg.Wait()
	a.close()

	if runErr != nil {
		return runErr
	}
	return shutdownErr
}

func (a *App) shutdown() error {
	a.logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.bridge != nil {
		a.bridge.Close()
	}
	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

// close runs after the background services stopped; the history buffer
// already flushed on its way out.
func (a *App) close() {
	if err := a.db.Close(); err != nil {
		a.logger.Error("Failed to close database: %v", err)
	}
	a.logger.Info("Server stopped")
	a.logger.Close()
}
