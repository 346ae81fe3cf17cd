package route

import (
	"net/http"

	"ecosort/internal/handler"
	"ecosort/internal/logger"
	"ecosort/internal/middleware"
	"ecosort/internal/repository"
	"ecosort/internal/service"
)

// SetupRoutes registers the device, camera client and history endpoints and
// wraps the mux with CORS and request logging.
func SetupRoutes(manager *service.Manager, repo repository.CaptureRepository, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Device endpoints, also reachable under /api for older firmware
	for _, prefix := range []string{"", "/api"} {
		mux.HandleFunc("GET "+prefix+"/trigger-capture", handler.TriggerCaptureHandler(manager, logger))
		mux.HandleFunc("GET "+prefix+"/classification-result", handler.ClassificationResultHandler(manager))
		mux.HandleFunc("GET "+prefix+"/latest-image", handler.LatestImageHandler(manager, logger))
		mux.HandleFunc("GET "+prefix+"/arduino-test", handler.ArduinoTestHandler(logger))
	}

	// Camera clients
	mux.HandleFunc("GET /ws", handler.ClientWebsocketHandler(manager, logger))

	// History and health
	mux.HandleFunc("GET /api/captures", handler.CapturesHandler(repo, logger))
	mux.HandleFunc("GET /health", handler.HealthHandler(manager))

	// Log endpoints
	mux.HandleFunc("GET /logs/{level}", handler.ShowLogsHandler(logger))
	mux.HandleFunc("POST /logs/{level}/clear", handler.ClearLogsHandler(logger))

	return middleware.CORSMiddleware(middleware.LoggingMiddleware(logger)(mux))
}
