package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"slices"

	"ecosort/internal/logger"
)

// ShowLogsHandler serves the log file of the {level} path value as text/plain.
func ShowLogsHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		level, ok := logLevel(w, r)
		if !ok {
			return
		}
		serveLogFile(w, r, logger.Dir(), level+".log")
	}
}

// ClearLogsHandler truncates the log file of the {level} path value.
func ClearLogsHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		level, ok := logLevel(w, r)
		if !ok {
			return
		}
		if err := logger.CleanLogs(level + ".log"); err != nil {
			logger.Error("Failed to clear %s logs: %v", level, err)
			http.Error(w, "Failed to clear logs", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func logLevel(w http.ResponseWriter, r *http.Request) (string, bool) {
	level := r.PathValue("level")
	if !slices.Contains(logger.Levels, level) {
		http.Error(w, "Unknown log level: "+level, http.StatusNotFound)
		return "", false
	}
	return level, true
}

// serveLogFile is a helper that sets headers and serves a log file if it exists.
func serveLogFile(w http.ResponseWriter, r *http.Request, logDir, filename string) {
	filePath := filepath.Join(logDir, filename)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("Log file not found: " + filename))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")

	http.ServeFile(w, r, filePath)
}
