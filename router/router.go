package router

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"discordbot/middleware"
	"discordbot/socket"

	"go.uber.org/zap"
)

const healthTimeout = 2 * time.Second

// Setup wires the activity feed endpoints.
func Setup(db *sql.DB, hub *socket.Hub, jwtSecret string, log *zap.SugaredLogger) http.Handler {
	mux := http.NewServeMux()

	wsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value(middleware.UserIDKey).(string)
		serverID := r.Context().Value(middleware.ServerIDKey).(string)
		socket.ServeWs(hub, w, r, userID, serverID)
	})
	mux.Handle("/ws", middleware.Auth(jwtSecret, log)(wsHandler))
	mux.HandleFunc("/healthz", health(db, log))

	return middleware.CORSMiddleware(mux)
}

func health(db *sql.DB, log *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		status, code := "ok", http.StatusOK
		if err := db.PingContext(ctx); err != nil {
			log.Errorf("Health check failed: %v", err)
			status, code = "database unavailable", http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}
