package handlers

import (
	"context"
	"net/http"
	"time"
)

// Health reports whether the database answers a ping.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	if a.DB == nil {
		a.json(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.DB.Ping(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("health check: database ping failed")
		a.json(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "database": "down"})
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "ok", "database": "up"})
}
