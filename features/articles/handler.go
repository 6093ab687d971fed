package articles

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ToJen/crypto-news-agent/internal/middleware"
	"github.com/ToJen/crypto-news-agent/internal/news"
)

const defaultWindowHours = 24

// Lister returns articles published inside the window.
type Lister interface {
	RecentArticles(ctx context.Context, window time.Duration) ([]news.Article, error)
}

type Handler struct {
	lister Lister
}

func NewHandler(lister Lister) *Handler {
	return &Handler{lister: lister}
}

// List serves the most recently published articles, newest window only. The
// optional hours query parameter adjusts the window.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	hours := defaultWindowHours
	if q := r.URL.Query().Get("hours"); q != "" {
		parsed, err := strconv.Atoi(q)
		if err != nil || parsed < 1 {
			h.writeError(ctx, w, "VALIDATION_ERROR", "hours must be a positive integer", http.StatusBadRequest)
			return
		}
		hours = parsed
	}

	articles, err := h.lister.RecentArticles(ctx, time.Duration(hours)*time.Hour)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list recent articles", "hours", hours, "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to list articles", http.StatusInternalServerError)
		return
	}
	if articles == nil {
		articles = []news.Article{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"articles": articles,
		"count":    len(articles),
		"hours":    hours,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}
