package ask

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ToJen/crypto-news-agent/internal/middleware"
)

const maxQuestionRunes = 1000

// Answerer runs the question answering pipeline.
type Answerer interface {
	AnswerQuestion(ctx context.Context, question string, history []Turn) (Result, error)
}

type Handler struct {
	service  Answerer
	streamer *Streamer
	delay    time.Duration
}

// NewHandler builds the /ask handler. delay is inserted after each chunk
// event for a steady streaming cadence on localhost-fast pipelines.
func NewHandler(service Answerer, streamer *Streamer, delay time.Duration) *Handler {
	return &Handler{service: service, streamer: streamer, delay: delay}
}

type askRequest struct {
	Question    string `json:"question"`
	SessionID   string `json:"session_id"`
	ChatHistory []Turn `json:"chat_history"`
}

// Ask answers a question as a server-sent event stream. Validation failures
// are plain JSON errors; once the stream has started, failures become a
// single error event because the 200 is already on the wire.
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	if n := utf8.RuneCountInString(req.Question); n < 1 || n > maxQuestionRunes {
		h.writeError(r.Context(), w, "VALIDATION_ERROR",
			fmt.Sprintf("question must be 1 to %d characters", maxQuestionRunes), http.StatusBadRequest)
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	slog.InfoContext(ctx, "answering question", "session_id", sessionID, "history_turns", len(req.ChatHistory))

	result, err := h.service.AnswerQuestion(ctx, req.Question, req.ChatHistory)
	if err != nil {
		slog.ErrorContext(ctx, "pipeline failed", "session_id", sessionID, "error", err)
		h.writeEvent(w, flusher, Event{Name: EventError, Data: ErrorData{Error: "failed to answer question"}})
		return
	}

	err = h.streamer.Stream(result, sessionID, func(ev Event) error {
		if err := h.writeEvent(w, flusher, ev); err != nil {
			return err
		}
		if ev.Name == EventChunk && h.delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(h.delay):
			}
		}
		return nil
	})
	if err != nil {
		slog.WarnContext(ctx, "stream aborted", "session_id", sessionID, "error", err)
		return
	}

	slog.InfoContext(ctx, "stream complete", "session_id", sessionID, "sources", len(result.Sources))
}

func (h *Handler) writeEvent(w http.ResponseWriter, flusher http.Flusher, ev Event) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
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
