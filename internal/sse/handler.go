package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// UserResolver returns the authenticated user of a request.
type UserResolver func(r *http.Request) (userID string, ok bool)

// Handler streams the authenticated user's events.
type Handler struct {
	manager *Manager
	resolve UserResolver
	logger  *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(manager *Manager, resolve UserResolver, logger *slog.Logger) *Handler {
	return &Handler{manager: manager, resolve: resolve, logger: logger}
}

// ServeHTTP holds the connection open and writes events until the client
// goes away or the manager shuts down.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := h.resolve(r)
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"authentication required"}`))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		h.logger.Error("failed to flush headers", slog.String("error", err.Error()))
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	client, err := h.manager.Connect(userID)
	if err != nil {
		h.logger.Error("failed to register SSE client", slog.String("error", err.Error()))
		return
	}
	defer h.manager.Disconnect(client.ID)

	log := h.logger.With(slog.String("client_id", client.ID))

	connected := Event{Type: EventConnected, Data: map[string]string{"clientId": client.ID}, Timestamp: h.manager.clock.Now()}
	if err := h.send(w, rc, connected); err != nil {
		log.Warn("failed to send initial event", slog.String("error", err.Error()))
		return
	}

	ctx := r.Context()
	for {
		select {
		case event, ok := <-client.EventChan:
			if !ok {
				return
			}
			if err := h.send(w, rc, event); err != nil {
				log.Info("client disconnected during send")
				return
			}
		case <-client.Done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) send(w http.ResponseWriter, rc *http.ResponseController, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
		return err
	}
	if err := rc.Flush(); err != nil {
		return err
	}
	if err := rc.SetWriteDeadline(time.Now().Add(60 * time.Second)); err != nil {
		h.logger.Debug("failed to set write deadline", slog.String("error", err.Error()))
	}
	return nil
}
