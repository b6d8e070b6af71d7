package sse

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/shelfwise/shelfwise-server/internal/id"
	"github.com/shelfwise/shelfwise-server/internal/metrics"
)

// Client is one connected event stream.
type Client struct {
	ID          string
	UserID      string
	ConnectedAt time.Time
	EventChan   chan Event
	Done        chan struct{}
}

// Manager fans events out to the clients of the user they belong to.
type Manager struct {
	clients           map[string]*Client
	events            chan Event
	logger            *slog.Logger
	clock             clockwork.Clock
	heartbeatInterval time.Duration
	wg                sync.WaitGroup
	mu                sync.RWMutex

	shutdownMu sync.RWMutex
	shutdown   bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the clock driving heartbeats and timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithHeartbeatInterval sets how often heartbeats are broadcast.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(m *Manager) { m.heartbeatInterval = d }
}

// NewManager creates a Manager. Call Start to begin delivery.
func NewManager(logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		clients:           make(map[string]*Client),
		events:            make(chan Event, 1000),
		logger:            logger,
		clock:             clockwork.NewRealClock(),
		heartbeatInterval: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start runs the broadcast loop until ctx is done.
func (m *Manager) Start(ctx context.Context) {
	m.wg.Add(1)
	defer m.wg.Done()

	ticker := m.clock.NewTicker(m.heartbeatInterval)
	defer ticker.Stop()

	m.logger.Info("SSE manager starting")
	for {
		select {
		case event, ok := <-m.events:
			if !ok {
				return
			}
			m.broadcast(event)
		case <-ticker.Chan():
			m.broadcast(NewHeartbeatEvent(m.clock.Now()))
		case <-ctx.Done():
			m.logger.Info("SSE manager stopping")
			m.closeAllClients()
			return
		}
	}
}

// Shutdown stops accepting events, delivers what is queued and waits for
// the broadcast loop to exit.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.shutdownMu.Lock()
	if m.shutdown {
		m.shutdownMu.Unlock()
		return nil
	}
	m.shutdown = true
	close(m.events)
	m.shutdownMu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		for event := range m.events {
			m.broadcast(event)
		}
		m.closeAllClients()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		m.logger.Warn("SSE shutdown timed out, some events may be lost")
		return ctx.Err()
	}
}

// broadcast delivers event to every client of event.UserID, or to everyone
// when UserID is empty. Slow clients lose the event rather than block.
func (m *Manager) broadcast(event Event) {
	var delivered, dropped int

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.clients {
		if event.UserID != "" && event.UserID != c.UserID {
			continue
		}
		select {
		case c.EventChan <- event:
			delivered++
		default:
			dropped++
			m.logger.Warn("dropped event for slow client",
				slog.String("client_id", c.ID),
				slog.String("event_type", string(event.Type)))
		}
	}

	if event.Type != EventHeartbeat {
		m.logger.Debug("event broadcast",
			slog.String("event_type", string(event.Type)),
			slog.Group("stats",
				slog.Int("delivered", delivered),
				slog.Int("dropped", dropped)))
	}
}

// Connect registers a client receiving userID's events.
func (m *Manager) Connect(userID string) (*Client, error) {
	clientID, err := id.Generate(id.PrefixClient)
	if err != nil {
		return nil, err
	}
	c := &Client{
		ID:          clientID,
		UserID:      userID,
		ConnectedAt: m.clock.Now(),
		EventChan:   make(chan Event, 100),
		Done:        make(chan struct{}),
	}

	m.mu.Lock()
	m.clients[c.ID] = c
	total := len(m.clients)
	m.mu.Unlock()

	metrics.SSEClientsConnected.Inc()
	m.logger.Info("SSE client connected",
		slog.String("client_id", clientID),
		slog.String("user_id", userID),
		slog.Int("total_clients", total))
	return c, nil
}

// Disconnect removes a client and closes its channels.
func (m *Manager) Disconnect(clientID string) {
	m.mu.Lock()
	c, ok := m.clients[clientID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.clients, clientID)
	total := len(m.clients)
	m.mu.Unlock()

	close(c.Done)
	close(c.EventChan)
	metrics.SSEClientsConnected.Dec()

	m.logger.Info("SSE client disconnected",
		slog.String("client_id", clientID),
		slog.Duration("duration", m.clock.Since(c.ConnectedAt)),
		slog.Int("total_clients", total))
}

// Emit queues event for delivery. Events emitted after Shutdown are dropped.
func (m *Manager) Emit(event Event) {
	m.shutdownMu.RLock()
	defer m.shutdownMu.RUnlock()

	if m.shutdown {
		return
	}
	select {
	case m.events <- event:
	default:
		m.logger.Error("SSE event channel full, dropping event",
			slog.String("event_type", string(event.Type)))
	}
}

// LibraryChanged emits a library.updated event for userID.
func (m *Manager) LibraryChanged(userID string, change LibraryChange) {
	m.Emit(NewLibraryUpdatedEvent(userID, change, m.clock.Now()))
}

// ClientCount returns the number of connected clients.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

func (m *Manager) closeAllClients() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.clients {
		close(c.Done)
		close(c.EventChan)
		metrics.SSEClientsConnected.Dec()
	}
	m.clients = make(map[string]*Client)
}
