package uisync

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"sync"

	"github.com/axyra/membership/pkg/observability"
)

// MessageTypeView is the type of messages carrying a membership view.
const MessageTypeView = "membership_view"

// Message is the frame sent to browser tabs.
type Message struct {
	Type string `json:"type"`
	View View   `json:"view"`
}

// Hub tracks websocket clients per user and delivers views to every tab the
// user has open.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	logger  *slog.Logger
	metrics observability.Metrics
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger, metrics observability.Metrics) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		logger:  logger,
		metrics: metrics,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
	total := h.countLocked()
	h.mu.Unlock()

	h.metrics.Gauge(observability.MetricWSClients, float64(total))
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if set, ok := h.clients[c.userID]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			close(c.send)
		}
		if len(set) == 0 {
			delete(h.clients, c.userID)
		}
	}
	total := h.countLocked()
	h.mu.Unlock()

	h.metrics.Gauge(observability.MetricWSClients, float64(total))
}

// Render sends view to the user's connected clients. Clients whose buffer
// is full miss the update; the next view supersedes it anyway.
func (h *Hub) Render(ctx context.Context, view View) error {
	data, err := json.Marshal(Message{Type: MessageTypeView, View: view})
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for c := range h.clients[view.UserID] {
		select {
		case c.send <- data:
			delivered++
		default:
			h.logger.DebugContext(ctx, "client buffer full, dropping view", "user_id", view.UserID)
		}
	}

	if delivered > 0 {
		h.metrics.Counter(observability.MetricViewsPushed, int64(delivered))
	}
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.countLocked()
}

// UserClientCount returns the number of tabs userID has connected.
func (h *Hub) UserClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Users returns the users with at least one connected tab, sorted.
func (h *Hub) Users() []string {
	h.mu.RLock()
	users := make([]string, 0, len(h.clients))
	for userID := range h.clients {
		users = append(users, userID)
	}
	h.mu.RUnlock()

	slices.Sort(users)
	return users
}

func (h *Hub) countLocked() int {
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}
