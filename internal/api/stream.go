package api

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	EventSubsidiesImported        = "subsidies_imported"
	EventRecommendationsGenerated = "recommendations_generated"
)

// RecommendationEvent describes websocket payloads emitted after imports and recommendation runs.
type RecommendationEvent struct {
	Type      string                `json:"type"`
	FarmID    string                `json:"farm_id,omitempty"`
	Run       *RecommendationRunDTO `json:"run,omitempty"`
	Imported  int                   `json:"imported,omitempty"`
	Skipped   int                   `json:"skipped,omitempty"`
	Message   string                `json:"message,omitempty"`
	Timestamp time.Time             `json:"timestamp"`
}

// wsClient wraps a websocket connection with write locking.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// RecommendationNotifier keeps track of websocket clients and fans events out to them.
type RecommendationNotifier struct {
	mu         sync.Mutex
	clients    map[*wsClient]struct{}
	lastStatus *RecommendationEvent
	now        func() time.Time
}

func NewRecommendationNotifier() *RecommendationNotifier {
	return &RecommendationNotifier{
		clients: make(map[*wsClient]struct{}),
		now:     time.Now,
	}
}

// Register attaches a websocket connection and replays the last event to it.
func (n *RecommendationNotifier) Register(conn *websocket.Conn) *wsClient {
	client := &wsClient{conn: conn}
	n.mu.Lock()
	n.clients[client] = struct{}{}
	status := n.lastStatus
	n.mu.Unlock()

	if status != nil {
		_ = client.writeJSON(*status)
	}
	return client
}

// Unregister removes the client and closes its socket.
func (n *RecommendationNotifier) Unregister(client *wsClient) {
	if client == nil {
		return
	}
	n.mu.Lock()
	delete(n.clients, client)
	n.mu.Unlock()
	_ = client.conn.Close()
}

// Broadcast stamps the event and sends it to every registered client. Clients that fail a write are dropped.
func (n *RecommendationNotifier) Broadcast(event RecommendationEvent) {
	event.Timestamp = n.now().UTC()

	n.mu.Lock()
	snapshot := event
	n.lastStatus = &snapshot
	for client := range n.clients {
		if err := client.writeJSON(event); err != nil {
			delete(n.clients, client)
			_ = client.conn.Close()
		}
	}
	n.mu.Unlock()
}

// LastStatus returns a copy of the most recent event, or nil.
func (n *RecommendationNotifier) LastStatus() *RecommendationEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.lastStatus == nil {
		return nil
	}
	copy := *n.lastStatus
	return &copy
}

// ClientCount reports the number of connected clients.
func (n *RecommendationNotifier) ClientCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.clients)
}

func (c *wsClient) writeJSON(payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(payload)
}
