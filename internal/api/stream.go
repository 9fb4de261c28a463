package api

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event types broadcast on the analysis stream.
const (
	EventStarted  = "started"
	EventAnalysis = "analysis"
	EventError    = "error"
)

// AnalysisEvent describes websocket payloads emitted while analysing reviews.
type AnalysisEvent struct {
	Type      string           `json:"type"`
	Review    string           `json:"review,omitempty"`
	Result    *AnalyzeResponse `json:"result,omitempty"`
	Message   string           `json:"message,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// wsClient wraps a websocket connection with write locking.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// AnalysisNotifier keeps track of websocket clients and broadcasts analysis events.
// Late joiners receive the most recent event.
type AnalysisNotifier struct {
	mu        sync.Mutex
	clients   map[*wsClient]struct{}
	lastEvent *AnalysisEvent
}

func NewAnalysisNotifier() *AnalysisNotifier {
	return &AnalysisNotifier{clients: make(map[*wsClient]struct{})}
}

// Register attaches a websocket connection and replays the last event to it.
func (n *AnalysisNotifier) Register(conn *websocket.Conn) *wsClient {
	client := &wsClient{conn: conn}
	n.mu.Lock()
	n.clients[client] = struct{}{}
	last := n.lastEvent
	n.mu.Unlock()

	if last != nil {
		_ = client.writeJSON(*last)
	}
	return client
}

// Unregister removes the client and closes the socket.
func (n *AnalysisNotifier) Unregister(client *wsClient) {
	if client == nil {
		return
	}
	n.mu.Lock()
	delete(n.clients, client)
	n.mu.Unlock()
	_ = client.conn.Close()
}

// Broadcast sends the event to every registered client, dropping clients that fail.
func (n *AnalysisNotifier) Broadcast(event AnalysisEvent) {
	event.Timestamp = time.Now().UTC()

	n.mu.Lock()
	snapshot := event
	n.lastEvent = &snapshot
	clients := make([]*wsClient, 0, len(n.clients))
	for client := range n.clients {
		clients = append(clients, client)
	}
	n.mu.Unlock()

	for _, client := range clients {
		if err := client.writeJSON(event); err != nil {
			n.Unregister(client)
		}
	}
}

// Clients returns the number of connected clients.
func (n *AnalysisNotifier) Clients() int {
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
	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(payload)
}

// LastEvent returns a copy of the most recent broadcast, if any.
func (n *AnalysisNotifier) LastEvent() *AnalysisEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.lastEvent == nil {
		return nil
	}
	copy := *n.lastEvent
	return &copy
}
