package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/academia/gradebot/internal/app/models"
	"github.com/academia/gradebot/internal/app/models/dto"
	"github.com/academia/gradebot/internal/app/services"
	"github.com/rs/zerolog"
)

// Envelope types sent over the socket.
const (
	TypeMessage     = "message"
	TypeReply       = "reply"
	TypeError       = "error"
	TypeGradeChange = "grade_change"
)

// Envelope is every frame exchanged with a client.
type Envelope struct {
	Type string `json:"type"`

	// ID echoes the id of the message being answered.
	ID string `json:"id,omitempty"`

	// Content is the user text of an inbound message.
	Content string `json:"content,omitempty"`

	Reply  *services.AssistantReply `json:"reply,omitempty"`
	Change *dto.GradeChange         `json:"change,omitempty"`
	Error  *dto.ErrorDetail         `json:"error,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Hub keeps the connected clients and fans grade changes out to them. A
// change reaches the student it belongs to and every connected instructor.
type Hub struct {
	// Registered clients organized by enrollment
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	changes    chan dto.GradeChange
	quit       chan struct{}

	mu     sync.RWMutex
	logger zerolog.Logger
}

var _ services.GradeNotifier = (*Hub)(nil)

// NewHub creates a new Hub instance
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		changes:    make(chan dto.GradeChange, 256),
		quit:       make(chan struct{}),
		logger:     logger,
	}
}

// Run handles registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.quit)
			h.closeAll()
			return
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case change := <-h.changes:
			h.broadcastChange(change)
		}
	}
}

// NotifyGradeChange queues change for delivery. It never blocks a grade
// operation: when the queue is full the change is dropped.
func (h *Hub) NotifyGradeChange(change dto.GradeChange) {
	select {
	case h.changes <- change:
	default:
		h.logger.Warn().
			Str("enrollment", change.Enrollment).
			Str("course", change.Course).
			Msg("Grade change queue full, dropping notification")
	}
}

// Register adds client. It returns false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.quit:
		return false
	}
}

// Unregister removes client and closes its send queue.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	enrollment := client.caller.Enrollment
	if _, ok := h.clients[enrollment]; !ok {
		h.clients[enrollment] = make(map[*Client]bool)
	}
	h.clients[enrollment][client] = true

	h.logger.Info().
		Str("enrollment", enrollment).
		Str("role", string(client.caller.Role)).
		Msg("Client registered")
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client)
}

func (h *Hub) removeLocked(client *Client) {
	enrollment := client.caller.Enrollment
	set, ok := h.clients[enrollment]
	if !ok || !set[client] {
		return
	}
	delete(set, client)
	client.close()
	if len(set) == 0 {
		delete(h.clients, enrollment)
	}
	h.logger.Info().Str("enrollment", enrollment).Msg("Client unregistered")
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.clients {
		for client := range set {
			h.removeLocked(client)
		}
	}
}

// recipients returns the clients that should see a change to enrollment.
func (h *Hub) recipients(enrollment string) []*Client {
	var out []*Client
	for owner, set := range h.clients {
		for client := range set {
			if owner == enrollment || client.caller.Role == models.RoleInstructor {
				out = append(out, client)
			}
		}
	}
	return out
}

func (h *Hub) broadcastChange(change dto.GradeChange) {
	data, err := json.Marshal(Envelope{Type: TypeGradeChange, Change: &change, Timestamp: time.Now().UTC()})
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal grade change")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for _, client := range h.recipients(change.Enrollment) {
		if client.enqueue(data) {
			delivered++
			continue
		}
		// Slow client: drop it rather than stall everyone else.
		h.removeLocked(client)
	}

	h.logger.Debug().
		Str("enrollment", change.Enrollment).
		Str("course", change.Course).
		Int("delivered", delivered).
		Msg("Grade change broadcast")
}

// ClientsCount returns the number of connections for enrollment.
func (h *Hub) ClientsCount(enrollment string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[models.NormalizeEnrollment(enrollment)])
}
