// ABOUTME: In-memory fan-out of conversation events to live views
// ABOUTME: Subscribers register per agent ID and receive messages, status changes, resets

package conversation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/persona-studio/internal/store"
)

const (
	// subscriberBufferSize is the channel buffer for each subscriber.
	subscriberBufferSize = 64
)

// EventType names what happened to a conversation
type EventType string

const (
	EventMessage      EventType = "message"       // A message was appended
	EventStatus       EventType = "status"        // Reply status changed
	EventCleared      EventType = "cleared"       // Conversation replaced by a fresh greeting
	EventAgentUpdated EventType = "agent_updated" // Agent record replaced
	EventAgentDeleted EventType = "agent_deleted" // Agent and conversation removed
)

// Event is a change to one agent's conversation. Events are shared between
// subscribers and must be treated as read-only.
type Event struct {
	Type           EventType      `json:"type"`
	AgentID        string         `json:"agent_id"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Message        *store.Message `json:"message,omitempty"`
	Status         store.Status   `json:"status,omitempty"`
	Time           time.Time      `json:"time"`
}

// EventBroadcaster provides in-memory pub/sub for conversation events.
// Subscribers register for an agent ID and receive events as state changes.
type EventBroadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan *Event // agentID -> subID -> ch
	closed      bool
	logger      *slog.Logger
}

// NewEventBroadcaster creates a broadcaster. Pass nil logger for default.
func NewEventBroadcaster(logger *slog.Logger) *EventBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventBroadcaster{
		subscribers: make(map[string]map[string]chan *Event),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a subscriber for events on the given agent.
// Returns a channel that receives events and a subscription ID for later
// unsubscription. The subscription is automatically cleaned up when ctx is
// cancelled. On a closed broadcaster the returned channel is already closed.
func (b *EventBroadcaster) Subscribe(ctx context.Context, agentID string) (<-chan *Event, string) {
	subID := uuid.New().String()
	ch := make(chan *Event, subscriberBufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, subID
	}
	if _, ok := b.subscribers[agentID]; !ok {
		b.subscribers[agentID] = make(map[string]chan *Event)
	}
	b.subscribers[agentID][subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added",
		"agent_id", agentID,
		"sub_id", subID)

	// Auto-cleanup on context cancellation
	go func() {
		<-ctx.Done()
		b.Unsubscribe(agentID, subID)
	}()

	return ch, subID
}

// Publish sends an event to all subscribers of the event's agent.
// Non-blocking: events are dropped for subscribers whose channels are full.
func (b *EventBroadcaster) Publish(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for subID, ch := range b.subscribers[event.AgentID] {
		select {
		case ch <- event:
		default:
			b.logger.Debug("dropped event for slow subscriber",
				"agent_id", event.AgentID,
				"sub_id", subID,
				"type", event.Type)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *EventBroadcaster) Unsubscribe(agentID, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[agentID]
	if !ok {
		return
	}

	ch, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	close(ch)

	if len(subs) == 0 {
		delete(b.subscribers, agentID)
	}

	b.logger.Debug("subscriber removed",
		"agent_id", agentID,
		"sub_id", subID)
}

// Close shuts down the broadcaster and closes all subscriber channels.
func (b *EventBroadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for agentID, subs := range b.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(b.subscribers, agentID)
	}

	b.logger.Debug("broadcaster closed")
}
