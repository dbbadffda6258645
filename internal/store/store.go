// ABOUTME: Store interface and data types for persona-studio state
// ABOUTME: Defines Agent, Message, Conversation and the Store interface the service runs on

package store

import (
	"context"
	"errors"
	"slices"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when creating an entity whose id is already taken
var ErrDuplicate = errors.New("already exists")

// Sender identifies who wrote a message
type Sender string

const (
	SenderUser  Sender = "user"
	SenderAgent Sender = "agent"
)

// Status is the reply state of a conversation
type Status string

const (
	StatusIdle          Status = "idle"           // No reply in flight
	StatusAwaitingReply Status = "awaiting_reply" // At least one reply task pending
)

// Agent is a configured conversational persona
type Agent struct {
	ID          string
	Name        string
	Avatar      string
	Description string
	Personality string
	Greeting    string
	Persona     string   // Persona identifier used for reply rules; independent of Name
	Context     []string // Free-text notes, stored only
	CreatedAt   time.Time
}

// Clone returns a deep copy of the agent.
func (a *Agent) Clone() *Agent {
	c := *a
	c.Context = slices.Clone(a.Context)
	return &c
}

// Message is a single immutable entry in a conversation
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	AgentID   string    `json:"agent_id,omitempty"` // Set on agent-authored messages only
}

// Conversation is the ordered message history of exactly one agent
type Conversation struct {
	ID          string
	AgentID     string
	Messages    []*Message
	LastUpdated time.Time
	Status      Status
}

// Clone returns a copy of the conversation. Messages are immutable so
// the pointers are shared, but the slice is not.
func (c *Conversation) Clone() *Conversation {
	cp := *c
	cp.Messages = slices.Clone(c.Messages)
	return &cp
}

// Store defines the persistence the conversation service needs.
// Implementations must be safe for concurrent use.
type Store interface {
	// Agents
	CreateAgent(ctx context.Context, agent *Agent) error
	GetAgent(ctx context.Context, id string) (*Agent, error)
	ListAgents(ctx context.Context) ([]*Agent, error)
	UpdateAgent(ctx context.Context, agent *Agent) error
	// DeleteAgent removes the agent together with its conversation.
	DeleteAgent(ctx context.Context, id string) error

	// Conversations, keyed by owning agent
	GetConversation(ctx context.Context, agentID string) (*Conversation, error)
	SaveConversation(ctx context.Context, conv *Conversation) error
	// AppendMessage appends to the agent's current conversation only if its ID
	// is still conversationID. Returns ErrNotFound otherwise.
	AppendMessage(ctx context.Context, agentID, conversationID string, msg *Message, at time.Time) error
	SetConversationStatus(ctx context.Context, agentID string, status Status) error

	// Close releases any resources held by the store
	Close() error
}
