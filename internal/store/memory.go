// ABOUTME: In-memory Store implementation backed by maps
// ABOUTME: Default backend; all state is lost when the process exits

package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a map-backed Store. Records are copied on the way in and
// out so callers never share mutable state with the store.
type MemoryStore struct {
	mu            sync.RWMutex
	agents        map[string]*Agent        // keyed by agent ID
	order         []string                 // agent IDs in creation order
	conversations map[string]*Conversation // keyed by agent ID
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		agents:        make(map[string]*Agent),
		conversations: make(map[string]*Conversation),
	}
}

// CreateAgent stores a new agent.
func (m *MemoryStore) CreateAgent(ctx context.Context, agent *Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.agents[agent.ID]; exists {
		return ErrDuplicate
	}

	m.agents[agent.ID] = agent.Clone()
	m.order = append(m.order, agent.ID)
	return nil
}

// GetAgent retrieves an agent by ID.
func (m *MemoryStore) GetAgent(ctx context.Context, id string) (*Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.agents[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a.Clone(), nil
}

// ListAgents returns all agents in creation order.
func (m *MemoryStore) ListAgents(ctx context.Context) ([]*Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Agent, 0, len(m.order))
	for _, id := range m.order {
		result = append(result, m.agents[id].Clone())
	}
	return result, nil
}

// UpdateAgent replaces an existing agent record wholesale.
func (m *MemoryStore) UpdateAgent(ctx context.Context, agent *Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.agents[agent.ID]; !ok {
		return ErrNotFound
	}
	m.agents[agent.ID] = agent.Clone()
	return nil
}

// DeleteAgent removes an agent and its conversation.
func (m *MemoryStore) DeleteAgent(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.agents[id]; !ok {
		return ErrNotFound
	}

	delete(m.agents, id)
	delete(m.conversations, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// GetConversation returns a copy of the agent's conversation.
func (m *MemoryStore) GetConversation(ctx context.Context, agentID string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.conversations[agentID]
	if !ok {
		return nil, ErrNotFound
	}
	return c.Clone(), nil
}

// SaveConversation replaces the agent's conversation wholesale.
func (m *MemoryStore) SaveConversation(ctx context.Context, conv *Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.agents[conv.AgentID]; !ok {
		return ErrNotFound
	}
	m.conversations[conv.AgentID] = conv.Clone()
	return nil
}

// AppendMessage appends msg to the agent's current conversation.
func (m *MemoryStore) AppendMessage(ctx context.Context, agentID, conversationID string, msg *Message, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conversations[agentID]
	if !ok || c.ID != conversationID {
		return ErrNotFound
	}

	msgCopy := *msg
	c.Messages = append(c.Messages, &msgCopy)
	c.LastUpdated = at
	return nil
}

// SetConversationStatus updates the reply status of the agent's conversation.
func (m *MemoryStore) SetConversationStatus(ctx context.Context, agentID string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conversations[agentID]
	if !ok {
		return ErrNotFound
	}
	c.Status = status
	return nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}
