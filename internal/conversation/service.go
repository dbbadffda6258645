// ABOUTME: Service is the state manager for agents and their conversations
// ABOUTME: Lifecycle operations keep each agent paired with exactly one greeting-seeded conversation

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/persona-studio/internal/dedupe"
	"github.com/2389/persona-studio/internal/metrics"
	"github.com/2389/persona-studio/internal/notify"
	"github.com/2389/persona-studio/internal/persona"
	"github.com/2389/persona-studio/internal/schedule"
	"github.com/2389/persona-studio/internal/store"
)

// DefaultAvatar is used when an agent is created or updated without one.
const DefaultAvatar = "🤖"

var (
	// ErrAgentNotFound is returned when an operation references an absent agent
	ErrAgentNotFound = errors.New("agent not found")

	// ErrEmptyMessage is returned when a message is blank after trimming
	ErrEmptyMessage = errors.New("message is empty")

	// ErrInvalidAgent is returned when agent fields fail validation
	ErrInvalidAgent = errors.New("invalid agent")
)

// Responder produces the reply text for a user message.
type Responder interface {
	Generate(ctx context.Context, personaID, text string) (string, error)
}

// AgentFields is the input for creating an agent.
type AgentFields struct {
	Name        string `json:"name"`
	Avatar      string `json:"avatar"`
	Description string `json:"description"`
	Personality string `json:"personality"`
	Greeting    string `json:"greeting"`
	Persona     string `json:"persona"` // Optional; resolved from Name when empty
}

// Options configures a Service. Store and Responder are required.
type Options struct {
	Store     store.Store
	Responder Responder
	Personas  *persona.Registry // Used to resolve personas; builtin set when nil
	Notifier  notify.Sink
	Metrics   *metrics.Metrics
	Logger    *slog.Logger

	ReplyDelayMin time.Duration
	ReplyDelayMax time.Duration
	DedupeTTL     time.Duration
}

// Service owns agent lifecycle, conversation materialization and the reply
// pipeline. All conversation mutations are serialized on mu.
type Service struct {
	store       store.Store
	responder   Responder
	personas    *persona.Registry
	notifier    notify.Sink
	metrics     *metrics.Metrics
	events      *EventBroadcaster
	scheduler   *schedule.Scheduler
	submissions *dedupe.Cache[*store.Message]
	logger      *slog.Logger

	delayMin time.Duration
	delayMax time.Duration
	now      func() time.Time
	jitter   func(lo, hi time.Duration) time.Duration

	mu            sync.Mutex
	activeAgentID string
	pending       map[string]int // conversationID -> reply tasks in flight
}

// New creates a Service
func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	personas := opts.Personas
	if personas == nil {
		personas = persona.Builtin()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Discard
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}
	return &Service{
		store:       opts.Store,
		responder:   opts.Responder,
		personas:    personas,
		notifier:    notifier,
		metrics:     m,
		events:      NewEventBroadcaster(logger),
		scheduler:   schedule.New(logger),
		submissions: dedupe.New[*store.Message](opts.DedupeTTL, 0),
		logger:      logger.With("component", "conversation"),
		delayMin:    opts.ReplyDelayMin,
		delayMax:    opts.ReplyDelayMax,
		now:         time.Now,
		jitter:      uniformDelay,
		pending:     make(map[string]int),
	}
}

// ListAgents returns all agents in creation order.
func (s *Service) ListAgents(ctx context.Context) ([]*store.Agent, error) {
	agents, err := s.store.ListAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing agents: %w", err)
	}
	return agents, nil
}

// GetAgent returns a single agent.
func (s *Service) GetAgent(ctx context.Context, id string) (*store.Agent, error) {
	agent, err := s.store.GetAgent(ctx, id)
	if err != nil {
		return nil, agentError(id, err)
	}
	return agent, nil
}

// CreateAgent validates fields, stores a new agent and materializes its
// greeting conversation.
func (s *Service) CreateAgent(ctx context.Context, fields AgentFields) (*store.Agent, error) {
	agent, err := s.createAgent(ctx, fields)
	if err != nil {
		return nil, err
	}

	s.notify(notify.KindCreated, agent.ID, "Agent created",
		fmt.Sprintf("%s has been created successfully", agent.Name))
	return agent, nil
}

// Seed creates one agent per persona. Used to populate an empty studio with
// the sample agents.
func (s *Service) Seed(ctx context.Context, personas []*persona.Persona) error {
	for _, p := range personas {
		_, err := s.createAgent(ctx, AgentFields{
			Name:        p.Name,
			Avatar:      p.Avatar,
			Description: p.Description,
			Personality: p.Personality,
			Greeting:    p.Greeting,
			Persona:     p.ID,
		})
		if err != nil {
			return fmt.Errorf("seeding %s: %w", p.ID, err)
		}
	}
	s.logger.Info("seeded agents", "count", len(personas))
	return nil
}

func (s *Service) createAgent(ctx context.Context, fields AgentFields) (*store.Agent, error) {
	fields.Name = strings.TrimSpace(fields.Name)
	fields.Description = strings.TrimSpace(fields.Description)
	fields.Greeting = strings.TrimSpace(fields.Greeting)
	fields.Avatar = strings.TrimSpace(fields.Avatar)
	if err := validateFields(fields.Name, fields.Description, fields.Greeting); err != nil {
		return nil, err
	}

	personaID, err := s.resolvePersona(fields.Persona, fields.Name)
	if err != nil {
		return nil, err
	}

	agent := &store.Agent{
		ID:          uuid.New().String(),
		Name:        fields.Name,
		Avatar:      avatarOrDefault(fields.Avatar),
		Description: fields.Description,
		Personality: fields.Personality,
		Greeting:    fields.Greeting,
		Persona:     personaID,
		Context:     []string{},
		CreatedAt:   s.now(),
	}

	if err := s.store.CreateAgent(ctx, agent); err != nil {
		return nil, fmt.Errorf("creating agent: %w", err)
	}
	if err := s.store.SaveConversation(ctx, s.greetingConversation(agent)); err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	s.metrics.AgentsTotal.Inc()
	s.metrics.AgentOperationsTotal.WithLabelValues("create").Inc()
	s.logger.Info("agent created",
		"agent_id", agent.ID,
		"name", agent.Name,
		"persona", agent.Persona)

	return agent, nil
}

// UpdateAgent replaces the stored agent wholesale. The creation time is kept
// from the stored record and a nil context becomes empty. An empty persona
// keeps the stored binding, or is resolved from the name when there is none.
func (s *Service) UpdateAgent(ctx context.Context, agent *store.Agent) error {
	if agent == nil {
		return fmt.Errorf("%w: agent is required", ErrInvalidAgent)
	}
	updated := agent.Clone()
	updated.Name = strings.TrimSpace(updated.Name)
	updated.Description = strings.TrimSpace(updated.Description)
	updated.Greeting = strings.TrimSpace(updated.Greeting)
	updated.Avatar = avatarOrDefault(strings.TrimSpace(updated.Avatar))
	if err := validateFields(updated.Name, updated.Description, updated.Greeting); err != nil {
		return err
	}
	if updated.Persona != "" {
		if _, ok := s.personas.Lookup(updated.Persona); !ok {
			return fmt.Errorf("%w: unknown persona %q", ErrInvalidAgent, updated.Persona)
		}
	}
	if updated.Context == nil {
		updated.Context = []string{}
	}

	existing, err := s.store.GetAgent(ctx, updated.ID)
	if err != nil {
		return agentError(updated.ID, err)
	}
	updated.CreatedAt = existing.CreatedAt
	if updated.Persona == "" {
		updated.Persona = existing.Persona
	}
	if updated.Persona == "" {
		if p, ok := s.personas.Resolve(updated.Name); ok {
			updated.Persona = p.ID
		}
	}

	if err := s.store.UpdateAgent(ctx, updated); err != nil {
		return agentError(updated.ID, err)
	}

	s.metrics.AgentOperationsTotal.WithLabelValues("update").Inc()
	s.logger.Info("agent updated", "agent_id", updated.ID, "name", updated.Name)
	s.events.Publish(&Event{Type: EventAgentUpdated, AgentID: updated.ID, Time: s.now()})
	s.notify(notify.KindUpdated, updated.ID, "Agent updated",
		fmt.Sprintf("%s has been updated successfully", updated.Name))
	return nil
}

// DeleteAgent cancels in-flight replies, removes the agent and its
// conversation, and clears the active selection if it pointed at the agent.
func (s *Service) DeleteAgent(ctx context.Context, id string) error {
	s.mu.Lock()
	agent, err := s.store.GetAgent(ctx, id)
	if err != nil {
		s.mu.Unlock()
		return agentError(id, err)
	}

	if conv, err := s.store.GetConversation(ctx, id); err == nil {
		s.cancelRepliesLocked(conv.ID)
	}

	if err := s.store.DeleteAgent(ctx, id); err != nil {
		s.mu.Unlock()
		return agentError(id, err)
	}
	if s.activeAgentID == id {
		s.activeAgentID = ""
	}
	s.submissions.ForgetPrefix(submissionPrefix(id))
	s.events.Publish(&Event{Type: EventAgentDeleted, AgentID: id, Time: s.now()})
	s.mu.Unlock()

	s.metrics.AgentsTotal.Dec()
	s.metrics.AgentOperationsTotal.WithLabelValues("delete").Inc()
	s.logger.Info("agent deleted", "agent_id", id, "name", agent.Name)
	s.notify(notify.KindDeleted, id, "Agent deleted",
		fmt.Sprintf("%s has been deleted", agent.Name))
	return nil
}

// SelectAgent sets the active agent. An empty id clears the selection.
func (s *Service) SelectAgent(ctx context.Context, id string) error {
	if id != "" {
		if _, err := s.store.GetAgent(ctx, id); err != nil {
			return agentError(id, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeAgentID = id
	return nil
}

// ActiveAgentID returns the selected agent, or "" when none is selected.
func (s *Service) ActiveAgentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeAgentID
}

// Conversation returns the agent's conversation, materializing a greeting
// conversation if none exists yet.
func (s *Service) Conversation(ctx context.Context, agentID string) (*store.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationLocked(ctx, agentID)
}

func (s *Service) conversationLocked(ctx context.Context, agentID string) (*store.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, agentID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("getting conversation: %w", err)
	}

	agent, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		return nil, agentError(agentID, err)
	}
	conv = s.greetingConversation(agent)
	if err := s.store.SaveConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}
	s.logger.Debug("conversation materialized", "agent_id", agentID, "conversation_id", conv.ID)
	return conv, nil
}

// ClearConversation replaces the agent's conversation with a fresh one that
// holds only the greeting. Pending replies for the old conversation are
// cancelled and never land in the new one.
func (s *Service) ClearConversation(ctx context.Context, agentID string) (*store.Conversation, error) {
	s.mu.Lock()
	agent, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		s.mu.Unlock()
		return nil, agentError(agentID, err)
	}

	if old, err := s.store.GetConversation(ctx, agentID); err == nil {
		s.cancelRepliesLocked(old.ID)
	}

	conv := s.greetingConversation(agent)
	if err := s.store.SaveConversation(ctx, conv); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("clearing conversation: %w", err)
	}
	s.submissions.ForgetPrefix(submissionPrefix(agentID))
	s.events.Publish(&Event{
		Type:           EventCleared,
		AgentID:        agentID,
		ConversationID: conv.ID,
		Message:        conv.Messages[0],
		Status:         conv.Status,
		Time:           s.now(),
	})
	s.mu.Unlock()

	s.metrics.ConversationsCleared.Inc()
	s.logger.Info("conversation cleared", "agent_id", agentID, "conversation_id", conv.ID)
	s.notify(notify.KindCleared, agentID, "Conversation cleared",
		fmt.Sprintf("Conversation with %s has been reset", agent.Name))
	return conv, nil
}

// Subscribe streams events for one agent until ctx is cancelled.
func (s *Service) Subscribe(ctx context.Context, agentID string) <-chan *Event {
	ch, _ := s.events.Subscribe(ctx, agentID)
	return ch
}

// Close cancels every reply task, waits for them, and closes subscriptions.
func (s *Service) Close() {
	s.scheduler.Close()
	s.events.Close()
}

func (s *Service) greetingConversation(agent *store.Agent) *store.Conversation {
	now := s.now()
	return &store.Conversation{
		ID:      uuid.New().String(),
		AgentID: agent.ID,
		Messages: []*store.Message{{
			ID:        uuid.New().String(),
			Text:      agent.Greeting,
			Sender:    store.SenderAgent,
			Timestamp: now,
			AgentID:   agent.ID,
		}},
		LastUpdated: now,
		Status:      store.StatusIdle,
	}
}

// resolvePersona picks the explicit persona if given, else the persona whose
// id or name matches the display name. No match means generic replies.
func (s *Service) resolvePersona(explicit, name string) (string, error) {
	if explicit != "" {
		p, ok := s.personas.Lookup(explicit)
		if !ok {
			return "", fmt.Errorf("%w: unknown persona %q", ErrInvalidAgent, explicit)
		}
		return p.ID, nil
	}
	if p, ok := s.personas.Resolve(name); ok {
		return p.ID, nil
	}
	return "", nil
}

func (s *Service) notify(kind notify.Kind, agentID, title, description string) {
	s.notifier.Notify(notify.Notice{
		Kind:        kind,
		Title:       title,
		Description: description,
		AgentID:     agentID,
		Time:        s.now(),
	})
}

func validateFields(name, description, greeting string) error {
	var missing []string
	if name == "" {
		missing = append(missing, "name")
	}
	if description == "" {
		missing = append(missing, "description")
	}
	if greeting == "" {
		missing = append(missing, "greeting")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required", ErrInvalidAgent, strings.Join(missing, ", "))
	}
	return nil
}

func avatarOrDefault(avatar string) string {
	if avatar == "" {
		return DefaultAvatar
	}
	return avatar
}

func agentError(id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	return err
}

func submissionPrefix(agentID string) string {
	return agentID + ":"
}
