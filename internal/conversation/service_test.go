// ABOUTME: Tests for the conversation Service
// ABOUTME: Covers agent lifecycle, greeting conversations, the reply pipeline, cancellation and dedupe

package conversation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/2389/persona-studio/internal/metrics"
	"github.com/2389/persona-studio/internal/notify"
	"github.com/2389/persona-studio/internal/persona"
	"github.com/2389/persona-studio/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// gatedResponder answers only when released. Each send on release lets one
// pending Generate through; closing it releases all.
type gatedResponder struct {
	release chan struct{}
	reply   string
	err     error
}

func newGatedResponder(reply string) *gatedResponder {
	return &gatedResponder{release: make(chan struct{}), reply: reply}
}

func (g *gatedResponder) Generate(ctx context.Context, personaID, text string) (string, error) {
	select {
	case <-g.release:
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", persona.ErrGeneration, ctx.Err())
	}
	return g.reply, g.err
}

type failingResponder struct{}

func (failingResponder) Generate(ctx context.Context, personaID, text string) (string, error) {
	return "", fmt.Errorf("%w: backend unavailable", persona.ErrGeneration)
}

type fixture struct {
	svc     *Service
	store   *store.MemoryStore
	feed    *notify.Feed
	metrics *metrics.Metrics
}

func newFixture(t *testing.T, responder Responder) *fixture {
	t.Helper()
	if responder == nil {
		responder = persona.NewGenerator(persona.Builtin(), 0, nil)
	}
	f := &fixture{
		store:   store.NewMemoryStore(),
		feed:    notify.NewFeed(0),
		metrics: metrics.New(),
	}
	f.svc = New(Options{
		Store:     f.store,
		Responder: responder,
		Notifier:  f.feed,
		Metrics:   f.metrics,
		DedupeTTL: time.Minute,
	})
	t.Cleanup(f.svc.Close)
	return f
}

func (f *fixture) createAgent(t *testing.T, name, greeting string) *store.Agent {
	t.Helper()
	agent, err := f.svc.CreateAgent(t.Context(), AgentFields{
		Name:        name,
		Description: name + " agent",
		Greeting:    greeting,
	})
	require.NoError(t, err)
	return agent
}

func (f *fixture) messages(t *testing.T, agentID string) []*store.Message {
	t.Helper()
	conv, err := f.svc.Conversation(t.Context(), agentID)
	require.NoError(t, err)
	return conv.Messages
}

func TestCreateAgent_MaterializesGreetingConversation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := t.Context()

	agent := f.createAgent(t, "Nova", "Hi")

	assert.NotEmpty(t, agent.ID)
	assert.Equal(t, DefaultAvatar, agent.Avatar)
	assert.Equal(t, persona.Nova, agent.Persona, "persona resolved from display name")
	assert.Empty(t, agent.Context)
	assert.NotNil(t, agent.Context)

	got, err := f.svc.GetAgent(ctx, agent.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(agent, got); diff != "" {
		t.Errorf("agent mismatch (-want +got):\n%s", diff)
	}

	msgs := f.messages(t, agent.ID)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Hi", msgs[0].Text)
	assert.Equal(t, store.SenderAgent, msgs[0].Sender)
	assert.Equal(t, agent.ID, msgs[0].AgentID)

	notices := f.feed.Recent(1)
	require.Len(t, notices, 1)
	assert.Equal(t, notify.KindCreated, notices[0].Kind)
	assert.Equal(t, "Agent created", notices[0].Title)
	assert.Equal(t, "Nova has been created successfully", notices[0].Description)
}

func TestCreateAgent_Validation(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name   string
		fields AgentFields
	}{
		{"missing name", AgentFields{Description: "d", Greeting: "g"}},
		{"blank description", AgentFields{Name: "n", Description: "   ", Greeting: "g"}},
		{"missing greeting", AgentFields{Name: "n", Description: "d"}},
		{"unknown persona", AgentFields{Name: "n", Description: "d", Greeting: "g", Persona: "nobody"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateAgent(t.Context(), tt.fields)
			assert.ErrorIs(t, err, ErrInvalidAgent)
		})
	}

	agents, err := f.svc.ListAgents(t.Context())
	require.NoError(t, err)
	assert.Empty(t, agents)
}

func TestCreateAgent_PersonaResolution(t *testing.T) {
	f := newFixture(t, nil)
	ctx := t.Context()

	explicit, err := f.svc.CreateAgent(ctx, AgentFields{
		Name: "Stargazer", Description: "d", Greeting: "g", Persona: persona.Luna,
	})
	require.NoError(t, err)
	assert.Equal(t, persona.Luna, explicit.Persona)

	byName := f.createAgent(t, "  zen ", "g")
	assert.Equal(t, persona.Zen, byName.Persona)
	assert.Equal(t, "zen", byName.Name)

	unknown := f.createAgent(t, "Bob", "g")
	assert.Empty(t, unknown.Persona)
}

func TestSendMessage_NovaSpaceReply(t *testing.T) {
	f := newFixture(t, nil)
	ctx := t.Context()
	nova := f.createAgent(t, "Nova", "Hi")

	msg, err := f.svc.SendMessage(ctx, nova.ID, "space stuff", "")
	require.NoError(t, err)
	assert.Equal(t, "space stuff", msg.Text)
	assert.Equal(t, store.SenderUser, msg.Sender)
	assert.Empty(t, msg.AgentID)

	msgs := f.messages(t, nova.ID)
	require.GreaterOrEqual(t, len(msgs), 2)
	assert.Equal(t, msg.ID, msgs[1].ID, "user message appended immediately")

	p, ok := persona.Builtin().Lookup(persona.Nova)
	require.True(t, ok)
	want := p.Respond("space stuff")

	require.Eventually(t, func() bool {
		return len(f.messages(t, nova.ID)) == 3
	}, 2*time.Second, 10*time.Millisecond)

	reply := f.messages(t, nova.ID)[2]
	assert.Equal(t, want, reply.Text)
	assert.Equal(t, store.SenderAgent, reply.Sender)
	assert.Equal(t, nova.ID, reply.AgentID)

	require.Eventually(t, func() bool {
		typing, err := f.svc.IsTyping(ctx, nova.ID)
		return err == nil && !typing
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSendMessage_UnknownPersonaGetsGenericFallback(t *testing.T) {
	f := newFixture(t, nil)
	bob := f.createAgent(t, "Bob", "Hey")

	_, err := f.svc.SendMessage(t.Context(), bob.ID, "zzz", "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(f.messages(t, bob.ID)) == 3
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, persona.GenericFallback, f.messages(t, bob.ID)[2].Text)
}

func TestSendMessage_Errors(t *testing.T) {
	f := newFixture(t, nil)
	agent := f.createAgent(t, "Nova", "Hi")

	_, err := f.svc.SendMessage(t.Context(), agent.ID, "   \n", "")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = f.svc.SendMessage(t.Context(), "missing", "hello", "")
	assert.ErrorIs(t, err, ErrAgentNotFound)

	assert.Len(t, f.messages(t, agent.ID), 1)
}

func TestSendMessage_TypingIsPerConversation(t *testing.T) {
	responder := newGatedResponder("ok")
	f := newFixture(t, responder)
	ctx := t.Context()
	a := f.createAgent(t, "A", "hi")
	b := f.createAgent(t, "B", "hi")

	_, err := f.svc.SendMessage(ctx, a.ID, "hello", "")
	require.NoError(t, err)

	typing, err := f.svc.IsTyping(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, typing)

	typing, err = f.svc.IsTyping(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, typing, "other conversations are unaffected")

	close(responder.release)

	require.Eventually(t, func() bool {
		typing, err := f.svc.IsTyping(ctx, a.ID)
		return err == nil && !typing
	}, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, f.messages(t, a.ID), 3)
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.RepliesPending))
}

func TestSendMessage_StatusWaitsForLastReply(t *testing.T) {
	responder := newGatedResponder("ok")
	f := newFixture(t, responder)
	ctx := t.Context()
	agent := f.createAgent(t, "A", "hi")

	_, err := f.svc.SendMessage(ctx, agent.ID, "one", "")
	require.NoError(t, err)
	_, err = f.svc.SendMessage(ctx, agent.ID, "two", "")
	require.NoError(t, err)

	responder.release <- struct{}{}
	require.Eventually(t, func() bool {
		return len(f.messages(t, agent.ID)) == 4
	}, 2*time.Second, 10*time.Millisecond)

	typing, err := f.svc.IsTyping(ctx, agent.ID)
	require.NoError(t, err)
	assert.True(t, typing, "one reply still pending")

	responder.release <- struct{}{}
	require.Eventually(t, func() bool {
		typing, err := f.svc.IsTyping(ctx, agent.ID)
		return err == nil && !typing
	}, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, f.messages(t, agent.ID), 5)
}

func TestSendMessage_GenerationFailure(t *testing.T) {
	f := newFixture(t, failingResponder{})
	ctx := t.Context()
	agent := f.createAgent(t, "Nova", "Hi")

	_, err := f.svc.SendMessage(ctx, agent.ID, "space", "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		notices := f.feed.Recent(1)
		return len(notices) == 1 && notices[0].Kind == notify.KindError
	}, 2*time.Second, 10*time.Millisecond)

	notice := f.feed.Recent(1)[0]
	assert.Equal(t, "Error", notice.Title)
	assert.Equal(t, "Failed to get response from the agent", notice.Description)

	msgs := f.messages(t, agent.ID)
	require.Len(t, msgs, 2, "user message is kept")
	assert.Equal(t, store.SenderUser, msgs[1].Sender)

	typing, err := f.svc.IsTyping(ctx, agent.ID)
	require.NoError(t, err)
	assert.False(t, typing)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ReplyFailuresTotal))
}

func TestSendMessage_DuplicateClientMessageID(t *testing.T) {
	responder := newGatedResponder("ok")
	f := newFixture(t, responder)
	ctx := t.Context()
	agent := f.createAgent(t, "Nova", "Hi")

	first, err := f.svc.SendMessage(ctx, agent.ID, "hello", "client-1")
	require.NoError(t, err)
	second, err := f.svc.SendMessage(ctx, agent.ID, "hello", "client-1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, f.messages(t, agent.ID), 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.DuplicateSubmissions))

	// A different client id is a new message
	_, err = f.svc.SendMessage(ctx, agent.ID, "hello", "client-2")
	require.NoError(t, err)
	assert.Len(t, f.messages(t, agent.ID), 3)
}

func TestClearConversation_DiscardsPendingReply(t *testing.T) {
	responder := newGatedResponder("too late")
	f := newFixture(t, responder)
	ctx := t.Context()
	agent := f.createAgent(t, "Nova", "Hi")

	before, err := f.svc.Conversation(ctx, agent.ID)
	require.NoError(t, err)

	_, err = f.svc.SendMessage(ctx, agent.ID, "space", "")
	require.NoError(t, err)
	_, err = f.svc.SendMessage(ctx, agent.ID, "stars", "")
	require.NoError(t, err)

	cleared, err := f.svc.ClearConversation(ctx, agent.ID)
	require.NoError(t, err)
	assert.NotEqual(t, before.ID, cleared.ID)

	f.svc.scheduler.Wait()

	msgs := f.messages(t, agent.ID)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Hi", msgs[0].Text)

	typing, err := f.svc.IsTyping(ctx, agent.ID)
	require.NoError(t, err)
	assert.False(t, typing)

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.RepliesCancelledTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.RepliesPending))

	notice := f.feed.Recent(1)[0]
	assert.Equal(t, notify.KindCleared, notice.Kind)
	assert.Equal(t, "Conversation with Nova has been reset", notice.Description)
}

func TestClearConversation_ForgetsClientMessageIDs(t *testing.T) {
	responder := newGatedResponder("ok")
	f := newFixture(t, responder)
	ctx := t.Context()
	agent := f.createAgent(t, "Nova", "Hi")

	_, err := f.svc.SendMessage(ctx, agent.ID, "hello", "client-1")
	require.NoError(t, err)
	_, err = f.svc.ClearConversation(ctx, agent.ID)
	require.NoError(t, err)

	_, err = f.svc.SendMessage(ctx, agent.ID, "hello", "client-1")
	require.NoError(t, err)
	assert.Len(t, f.messages(t, agent.ID), 2)
}

func TestClearConversation_AlwaysOneGreeting(t *testing.T) {
	f := newFixture(t, nil)
	ctx := t.Context()
	agent := f.createAgent(t, "Zen", "Breathe")

	for i := range 3 {
		_, err := f.svc.SendMessage(ctx, agent.ID, fmt.Sprintf("message %d", i), "")
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool {
		return len(f.messages(t, agent.ID)) == 7
	}, 2*time.Second, 10*time.Millisecond)

	conv, err := f.svc.ClearConversation(ctx, agent.ID)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, "Breathe", conv.Messages[0].Text)

	_, err = f.svc.ClearConversation(ctx, "missing")
	assert.ErrorIs(t, err, ErrAgentNotFound)
}

func TestDeleteAgent_ClearsActiveSelection(t *testing.T) {
	responder := newGatedResponder("ok")
	f := newFixture(t, responder)
	ctx := t.Context()
	nova := f.createAgent(t, "Nova", "Hi")
	zen := f.createAgent(t, "Zen", "Hello")

	require.NoError(t, f.svc.SelectAgent(ctx, nova.ID))
	assert.Equal(t, nova.ID, f.svc.ActiveAgentID())

	_, err := f.svc.SendMessage(ctx, nova.ID, "space", "")
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteAgent(ctx, nova.ID))
	f.svc.scheduler.Wait()

	assert.Empty(t, f.svc.ActiveAgentID())
	_, err = f.store.GetConversation(ctx, nova.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = f.svc.Conversation(ctx, nova.ID)
	assert.ErrorIs(t, err, ErrAgentNotFound)

	agents, err := f.svc.ListAgents(ctx)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, zen.ID, agents[0].ID)

	notice := f.feed.Recent(1)[0]
	assert.Equal(t, notify.KindDeleted, notice.Kind)
	assert.Equal(t, "Nova has been deleted", notice.Description)

	assert.ErrorIs(t, f.svc.DeleteAgent(ctx, nova.ID), ErrAgentNotFound)
}

func TestDeleteAgent_KeepsOtherSelection(t *testing.T) {
	f := newFixture(t, nil)
	ctx := t.Context()
	nova := f.createAgent(t, "Nova", "Hi")
	zen := f.createAgent(t, "Zen", "Hello")

	require.NoError(t, f.svc.SelectAgent(ctx, zen.ID))
	require.NoError(t, f.svc.DeleteAgent(ctx, nova.ID))
	assert.Equal(t, zen.ID, f.svc.ActiveAgentID())
}

func TestSelectAgent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := t.Context()
	agent := f.createAgent(t, "Nova", "Hi")

	assert.Empty(t, f.svc.ActiveAgentID())
	assert.ErrorIs(t, f.svc.SelectAgent(ctx, "missing"), ErrAgentNotFound)

	require.NoError(t, f.svc.SelectAgent(ctx, agent.ID))
	assert.Equal(t, agent.ID, f.svc.ActiveAgentID())

	require.NoError(t, f.svc.SelectAgent(ctx, ""))
	assert.Empty(t, f.svc.ActiveAgentID())
}

func TestUpdateAgent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := t.Context()
	agent := f.createAgent(t, "Nova", "Hi")

	updated := agent.Clone()
	updated.Name = "Nova Prime"
	updated.Avatar = ""
	updated.Persona = persona.Echo
	updated.Context = nil
	updated.CreatedAt = time.Time{}
	require.NoError(t, f.svc.UpdateAgent(ctx, updated))

	got, err := f.svc.GetAgent(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, "Nova Prime", got.Name)
	assert.Equal(t, DefaultAvatar, got.Avatar)
	assert.Equal(t, persona.Echo, got.Persona)
	assert.NotNil(t, got.Context)
	assert.True(t, agent.CreatedAt.Equal(got.CreatedAt), "creation time is preserved")

	notice := f.feed.Recent(1)[0]
	assert.Equal(t, notify.KindUpdated, notice.Kind)
	assert.Equal(t, "Agent updated", notice.Title)

	// The greeting conversation is not rewritten by an update
	assert.Equal(t, "Hi", f.messages(t, agent.ID)[0].Text)
}

func TestUpdateAgent_EmptyPersonaKeepsBinding(t *testing.T) {
	f := newFixture(t, nil)
	ctx := t.Context()

	nova := f.createAgent(t, "Nova", "Hi")
	require.Equal(t, persona.Nova, nova.Persona)

	edited := nova.Clone()
	edited.Description = "edited"
	edited.Persona = ""
	require.NoError(t, f.svc.UpdateAgent(ctx, edited))

	got, err := f.svc.GetAgent(ctx, nova.ID)
	require.NoError(t, err)
	assert.Equal(t, persona.Nova, got.Persona)
	assert.Equal(t, "edited", got.Description)

	// An unbound agent renamed to a persona name picks that persona up
	plain := f.createAgent(t, "Plain", "Hello")
	require.Empty(t, plain.Persona)
	renamed := plain.Clone()
	renamed.Name = "Zen"
	require.NoError(t, f.svc.UpdateAgent(ctx, renamed))

	got, err = f.svc.GetAgent(ctx, plain.ID)
	require.NoError(t, err)
	assert.Equal(t, persona.Zen, got.Persona)
}

func TestUpdateAgent_Errors(t *testing.T) {
	f := newFixture(t, nil)
	ctx := t.Context()
	agent := f.createAgent(t, "Nova", "Hi")

	missing := agent.Clone()
	missing.ID = "missing"
	assert.ErrorIs(t, f.svc.UpdateAgent(ctx, missing), ErrAgentNotFound)

	invalid := agent.Clone()
	invalid.Greeting = ""
	assert.ErrorIs(t, f.svc.UpdateAgent(ctx, invalid), ErrInvalidAgent)

	badPersona := agent.Clone()
	badPersona.Persona = "nobody"
	assert.ErrorIs(t, f.svc.UpdateAgent(ctx, badPersona), ErrInvalidAgent)

	assert.ErrorIs(t, f.svc.UpdateAgent(ctx, nil), ErrInvalidAgent)
}

func TestConversation_Idempotent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := t.Context()
	agent := f.createAgent(t, "Nova", "Hi")

	first, err := f.svc.Conversation(ctx, agent.ID)
	require.NoError(t, err)
	second, err := f.svc.Conversation(ctx, agent.ID)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("conversation changed between reads (-first +second):\n%s", diff)
	}
}

func TestConversation_MaterializesMissing(t *testing.T) {
	f := newFixture(t, nil)
	ctx := t.Context()

	// An agent stored without a conversation
	require.NoError(t, f.store.CreateAgent(ctx, &store.Agent{
		ID:       "agent-raw",
		Name:     "Raw",
		Greeting: "Welcome back",
		Context:  []string{},
	}))

	conv, err := f.svc.Conversation(ctx, "agent-raw")
	require.NoError(t, err)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, "Welcome back", conv.Messages[0].Text)
	assert.Equal(t, store.StatusIdle, conv.Status)

	_, err = f.svc.Conversation(ctx, "missing")
	assert.ErrorIs(t, err, ErrAgentNotFound)
}

func TestIsTyping_UnknownAgent(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.IsTyping(t.Context(), "missing")
	assert.ErrorIs(t, err, ErrAgentNotFound)
}

func TestSubscribe_ReceivesReplyEvents(t *testing.T) {
	responder := newGatedResponder("ok")
	f := newFixture(t, responder)
	ctx := t.Context()
	agent := f.createAgent(t, "Nova", "Hi")

	events := f.svc.Subscribe(ctx, agent.ID)

	_, err := f.svc.SendMessage(ctx, agent.ID, "hello", "")
	require.NoError(t, err)
	close(responder.release)

	next := func() *Event {
		t.Helper()
		select {
		case ev := <-events:
			return ev
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for event")
			return nil
		}
	}

	ev := next()
	assert.Equal(t, EventMessage, ev.Type)
	assert.Equal(t, store.SenderUser, ev.Message.Sender)

	ev = next()
	assert.Equal(t, EventStatus, ev.Type)
	assert.Equal(t, store.StatusAwaitingReply, ev.Status)

	ev = next()
	assert.Equal(t, EventMessage, ev.Type)
	assert.Equal(t, store.SenderAgent, ev.Message.Sender)
	assert.Equal(t, "ok", ev.Message.Text)

	ev = next()
	assert.Equal(t, EventStatus, ev.Type)
	assert.Equal(t, store.StatusIdle, ev.Status)
}

func TestSeed(t *testing.T) {
	f := newFixture(t, nil)
	ctx := t.Context()

	personas := persona.Builtin().List()
	require.NoError(t, f.svc.Seed(ctx, personas))

	agents, err := f.svc.ListAgents(ctx)
	require.NoError(t, err)
	require.Len(t, agents, len(personas))
	for i, p := range personas {
		assert.Equal(t, p.ID, agents[i].Persona)
		assert.Equal(t, p.Name, agents[i].Name)
		assert.Equal(t, p.Greeting, f.messages(t, agents[i].ID)[0].Text)
	}
	assert.Empty(t, f.feed.Recent(0), "seeding is silent")
	assert.Equal(t, float64(len(personas)), testutil.ToFloat64(f.metrics.AgentsTotal))
}

func TestClose_CancelsPendingReplies(t *testing.T) {
	responder := newGatedResponder("never")
	f := newFixture(t, responder)
	agent := f.createAgent(t, "Nova", "Hi")

	_, err := f.svc.SendMessage(t.Context(), agent.ID, "hello", "")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		f.svc.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}

	_, err = f.svc.SendMessage(context.Background(), agent.ID, "again", "")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrAgentNotFound))
	assert.Len(t, f.messages(t, agent.ID), 3, "the reply never lands")
}

func TestUniformDelay(t *testing.T) {
	assert.Equal(t, time.Second, uniformDelay(time.Second, time.Second))
	assert.Equal(t, time.Second, uniformDelay(time.Second, 0))

	for range 100 {
		d := uniformDelay(time.Second, 3*time.Second)
		assert.GreaterOrEqual(t, d, time.Second)
		assert.Less(t, d, 3*time.Second)
	}
}
