// Package conversation is the state manager for agents and their
// conversations.
//
// # Overview
//
// The Service sits between the views (HTTP API, terminal chat) and the
// store. Every agent is paired with exactly one conversation whose first
// message is the agent's greeting:
//
//	svc := conversation.New(conversation.Options{
//		Store:     store.NewMemoryStore(),
//		Responder: persona.NewGenerator(persona.Builtin(), 0, logger),
//		Notifier:  feed,
//	})
//	defer svc.Close()
//
// # Lifecycle
//
//   - CreateAgent(ctx, fields): validate, store, materialize the greeting conversation
//   - UpdateAgent(ctx, agent): wholesale replacement
//   - DeleteAgent(ctx, id): cancel pending replies, remove agent and conversation
//   - ClearConversation(ctx, id): replace history with a fresh greeting
//   - SelectAgent(ctx, id) / ActiveAgentID(): active-agent selection
//
// Each lifecycle operation emits a notify.Notice. Operations on an absent
// agent return ErrAgentNotFound.
//
// # Replies
//
// SendMessage appends the user message immediately and schedules a reply
// task keyed by the conversation ID:
//
//	Idle -> AwaitingReply -> Idle
//
// The task asks the Responder for the reply text, waits a random delay in
// [ReplyDelayMin, ReplyDelayMax), then appends the reply to the conversation
// as it is stored at that moment. Clearing the conversation or deleting the
// agent cancels outstanding tasks, and the store refuses appends to a
// replaced conversation, so a stale reply never lands in a reset history.
//
// A generation failure returns the conversation to Idle and emits an error
// notice; the user message stays.
//
// # Event Broadcasting
//
// Live views call Subscribe(ctx, agentID) and receive Events (message,
// status, cleared, agent_updated, agent_deleted). Delivery is non-blocking:
// a subscriber that falls behind its buffer loses events.
package conversation
