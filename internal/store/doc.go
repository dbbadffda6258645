// Package store holds agent records and their conversations.
//
// # Architecture
//
// Store is the single interface the conversation service depends on. Two
// implementations are provided:
//
//   - MemoryStore: maps guarded by a sync.RWMutex (default)
//   - SQLiteStore: modernc.org/sqlite opened with mode=memory
//
// Neither writes to disk. All state is lost when the process exits.
//
// # Data Models
//
//   - Agent: persona record (name, avatar, greeting, persona identifier, notes)
//   - Conversation: one per agent, append-only message log plus reply status
//   - Message: immutable user or agent message
//
// # Conversation Identity
//
// Conversations are keyed by agent ID, but each one also carries its own ID.
// Clearing a conversation replaces it with a new ID, and AppendMessage
// refuses writes addressed to an ID that is no longer current:
//
//	err := s.AppendMessage(ctx, agentID, conv.ID, msg, time.Now())
//	if errors.Is(err, store.ErrNotFound) {
//		// conversation was cleared or its agent deleted
//	}
//
// # Error Handling
//
//   - ErrNotFound: requested agent or conversation does not exist
//   - ErrDuplicate: agent or message ID already taken
//
// All methods accept context.Context for cancellation support.
package store
