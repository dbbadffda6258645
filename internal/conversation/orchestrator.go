// ABOUTME: Send-message pipeline: append the user message, then schedule the agent reply
// ABOUTME: Reply tasks are keyed by conversation ID and drive the per-conversation reply status

package conversation

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/persona-studio/internal/notify"
	"github.com/2389/persona-studio/internal/schedule"
	"github.com/2389/persona-studio/internal/store"
)

// SendMessage appends a user message to the agent's conversation and
// schedules the agent's reply. A repeated clientMessageID for the same agent
// returns the originally accepted message without appending again.
func (s *Service) SendMessage(ctx context.Context, agentID, text, clientMessageID string) (*store.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	s.mu.Lock()

	var submissionKey string
	if clientMessageID != "" {
		submissionKey = submissionPrefix(agentID) + clientMessageID
		if msg, ok := s.submissions.Get(submissionKey); ok {
			s.mu.Unlock()
			s.metrics.DuplicateSubmissions.Inc()
			s.logger.Debug("duplicate submission",
				"agent_id", agentID,
				"client_message_id", clientMessageID)
			return msg, nil
		}
	}

	conv, err := s.conversationLocked(ctx, agentID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	agent, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		s.mu.Unlock()
		return nil, agentError(agentID, err)
	}

	sentAt := s.now()
	msg := &store.Message{
		ID:        uuid.New().String(),
		Text:      text,
		Sender:    store.SenderUser,
		Timestamp: sentAt,
	}
	if err := s.store.AppendMessage(ctx, agentID, conv.ID, msg, sentAt); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("appending message: %w", err)
	}
	s.metrics.MessagesTotal.WithLabelValues(string(store.SenderUser)).Inc()
	if submissionKey != "" {
		s.submissions.Put(submissionKey, msg)
	}

	statusChanged := s.trackReplyLocked(ctx, agentID, conv.ID)

	_, err = s.scheduler.Go(conv.ID, func(taskCtx context.Context) {
		s.runReply(taskCtx, agent.Clone(), conv.ID, text, sentAt)
	})
	if err != nil {
		if s.releaseReplyLocked(ctx, agentID, conv.ID) {
			statusChanged = false
		}
		s.mu.Unlock()
		return nil, fmt.Errorf("scheduling reply: %w", err)
	}

	// Published under mu so the reply task's events always come after these.
	s.events.Publish(&Event{
		Type:           EventMessage,
		AgentID:        agentID,
		ConversationID: conv.ID,
		Message:        msg,
		Time:           sentAt,
	})
	if statusChanged {
		s.publishStatus(agentID, conv.ID, store.StatusAwaitingReply)
	}
	s.mu.Unlock()

	s.logger.Debug("message sent",
		"agent_id", agentID,
		"conversation_id", conv.ID,
		"message_id", msg.ID)
	return msg, nil
}

// IsTyping reports whether the agent's conversation is awaiting a reply.
func (s *Service) IsTyping(ctx context.Context, agentID string) (bool, error) {
	conv, err := s.store.GetConversation(ctx, agentID)
	if errors.Is(err, store.ErrNotFound) {
		if _, err := s.store.GetAgent(ctx, agentID); err != nil {
			return false, agentError(agentID, err)
		}
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("getting conversation: %w", err)
	}
	return conv.Status == store.StatusAwaitingReply, nil
}

// runReply generates the reply, waits the reply delay, and appends the reply
// to the conversation as it is stored now. Nothing lands if the conversation
// was cleared or its agent deleted in the meantime.
func (s *Service) runReply(ctx context.Context, agent *store.Agent, conversationID, text string, sentAt time.Time) {
	logger := s.logger.With("agent_id", agent.ID, "conversation_id", conversationID)

	reply, genErr := s.responder.Generate(ctx, agent.Persona, text)
	if genErr == nil {
		genErr = schedule.Sleep(ctx, s.jitter(s.delayMin, s.delayMax))
	}

	// Store writes below must outlive the task context so a late cancel
	// cannot leave the status stuck. Events are published under mu to keep
	// them ordered with the sends that follow.
	storeCtx := context.WithoutCancel(ctx)

	s.mu.Lock()
	if ctx.Err() != nil {
		if s.releaseReplyLocked(storeCtx, agent.ID, conversationID) {
			s.publishStatus(agent.ID, conversationID, store.StatusIdle)
		}
		s.mu.Unlock()
		logger.Debug("reply cancelled")
		return
	}

	if genErr != nil {
		if s.releaseReplyLocked(storeCtx, agent.ID, conversationID) {
			s.publishStatus(agent.ID, conversationID, store.StatusIdle)
		}
		s.mu.Unlock()

		logger.Warn("reply generation failed", "error", genErr)
		s.metrics.ReplyFailuresTotal.Inc()
		s.notify(notify.KindError, agent.ID, "Error", "Failed to get response from the agent")
		return
	}

	repliedAt := s.now()
	msg := &store.Message{
		ID:        uuid.New().String(),
		Text:      reply,
		Sender:    store.SenderAgent,
		Timestamp: repliedAt,
		AgentID:   agent.ID,
	}
	appendErr := s.store.AppendMessage(storeCtx, agent.ID, conversationID, msg, repliedAt)
	if appendErr == nil {
		s.events.Publish(&Event{
			Type:           EventMessage,
			AgentID:        agent.ID,
			ConversationID: conversationID,
			Message:        msg,
			Time:           repliedAt,
		})
	}
	if s.releaseReplyLocked(storeCtx, agent.ID, conversationID) {
		s.publishStatus(agent.ID, conversationID, store.StatusIdle)
	}
	s.mu.Unlock()

	switch {
	case errors.Is(appendErr, store.ErrNotFound):
		logger.Debug("reply discarded, conversation replaced")
		s.metrics.RepliesCancelledTotal.Inc()
	case appendErr != nil:
		logger.Error("failed to append reply", "error", appendErr)
		s.metrics.ReplyFailuresTotal.Inc()
		s.notify(notify.KindError, agent.ID, "Error", "Failed to get response from the agent")
	default:
		s.metrics.MessagesTotal.WithLabelValues(string(store.SenderAgent)).Inc()
		s.metrics.ObserveReply(agent.Persona, repliedAt.Sub(sentAt))
		logger.Debug("reply appended", "message_id", msg.ID)
	}
}

// trackReplyLocked counts a new reply task and marks the conversation as
// awaiting a reply. Returns true if the status changed.
func (s *Service) trackReplyLocked(ctx context.Context, agentID, conversationID string) bool {
	s.pending[conversationID]++
	s.metrics.RepliesPending.Inc()
	if s.pending[conversationID] > 1 {
		return false
	}
	if err := s.store.SetConversationStatus(ctx, agentID, store.StatusAwaitingReply); err != nil {
		s.logger.Error("failed to set conversation status", "agent_id", agentID, "error", err)
		return false
	}
	return true
}

// releaseReplyLocked forgets one finished reply task. When it was the last one
// for a still-current conversation, the status returns to idle and true is
// returned. Tasks of a cancelled conversation are no longer tracked.
func (s *Service) releaseReplyLocked(ctx context.Context, agentID, conversationID string) bool {
	n, ok := s.pending[conversationID]
	if !ok {
		return false
	}
	s.metrics.RepliesPending.Dec()
	if n > 1 {
		s.pending[conversationID] = n - 1
		return false
	}
	delete(s.pending, conversationID)
	if err := s.store.SetConversationStatus(ctx, agentID, store.StatusIdle); err != nil {
		s.logger.Error("failed to set conversation status", "agent_id", agentID, "error", err)
		return false
	}
	return true
}

// cancelRepliesLocked cancels every reply task for a conversation that is
// about to be replaced or removed.
func (s *Service) cancelRepliesLocked(conversationID string) {
	cancelled := s.scheduler.Cancel(conversationID)
	if n, ok := s.pending[conversationID]; ok {
		s.metrics.RepliesPending.Sub(float64(n))
		delete(s.pending, conversationID)
	}
	if cancelled > 0 {
		s.metrics.RepliesCancelledTotal.Add(float64(cancelled))
		s.logger.Debug("replies cancelled", "conversation_id", conversationID, "count", cancelled)
	}
}

func (s *Service) publishStatus(agentID, conversationID string, status store.Status) {
	s.events.Publish(&Event{
		Type:           EventStatus,
		AgentID:        agentID,
		ConversationID: conversationID,
		Status:         status,
		Time:           s.now(),
	})
}

// uniformDelay picks a delay in [lo, hi).
func uniformDelay(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo)
}
