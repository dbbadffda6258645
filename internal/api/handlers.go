// ABOUTME: JSON handlers for agents, conversations, messages, selection and notices
// ABOUTME: Converts store records into response types and optionally renders markdown

package api

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/2389/persona-studio/internal/conversation"
	"github.com/2389/persona-studio/internal/notify"
	"github.com/2389/persona-studio/internal/store"
)

// PersonaResponse is the JSON response for GET /api/personas.
type PersonaResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Avatar      string `json:"avatar"`
	Description string `json:"description"`
	Personality string `json:"personality"`
	Greeting    string `json:"greeting"`
}

// AgentResponse is the JSON representation of an agent.
type AgentResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Avatar      string   `json:"avatar"`
	Description string   `json:"description"`
	Personality string   `json:"personality"`
	Greeting    string   `json:"greeting"`
	Persona     string   `json:"persona,omitempty"`
	Context     []string `json:"context"`
	CreatedAt   string   `json:"created_at"`
}

// UpdateAgentRequest is the JSON request body for PUT /api/agents/{id}.
// It replaces the agent wholesale and accepts an AgentResponse as is:
// id must match the path when present, created_at is ignored, and an
// empty persona keeps the current binding.
type UpdateAgentRequest struct {
	ID          string   `json:"id,omitempty"`
	Name        string   `json:"name"`
	Avatar      string   `json:"avatar"`
	Description string   `json:"description"`
	Personality string   `json:"personality"`
	Greeting    string   `json:"greeting"`
	Persona     string   `json:"persona"`
	Context     []string `json:"context"`
	CreatedAt   string   `json:"created_at,omitempty"`
}

// MessageResponse is the JSON representation of a message.
type MessageResponse struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	HTML      string `json:"html,omitempty"` // Only with ?format=html
	Sender    string `json:"sender"`
	Timestamp string `json:"timestamp"`
	AgentID   string `json:"agent_id,omitempty"`
}

// ConversationResponse is the JSON response for an agent's conversation.
type ConversationResponse struct {
	ID          string            `json:"id"`
	AgentID     string            `json:"agent_id"`
	Messages    []MessageResponse `json:"messages"`
	LastUpdated string            `json:"last_updated"`
	Status      string            `json:"status"`
	Typing      bool              `json:"typing"`
}

// SendMessageRequest is the JSON request body for POST /api/agents/{id}/messages.
type SendMessageRequest struct {
	Text            string `json:"text"`
	ClientMessageID string `json:"client_message_id,omitempty"`
}

// SendMessageResponse is the JSON response for an accepted message.
type SendMessageResponse struct {
	Message MessageResponse `json:"message"`
	Typing  bool            `json:"typing"`
}

// ActiveAgentRequest is the JSON body for PUT /api/active. An empty
// agent_id clears the selection.
type ActiveAgentRequest struct {
	AgentID string `json:"agent_id"`
}

// ActiveAgentResponse is the JSON response for the active-agent selection.
type ActiveAgentResponse struct {
	AgentID string         `json:"agent_id"`
	Agent   *AgentResponse `json:"agent,omitempty"`
}

// handleListPersonas handles GET /api/personas.
func (s *Server) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	personas := s.personas.List()
	resp := make([]PersonaResponse, 0, len(personas))
	for _, p := range personas {
		resp = append(resp, PersonaResponse{
			ID:          p.ID,
			Name:        p.Name,
			Avatar:      p.Avatar,
			Description: p.Description,
			Personality: p.Personality,
			Greeting:    p.Greeting,
		})
	}
	s.sendJSON(w, http.StatusOK, resp)
}

// handleListAgents handles GET /api/agents.
func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.svc.ListAgents(r.Context())
	if err != nil {
		s.sendServiceError(w, err)
		return
	}
	resp := make([]AgentResponse, 0, len(agents))
	for _, a := range agents {
		resp = append(resp, toAgentResponse(a))
	}
	s.sendJSON(w, http.StatusOK, resp)
}

// handleCreateAgent handles POST /api/agents.
func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var fields conversation.AgentFields
	if err := decodeJSON(w, r, &fields); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	agent, err := s.svc.CreateAgent(r.Context(), fields)
	if err != nil {
		s.sendServiceError(w, err)
		return
	}
	s.sendJSON(w, http.StatusCreated, toAgentResponse(agent))
}

// handleGetAgent handles GET /api/agents/{id}.
func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := s.svc.GetAgent(r.Context(), r.PathValue("id"))
	if err != nil {
		s.sendServiceError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, toAgentResponse(agent))
}

// handleUpdateAgent handles PUT /api/agents/{id}.
func (s *Server) handleUpdateAgent(w http.ResponseWriter, r *http.Request) {
	var req UpdateAgentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := r.PathValue("id")
	if req.ID != "" && req.ID != id {
		s.sendJSONError(w, http.StatusBadRequest, "id does not match path")
		return
	}
	err := s.svc.UpdateAgent(r.Context(), &store.Agent{
		ID:          id,
		Name:        req.Name,
		Avatar:      req.Avatar,
		Description: req.Description,
		Personality: req.Personality,
		Greeting:    req.Greeting,
		Persona:     req.Persona,
		Context:     req.Context,
	})
	if err != nil {
		s.sendServiceError(w, err)
		return
	}

	agent, err := s.svc.GetAgent(r.Context(), id)
	if err != nil {
		s.sendServiceError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, toAgentResponse(agent))
}

// handleDeleteAgent handles DELETE /api/agents/{id}.
func (s *Server) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteAgent(r.Context(), r.PathValue("id")); err != nil {
		s.sendServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetConversation handles GET /api/agents/{id}/conversation.
// With ?format=html each message also carries its text rendered as markdown.
func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.svc.Conversation(r.Context(), r.PathValue("id"))
	if err != nil {
		s.sendServiceError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, s.toConversationResponse(conv, r.URL.Query().Get("format") == "html"))
}

// handleClearConversation handles DELETE /api/agents/{id}/conversation and
// returns the fresh greeting-only conversation.
func (s *Server) handleClearConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.svc.ClearConversation(r.Context(), r.PathValue("id"))
	if err != nil {
		s.sendServiceError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, s.toConversationResponse(conv, false))
}

// handleSendMessage handles POST /api/agents/{id}/messages. The reply is
// produced asynchronously, so the response is 202 Accepted.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ClientMessageID == "" {
		req.ClientMessageID = r.Header.Get("Idempotency-Key")
	}

	id := r.PathValue("id")
	msg, err := s.svc.SendMessage(r.Context(), id, req.Text, req.ClientMessageID)
	if err != nil {
		s.sendServiceError(w, err)
		return
	}

	typing, err := s.svc.IsTyping(r.Context(), id)
	if err != nil {
		s.sendServiceError(w, err)
		return
	}

	s.sendJSON(w, http.StatusAccepted, SendMessageResponse{
		Message: s.toMessageResponse(msg, false),
		Typing:  typing,
	})
}

// handleGetActive handles GET /api/active.
func (s *Server) handleGetActive(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, s.activeResponse(r))
}

// handleSetActive handles PUT /api/active.
func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request) {
	var req ActiveAgentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.svc.SelectAgent(r.Context(), req.AgentID); err != nil {
		s.sendServiceError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, s.activeResponse(r))
}

func (s *Server) activeResponse(r *http.Request) ActiveAgentResponse {
	resp := ActiveAgentResponse{AgentID: s.svc.ActiveAgentID()}
	if resp.AgentID == "" {
		return resp
	}
	if agent, err := s.svc.GetAgent(r.Context(), resp.AgentID); err == nil {
		a := toAgentResponse(agent)
		resp.Agent = &a
	}
	return resp
}

// handleListNotices handles GET /api/notices?limit=N, newest first.
func (s *Server) handleListNotices(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.sendJSONError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	notices := s.notices.Recent(limit)
	if notices == nil {
		notices = []notify.Notice{}
	}
	s.sendJSON(w, http.StatusOK, notices)
}

func toAgentResponse(a *store.Agent) AgentResponse {
	ctx := a.Context
	if ctx == nil {
		ctx = []string{}
	}
	return AgentResponse{
		ID:          a.ID,
		Name:        a.Name,
		Avatar:      a.Avatar,
		Description: a.Description,
		Personality: a.Personality,
		Greeting:    a.Greeting,
		Persona:     a.Persona,
		Context:     ctx,
		CreatedAt:   a.CreatedAt.Format(time.RFC3339),
	}
}

func (s *Server) toConversationResponse(conv *store.Conversation, html bool) ConversationResponse {
	msgs := make([]MessageResponse, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		msgs = append(msgs, s.toMessageResponse(m, html))
	}
	return ConversationResponse{
		ID:          conv.ID,
		AgentID:     conv.AgentID,
		Messages:    msgs,
		LastUpdated: conv.LastUpdated.Format(time.RFC3339),
		Status:      string(conv.Status),
		Typing:      conv.Status == store.StatusAwaitingReply,
	}
}

func (s *Server) toMessageResponse(m *store.Message, html bool) MessageResponse {
	resp := MessageResponse{
		ID:        m.ID,
		Text:      m.Text,
		Sender:    string(m.Sender),
		Timestamp: m.Timestamp.Format(time.RFC3339),
		AgentID:   m.AgentID,
	}
	if html {
		resp.HTML = s.renderMarkdown(m.Text)
	}
	return resp
}

// renderMarkdown converts message text to HTML. Raw HTML in the text is
// omitted by goldmark's default renderer.
func (s *Server) renderMarkdown(text string) string {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(text), &buf); err != nil {
		s.logger.Error("failed to convert markdown", "error", err)
		return ""
	}
	return buf.String()
}
