// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Runs against an in-memory database so state still ends with the process

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface on an in-memory SQLite database
type SQLiteStore struct {
	db     *sql.DB
	name   string
	logger *slog.Logger
}

// NewSQLiteStore opens a named in-memory SQLite database and creates the schema.
// Stores opened with the same name in one process share the database.
// An empty name picks a fresh random one.
func NewSQLiteStore(name string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if name == "" {
		name = "persona-studio-" + uuid.New().String()
	}
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", name)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// The in-memory database lives as long as one connection stays open, and
	// a single connection also serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	s := &SQLiteStore{
		db:     db,
		name:   name,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "name", name)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS agents (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			avatar TEXT NOT NULL,
			description TEXT NOT NULL,
			personality TEXT NOT NULL,
			greeting TEXT NOT NULL,
			persona TEXT NOT NULL DEFAULT '',
			context_json TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL DEFAULT 'idle',
			last_updated TEXT NOT NULL,
			FOREIGN KEY (agent_id) REFERENCES agents(id) ON DELETE CASCADE,
			CHECK (status IN ('idle', 'awaiting_reply'))
		);

		CREATE TABLE IF NOT EXISTS messages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL,
			conversation_id TEXT NOT NULL,
			text TEXT NOT NULL,
			sender TEXT NOT NULL,
			agent_id TEXT,
			timestamp TEXT NOT NULL,
			FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE,
			UNIQUE (conversation_id, id),
			CHECK (sender IN ('user', 'agent'))
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation
			ON messages(conversation_id, seq);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection, discarding the in-memory database
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store", "name", s.name)
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// CreateAgent inserts a new agent.
// Returns ErrDuplicate if the ID is already taken.
func (s *SQLiteStore) CreateAgent(ctx context.Context, agent *Agent) error {
	contextJSON, err := json.Marshal(nonNilNotes(agent.Context))
	if err != nil {
		return fmt.Errorf("encoding context: %w", err)
	}

	query := `
		INSERT INTO agents (id, name, avatar, description, personality, greeting, persona, context_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		agent.ID,
		agent.Name,
		agent.Avatar,
		agent.Description,
		agent.Personality,
		agent.Greeting,
		agent.Persona,
		string(contextJSON),
		formatTime(agent.CreatedAt),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting agent: %w", err)
	}

	s.logger.Debug("created agent", "id", agent.ID, "name", agent.Name)
	return nil
}

func nonNilNotes(notes []string) []string {
	if notes == nil {
		return []string{}
	}
	return notes
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (*Agent, error) {
	var a Agent
	var contextJSON, createdAtStr string

	if err := row.Scan(&a.ID, &a.Name, &a.Avatar, &a.Description, &a.Personality,
		&a.Greeting, &a.Persona, &contextJSON, &createdAtStr); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(contextJSON), &a.Context); err != nil {
		return nil, fmt.Errorf("decoding context: %w", err)
	}

	createdAt, err := parseTime(createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	a.CreatedAt = createdAt

	return &a, nil
}

const agentColumns = `id, name, avatar, description, personality, greeting, persona, context_json, created_at`

// GetAgent retrieves an agent by ID.
// Returns ErrNotFound if the agent doesn't exist.
func (s *SQLiteStore) GetAgent(ctx context.Context, id string) (*Agent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = ?`, id)
	a, err := scanAgent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying agent: %w", err)
	}
	return a, nil
}

// ListAgents returns all agents in creation order.
func (s *SQLiteStore) ListAgents(ctx context.Context) ([]*Agent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+agentColumns+` FROM agents ORDER BY rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying agents: %w", err)
	}
	defer rows.Close()

	agents := []*Agent{}
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning agent row: %w", err)
		}
		agents = append(agents, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating agent rows: %w", err)
	}
	return agents, nil
}

// UpdateAgent replaces an existing agent.
// Returns ErrNotFound if the agent doesn't exist.
func (s *SQLiteStore) UpdateAgent(ctx context.Context, agent *Agent) error {
	contextJSON, err := json.Marshal(nonNilNotes(agent.Context))
	if err != nil {
		return fmt.Errorf("encoding context: %w", err)
	}

	query := `
		UPDATE agents
		SET name = ?, avatar = ?, description = ?, personality = ?, greeting = ?, persona = ?, context_json = ?
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query,
		agent.Name,
		agent.Avatar,
		agent.Description,
		agent.Personality,
		agent.Greeting,
		agent.Persona,
		string(contextJSON),
		agent.ID,
	)
	if err != nil {
		return fmt.Errorf("updating agent: %w", err)
	}

	return requireRow(result)
}

// DeleteAgent removes an agent. The conversation and its messages go with it
// through the ON DELETE CASCADE foreign keys.
func (s *SQLiteStore) DeleteAgent(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM agents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting agent: %w", err)
	}

	if err := requireRow(result); err != nil {
		return err
	}

	s.logger.Debug("deleted agent", "id", id)
	return nil
}

// requireRow maps a zero-row write to ErrNotFound
func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetConversation loads the agent's conversation with all of its messages.
// Returns ErrNotFound if the agent has no conversation.
func (s *SQLiteStore) GetConversation(ctx context.Context, agentID string) (*Conversation, error) {
	var conv Conversation
	var status, lastUpdatedStr string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, agent_id, status, last_updated FROM conversations WHERE agent_id = ?`,
		agentID,
	).Scan(&conv.ID, &conv.AgentID, &status, &lastUpdatedStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}

	conv.Status = Status(status)
	conv.LastUpdated, err = parseTime(lastUpdatedStr)
	if err != nil {
		return nil, fmt.Errorf("parsing last_updated: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, sender, agent_id, timestamp
		FROM messages
		WHERE conversation_id = ?
		ORDER BY seq ASC
	`, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var msg Message
		var sender, timestampStr string
		var msgAgentID *string

		if err := rows.Scan(&msg.ID, &msg.Text, &sender, &msgAgentID, &timestampStr); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}

		msg.Sender = Sender(sender)
		if msgAgentID != nil {
			msg.AgentID = *msgAgentID
		}
		msg.Timestamp, err = parseTime(timestampStr)
		if err != nil {
			return nil, fmt.Errorf("parsing message timestamp: %w", err)
		}

		conv.Messages = append(conv.Messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}

	return &conv, nil
}

// SaveConversation replaces the agent's conversation and messages in one transaction.
// Returns ErrNotFound if the agent doesn't exist.
func (s *SQLiteStore) SaveConversation(ctx context.Context, conv *Conversation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM agents WHERE id = ?`, conv.AgentID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("checking agent: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE agent_id = ?`, conv.AgentID); err != nil {
		return fmt.Errorf("deleting previous conversation: %w", err)
	}

	status := conv.Status
	if status == "" {
		status = StatusIdle
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO conversations (id, agent_id, status, last_updated) VALUES (?, ?, ?, ?)`,
		conv.ID, conv.AgentID, string(status), formatTime(conv.LastUpdated),
	); err != nil {
		return fmt.Errorf("inserting conversation: %w", err)
	}

	for _, msg := range conv.Messages {
		if err := insertMessage(ctx, tx, conv.ID, msg); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing conversation: %w", err)
	}

	s.logger.Debug("saved conversation", "id", conv.ID, "agent_id", conv.AgentID, "messages", len(conv.Messages))
	return nil
}

func insertMessage(ctx context.Context, tx *sql.Tx, conversationID string, msg *Message) error {
	var agentID any
	if msg.AgentID != "" {
		agentID = msg.AgentID
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, text, sender, agent_id, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.ID, conversationID, msg.Text, string(msg.Sender), agentID, formatTime(msg.Timestamp))
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("message %s: %w", msg.ID, ErrDuplicate)
		}
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

// AppendMessage appends a message to the agent's current conversation.
// Returns ErrNotFound if the current conversation is not conversationID.
func (s *SQLiteStore) AppendMessage(ctx context.Context, agentID, conversationID string, msg *Message, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var currentID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM conversations WHERE agent_id = ?`, agentID).Scan(&currentID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("querying conversation: %w", err)
	}
	if currentID != conversationID {
		return ErrNotFound
	}

	if err := insertMessage(ctx, tx, conversationID, msg); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET last_updated = ? WHERE id = ?`,
		formatTime(at), conversationID,
	); err != nil {
		return fmt.Errorf("updating last_updated: %w", err)
	}

	return tx.Commit()
}

// SetConversationStatus updates the reply status of the agent's conversation.
func (s *SQLiteStore) SetConversationStatus(ctx context.Context, agentID string, status Status) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET status = ? WHERE agent_id = ?`,
		string(status), agentID,
	)
	if err != nil {
		return fmt.Errorf("updating conversation status: %w", err)
	}
	return requireRow(result)
}
