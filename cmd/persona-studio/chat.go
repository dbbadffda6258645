// ABOUTME: chat command: talk to agents from the terminal
// ABOUTME: Reads lines, sends them through the service and prints replies as they arrive

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/persona-studio/internal/config"
	"github.com/2389/persona-studio/internal/conversation"
	"github.com/2389/persona-studio/internal/notify"
	"github.com/2389/persona-studio/internal/store"
)

const chatHelp = `Commands:
  /agents          list agents
  /switch <name>   talk to another agent
  /clear           reset the conversation to its greeting
  /help            show this help
  /quit            leave
`

func newChatCmd(opts *globalOptions) *cobra.Command {
	var agentName string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with an agent in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(opts)
			if err != nil {
				return err
			}
			// Logs would interleave with the conversation
			if opts.logLevel == "" {
				cfg.Logging.Level = "warn"
			}
			return runChat(cmd.Context(), cfg, cmd.InOrStdin(), cmd.OutOrStdout(), agentName)
		},
	}

	cmd.Flags().StringVarP(&agentName, "agent", "a", "", "agent to start with (name or id)")
	return cmd
}

// syncWriter serializes writes from the input loop and notice callbacks.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// chatSession is one terminal conversation loop.
type chatSession struct {
	svc    *conversation.Service
	out    io.Writer
	agent  *store.Agent
	events <-chan *conversation.Event
	stop   context.CancelFunc

	you   *color.Color
	name  *color.Color
	dim   *color.Color
	alert *color.Color
}

func runChat(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer, agentName string) error {
	w := &syncWriter{w: out}
	logger := setupLogger(cfg.Logging, os.Stderr)

	a, err := newApp(ctx, cfg, logger, noticePrinter(w))
	if err != nil {
		return err
	}
	defer a.Close()

	s := &chatSession{
		svc:   a.svc,
		out:   w,
		you:   color.New(color.FgGreen, color.Bold),
		name:  color.New(color.FgCyan, color.Bold),
		dim:   color.New(color.FgHiBlack),
		alert: color.New(color.FgYellow),
	}
	defer func() {
		if s.stop != nil {
			s.stop()
		}
	}()

	agents, err := a.svc.ListAgents(ctx)
	if err != nil {
		return err
	}
	if len(agents) == 0 {
		return fmt.Errorf("no agents available (enable seed in config)")
	}

	start := agents[0]
	if agentName != "" {
		found := findAgent(agents, agentName)
		if found == nil {
			return fmt.Errorf("unknown agent %q", agentName)
		}
		start = found
	}
	if err := s.switchTo(ctx, start); err != nil {
		return err
	}

	s.dim.Fprintln(s.out, "Type /help for commands.")

	scanner := bufio.NewScanner(in)
	for {
		s.you.Fprint(s.out, "you> ")
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := s.command(ctx, line)
			if err != nil {
				s.alert.Fprintf(s.out, "! %v\n", err)
			}
			if quit {
				return nil
			}
			continue
		}

		if err := s.send(ctx, line); err != nil {
			return err
		}
	}
}

// command runs a slash command and reports whether the loop should end.
func (s *chatSession) command(ctx context.Context, line string) (bool, error) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return true, nil

	case "/help":
		fmt.Fprint(s.out, chatHelp)
		return false, nil

	case "/agents":
		agents, err := s.svc.ListAgents(ctx)
		if err != nil {
			return false, err
		}
		for _, a := range agents {
			marker := "  "
			if a.ID == s.agent.ID {
				marker = "* "
			}
			fmt.Fprintf(s.out, "%s%s %s ", marker, a.Avatar, a.Name)
			s.dim.Fprintf(s.out, "- %s\n", a.Description)
		}
		return false, nil

	case "/switch":
		if arg == "" {
			return false, fmt.Errorf("usage: /switch <name>")
		}
		agents, err := s.svc.ListAgents(ctx)
		if err != nil {
			return false, err
		}
		found := findAgent(agents, arg)
		if found == nil {
			return false, fmt.Errorf("unknown agent %q", arg)
		}
		return false, s.switchTo(ctx, found)

	case "/clear":
		if _, err := s.svc.ClearConversation(ctx, s.agent.ID); err != nil {
			return false, err
		}
		// Drain the cleared event so it is not mistaken for reply progress
		s.waitFor(ctx, func(ev *conversation.Event) bool { return ev.Type == conversation.EventCleared })
		s.printMessage(&store.Message{Text: s.agent.Greeting, Sender: store.SenderAgent})
		return false, nil

	default:
		return false, fmt.Errorf("unknown command %s (try /help)", name)
	}
}

// switchTo makes agent the active one, subscribes to its events and prints
// its conversation so far.
func (s *chatSession) switchTo(ctx context.Context, agent *store.Agent) error {
	if err := s.svc.SelectAgent(ctx, agent.ID); err != nil {
		return err
	}
	if s.stop != nil {
		s.stop()
	}
	subCtx, stop := context.WithCancel(ctx)
	s.stop = stop
	s.events = s.svc.Subscribe(subCtx, agent.ID)
	s.agent = agent

	conv, err := s.svc.Conversation(ctx, agent.ID)
	if err != nil {
		return err
	}

	fmt.Fprintln(s.out)
	s.name.Fprintf(s.out, "%s %s", agent.Avatar, agent.Name)
	s.dim.Fprintf(s.out, " - %s\n", agent.Description)
	for _, m := range conv.Messages {
		s.printMessage(m)
	}
	return nil
}

// send posts text and blocks until the conversation is idle again,
// printing the reply when it lands.
func (s *chatSession) send(ctx context.Context, text string) error {
	if _, err := s.svc.SendMessage(ctx, s.agent.ID, text, ""); err != nil {
		return err
	}

	s.waitFor(ctx, func(ev *conversation.Event) bool {
		switch ev.Type {
		case conversation.EventStatus:
			if ev.Status == store.StatusAwaitingReply {
				s.dim.Fprintf(s.out, "%s is typing...\n", s.agent.Name)
				return false
			}
			return true
		case conversation.EventMessage:
			if ev.Message.Sender == store.SenderAgent {
				s.printMessage(ev.Message)
			}
		case conversation.EventCleared, conversation.EventAgentDeleted:
			return true
		}
		return false
	})
	return nil
}

// waitFor consumes events until done returns true, the stream closes, or
// ctx ends.
func (s *chatSession) waitFor(ctx context.Context, done func(*conversation.Event) bool) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-s.events:
			if !ok || done(ev) {
				return
			}
		}
	}
}

func (s *chatSession) printMessage(m *store.Message) {
	if m.Sender == store.SenderUser {
		s.you.Fprint(s.out, "you> ")
	} else {
		s.name.Fprintf(s.out, "%s> ", s.agent.Name)
	}
	fmt.Fprintln(s.out, m.Text)
}

// noticePrinter writes notices to the terminal.
func noticePrinter(w io.Writer) notify.Sink {
	ok := color.New(color.FgGreen)
	bad := color.New(color.FgRed, color.Bold)
	return notify.SinkFunc(func(n notify.Notice) {
		c := ok
		if n.Kind == notify.KindError {
			c = bad
		}
		c.Fprintf(w, "[%s] ", n.Title)
		fmt.Fprintln(w, n.Description)
	})
}

func findAgent(agents []*store.Agent, nameOrID string) *store.Agent {
	for _, a := range agents {
		if a.ID == nameOrID || strings.EqualFold(a.Name, nameOrID) {
			return a
		}
	}
	return nil
}
