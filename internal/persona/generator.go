// ABOUTME: Generator wraps persona replies with a configurable simulated latency
// ABOUTME: Returns ErrGeneration when the context ends before a reply is ready

package persona

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrGeneration indicates the reply could not be produced.
var ErrGeneration = errors.New("generation failed")

// Generator produces canned replies for a persona after an optional delay.
type Generator struct {
	registry *Registry
	delay    time.Duration
	logger   *slog.Logger
}

// NewGenerator creates a Generator. A zero delay replies immediately.
// Pass nil logger for default.
func NewGenerator(registry *Registry, delay time.Duration, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		registry: registry,
		delay:    delay,
		logger:   logger.With("component", "generator"),
	}
}

// Registry returns the personas the generator answers for.
func (g *Generator) Registry() *Registry {
	return g.registry
}

// Generate returns the reply of personaID to text. Unknown or empty persona
// identifiers get GenericFallback.
func (g *Generator) Generate(ctx context.Context, personaID, text string) (string, error) {
	if g.delay > 0 {
		timer := time.NewTimer(g.delay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %w", ErrGeneration, ctx.Err())
		}
	} else if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	// Lookup yields a nil persona on a miss, which answers generically
	p, ok := g.registry.Lookup(personaID)
	reply := p.Respond(text)

	g.logger.Debug("reply generated",
		"persona", personaID,
		"known_persona", ok,
		"reply_len", len(reply))
	return reply, nil
}
