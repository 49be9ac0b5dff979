package staging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"stagesmart/internal/domain"
	"stagesmart/internal/imaging"
	"stagesmart/internal/providers/engine"
)

// Mode selects which engines one staging request fans out to.
type Mode string

const (
	ModeGemini    Mode = "gemini"
	ModeReplicate Mode = "replicate"
	ModeBoth      Mode = "both"
)

// ParseMode normalizes the wire selector. An empty selector means "both";
// anything else unrecognized is a caller error.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModeBoth, nil
	case ModeGemini, ModeReplicate, ModeBoth:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownEngine, s)
	}
}

// Outcome is the settled result of one engine invocation. It is built once
// and never mutated.
type Outcome struct {
	EngineID string
	Image    imaging.Payload
	Err      error
	Latency  time.Duration
}

// Succeeded reports whether this engine produced a usable image.
func (o Outcome) Succeeded() bool { return o.Err == nil }

// Reason returns the per-engine failure message, empty on success.
func (o Outcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Result aggregates every engine outcome of one orchestration. Outcomes keep
// invocation order, never completion order, so callers and tests do not
// depend on network timing.
type Result struct {
	Outcomes  []Outcome
	Primary   *imaging.Payload
	Succeeded bool
}

// PrimaryEngine names the engine that produced the primary image, empty when
// no engine succeeded.
func (r *Result) PrimaryEngine() string {
	if r.Primary == nil {
		return ""
	}
	for _, outcome := range r.Outcomes {
		if outcome.Succeeded() {
			return outcome.EngineID
		}
	}
	return ""
}

// Orchestrator fans one generation request out to the selected engines,
// waits for every invocation to settle and picks the primary image by a
// fixed priority order. It deliberately never cancels a still-running engine
// once a sibling has succeeded: callers get every engine's outcome for
// comparison, at the cost of waiting for the slowest one.
type Orchestrator struct {
	engines  map[string]engine.Engine
	priority []string
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewOrchestrator registers the given engines. Their argument order is the
// priority order used both for invocation and for primary selection.
func NewOrchestrator(timeout time.Duration, logger zerolog.Logger, engines ...engine.Engine) *Orchestrator {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	registry := make(map[string]engine.Engine, len(engines))
	priority := make([]string, 0, len(engines))
	for _, eng := range engines {
		if _, exists := registry[eng.ID()]; exists {
			continue
		}
		registry[eng.ID()] = eng
		priority = append(priority, eng.ID())
	}
	return &Orchestrator{
		engines:  registry,
		priority: priority,
		timeout:  timeout,
		logger:   logger,
	}
}

// Run invokes every engine selected by mode concurrently and aggregates the
// settled outcomes. It fails fast with domain.ErrUnknownEngine before any
// network call when the mode names an unregistered engine.
func (o *Orchestrator) Run(ctx context.Context, mode Mode, req engine.Request) (*Result, error) {
	ids, err := o.selectEngines(mode)
	if err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, len(ids))
	var group errgroup.Group
	for i, id := range ids {
		eng := o.engines[id]
		group.Go(func() error {
			outcomes[i] = o.invoke(ctx, eng, req)
			// Per-engine failures settle into the outcome; returning nil
			// keeps sibling invocations running.
			return nil
		})
	}
	_ = group.Wait()

	result := &Result{Outcomes: outcomes}
	for i := range outcomes {
		if outcomes[i].Succeeded() {
			result.Primary = &outcomes[i].Image
			result.Succeeded = true
			break
		}
	}

	for _, outcome := range outcomes {
		evt := o.logger.Debug().
			Str("request_id", req.RequestID).
			Str("engine", outcome.EngineID).
			Dur("latency", outcome.Latency)
		if outcome.Err != nil {
			evt.Err(outcome.Err).Msg("engine settled with failure")
			continue
		}
		evt.Msg("engine settled with image")
	}

	return result, nil
}

func (o *Orchestrator) selectEngines(mode Mode) ([]string, error) {
	if mode == ModeBoth {
		if len(o.priority) == 0 {
			return nil, fmt.Errorf("%w: no engines registered", domain.ErrUnknownEngine)
		}
		return o.priority, nil
	}
	id := string(mode)
	if _, ok := o.engines[id]; !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownEngine, id)
	}
	return []string{id}, nil
}

// invoke runs one engine bound by its own timeout. A timeout settles as a
// failure outcome for that engine only; siblings keep their own deadlines.
func (o *Orchestrator) invoke(ctx context.Context, eng engine.Engine, req engine.Request) Outcome {
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	image, err := eng.Generate(callCtx, req)
	latency := time.Since(start)

	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("timeout after %s", o.timeout)
	}
	return Outcome{EngineID: eng.ID(), Image: image, Err: err, Latency: latency}
}
