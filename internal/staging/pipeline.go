package staging

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"stagesmart/internal/domain"
	"stagesmart/internal/imaging"
	"stagesmart/internal/ledger"
	"stagesmart/internal/providers/engine"
)

const maxPromptLength = 2000

// Recorder persists the boundary of one staging attempt.
type Recorder interface {
	Record(ctx context.Context, gen domain.Generation) error
}

// NopRecorder drops attempt records. Used when no database is configured.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, domain.Generation) error { return nil }

// StageRequest is owned exclusively by the call that created it; it is never
// shared across concurrent requests.
type StageRequest struct {
	OwnerID   string
	Image     imaging.Payload
	Prompt    string
	Mode      Mode
	Room      domain.RoomLabel
	RequestID string
}

// StageResult is the externally visible result of one staging attempt.
type StageResult struct {
	GenerationID string
	Outcomes     []Outcome
	Primary      *imaging.Payload
	Succeeded    bool
	Balance      int
}

// Pipeline composes the orchestrator and the ledger into the single staging
// operation. It enforces the debit protocol: at most one debit per
// orchestration, only after a success, never before the pre-check passed.
type Pipeline struct {
	orchestrator *Orchestrator
	ledger       ledger.Ledger
	recorder     Recorder
	logger       zerolog.Logger
}

func NewPipeline(orchestrator *Orchestrator, creditLedger ledger.Ledger, recorder Recorder, logger zerolog.Logger) *Pipeline {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &Pipeline{
		orchestrator: orchestrator,
		ledger:       creditLedger,
		recorder:     recorder,
		logger:       logger,
	}
}

// Stage runs one staging attempt end to end. Pre-checks (image shape, prompt
// length, known engine, sufficient credit) short-circuit before any provider
// call; per-engine failures never do.
func (p *Pipeline) Stage(ctx context.Context, req StageRequest) (*StageResult, error) {
	if !imaging.Valid(req.Image) {
		return nil, fmt.Errorf("%w: empty bytes or unsupported media type", domain.ErrMalformedImage)
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" || len(prompt) > maxPromptLength {
		return nil, fmt.Errorf("%w: prompt must be 1..%d characters", domain.ErrInvalidPrompt, maxPromptLength)
	}

	balance, err := p.ledger.Balance(ctx, req.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("check balance: %w", err)
	}
	if balance < 1 {
		return nil, domain.ErrInsufficientCredit
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	result, err := p.orchestrator.Run(ctx, req.Mode, engine.Request{
		Image:     req.Image,
		Prompt:    prompt,
		RequestID: requestID,
	})
	if err != nil {
		return nil, err
	}

	if !result.Succeeded {
		p.logger.Warn().
			Err(domain.ErrAllEnginesFailed).
			Str("request_id", requestID).
			Msg("staging produced no image")
	} else {
		debited, err := p.ledger.TryDebit(ctx, req.OwnerID, 1)
		if err != nil || !debited {
			// The owner keeps the image; the missed debit is surfaced for
			// reconciliation and never retried against anyone else.
			p.logger.Error().
				Err(err).
				Str("owner_id", req.OwnerID).
				Str("request_id", requestID).
				Bool("debited", debited).
				Msg("ledger reconciliation anomaly: post-success debit did not complete")
		}
	}

	balance, err = p.ledger.Balance(ctx, req.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("read balance: %w", err)
	}

	generationID := uuid.NewString()
	record := domain.Generation{
		ID:        generationID,
		OwnerID:   req.OwnerID,
		Prompt:    prompt,
		Room:      req.Room,
		Mode:      string(req.Mode),
		Engine:    result.PrimaryEngine(),
		Succeeded: result.Succeeded,
		CreatedAt: time.Now(),
	}
	if err := p.recorder.Record(ctx, record); err != nil {
		p.logger.Warn().
			Err(err).
			Str("generation_id", generationID).
			Msg("failed to record staging attempt")
	}

	return &StageResult{
		GenerationID: generationID,
		Outcomes:     result.Outcomes,
		Primary:      result.Primary,
		Succeeded:    result.Succeeded,
		Balance:      balance,
	}, nil
}
