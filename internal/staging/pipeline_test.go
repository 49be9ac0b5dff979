package staging

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"stagesmart/internal/domain"
	"stagesmart/internal/imaging"
	"stagesmart/internal/ledger"
	"stagesmart/internal/providers/engine"
)

type recordingRecorder struct {
	mu      sync.Mutex
	records []domain.Generation
}

func (r *recordingRecorder) Record(ctx context.Context, gen domain.Generation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, gen)
	return nil
}

// stubLedger wraps the memory ledger and can force TryDebit to fail.
type stubLedger struct {
	*ledger.Memory
	debitErr   error
	debitCalls int
}

func (s *stubLedger) TryDebit(ctx context.Context, ownerID string, amount int) (bool, error) {
	s.debitCalls++
	if s.debitErr != nil {
		return false, s.debitErr
	}
	return s.Memory.TryDebit(ctx, ownerID, amount)
}

func newTestPipeline(balance int, engines ...*stubEngine) (*Pipeline, *stubLedger, *recordingRecorder) {
	creditLedger := &stubLedger{Memory: ledger.NewMemory(balance)}
	recorder := &recordingRecorder{}
	registered := make([]engine.Engine, len(engines))
	for i, eng := range engines {
		registered[i] = eng
	}
	o := NewOrchestrator(time.Second, testLogger(), registered...)
	return NewPipeline(o, creditLedger, recorder, testLogger()), creditLedger, recorder
}

func stageRequest() StageRequest {
	return StageRequest{
		OwnerID: "owner-1",
		Image:   payload("source"),
		Prompt:  "Photoreal modern virtual staging real estate Living Room",
		Mode:    ModeBoth,
		Room:    domain.RoomLivingRoom,
	}
}

func TestStageDebitsExactlyOnceWhenBothSucceed(t *testing.T) {
	gemini := &stubEngine{id: "gemini", image: payload("gemini-img")}
	replicate := &stubEngine{id: "replicate", image: payload("replicate-img")}
	p, creditLedger, recorder := newTestPipeline(3, gemini, replicate)

	result, err := p.Stage(context.Background(), stageRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Succeeded {
		t.Fatal("expected success")
	}
	if result.Balance != 2 {
		t.Fatalf("balance = %d, want 3-1=2 even with two successful engines", result.Balance)
	}
	if creditLedger.debitCalls != 1 {
		t.Fatalf("debit calls = %d, want exactly 1", creditLedger.debitCalls)
	}
	if len(recorder.records) != 1 || !recorder.records[0].Succeeded || recorder.records[0].Engine != "gemini" {
		t.Fatalf("unexpected attempt record: %+v", recorder.records)
	}
}

func TestStageInsufficientCreditShortCircuits(t *testing.T) {
	gemini := &stubEngine{id: "gemini", image: payload("gemini-img")}
	replicate := &stubEngine{id: "replicate", image: payload("replicate-img")}
	p, creditLedger, _ := newTestPipeline(0, gemini, replicate)

	_, err := p.Stage(context.Background(), stageRequest())
	if !errors.Is(err, domain.ErrInsufficientCredit) {
		t.Fatalf("error = %v, want ErrInsufficientCredit", err)
	}
	if gemini.calls != 0 || replicate.calls != 0 {
		t.Fatalf("no engine may run for an unpayable request: gemini=%d replicate=%d", gemini.calls, replicate.calls)
	}
	if creditLedger.debitCalls != 0 {
		t.Fatalf("debit calls = %d, want 0", creditLedger.debitCalls)
	}
}

func TestStageMixedOutcomeStillDebitsOnce(t *testing.T) {
	gemini := &stubEngine{id: "gemini", err: errors.New("gemini down")}
	replicate := &stubEngine{id: "replicate", image: payload("replicate-img")}
	p, _, _ := newTestPipeline(2, gemini, replicate)

	result, err := p.Stage(context.Background(), stageRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Succeeded || string(result.Primary.Bytes) != "replicate-img" {
		t.Fatalf("expected replicate primary: %+v", result)
	}
	if len(result.Outcomes) != 2 {
		t.Fatalf("both outcomes must be reported: %+v", result.Outcomes)
	}
	if result.Outcomes[0].Succeeded() || !result.Outcomes[1].Succeeded() {
		t.Fatalf("expected one failure and one success: %+v", result.Outcomes)
	}
	if result.Balance != 1 {
		t.Fatalf("balance = %d, want 1", result.Balance)
	}
}

func TestStageAllEnginesFailedNoDebit(t *testing.T) {
	gemini := &stubEngine{id: "gemini", err: errors.New("gemini down")}
	replicate := &stubEngine{id: "replicate", err: errors.New("replicate down")}
	p, creditLedger, recorder := newTestPipeline(2, gemini, replicate)

	result, err := p.Stage(context.Background(), stageRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Succeeded || result.Primary != nil {
		t.Fatalf("expected failure: %+v", result)
	}
	if result.Balance != 2 {
		t.Fatalf("balance = %d, want untouched 2", result.Balance)
	}
	if creditLedger.debitCalls != 0 {
		t.Fatalf("debit calls = %d, want 0", creditLedger.debitCalls)
	}
	if result.Outcomes[0].Reason() != "gemini down" || result.Outcomes[1].Reason() != "replicate down" {
		t.Fatalf("per-engine reasons must survive aggregation: %+v", result.Outcomes)
	}
	if len(recorder.records) != 1 || recorder.records[0].Succeeded {
		t.Fatalf("failed attempt should still be recorded: %+v", recorder.records)
	}
}

func TestStageMalformedImageRejectedBeforeEngines(t *testing.T) {
	gemini := &stubEngine{id: "gemini", image: payload("gemini-img")}
	replicate := &stubEngine{id: "replicate", image: payload("replicate-img")}
	p, _, _ := newTestPipeline(3, gemini, replicate)

	req := stageRequest()
	req.Image = imaging.Payload{Bytes: nil, MediaType: "image/png"}
	if _, err := p.Stage(context.Background(), req); !errors.Is(err, domain.ErrMalformedImage) {
		t.Fatalf("error = %v, want ErrMalformedImage", err)
	}
	if gemini.calls != 0 || replicate.calls != 0 {
		t.Fatal("engines must not run for malformed input")
	}
}

func TestStagePromptBounds(t *testing.T) {
	gemini := &stubEngine{id: "gemini", image: payload("gemini-img")}
	replicate := &stubEngine{id: "replicate", image: payload("replicate-img")}
	p, _, _ := newTestPipeline(3, gemini, replicate)

	req := stageRequest()
	req.Prompt = "   "
	if _, err := p.Stage(context.Background(), req); !errors.Is(err, domain.ErrInvalidPrompt) {
		t.Fatalf("blank prompt: error = %v, want ErrInvalidPrompt", err)
	}
	req.Prompt = strings.Repeat("x", 2001)
	if _, err := p.Stage(context.Background(), req); !errors.Is(err, domain.ErrInvalidPrompt) {
		t.Fatalf("oversized prompt: error = %v, want ErrInvalidPrompt", err)
	}
}

func TestStageUnknownEngineNoDebit(t *testing.T) {
	gemini := &stubEngine{id: "gemini", image: payload("gemini-img")}
	p, creditLedger, _ := newTestPipeline(3, gemini)

	req := stageRequest()
	req.Mode = ModeReplicate
	if _, err := p.Stage(context.Background(), req); !errors.Is(err, domain.ErrUnknownEngine) {
		t.Fatalf("error = %v, want ErrUnknownEngine", err)
	}
	if creditLedger.debitCalls != 0 {
		t.Fatalf("debit calls = %d, want 0", creditLedger.debitCalls)
	}
}

func TestStageDebitAnomalyStillReturnsImage(t *testing.T) {
	gemini := &stubEngine{id: "gemini", image: payload("gemini-img")}
	replicate := &stubEngine{id: "replicate", image: payload("replicate-img")}
	p, creditLedger, _ := newTestPipeline(3, gemini, replicate)
	creditLedger.debitErr = errors.New("ledger unavailable")

	result, err := p.Stage(context.Background(), stageRequest())
	if err != nil {
		t.Fatalf("a debit anomaly must not fail the request: %v", err)
	}
	if !result.Succeeded || result.Primary == nil {
		t.Fatalf("image must still be delivered: %+v", result)
	}
	if result.Balance != 3 {
		t.Fatalf("balance = %d, want untouched 3", result.Balance)
	}
}

func TestStageConcurrentDebitsNeverOversell(t *testing.T) {
	p, creditLedger, _ := newTestPipeline(2,
		&stubEngine{id: "gemini", image: payload("gemini-img")},
		&stubEngine{id: "replicate", image: payload("replicate-img")})

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Stage(context.Background(), stageRequest()); err != nil {
				t.Errorf("stage: %v", err)
			}
		}()
	}
	wg.Wait()

	balance, _ := creditLedger.Balance(context.Background(), "owner-1")
	if balance != 0 {
		t.Fatalf("balance = %d, want exactly 0 after two concurrent successes", balance)
	}
}
