package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"stagesmart/internal/domain"
	"stagesmart/internal/imaging"
	"stagesmart/internal/ledger"
	"stagesmart/internal/middleware"
	"stagesmart/internal/staging"
)

type stubStager struct {
	result  *staging.StageResult
	err     error
	calls   int
	lastReq staging.StageRequest
}

func (s *stubStager) Stage(ctx context.Context, req staging.StageRequest) (*staging.StageResult, error) {
	s.calls++
	s.lastReq = req
	return s.result, s.err
}

type stubClassifier struct {
	label domain.RoomLabel
	err   error
	calls int
}

func (s *stubClassifier) Classify(ctx context.Context, image imaging.Payload) (domain.RoomLabel, error) {
	s.calls++
	return s.label, s.err
}

func testApp(stager *stubStager, classifier *stubClassifier) *App {
	return NewApp(zerolog.New(io.Discard), stager, classifier, ledger.NewMemory(3), nil)
}

func doSession(t *testing.T, handler http.HandlerFunc, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	req.AddCookie(&http.Cookie{Name: "ss_session", Value: uuid.NewString()})
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	middleware.Session(handler).ServeHTTP(rec, req)
	return rec
}

func wireImage() string {
	return imaging.Encode(imaging.Payload{Bytes: []byte("source"), MediaType: "image/jpeg"})
}

func TestStageHandlerSuccess(t *testing.T) {
	primary := imaging.Payload{Bytes: []byte("staged"), MediaType: "image/png"}
	stager := &stubStager{result: &staging.StageResult{
		GenerationID: "gen-1",
		Outcomes: []staging.Outcome{
			{EngineID: "gemini", Image: primary, Latency: 40 * time.Millisecond},
			{EngineID: "replicate", Err: context.DeadlineExceeded, Latency: 120 * time.Millisecond},
		},
		Primary:   &primary,
		Succeeded: true,
		Balance:   2,
	}}
	app := testApp(stager, &stubClassifier{})

	body, _ := json.Marshal(map[string]any{
		"image":     wireImage(),
		"prompt":    "stage it",
		"engine":    "both",
		"room_type": "Living Room",
	})
	rec := doSession(t, app.Stage, http.MethodPost, "/api/stage", bytes.NewReader(body), "application/json")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	var resp stageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.Credits != 2 || resp.Engine != "gemini" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(resp.Outcomes) != 2 || resp.Outcomes[1].Error == "" {
		t.Fatalf("per-engine outcomes must be surfaced: %+v", resp.Outcomes)
	}
	if resp.GeneratedImage == "" || !strings.HasPrefix(resp.GeneratedImage, "data:image/png;base64,") {
		t.Fatalf("generated image must be a data URI: %q", resp.GeneratedImage)
	}
	if stager.lastReq.Mode != staging.ModeBoth || stager.lastReq.Room != domain.RoomLivingRoom {
		t.Fatalf("unexpected pipeline request: %+v", stager.lastReq)
	}
}

func TestStageHandlerBuildsPromptWhenAbsent(t *testing.T) {
	primary := imaging.Payload{Bytes: []byte("staged"), MediaType: "image/png"}
	stager := &stubStager{result: &staging.StageResult{
		Outcomes:  []staging.Outcome{{EngineID: "gemini", Image: primary}},
		Primary:   &primary,
		Succeeded: true,
		Balance:   2,
	}}
	app := testApp(stager, &stubClassifier{})

	body, _ := json.Marshal(map[string]any{
		"image":     wireImage(),
		"style":     "Farmhouse",
		"room_type": "Kitchen",
		"updates":   map[string]string{"paint": "White"},
	})
	rec := doSession(t, app.Stage, http.MethodPost, "/api/stage", bytes.NewReader(body), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	want := "Photoreal farmhouse virtual staging real estate Kitchen, add furniture keeping architecture exact, MLS photo. + white paint."
	if stager.lastReq.Prompt != want {
		t.Fatalf("prompt = %q, want %q", stager.lastReq.Prompt, want)
	}
}

func TestStageHandlerInsufficientCredit(t *testing.T) {
	stager := &stubStager{err: domain.ErrInsufficientCredit}
	app := testApp(stager, &stubClassifier{})

	body, _ := json.Marshal(map[string]any{"image": wireImage(), "prompt": "stage it"})
	rec := doSession(t, app.Stage, http.MethodPost, "/api/stage", bytes.NewReader(body), "application/json")
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", rec.Code)
	}
}

func TestStageHandlerMalformedImage(t *testing.T) {
	stager := &stubStager{}
	app := testApp(stager, &stubClassifier{})

	body, _ := json.Marshal(map[string]any{"image": "not-a-data-uri", "prompt": "stage it"})
	rec := doSession(t, app.Stage, http.MethodPost, "/api/stage", bytes.NewReader(body), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if stager.calls != 0 {
		t.Fatalf("pipeline calls = %d, want 0 for malformed input", stager.calls)
	}
}

func TestStageHandlerUnknownEngineSelector(t *testing.T) {
	stager := &stubStager{}
	app := testApp(stager, &stubClassifier{})

	body, _ := json.Marshal(map[string]any{"image": wireImage(), "prompt": "x", "engine": "dall-e"})
	rec := doSession(t, app.Stage, http.MethodPost, "/api/stage", bytes.NewReader(body), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if stager.calls != 0 {
		t.Fatal("pipeline must not run for an unknown engine selector")
	}
}

func TestStageHandlerAllEnginesFailed(t *testing.T) {
	stager := &stubStager{result: &staging.StageResult{
		Outcomes: []staging.Outcome{
			{EngineID: "gemini", Err: domain.ErrNoImageReturned},
			{EngineID: "replicate", Err: domain.ErrFetchFailed},
		},
		Succeeded: false,
		Balance:   3,
	}}
	app := testApp(stager, &stubClassifier{})

	body, _ := json.Marshal(map[string]any{"image": wireImage(), "prompt": "stage it"})
	rec := doSession(t, app.Stage, http.MethodPost, "/api/stage", bytes.NewReader(body), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with success=false", rec.Code)
	}
	var resp stageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Success || resp.GeneratedImage != "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Credits != 3 {
		t.Fatalf("credits = %d, want untouched 3", resp.Credits)
	}
	if len(resp.Outcomes) != 2 || resp.Outcomes[0].Error == "" || resp.Outcomes[1].Error == "" {
		t.Fatalf("both failure reasons must be present: %+v", resp.Outcomes)
	}
}
