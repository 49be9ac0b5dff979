package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"stagesmart/internal/domain"
	"stagesmart/internal/imaging"
)

const replicateEngineID = "replicate"

// ReplicateOptions controls how the Replicate engine is configured.
type ReplicateOptions struct {
	APIToken     string
	BaseURL      string
	Model        string
	HTTPClient   *http.Client
	PollInterval time.Duration
}

// Replicate is the reference-result engine: the prediction call yields a URL
// and a second fetch materializes the staged image bytes. A failure in either
// network step is reported distinctly.
type Replicate struct {
	apiToken     string
	baseURL      string
	model        string
	httpClient   *http.Client
	pollInterval time.Duration
}

type replicatePredictionRequest struct {
	Input map[string]any `json:"input"`
}

type replicatePrediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// NewReplicate constructs the Replicate engine with sane defaults.
func NewReplicate(opts ReplicateOptions) *Replicate {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.replicate.com/v1"
	}
	model := opts.Model
	if model == "" {
		model = "black-forest-labs/flux-kontext-pro"
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Replicate{
		apiToken:     strings.TrimSpace(opts.APIToken),
		baseURL:      baseURL,
		model:        model,
		httpClient:   client,
		pollInterval: interval,
	}
}

func (r *Replicate) ID() string { return replicateEngineID }

// Generate creates a prediction, waits for it to reach a terminal status and
// then fetches the referenced output image.
func (r *Replicate) Generate(ctx context.Context, req Request) (imaging.Payload, error) {
	prediction, err := r.createPrediction(ctx, req)
	if err != nil {
		return imaging.Payload{}, err
	}

	prediction, err = r.waitForPrediction(ctx, prediction)
	if err != nil {
		return imaging.Payload{}, err
	}

	imageURL := firstOutputURL(prediction.Output)
	if imageURL == "" {
		return imaging.Payload{}, fmt.Errorf("replicate: %w", domain.ErrNoImageReturned)
	}

	payload, err := r.fetchImage(ctx, imageURL)
	if err != nil {
		return imaging.Payload{}, fmt.Errorf("replicate: %w: %v", domain.ErrFetchFailed, err)
	}
	return payload, nil
}

func (r *Replicate) createPrediction(ctx context.Context, req Request) (*replicatePrediction, error) {
	payload := replicatePredictionRequest{Input: map[string]any{
		"prompt":           req.Prompt,
		"input_image":      imaging.Encode(req.Image),
		"output_format":    "jpg",
		"safety_tolerance": 5,
	}}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("replicate: marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s/predictions", r.baseURL, r.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("replicate: create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+r.apiToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("replicate: create prediction: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("replicate: read response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("replicate status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var prediction replicatePrediction
	if err := json.Unmarshal(respBody, &prediction); err != nil {
		return nil, fmt.Errorf("replicate: unmarshal prediction: %w", err)
	}
	return &prediction, nil
}

func (r *Replicate) waitForPrediction(ctx context.Context, prediction *replicatePrediction) (*replicatePrediction, error) {
	for {
		switch prediction.Status {
		case "succeeded":
			return prediction, nil
		case "failed", "canceled":
			reason := prediction.Error
			if reason == "" {
				reason = prediction.Status
			}
			return nil, fmt.Errorf("replicate prediction %s: %s", prediction.ID, reason)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("replicate prediction %s: %w", prediction.ID, ctx.Err())
		case <-time.After(r.pollInterval):
		}

		next, err := r.getPrediction(ctx, prediction.ID)
		if err != nil {
			return nil, err
		}
		prediction = next
	}
}

func (r *Replicate) getPrediction(ctx context.Context, id string) (*replicatePrediction, error) {
	endpoint := fmt.Sprintf("%s/predictions/%s", r.baseURL, id)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("replicate: create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+r.apiToken)

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("replicate: get prediction: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("replicate: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("replicate status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var prediction replicatePrediction
	if err := json.Unmarshal(respBody, &prediction); err != nil {
		return nil, fmt.Errorf("replicate: unmarshal prediction: %w", err)
	}
	return &prediction, nil
}

func (r *Replicate) fetchImage(ctx context.Context, imageURL string) (imaging.Payload, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return imaging.Payload{}, fmt.Errorf("create request: %w", err)
	}
	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return imaging.Payload{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return imaging.Payload{}, fmt.Errorf("status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return imaging.Payload{}, err
	}
	if len(data) == 0 {
		return imaging.Payload{}, fmt.Errorf("empty body")
	}

	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "image/jpeg"
	}
	return imaging.Payload{Bytes: data, MediaType: mime}, nil
}

// firstOutputURL handles both output shapes Replicate returns: a single URL
// string or an array of URL strings.
func firstOutputURL(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil && len(many) > 0 {
		return many[0]
	}
	return ""
}

var _ Engine = (*Replicate)(nil)
