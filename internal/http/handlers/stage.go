package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"stagesmart/internal/domain"
	"stagesmart/internal/imaging"
	"stagesmart/internal/middleware"
	"stagesmart/internal/staging"
)

type stageRequest struct {
	Image    string       `json:"image"`
	Prompt   string       `json:"prompt"`
	Engine   string       `json:"engine"`
	RoomType string       `json:"room_type"`
	Style    string       `json:"style"`
	RoomName string       `json:"room_name"`
	Updates  stageUpdates `json:"updates"`
}

type stageUpdates struct {
	Paint    string `json:"paint"`
	Counters string `json:"counters"`
	Floors   string `json:"floors"`
}

type engineOutcome struct {
	Engine    string `json:"engine"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

type stageResponse struct {
	Success        bool            `json:"success"`
	GeneratedImage string          `json:"generated_image,omitempty"`
	Engine         string          `json:"engine,omitempty"`
	Outcomes       []engineOutcome `json:"outcomes"`
	Credits        int             `json:"credits"`
	GenerationID   string          `json:"generation_id"`
}

// Stage turns an uploaded photo plus a staging instruction into a staged
// image, consuming one credit on success.
func (a *App) Stage(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.OwnerIDFromContext(r.Context())
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing session")
		return
	}

	var req stageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	image, err := imaging.Decode(req.Image)
	if err != nil {
		a.error(w, http.StatusBadRequest, "malformed_image", err.Error())
		return
	}
	mode := a.DefaultMode
	if req.Engine != "" {
		var err error
		mode, err = staging.ParseMode(req.Engine)
		if err != nil {
			a.error(w, http.StatusBadRequest, "unknown_engine", err.Error())
			return
		}
	}

	room := roomFromWire(req.RoomType)
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		prompt = staging.BuildPrompt(staging.Instruction{
			Style:    staging.Style(req.Style),
			Room:     room,
			RoomName: req.RoomName,
			Updates: staging.Updates{
				Paint:    req.Updates.Paint,
				Counters: req.Updates.Counters,
				Floors:   req.Updates.Floors,
			},
		})
	}

	result, err := a.Pipeline.Stage(r.Context(), staging.StageRequest{
		OwnerID:   ownerID,
		Image:     image,
		Prompt:    prompt,
		Mode:      mode,
		Room:      room,
		RequestID: middleware.RequestIDFromContext(r.Context()),
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInsufficientCredit):
			a.error(w, http.StatusPaymentRequired, "insufficient_credit", "buy more credits to stage this photo")
		case errors.Is(err, domain.ErrMalformedImage), errors.Is(err, domain.ErrInvalidPrompt):
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		case errors.Is(err, domain.ErrUnknownEngine):
			a.error(w, http.StatusBadRequest, "unknown_engine", err.Error())
		default:
			a.Logger.Error().Err(err).Msg("stage failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to stage image")
		}
		return
	}

	resp := stageResponse{
		Success:      result.Succeeded,
		Outcomes:     make([]engineOutcome, len(result.Outcomes)),
		Credits:      result.Balance,
		GenerationID: result.GenerationID,
	}
	for i, outcome := range result.Outcomes {
		resp.Outcomes[i] = engineOutcome{
			Engine:    outcome.EngineID,
			Success:   outcome.Succeeded(),
			Error:     outcome.Reason(),
			LatencyMS: outcome.Latency.Milliseconds(),
		}
	}
	if result.Primary != nil {
		resp.GeneratedImage = imaging.Encode(*result.Primary)
		for _, outcome := range result.Outcomes {
			if outcome.Succeeded() {
				resp.Engine = outcome.EngineID
				break
			}
		}
	}

	// Every engine failing is not a transport error; the caller gets the
	// full outcome list to report per-engine reasons.
	a.json(w, http.StatusOK, resp)
}

func roomFromWire(raw string) domain.RoomLabel {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, label := range domain.RoomLabels {
		if string(label) == raw {
			return label
		}
	}
	return domain.RoomOther
}
