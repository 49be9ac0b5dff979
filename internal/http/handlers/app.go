package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"stagesmart/internal/domain"
	"stagesmart/internal/imaging"
	"stagesmart/internal/ledger"
	"stagesmart/internal/staging"
)

// Stager is the staging pipeline as the handlers see it.
type Stager interface {
	Stage(ctx context.Context, req staging.StageRequest) (*staging.StageResult, error)
}

// RoomClassifier files a photo under a canonical room label.
type RoomClassifier interface {
	Classify(ctx context.Context, image imaging.Payload) (domain.RoomLabel, error)
}

// GenerationLister exposes the owner's staging history.
type GenerationLister interface {
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]domain.Generation, error)
}

// App bundles the dependencies the HTTP handlers need.
type App struct {
	Logger      zerolog.Logger
	Pipeline    Stager
	Classifier  RoomClassifier
	Ledger      ledger.Ledger
	Generations GenerationLister // optional; nil when no database is configured
	DefaultMode staging.Mode     // used when a request omits the engine selector
}

func NewApp(logger zerolog.Logger, pipeline Stager, classifier RoomClassifier, creditLedger ledger.Ledger, generations GenerationLister) *App {
	return &App{
		Logger:      logger,
		Pipeline:    pipeline,
		Classifier:  classifier,
		Ledger:      creditLedger,
		Generations: generations,
		DefaultMode: staging.ModeBoth,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]string{"error": errCode, "message": message})
}
