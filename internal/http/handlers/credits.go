package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"stagesmart/internal/billing"
	"stagesmart/internal/domain"
	"stagesmart/internal/middleware"
)

// Credits reports the owner's current balance.
func (a *App) Credits(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.OwnerIDFromContext(r.Context())
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing session")
		return
	}
	balance, err := a.Ledger.Balance(r.Context(), ownerID)
	if err != nil {
		a.Logger.Error().Err(err).Msg("balance lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to read balance")
		return
	}
	a.json(w, http.StatusOK, map[string]int{"credits": balance})
}

type grantRequest struct {
	PackageID string `json:"package_id"`
}

// GrantCredits is the boundary the payment collaborator calls once a
// purchase completes: it maps the purchased package onto a ledger credit.
func (a *App) GrantCredits(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.OwnerIDFromContext(r.Context())
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing session")
		return
	}
	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	pkg, err := billing.Grant(r.Context(), a.Ledger, ownerID, req.PackageID)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownPackage) {
			a.error(w, http.StatusBadRequest, "unknown_package", err.Error())
			return
		}
		a.Logger.Error().Err(err).Msg("credit grant failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to grant credits")
		return
	}
	balance, err := a.Ledger.Balance(r.Context(), ownerID)
	if err != nil {
		a.Logger.Error().Err(err).Msg("balance lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to read balance")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"credits": balance,
		"package": pkg.ID,
		"granted": pkg.Credits,
	})
}

// GenerationHistory lists the owner's past staging attempts.
func (a *App) GenerationHistory(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.OwnerIDFromContext(r.Context())
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing session")
		return
	}
	if a.Generations == nil {
		a.json(w, http.StatusOK, map[string]any{"items": []any{}})
		return
	}
	items, err := a.Generations.ListByOwner(r.Context(), ownerID, 50)
	if err != nil {
		a.Logger.Error().Err(err).Msg("generation history lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load history")
		return
	}
	out := make([]map[string]any, 0, len(items))
	for _, gen := range items {
		out = append(out, map[string]any{
			"id":         gen.ID,
			"prompt":     gen.Prompt,
			"room_type":  string(gen.Room),
			"mode":       gen.Mode,
			"engine":     gen.Engine,
			"succeeded":  gen.Succeeded,
			"created_at": gen.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": out})
}
