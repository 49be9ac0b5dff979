package handlers

import (
	"io"
	"net/http"

	"stagesmart/internal/domain"
	"stagesmart/internal/imaging"
)

const maxUploadBytes = 10 << 20

// Analyze accepts a multipart photo upload and returns the canonical room
// label the vision model files it under, plus the photo echoed back as a
// data URI for the client to hold in state.
func (a *App) Analyze(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart payload")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "no image provided")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "failed to read image")
		return
	}
	mediaType := header.Header.Get("Content-Type")
	if mediaType == "" {
		mediaType = "image/jpeg"
	}
	image := imaging.Payload{Bytes: data, MediaType: mediaType}
	if !imaging.Valid(image) {
		a.error(w, http.StatusBadRequest, "malformed_image", "empty image or unsupported media type")
		return
	}

	room, err := a.Classifier.Classify(r.Context(), image)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("room classification failed")
		a.json(w, http.StatusBadGateway, map[string]string{
			"error":     "classify_failed",
			"room_type": string(domain.RoomOther),
		})
		return
	}

	a.json(w, http.StatusOK, map[string]string{
		"room_type": string(room),
		"image_url": imaging.Encode(image),
	})
}
