package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"testing"

	"stagesmart/internal/domain"
)

func multipartImage(t *testing.T, fieldName, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="`+fieldName+`"; filename="photo.jpg"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func TestAnalyzeHandler(t *testing.T) {
	classifier := &stubClassifier{label: domain.RoomKitchen}
	app := testApp(&stubStager{}, classifier)

	body, contentType := multipartImage(t, "image", "image/jpeg", []byte("photo-bytes"))
	rec := doSession(t, app.Analyze, http.MethodPost, "/api/analyze", body, contentType)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["room_type"] != "Kitchen" {
		t.Fatalf("room_type = %q, want Kitchen", resp["room_type"])
	}
	if resp["image_url"] == "" {
		t.Fatal("image_url must echo the upload as a data URI")
	}
	if classifier.calls != 1 {
		t.Fatalf("classifier calls = %d, want 1", classifier.calls)
	}
}

func TestAnalyzeHandlerMissingImage(t *testing.T) {
	app := testApp(&stubStager{}, &stubClassifier{})

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	_ = writer.WriteField("note", "no file here")
	_ = writer.Close()

	rec := doSession(t, app.Analyze, http.MethodPost, "/api/analyze", &buf, writer.FormDataContentType())
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAnalyzeHandlerUnsupportedMediaType(t *testing.T) {
	classifier := &stubClassifier{label: domain.RoomKitchen}
	app := testApp(&stubStager{}, classifier)

	body, contentType := multipartImage(t, "image", "application/pdf", []byte("%PDF"))
	rec := doSession(t, app.Analyze, http.MethodPost, "/api/analyze", body, contentType)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if classifier.calls != 0 {
		t.Fatal("classifier must not run for unsupported uploads")
	}
}

func TestAnalyzeHandlerProviderFailureFallsBackToOther(t *testing.T) {
	classifier := &stubClassifier{err: errors.New("vision provider down")}
	app := testApp(&stubStager{}, classifier)

	body, contentType := multipartImage(t, "image", "image/png", []byte("photo"))
	rec := doSession(t, app.Analyze, http.MethodPost, "/api/analyze", body, contentType)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["room_type"] != "Other" {
		t.Fatalf("room_type = %q, want Other fallback", resp["room_type"])
	}
}
