package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/UmarSaeed090/sensors-backend/internal/models"
)

func f(v float64) *float64 { return &v }

type fakeBroadcaster struct {
	published []string
}

func (b *fakeBroadcaster) Publish(tagNumber string, reading *models.Reading) {
	b.published = append(b.published, tagNumber)
}

type fakeEnqueuer struct {
	readings []*models.Reading
	accept   bool
}

func (e *fakeEnqueuer) Enqueue(r *models.Reading) bool {
	if !e.accept {
		return false
	}
	e.readings = append(e.readings, r)
	return true
}

type fakeStore struct {
	readings []*models.Reading
	err      error
}

func (s *fakeStore) Insert(ctx context.Context, r *models.Reading) error { return nil }

func (s *fakeStore) List(ctx context.Context, tag string, limit int) ([]*models.Reading, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.readings, nil
}

func (s *fakeStore) Ping(ctx context.Context) error { return nil }
func (s *fakeStore) Close()                         {}

func upload(h *SensorHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/sensors/upload", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.Upload(w, req)
	return w
}

func TestUploadSuccess(t *testing.T) {
	broadcaster := &fakeBroadcaster{}
	enqueuer := &fakeEnqueuer{accept: true}
	h := NewSensorHandler(broadcaster, enqueuer, nil)

	w := upload(h, `{"tagNumber":"COW1","max30100":{"heartRate":150}}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp["message"] != "Data saved successfully" {
		t.Errorf("unexpected message: %q", resp["message"])
	}

	if len(broadcaster.published) != 1 || broadcaster.published[0] != "COW1" {
		t.Errorf("broadcast not performed: %v", broadcaster.published)
	}

	if len(enqueuer.readings) != 1 {
		t.Fatalf("reading not enqueued")
	}
	if enqueuer.readings[0].Timestamp.IsZero() {
		t.Error("timestamp not defaulted before enqueue")
	}
}

func TestUploadMissingTagNumber(t *testing.T) {
	broadcaster := &fakeBroadcaster{}
	enqueuer := &fakeEnqueuer{accept: true}
	h := NewSensorHandler(broadcaster, enqueuer, nil)

	w := upload(h, `{"max30100":{"heartRate":150}}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	if len(broadcaster.published) != 0 {
		t.Error("invalid reading must not be broadcast")
	}
	if len(enqueuer.readings) != 0 {
		t.Error("invalid reading must not be enqueued")
	}
}

func TestUploadInvalidJSON(t *testing.T) {
	h := NewSensorHandler(&fakeBroadcaster{}, &fakeEnqueuer{accept: true}, nil)

	w := upload(h, `{not json`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestUploadMethodNotAllowed(t *testing.T) {
	h := NewSensorHandler(&fakeBroadcaster{}, &fakeEnqueuer{accept: true}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/sensors/upload", nil)
	w := httptest.NewRecorder()
	h.Upload(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestUploadFullQueueStillAcknowledged(t *testing.T) {
	broadcaster := &fakeBroadcaster{}
	h := NewSensorHandler(broadcaster, &fakeEnqueuer{accept: false}, nil)

	w := upload(h, `{"tagNumber":"COW1"}`)

	// Evaluation is best-effort; the device still gets its acknowledgment
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 despite full queue, got %d", w.Code)
	}
	if len(broadcaster.published) != 1 {
		t.Error("broadcast should happen before enqueue")
	}
}

func TestListReturnsReadings(t *testing.T) {
	store := &fakeStore{readings: []*models.Reading{
		{TagNumber: "COW1", Timestamp: time.Now(), MAX30100: &models.MAX30100{HeartRate: f(150)}},
		{TagNumber: "COW2", Timestamp: time.Now()},
	}}
	h := NewSensorHandler(&fakeBroadcaster{}, &fakeEnqueuer{accept: true}, store)

	req := httptest.NewRequest(http.MethodGet, "/api/sensors/all", nil)
	w := httptest.NewRecorder()
	h.List(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var readings []*models.Reading
	if err := json.Unmarshal(w.Body.Bytes(), &readings); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(readings) != 2 {
		t.Errorf("expected 2 readings, got %d", len(readings))
	}
}

func TestListStorageDisabled(t *testing.T) {
	h := NewSensorHandler(&fakeBroadcaster{}, &fakeEnqueuer{accept: true}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/sensors/all", nil)
	w := httptest.NewRecorder()
	h.List(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestListBadLimit(t *testing.T) {
	h := NewSensorHandler(&fakeBroadcaster{}, &fakeEnqueuer{accept: true}, &fakeStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/sensors/all?limit=abc", nil)
	w := httptest.NewRecorder()
	h.List(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
