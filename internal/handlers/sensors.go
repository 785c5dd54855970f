package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/UmarSaeed090/sensors-backend/internal/logger"
	"github.com/UmarSaeed090/sensors-backend/internal/metrics"
	"github.com/UmarSaeed090/sensors-backend/internal/models"
	"github.com/UmarSaeed090/sensors-backend/internal/storage"
)

// Broadcaster relays a reading to every live subscriber of its device
type Broadcaster interface {
	Publish(tagNumber string, reading *models.Reading)
}

// Enqueuer accepts a reading for asynchronous threshold evaluation
type Enqueuer interface {
	Enqueue(reading *models.Reading) bool
}

const (
	defaultListLimit = 100
	maxListLimit     = 1000
	maxBodySize      = 1 << 20 // 1MB; readings are small
)

// SensorHandler serves the ingestion and history endpoints
type SensorHandler struct {
	broadcaster Broadcaster
	pipeline    Enqueuer
	store       storage.ReadingStore // nil when persistence is disabled
	log         zerolog.Logger
}

// NewSensorHandler creates the sensor endpoints handler
func NewSensorHandler(broadcaster Broadcaster, pipeline Enqueuer, store storage.ReadingStore) *SensorHandler {
	return &SensorHandler{
		broadcaster: broadcaster,
		pipeline:    pipeline,
		store:       store,
		log:         logger.WithComponent("handlers"),
	}
}

// Upload handles POST /api/sensors/upload.
//
// The reading is broadcast to live subscribers and acknowledged with 201
// before any threshold evaluation or persistence happens; those run in the
// background and their failures never reach the device.
func (h *SensorHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var reading models.Reading
	if err := json.NewDecoder(r.Body).Decode(&reading); err != nil {
		metrics.ReadingsTotal.WithLabelValues("rejected").Inc()
		h.writeMessage(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	reading.Normalize()

	if err := reading.Validate(); err != nil {
		metrics.ReadingsTotal.WithLabelValues("rejected").Inc()
		h.writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	// Broadcast first so dashboards see the reading with minimal latency
	h.broadcaster.Publish(reading.TagNumber, &reading)

	if !h.pipeline.Enqueue(&reading) {
		h.log.Warn().
			Str("tag_number", reading.TagNumber).
			Msg("evaluation queue full, reading dropped from alerting")
	}

	metrics.ReadingsTotal.WithLabelValues("accepted").Inc()
	h.writeMessage(w, http.StatusCreated, "Data saved successfully")
}

// List handles GET /api/sensors/all, newest readings first
func (h *SensorHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if h.store == nil {
		h.writeMessage(w, http.StatusServiceUnavailable, "storage is disabled")
		return
	}

	tag := r.URL.Query().Get("tag")
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeMessage(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n > maxListLimit {
			n = maxListLimit
		}
		limit = n
	}

	readings, err := h.store.List(r.Context(), tag, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list readings")
		h.writeMessage(w, http.StatusInternalServerError, "Error fetching data")
		return
	}

	if readings == nil {
		readings = []*models.Reading{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(readings)
}

func (h *SensorHandler) writeMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}
