package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/UmarSaeed090/sensors-backend/internal/logger"
	"github.com/UmarSaeed090/sensors-backend/internal/metrics"
	"github.com/UmarSaeed090/sensors-backend/internal/models"
)

// Notifier sends alert notifications for a device
type Notifier interface {
	Dispatch(tagNumber string, conditions []string, reading *models.Reading)
}

// pushRequest is the payload the notification collaborator accepts. It looks
// up the registered mobile tokens for the tag and fans out from there.
type pushRequest struct {
	TagNumber string          `json:"tagNumber"`
	Body      string          `json:"body"`
	Data      *models.Reading `json:"data"`
}

// Dispatcher issues one fire-and-forget HTTP call per permitted alert set.
// Failures are logged and swallowed: the dispatcher never retries and never
// propagates errors back to ingestion.
type Dispatcher struct {
	url     string
	client  *http.Client
	timeout time.Duration
	log     zerolog.Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher targeting the collaborator URL.
// An empty URL disables dispatch entirely.
func NewDispatcher(url string, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Dispatcher{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		log:     logger.WithComponent("dispatcher"),
	}
}

// Enabled reports whether a collaborator URL is configured
func (d *Dispatcher) Enabled() bool { return d.url != "" }

// Dispatch sends one notification for the device, asynchronously. The caller
// returns immediately; at most one attempt is made.
func (d *Dispatcher) Dispatch(tagNumber string, conditions []string, reading *models.Reading) {
	if !d.Enabled() || len(conditions) == 0 {
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.send(tagNumber, conditions, reading)
	}()
}

func (d *Dispatcher) send(tagNumber string, conditions []string, reading *models.Reading) {
	payload := pushRequest{
		TagNumber: tagNumber,
		Body:      strings.Join(conditions, ", "),
		Data:      reading,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		d.log.Error().Err(err).Str("tag_number", tagNumber).Msg("failed to serialize notification")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		d.log.Error().Err(err).Str("tag_number", tagNumber).Msg("failed to build notification request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		d.log.Error().Err(err).Str("tag_number", tagNumber).Msg("notification request failed")
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		d.log.Error().
			Int("status", resp.StatusCode).
			Str("tag_number", tagNumber).
			Strs("conditions", conditions).
			Msg("notification collaborator returned non-success status")
		return
	}

	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
	d.log.Info().
		Str("tag_number", tagNumber).
		Strs("conditions", conditions).
		Msg("notification dispatched")
}

// Wait blocks until all in-flight dispatches complete. Used during shutdown
// and in tests; ingestion never calls it.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
