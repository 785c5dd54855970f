package pipeline

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/UmarSaeed090/sensors-backend/internal/alerts"
	"github.com/UmarSaeed090/sensors-backend/internal/kafka"
	"github.com/UmarSaeed090/sensors-backend/internal/logger"
	"github.com/UmarSaeed090/sensors-backend/internal/metrics"
	"github.com/UmarSaeed090/sensors-backend/internal/models"
	"github.com/UmarSaeed090/sensors-backend/internal/notify"
	"github.com/UmarSaeed090/sensors-backend/internal/storage"
)

// Pipeline runs threshold evaluation, conditional persistence, cooldown
// filtering, and notification dispatch for readings that have already been
// broadcast and acknowledged. Everything here happens after the HTTP
// response: failures are logged, never surfaced to the device.
type Pipeline struct {
	readings  chan *models.Reading
	evaluator *alerts.Evaluator
	cooldown  alerts.CooldownTracker
	store     storage.ReadingStore // nil when persistence is disabled
	notifier  notify.Notifier
	exporter  kafka.AlertPublisher // nil when export is disabled
	workers   int

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	processed atomic.Uint64
	alerted   atomic.Uint64
}

// Config holds pipeline wiring
type Config struct {
	Evaluator *alerts.Evaluator
	Cooldown  alerts.CooldownTracker
	Store     storage.ReadingStore
	Notifier  notify.Notifier
	Exporter  kafka.AlertPublisher
	QueueSize int
	Workers   int
}

// New creates a pipeline with the given collaborators
func New(cfg Config) *Pipeline {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}

	ctx, cancel := context.WithCancel(context.Background())

	metrics.PipelineQueueCapacity.Set(float64(cfg.QueueSize))

	return &Pipeline{
		readings:  make(chan *models.Reading, cfg.QueueSize),
		evaluator: cfg.Evaluator,
		cooldown:  cfg.Cooldown,
		store:     cfg.Store,
		notifier:  cfg.Notifier,
		exporter:  cfg.Exporter,
		workers:   cfg.Workers,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the worker goroutines
func (p *Pipeline) Start() {
	log := logger.WithComponent("pipeline")
	log.Info().Int("workers", p.workers).Int("queue_size", cap(p.readings)).Msg("starting pipeline")

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop drains in-flight work and stops all workers
func (p *Pipeline) Stop() {
	log := logger.WithComponent("pipeline")
	log.Info().Msg("stopping pipeline")
	p.cancel()
	p.wg.Wait()
	log.Info().Msg("pipeline stopped")
}

// Enqueue hands a reading to the workers without blocking. Returns false if
// the queue is full; the reading is then dropped from alerting (the caller
// already broadcast and acknowledged it).
func (p *Pipeline) Enqueue(r *models.Reading) bool {
	select {
	case p.readings <- r:
		metrics.PipelineQueueSize.Set(float64(len(p.readings)))
		return true
	default:
		metrics.ReadingsTotal.WithLabelValues("dropped").Inc()
		return false
	}
}

func (p *Pipeline) worker(id int) {
	defer p.wg.Done()

	log := logger.WithComponent("pipeline").With().Int("worker_id", id).Logger()

	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			log.Error().
				Interface("panic", r).
				Bytes("stack", stack).
				Msg("worker panic recovered")
			metrics.PanicsRecovered.WithLabelValues("pipeline").Inc()
		}
	}()

	for {
		select {
		case <-p.ctx.Done():
			// Drain whatever is already queued before exiting
			for {
				select {
				case r := <-p.readings:
					p.process(r)
				default:
					return
				}
			}

		case r := <-p.readings:
			p.process(r)
			metrics.PipelineQueueSize.Set(float64(len(p.readings)))
		}
	}
}

// process evaluates one reading. Persistence happens only when at least one
// condition triggered; notification only for conditions the cooldown permits.
func (p *Pipeline) process(r *models.Reading) {
	p.processed.Add(1)

	conditions := p.evaluator.Evaluate(r)
	if len(conditions) == 0 {
		return
	}

	log := logger.WithTag(r.TagNumber)
	for _, c := range conditions {
		metrics.AlertsTriggeredTotal.WithLabelValues(c).Inc()
	}
	log.Info().Strs("conditions", conditions).Msg("thresholds breached")

	p.persist(r)

	now := time.Now()
	permitted := conditions[:0:len(conditions)]
	for _, c := range conditions {
		if p.cooldown.Allow(r.TagNumber, c, now) {
			permitted = append(permitted, c)
		} else {
			metrics.AlertsSuppressedTotal.WithLabelValues(c).Inc()
			log.Debug().Str("condition", c).Msg("alert suppressed by cooldown")
		}
	}

	if len(permitted) == 0 {
		return
	}

	p.alerted.Add(1)
	p.notifier.Dispatch(r.TagNumber, permitted, r)
	p.export(r, permitted)
}

func (p *Pipeline) persist(r *models.Reading) {
	if p.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.store.Insert(ctx, r); err != nil {
		metrics.ReadingsPersistedTotal.WithLabelValues("failed").Inc()
		log := logger.WithTag(r.TagNumber)
		log.Error().Err(err).Msg("failed to persist reading")
		return
	}

	metrics.ReadingsPersistedTotal.WithLabelValues("success").Inc()
}

func (p *Pipeline) export(r *models.Reading, conditions []string) {
	if p.exporter == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	event := models.NewAlertEvent(r.TagNumber, conditions, r)
	if err := p.exporter.PublishAlert(ctx, event); err != nil {
		log := logger.WithTag(r.TagNumber)
		log.Error().Err(err).Msg("failed to export alert event")
	}
}

// Stats returns pipeline counters
func (p *Pipeline) Stats() Stats {
	return Stats{
		Processed: p.processed.Load(),
		Alerted:   p.alerted.Load(),
		Queued:    len(p.readings),
		Capacity:  cap(p.readings),
	}
}

// Stats holds pipeline counters
type Stats struct {
	Processed uint64 `json:"processed"`
	Alerted   uint64 `json:"alerted"`
	Queued    int    `json:"queued"`
	Capacity  int    `json:"capacity"`
}
