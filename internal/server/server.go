package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	socketio "github.com/googollee/go-socket.io"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/UmarSaeed090/sensors-backend/internal/alerts"
	"github.com/UmarSaeed090/sensors-backend/internal/config"
	"github.com/UmarSaeed090/sensors-backend/internal/handlers"
	"github.com/UmarSaeed090/sensors-backend/internal/kafka"
	"github.com/UmarSaeed090/sensors-backend/internal/logger"
	"github.com/UmarSaeed090/sensors-backend/internal/middleware"
	"github.com/UmarSaeed090/sensors-backend/internal/notify"
	"github.com/UmarSaeed090/sensors-backend/internal/pipeline"
	"github.com/UmarSaeed090/sensors-backend/internal/registry"
	"github.com/UmarSaeed090/sensors-backend/internal/storage"
	"github.com/UmarSaeed090/sensors-backend/internal/ws"
)

// Server is the high-level coordinator: it owns the HTTP and socket.io
// servers, the subscription registry, the evaluation pipeline, and their
// collaborators, and runs them until the context is cancelled.
type Server struct {
	cfg *config.Config

	store      storage.ReadingStore
	cooldown   alerts.CooldownTracker
	dispatcher *notify.Dispatcher
	exporter   *kafka.Producer
	registry   *registry.Registry
	gateway    *ws.Gateway
	pipeline   *pipeline.Pipeline
	sioServer  *socketio.Server
	httpServer *http.Server

	wg sync.WaitGroup
}

// New constructs a Server with the given config
func New(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

// Run starts all components and blocks until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	log := logger.WithComponent("server")
	log.Info().Msg("server starting")

	if err := s.initStore(ctx); err != nil {
		return err
	}
	if s.store != nil {
		defer s.store.Close()
	}

	if err := s.initCooldown(); err != nil {
		return err
	}
	defer s.cooldown.Close()

	s.dispatcher = notify.NewDispatcher(s.cfg.Notification.URL, s.cfg.Notification.Timeout)
	if !s.dispatcher.Enabled() {
		log.Warn().Msg("notification url not configured, alert dispatch disabled")
	}

	if err := s.initExporter(); err != nil {
		return err
	}

	s.initPipeline()
	s.pipeline.Start()

	if err := s.initSocketIO(); err != nil {
		return fmt.Errorf("failed to initialize socket.io server: %w", err)
	}

	s.initHTTPServer()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.Info().Str("addr", s.cfg.Server.Addr).Msg("starting HTTP server")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.reportStats(ctx)
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	return s.shutdown()
}

func (s *Server) initStore(ctx context.Context) error {
	log := logger.WithComponent("server")

	if !s.cfg.Database.Enabled {
		log.Warn().Msg("database disabled, readings will not be persisted")
		return nil
	}

	store, err := storage.NewPostgres(ctx, s.cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize reading store: %w", err)
	}

	s.store = store
	return nil
}

func (s *Server) initCooldown() error {
	log := logger.WithComponent("server")

	if s.cfg.Redis.Addr == "" {
		s.cooldown = alerts.NewMemoryCooldown(s.cfg.Alerts.CooldownWindow)
		log.Info().Dur("window", s.cfg.Alerts.CooldownWindow).Msg("using in-memory cooldown tracker")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     s.cfg.Redis.Addr,
		Password: s.cfg.Redis.Password,
		DB:       s.cfg.Redis.DB,
	})

	cooldown, err := alerts.NewRedisCooldown(client, s.cfg.Alerts.CooldownWindow)
	if err != nil {
		return fmt.Errorf("failed to initialize redis cooldown tracker: %w", err)
	}

	s.cooldown = cooldown
	log.Info().
		Str("addr", s.cfg.Redis.Addr).
		Dur("window", s.cfg.Alerts.CooldownWindow).
		Msg("using redis cooldown tracker")
	return nil
}

func (s *Server) initExporter() error {
	log := logger.WithComponent("server")

	if len(s.cfg.Kafka.Brokers) == 0 {
		log.Info().Msg("kafka brokers not configured, alert export disabled")
		return nil
	}

	producer, err := kafka.NewProducer(s.cfg.Kafka)
	if err != nil {
		return fmt.Errorf("failed to initialize alert exporter: %w", err)
	}

	s.exporter = producer
	log.Info().
		Strs("brokers", s.cfg.Kafka.Brokers).
		Str("topic", s.cfg.Kafka.Topic).
		Msg("alert exporter initialized")
	return nil
}

func (s *Server) initPipeline() {
	// kafka.AlertPublisher is an interface; a nil *Producer must stay a nil
	// interface value inside the pipeline
	var exporter kafka.AlertPublisher
	if s.exporter != nil {
		exporter = s.exporter
	}

	s.pipeline = pipeline.New(pipeline.Config{
		Evaluator: alerts.NewEvaluator(s.cfg.Alerts.Thresholds),
		Cooldown:  s.cooldown,
		Store:     s.store,
		Notifier:  s.dispatcher,
		Exporter:  exporter,
		QueueSize: s.cfg.Alerts.QueueSize,
		Workers:   s.cfg.Alerts.Workers,
	})
}

func (s *Server) initSocketIO() error {
	log := logger.WithComponent("server")

	sioServer, err := socketio.NewServer(nil)
	if err != nil {
		return err
	}

	s.registry = registry.New(registry.Config{})
	s.gateway = ws.NewGateway(s.registry, s.cfg.Alerts.SnapshotTTL)
	s.gateway.Attach(sioServer)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := sioServer.Serve(); err != nil {
			log.Error().Err(err).Msg("socket.io server error")
		}
	}()

	s.sioServer = sioServer
	return nil
}

func (s *Server) initHTTPServer() {
	mux := http.NewServeMux()

	sensorHandler := handlers.NewSensorHandler(s.gateway, s.pipeline, s.store)

	mux.Handle("/api/sensors/upload", middleware.Chain(
		http.HandlerFunc(sensorHandler.Upload),
		middleware.CORS,
		middleware.Recovery,
		middleware.Logging,
	))
	mux.Handle("/api/sensors/all", middleware.Chain(
		http.HandlerFunc(sensorHandler.List),
		middleware.CORS,
		middleware.Recovery,
		middleware.Logging,
	))

	mux.Handle("/socket.io/", middleware.CORS(s.sioServer))

	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/stats", s.statsHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/", s.rootHandler)

	s.httpServer = &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
}

func (s *Server) shutdown() error {
	log := logger.WithComponent("server")
	log.Info().Msg("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Info().Msg("stopping HTTP server")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	done := make(chan struct{})
	go func() {
		s.pipeline.Stop()
		s.dispatcher.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("pipeline drained")
	case <-time.After(15 * time.Second):
		log.Warn().Msg("pipeline shutdown timeout - forcing exit")
	}

	if s.exporter != nil {
		log.Info().Msg("closing alert exporter")
		if err := s.exporter.Close(); err != nil {
			log.Error().Err(err).Msg("exporter close error")
		}
	}

	log.Info().Msg("closing socket.io server")
	if err := s.sioServer.Close(); err != nil {
		log.Error().Err(err).Msg("socket.io server close error")
	}

	s.wg.Wait()

	log.Info().Msg("server stopped gracefully")
	return nil
}

func (s *Server) reportStats(ctx context.Context) {
	log := logger.WithComponent("server")
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pipelineStats := s.pipeline.Stats()
			registryStats := s.registry.Stats()

			log.Info().
				Uint64("readings_processed", pipelineStats.Processed).
				Uint64("alerts_dispatched", pipelineStats.Alerted).
				Int("queue_size", pipelineStats.Queued).
				Int("subscribers", registryStats.Subscribers).
				Int("topics", registryStats.Topics).
				Msg("stats")
		}
	}
}

func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "Sensor backend is running!")
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.store != nil {
		if err := s.store.Ping(ctx); err != nil {
			http.Error(w, fmt.Sprintf("unhealthy: %v", err), http.StatusServiceUnavailable)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	stats := struct {
		Pipeline pipeline.Stats `json:"pipeline"`
		Registry registry.Stats `json:"registry"`
		Exporter *kafka.Stats   `json:"exporter,omitempty"`
	}{
		Pipeline: s.pipeline.Stats(),
		Registry: s.registry.Stats(),
	}

	if s.exporter != nil {
		exporterStats := s.exporter.Stats()
		stats.Exporter = &exporterStats
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(stats)
}
