package registry

import (
	"hash/fnv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/UmarSaeed090/sensors-backend/internal/logger"
	"github.com/UmarSaeed090/sensors-backend/internal/metrics"
	"github.com/UmarSaeed090/sensors-backend/internal/models"
)

// Conn is a live client connection capable of receiving broadcast events.
// Implementations must tolerate Send being called from a single dedicated
// goroutine per connection.
type Conn interface {
	ID() string
	Send(event Event)
}

// Event is the payload pushed to subscribers of a device
type Event struct {
	TagNumber string          `json:"tagNumber"`
	Data      *models.Reading `json:"data"`
}

const registryShards = 32

// Config holds registry tuning knobs
type Config struct {
	// QueueSize is the per-subscriber outbound buffer. When a subscriber
	// falls this far behind, further events to it are dropped.
	QueueSize int
}

// Registry maintains the device -> subscriber mapping and performs fan-out.
//
// The device map is sharded so publishes for unrelated devices never contend.
// Each subscriber owns a buffered queue drained by a single writer goroutine,
// which preserves per-device publish order for that subscriber while keeping
// Publish non-blocking: a slow or gone receiver costs the publisher nothing.
type Registry struct {
	shards    [registryShards]*shard
	mu        sync.RWMutex
	subs      map[string]*subscriber
	queueSize int
	log       zerolog.Logger
}

type shard struct {
	mu   sync.RWMutex
	tags map[string]map[string]*subscriber // tagNumber -> connID -> subscriber
}

type subscriber struct {
	conn  Conn
	queue chan Event
	done  chan struct{}
	once  sync.Once

	mu   sync.Mutex
	tags map[string]struct{}
}

// New creates an empty registry
func New(cfg Config) *Registry {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}

	r := &Registry{
		subs:      make(map[string]*subscriber),
		queueSize: cfg.QueueSize,
		log:       logger.WithComponent("registry"),
	}
	for i := range r.shards {
		r.shards[i] = &shard{tags: make(map[string]map[string]*subscriber)}
	}
	return r
}

func (r *Registry) shard(tagNumber string) *shard {
	h := fnv.New32a()
	h.Write([]byte(tagNumber))
	return r.shards[h.Sum32()%registryShards]
}

// getOrCreate returns the subscriber for conn, starting its writer on first use
func (r *Registry) getOrCreate(conn Conn) *subscriber {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sub, ok := r.subs[conn.ID()]; ok {
		return sub
	}

	sub := &subscriber{
		conn:  conn,
		queue: make(chan Event, r.queueSize),
		done:  make(chan struct{}),
		tags:  make(map[string]struct{}),
	}
	r.subs[conn.ID()] = sub
	metrics.ActiveSubscribers.Inc()

	go sub.writeLoop()

	return sub
}

// Subscribe registers the connection for one or more device tags.
// Already-subscribed pairs are no-ops; empty tags are ignored.
func (r *Registry) Subscribe(conn Conn, tagNumbers ...string) {
	sub := r.getOrCreate(conn)

	for _, tag := range tagNumbers {
		if tag == "" {
			continue
		}

		sh := r.shard(tag)
		sh.mu.Lock()
		set, ok := sh.tags[tag]
		if !ok {
			set = make(map[string]*subscriber)
			sh.tags[tag] = set
		}
		set[conn.ID()] = sub
		sh.mu.Unlock()

		sub.mu.Lock()
		sub.tags[tag] = struct{}{}
		sub.mu.Unlock()

		r.log.Debug().Str("conn_id", conn.ID()).Str("tag_number", tag).Msg("subscribed")
	}
}

// Unsubscribe removes the connection from one or more device tags.
// Unknown pairs are no-ops.
func (r *Registry) Unsubscribe(conn Conn, tagNumbers ...string) {
	r.mu.RLock()
	sub, ok := r.subs[conn.ID()]
	r.mu.RUnlock()
	if !ok {
		return
	}

	for _, tag := range tagNumbers {
		if tag == "" {
			continue
		}

		r.removeFromShard(tag, conn.ID())

		sub.mu.Lock()
		delete(sub.tags, tag)
		sub.mu.Unlock()

		r.log.Debug().Str("conn_id", conn.ID()).Str("tag_number", tag).Msg("unsubscribed")
	}
}

func (r *Registry) removeFromShard(tag, connID string) {
	sh := r.shard(tag)
	sh.mu.Lock()
	if set, ok := sh.tags[tag]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(sh.tags, tag)
		}
	}
	sh.mu.Unlock()
}

// OnConnectionClosed removes the connection from every device's subscriber
// set and stops its writer. Safe to call more than once.
func (r *Registry) OnConnectionClosed(conn Conn) {
	r.mu.Lock()
	sub, ok := r.subs[conn.ID()]
	if ok {
		delete(r.subs, conn.ID())
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	sub.mu.Lock()
	tags := make([]string, 0, len(sub.tags))
	for tag := range sub.tags {
		tags = append(tags, tag)
	}
	sub.tags = make(map[string]struct{})
	sub.mu.Unlock()

	for _, tag := range tags {
		r.removeFromShard(tag, conn.ID())
	}

	sub.close()
	metrics.ActiveSubscribers.Dec()

	r.log.Debug().Str("conn_id", conn.ID()).Int("tags", len(tags)).Msg("connection closed")
}

// Publish delivers the event to every current subscriber of the device.
// Unknown devices simply have zero subscribers. Delivery is best-effort:
// events to a subscriber with a full queue are dropped.
func (r *Registry) Publish(tagNumber string, event Event) {
	sh := r.shard(tagNumber)

	sh.mu.RLock()
	set := sh.tags[tagNumber]
	targets := make([]*subscriber, 0, len(set))
	for _, sub := range set {
		targets = append(targets, sub)
	}
	sh.mu.RUnlock()

	for _, sub := range targets {
		r.send(sub, event)
	}
}

// Replay enqueues an event to a single connection's outbound queue, creating
// the subscriber on first use. It goes through the same writer goroutine as
// Publish, so a replayed event and later live events reach the connection in
// enqueue order; a full queue drops it like any other event.
func (r *Registry) Replay(conn Conn, event Event) {
	r.send(r.getOrCreate(conn), event)
}

func (r *Registry) send(sub *subscriber, event Event) {
	select {
	case <-sub.done:
	case sub.queue <- event:
		metrics.BroadcastsTotal.Inc()
	default:
		metrics.BroadcastsDroppedTotal.Inc()
		r.log.Warn().
			Str("conn_id", sub.conn.ID()).
			Str("tag_number", event.TagNumber).
			Msg("subscriber queue full, event dropped")
	}
}

// Stats returns current subscriber and topic counts
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	subs := len(r.subs)
	r.mu.RUnlock()

	topics := 0
	for _, sh := range r.shards {
		sh.mu.RLock()
		topics += len(sh.tags)
		sh.mu.RUnlock()
	}

	return Stats{Subscribers: subs, Topics: topics}
}

// Stats holds registry counters
type Stats struct {
	Subscribers int `json:"subscribers"`
	Topics      int `json:"topics"`
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.done) })
}

// writeLoop drains the subscriber queue in order. It stops delivering as
// soon as the connection is closed, even if events remain queued.
func (s *subscriber) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		default:
		}

		select {
		case <-s.done:
			return
		case event := <-s.queue:
			s.conn.Send(event)
		}
	}
}
