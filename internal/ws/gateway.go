package ws

import (
	"time"

	socketio "github.com/googollee/go-socket.io"
	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/UmarSaeed090/sensors-backend/internal/logger"
	"github.com/UmarSaeed090/sensors-backend/internal/models"
	"github.com/UmarSaeed090/sensors-backend/internal/registry"
)

// Socket.IO event names. Subscribe/unsubscribe match the mobile and web
// clients already in the field; broadcast carries {tagNumber, data}.
const (
	EventSubscribe   = "subscribe-cows"
	EventUnsubscribe = "unsubscribe-cows"
	EventSensorData  = "sensor-data"
)

// Gateway bridges socket.io connections to the subscription registry and
// keeps a short-lived snapshot of the latest reading per tag so a fresh
// subscriber sees data immediately instead of waiting for the next sample.
type Gateway struct {
	registry *registry.Registry
	latest   *gocache.Cache
	log      zerolog.Logger
}

// NewGateway creates a gateway around the given registry
func NewGateway(reg *registry.Registry, snapshotTTL time.Duration) *Gateway {
	if snapshotTTL <= 0 {
		snapshotTTL = 5 * time.Minute
	}

	return &Gateway{
		registry: reg,
		latest:   gocache.New(snapshotTTL, 2*snapshotTTL),
		log:      logger.WithComponent("ws"),
	}
}

// sioConn adapts a socket.io connection to the registry's Conn interface
type sioConn struct {
	s socketio.Conn
}

func (c sioConn) ID() string { return c.s.ID() }

func (c sioConn) Send(event registry.Event) {
	c.s.Emit(EventSensorData, event)
}

// Attach registers the gateway's handlers on the socket.io server
func (g *Gateway) Attach(server *socketio.Server) {
	namespace := "/"

	server.OnConnect(namespace, func(s socketio.Conn) error {
		g.log.Info().Str("conn_id", s.ID()).Msg("client connected")
		return nil
	})

	server.OnEvent(namespace, EventSubscribe, func(s socketio.Conn, ids interface{}) {
		g.handleSubscribe(sioConn{s: s}, ids)
	})

	server.OnEvent(namespace, EventUnsubscribe, func(s socketio.Conn, ids interface{}) {
		tags := normalizeTagIDs(ids)
		if len(tags) == 0 {
			return
		}

		g.registry.Unsubscribe(sioConn{s: s}, tags...)
		g.log.Info().Str("conn_id", s.ID()).Strs("tags", tags).Msg("client unsubscribed")
	})

	server.OnError(namespace, func(s socketio.Conn, err error) {
		g.log.Warn().Str("conn_id", s.ID()).Err(err).Msg("socket error")
		g.registry.OnConnectionClosed(sioConn{s: s})
		s.Close()
	})

	server.OnDisconnect(namespace, func(s socketio.Conn, reason string) {
		g.log.Info().Str("conn_id", s.ID()).Str("reason", reason).Msg("client disconnected")
		g.registry.OnConnectionClosed(sioConn{s: s})
	})
}

// handleSubscribe joins the connection to each requested tag, replaying the
// last cached reading first. The replay is enqueued through the registry
// before the subscription takes effect, so the snapshot can never land
// behind a fresher live event in the connection's queue.
func (g *Gateway) handleSubscribe(conn registry.Conn, ids interface{}) {
	tags := normalizeTagIDs(ids)
	if len(tags) == 0 {
		return
	}

	for _, tag := range tags {
		if cached, ok := g.latest.Get(tag); ok {
			if reading, ok := cached.(*models.Reading); ok {
				g.registry.Replay(conn, registry.Event{TagNumber: tag, Data: reading})
			}
		}
		g.registry.Subscribe(conn, tag)
	}

	g.log.Info().Str("conn_id", conn.ID()).Strs("tags", tags).Msg("client subscribed")
}

// Publish caches the reading as the tag's latest snapshot and fans it out
// to current subscribers.
func (g *Gateway) Publish(tagNumber string, reading *models.Reading) {
	g.latest.SetDefault(tagNumber, reading)
	g.registry.Publish(tagNumber, registry.Event{TagNumber: tagNumber, Data: reading})
}

// normalizeTagIDs accepts the subscribe payload as a single id or a
// collection of ids, mirroring the lenient clients.
func normalizeTagIDs(v interface{}) []string {
	switch ids := v.(type) {
	case string:
		if ids == "" {
			return nil
		}
		return []string{ids}
	case []string:
		out := make([]string, 0, len(ids))
		for _, id := range ids {
			if id != "" {
				out = append(out, id)
			}
		}
		return out
	case []interface{}:
		out := make([]string, 0, len(ids))
		for _, raw := range ids {
			if id, ok := raw.(string); ok && id != "" {
				out = append(out, id)
			}
		}
		return out
	default:
		return nil
	}
}
