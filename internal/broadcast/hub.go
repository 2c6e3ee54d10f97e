// Package broadcast fans quiz state changes out to live WebSocket subscribers and
// evicts subscribers that stop answering heartbeats. A single goroutine (Run) owns
// the registry; every other method talks to it over channels.
package broadcast

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"timed-quiz-service/internal/domain"
	"timed-quiz-service/internal/metrics"
)

// EventQuizStateUpdate is the only event type pushed to clients.
const EventQuizStateUpdate = "QUIZ_STATE_UPDATE"

const maxMissedProbes = 2

// ErrHubClosed is returned when subscribing after Run has returned.
var ErrHubClosed = errors.New("broadcast hub closed")

// Event is the envelope delivered to every subscriber.
type Event struct {
	Type      string             `json:"type"`
	Payload   domain.QuizSetting `json:"payload"`
	Timestamp time.Time          `json:"timestamp"`
}

// NewStateEvent wraps a settings snapshot in the client envelope.
func NewStateEvent(st domain.QuizSetting, at time.Time) Event {
	return Event{Type: EventQuizStateUpdate, Payload: st, Timestamp: at}
}

// Presence mirrors the registry somewhere observable.
type Presence interface {
	Mark(ctx context.Context, id string) error
	Clear(ctx context.Context, id string) error
}

// Subscriber is one registered connection. Events is closed when the hub drops it.
type Subscriber struct {
	id     string
	events chan Event
	probes chan struct{}

	// owned by the hub goroutine
	lastSeen time.Time
	probedAt time.Time
	missed   int
}

func (s *Subscriber) ID() string { return s.id }

// Events delivers state updates until the subscriber is dropped.
func (s *Subscriber) Events() <-chan Event { return s.events }

// Probes signals that the transport should send a liveness probe now.
func (s *Subscriber) Probes() <-chan struct{} { return s.probes }

type Hub struct {
	interval time.Duration
	timeout  time.Duration
	buffer   int
	now      func() time.Time
	logger   *zap.Logger
	metrics  *metrics.Metrics
	presence Presence

	register   chan *Subscriber
	unregister chan *Subscriber
	publish    chan Event
	touch      chan string
	size       chan chan int
	done       chan struct{}

	subscribers map[string]*Subscriber
}

// Option customises a Hub.
type Option func(*Hub)

// WithHeartbeat sets the probe interval and the silence timeout.
func WithHeartbeat(interval, timeout time.Duration) Option {
	return func(h *Hub) {
		h.interval = interval
		h.timeout = timeout
	}
}

func WithClock(now func() time.Time) Option { return func(h *Hub) { h.now = now } }

func WithLogger(l *zap.Logger) Option { return func(h *Hub) { h.logger = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(h *Hub) { h.metrics = m } }

func WithPresence(p Presence) Option { return func(h *Hub) { h.presence = p } }

// WithBuffer sets how many undelivered events a subscriber may hold before the oldest is dropped.
func WithBuffer(n int) Option { return func(h *Hub) { h.buffer = n } }

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		interval:    30 * time.Second,
		timeout:     65 * time.Second,
		buffer:      8,
		now:         time.Now,
		logger:      zap.NewNop(),
		register:    make(chan *Subscriber),
		unregister:  make(chan *Subscriber),
		publish:     make(chan Event, 16),
		touch:       make(chan string, 64),
		size:        make(chan chan int),
		done:        make(chan struct{}),
		subscribers: make(map[string]*Subscriber),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.interval <= 0 {
		h.interval = 30 * time.Second
	}
	if h.timeout < h.interval {
		h.timeout = 2 * h.interval
	}
	if h.buffer < 1 {
		h.buffer = 1
	}
	return h
}

// Run owns the registry until ctx is cancelled, then drops every subscriber.
func (h *Hub) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for _, s := range h.subscribers {
				h.drop(s, "shutdown")
			}
			return nil
		case s := <-h.register:
			h.add(s)
		case s := <-h.unregister:
			h.drop(s, "closed")
		case ev := <-h.publish:
			h.deliver(ev)
		case id := <-h.touch:
			h.markAlive(id)
		case reply := <-h.size:
			reply <- len(h.subscribers)
		case <-ticker.C:
			h.sweep(h.now())
		}
	}
}

// Subscribe registers a new subscriber.
func (h *Hub) Subscribe(ctx context.Context) (*Subscriber, error) {
	s := &Subscriber{
		id:     uuid.NewString(),
		events: make(chan Event, h.buffer),
		probes: make(chan struct{}, 1),
	}
	select {
	case h.register <- s:
		return s, nil
	case <-h.done:
		return nil, ErrHubClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Unsubscribe drops s. It is a no-op if s was already evicted.
func (h *Hub) Unsubscribe(s *Subscriber) {
	select {
	case h.unregister <- s:
	case <-h.done:
	}
}

// Touch records that subscriber id answered a probe or sent any message.
func (h *Hub) Touch(id string) {
	select {
	case h.touch <- id:
	case <-h.done:
	}
}

// PublishSettings queues a state update for every current subscriber.
func (h *Hub) PublishSettings(ctx context.Context, st domain.QuizSetting) {
	ev := NewStateEvent(st, h.now())
	select {
	case h.publish <- ev:
	case <-h.done:
	case <-ctx.Done():
		h.logger.Warn("state broadcast abandoned", zap.Error(ctx.Err()))
	}
}

// Len reports the number of registered subscribers.
func (h *Hub) Len() int {
	reply := make(chan int, 1)
	select {
	case h.size <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

func (h *Hub) add(s *Subscriber) {
	s.lastSeen = h.now()
	h.subscribers[s.id] = s
	h.presenceMark(s.id)
	h.metrics.SetConnections(len(h.subscribers))
	h.logger.Debug("subscriber registered", zap.String("subscriber", s.id), zap.Int("total", len(h.subscribers)))
}

func (h *Hub) drop(s *Subscriber, reason string) {
	if _, ok := h.subscribers[s.id]; !ok {
		return
	}
	delete(h.subscribers, s.id)
	close(s.events)
	h.presenceClear(s.id)
	h.metrics.SetConnections(len(h.subscribers))
	h.logger.Debug("subscriber dropped",
		zap.String("subscriber", s.id),
		zap.String("reason", reason),
		zap.Int("total", len(h.subscribers)),
	)
}

func (h *Hub) deliver(ev Event) {
	for _, s := range h.subscribers {
		select {
		case s.events <- ev:
		default:
			// slow subscriber: drop its oldest pending update so the latest state wins
			select {
			case <-s.events:
			default:
			}
			s.events <- ev
		}
	}
	h.metrics.Broadcast()
	h.logger.Info("quiz state broadcast",
		zap.String("state", string(ev.Payload.State)),
		zap.Int("subscribers", len(h.subscribers)),
	)
}

func (h *Hub) markAlive(id string) {
	s, ok := h.subscribers[id]
	if !ok {
		return
	}
	s.lastSeen = h.now()
	s.missed = 0
	h.presenceMark(id)
}

// sweep runs one heartbeat round. A subscriber silent since the previous probe is
// suspect; a second silent round, or silence past the timeout, evicts it.
func (h *Hub) sweep(now time.Time) {
	for _, s := range h.subscribers {
		if !s.probedAt.IsZero() && s.lastSeen.Before(s.probedAt) {
			s.missed++
			if s.missed == 1 {
				h.logger.Info("subscriber missed heartbeat", zap.String("subscriber", s.id))
			}
		}
		if s.missed >= maxMissedProbes || now.Sub(s.lastSeen) > h.timeout {
			h.metrics.Evicted()
			h.drop(s, "heartbeat")
			continue
		}
		s.probedAt = now
		select {
		case s.probes <- struct{}{}:
		default:
		}
	}
}

func (h *Hub) presenceMark(id string) {
	if h.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.presence.Mark(ctx, id); err != nil {
		h.logger.Warn("presence mark failed", zap.String("subscriber", id), zap.Error(err))
	}
}

func (h *Hub) presenceClear(id string) {
	if h.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.presence.Clear(ctx, id); err != nil {
		h.logger.Warn("presence clear failed", zap.String("subscriber", id), zap.Error(err))
	}
}
