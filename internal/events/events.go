// Package events publishes workflow transitions to a per-tenant Redis channel.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/groundwork-cm/groundwork-backend/internal/logging"
)

const channelPrefix = "gw:tenant:"

var transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "workflow_transitions_total",
	Help: "Workflow transitions published, by entity and transition.",
}, []string{"entity", "transition"})

func init() {
	prometheus.MustRegister(transitions)
}

// Event is the JSON payload on the tenant channel.
type Event struct {
	Type       string         `json:"type"`
	TenantID   string         `json:"tenant_id"`
	EntityID   string         `json:"entity_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

// Publisher is what services depend on.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Channel returns the pub/sub channel for a tenant.
func Channel(tenantID string) string {
	return fmt.Sprintf("%s%s:events", channelPrefix, tenantID)
}

// RedisPublisher publishes to Redis. A nil client turns it into a no-op.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Publish never fails the caller; errors are logged.
func (p *RedisPublisher) Publish(ctx context.Context, e Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	countTransition(e.Type)

	if p == nil || p.client == nil {
		return
	}

	data, err := json.Marshal(e)
	if err != nil {
		logging.FromContext(ctx).WithError(err).Warn("marshal event")
		return
	}
	if err := p.client.Publish(ctx, Channel(e.TenantID), data).Err(); err != nil {
		logging.FromContext(ctx).WithError(err).WithField("event", e.Type).Warn("publish event")
	}
}

func countTransition(eventType string) {
	entity, transition, ok := strings.Cut(eventType, ".")
	if !ok {
		entity, transition = eventType, ""
	}
	transitions.WithLabelValues(entity, transition).Inc()
}

// Recorder keeps events in memory. Used by tests and the seed command.
type Recorder struct {
	mu     sync.Mutex
	Events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, e)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.Type
	}
	return out
}
