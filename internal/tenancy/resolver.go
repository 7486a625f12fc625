package tenancy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"

	"github.com/groundwork-cm/groundwork-backend/internal/logging"
)

const (
	slugKeyPrefix = "gw:tenant:slug:"
	idKeyPrefix   = "gw:tenant:id:"

	// invalidateChannel carries cache keys every API instance must drop.
	invalidateChannel = "gw:tenant:invalidate"
)

type lookup interface {
	GetByID(ctx context.Context, id string) (*Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*Tenant, error)
}

// Resolver finds tenants through an in-process LRU, then Redis, then Postgres.
// Redis is optional.
type Resolver struct {
	store lookup
	local *expirable.LRU[string, Tenant]
	redis *redis.Client
	ttl   time.Duration
}

func NewResolver(store lookup, client *redis.Client, size int, ttl time.Duration) *Resolver {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Resolver{
		store: store,
		local: expirable.NewLRU[string, Tenant](size, nil, ttl),
		redis: client,
		ttl:   ttl,
	}
}

// Resolve accepts a tenant id or slug.
func (r *Resolver) Resolve(ctx context.Context, ref string) (*Tenant, error) {
	key := cacheKey(ref)

	if t, ok := r.local.Get(key); ok {
		return &t, nil
	}

	if t, ok := r.fromRedis(ctx, key); ok {
		r.local.Add(key, *t)
		return t, nil
	}

	var (
		t   *Tenant
		err error
	)
	if _, perr := uuid.Parse(ref); perr == nil {
		t, err = r.store.GetByID(ctx, ref)
	} else {
		t, err = r.store.GetBySlug(ctx, normalizeSlug(ref))
	}
	if err != nil {
		return nil, err
	}

	r.remember(ctx, t)
	return t, nil
}

// Invalidate drops both cache entries of t from every layer and tells the
// other instances to drop their local copies.
func (r *Resolver) Invalidate(ctx context.Context, t *Tenant) {
	keys := []string{idKeyPrefix + t.ID, slugKeyPrefix + t.Slug}
	for _, k := range keys {
		r.local.Remove(k)
	}
	if r.redis == nil {
		return
	}
	if err := r.redis.Del(ctx, keys...).Err(); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("invalidate tenant cache")
	}
	data, _ := json.Marshal(keys)
	if err := r.redis.Publish(ctx, invalidateChannel, data).Err(); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("broadcast tenant invalidation")
	}
}

// Listen drops local entries named on the invalidation channel until ctx is
// done. It returns at once when Redis is not configured.
func (r *Resolver) Listen(ctx context.Context) error {
	if r.redis == nil {
		return nil
	}
	sub := r.redis.Subscribe(ctx, invalidateChannel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", invalidateChannel, err)
	}

	log := logging.FromContext(ctx)
	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var keys []string
			if err := json.Unmarshal([]byte(msg.Payload), &keys); err != nil {
				log.WithError(err).Warn("bad tenant invalidation message")
				continue
			}
			for _, k := range keys {
				r.local.Remove(k)
			}
		}
	}
}

func (r *Resolver) remember(ctx context.Context, t *Tenant) {
	idKey, slugKey := idKeyPrefix+t.ID, slugKeyPrefix+t.Slug
	r.local.Add(idKey, *t)
	r.local.Add(slugKey, *t)

	if r.redis == nil {
		return
	}
	data, err := json.Marshal(t)
	if err != nil {
		return
	}
	pipe := r.redis.Pipeline()
	pipe.Set(ctx, idKey, data, r.ttl)
	pipe.Set(ctx, slugKey, data, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("cache tenant")
	}
}

func (r *Resolver) fromRedis(ctx context.Context, key string) (*Tenant, bool) {
	if r.redis == nil {
		return nil, false
	}
	data, err := r.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logging.FromContext(ctx).WithError(err).Warn("read tenant cache")
		}
		return nil, false
	}
	var t Tenant
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, false
	}
	return &t, true
}

func cacheKey(ref string) string {
	if _, err := uuid.Parse(ref); err == nil {
		return idKeyPrefix + ref
	}
	return slugKeyPrefix + normalizeSlug(ref)
}
