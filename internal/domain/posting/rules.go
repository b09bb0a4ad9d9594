package posting

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
)

// CachedRuleSource wraps a ForwardRuleSource with an in-memory TTL cache.
// Forward rules change rarely and are consulted on every payer posting, so
// a short TTL keeps the hot path off the database without making rule edits
// invisible for long.
type CachedRuleSource struct {
	inner ForwardRuleSource
	cache *cache.Cache
}

func NewCachedRuleSource(inner ForwardRuleSource, ttl time.Duration) *CachedRuleSource {
	return &CachedRuleSource{
		inner: inner,
		cache: cache.New(ttl, 2*ttl),
	}
}

func ruleKey(group AdjustmentGroup, reasonCode string) string {
	return fmt.Sprintf("%s:%s", group, reasonCode)
}

func (c *CachedRuleSource) IsForwardable(ctx context.Context, group AdjustmentGroup, reasonCode string) (bool, error) {
	key := ruleKey(group, reasonCode)
	if v, found := c.cache.Get(key); found {
		return v.(bool), nil
	}
	forwardable, err := c.inner.IsForwardable(ctx, group, reasonCode)
	if err != nil {
		return false, err
	}
	c.cache.SetDefault(key, forwardable)
	return forwardable, nil
}

// Invalidate drops all cached rule lookups. Called after a rule upsert.
func (c *CachedRuleSource) Invalidate() {
	c.cache.Flush()
}
