package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// DecisionCache is a Redis-backed cache of check results. Grants and
// memberships change rarely relative to check volume, so a short TTL
// keeps staleness bounded while absorbing the hot path.
type DecisionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDecisionCache creates a decision cache with the given TTL. A zero
// TTL defaults to one minute.
func NewDecisionCache(client *redis.Client, ttl time.Duration) *DecisionCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &DecisionCache{client: client, ttl: ttl}
}

// Get returns a cached decision, if present. Cache errors read as misses.
func (dc *DecisionCache) Get(ctx context.Context, sub Subject, in CheckInput) (Decision, bool) {
	data, err := dc.client.Get(ctx, decisionKey(sub, in)).Result()
	if err != nil {
		return Decision{}, false
	}
	var d Decision
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		dc.client.Del(ctx, decisionKey(sub, in))
		return Decision{}, false
	}
	return d, true
}

// Put stores a decision. Failures are ignored; the cache is best-effort.
func (dc *DecisionCache) Put(ctx context.Context, sub Subject, in CheckInput, d Decision) {
	data, err := json.Marshal(d)
	if err != nil {
		return
	}
	dc.client.Set(ctx, decisionKey(sub, in), data, dc.ttl)
}

// InvalidateUser drops every cached decision for the user. Called when
// the user's grants, memberships or role change.
func (dc *DecisionCache) InvalidateUser(ctx context.Context, userID string) error {
	pattern := fmt.Sprintf("authz:decision:%s:*", userID)
	var cursor uint64
	for {
		keys, next, err := dc.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("scanning decision cache: %w", err)
		}
		if len(keys) > 0 {
			if err := dc.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("dropping decision cache keys: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func decisionKey(sub Subject, in CheckInput) string {
	return fmt.Sprintf("authz:decision:%s:%s:%s:%s:%s:%s:%s:%s:%s",
		sub.ID, sub.TenantID, sub.Role,
		in.Resource, in.Action, in.ResourceID,
		strings.Join(in.ProgramIDs, ","), in.ClientID, in.OwnerID)
}
