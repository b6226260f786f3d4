package authz

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*DecisionCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewDecisionCache(client, time.Minute), mr
}

func TestDecisionCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	sub := caseManager("u1")
	in := CheckInput{Resource: ResourceClient, Action: ActionRead, ClientID: "c1"}

	_, ok := cache.Get(ctx, sub, in)
	assert.False(t, ok)

	want := Decision{Allowed: true, Scope: ScopeAssigned, Reason: ReasonAssigned}
	cache.Put(ctx, sub, in, want)

	got, ok := cache.Get(ctx, sub, in)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestDecisionCacheKeysAreInputSpecific(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	sub := caseManager("u1")

	cache.Put(ctx, sub, CheckInput{Resource: ResourceClient, Action: ActionRead, ClientID: "c1"},
		Decision{Allowed: true})

	_, ok := cache.Get(ctx, sub, CheckInput{Resource: ResourceClient, Action: ActionRead, ClientID: "c2"})
	assert.False(t, ok)

	_, ok = cache.Get(ctx, caseManager("u2"), CheckInput{Resource: ResourceClient, Action: ActionRead, ClientID: "c1"})
	assert.False(t, ok)
}

func TestDecisionCacheInvalidateUser(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	inputs := []CheckInput{
		{Resource: ResourceClient, Action: ActionRead, ClientID: "c1"},
		{Resource: ResourceForm, Action: ActionUpdate},
	}
	for _, in := range inputs {
		cache.Put(ctx, caseManager("u1"), in, Decision{Allowed: true})
	}
	cache.Put(ctx, caseManager("u2"), inputs[0], Decision{Allowed: true})

	require.NoError(t, cache.InvalidateUser(ctx, "u1"))

	for _, in := range inputs {
		_, ok := cache.Get(ctx, caseManager("u1"), in)
		assert.False(t, ok)
	}
	_, ok := cache.Get(ctx, caseManager("u2"), inputs[0])
	assert.True(t, ok, "other users' entries survive invalidation")
}

func TestDecisionCacheExpiry(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()
	sub := caseManager("u1")
	in := CheckInput{Resource: ResourceClient, Action: ActionRead}

	cache.Put(ctx, sub, in, Decision{Allowed: true})
	mr.FastForward(2 * time.Minute)

	_, ok := cache.Get(ctx, sub, in)
	assert.False(t, ok)
}
