package locations

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Tree is an immutable index over one tenant's location forest: a node
// map plus a children adjacency list. Built from a single ListLocations
// query; traversals are iterative so a corrupt parent chain cannot
// recurse unboundedly.
type Tree struct {
	tenantID string
	byID     map[string]*Location
	children map[string][]string
}

// NewTree indexes the given locations (active and inactive).
func NewTree(tenantID string, locations []Location) *Tree {
	t := &Tree{
		tenantID: tenantID,
		byID:     make(map[string]*Location, len(locations)),
		children: make(map[string][]string),
	}
	for i := range locations {
		loc := &locations[i]
		t.byID[loc.ID] = loc
		if loc.ParentID != nil {
			t.children[*loc.ParentID] = append(t.children[*loc.ParentID], loc.ID)
		}
	}
	return t
}

// Get returns the node, or nil when unknown.
func (t *Tree) Get(id string) *Location {
	return t.byID[id]
}

// ActiveDescendants returns every active descendant of the node in
// breadth-first order, skipping inactive subtree roots entirely. The
// node itself is not included.
func (t *Tree) ActiveDescendants(id string) []Location {
	var out []Location
	queue := append([]string(nil), t.children[id]...)
	seen := map[string]struct{}{id: {}}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if _, ok := seen[current]; ok {
			continue
		}
		seen[current] = struct{}{}

		node := t.byID[current]
		if node == nil || !node.IsActive {
			continue
		}
		out = append(out, *node)
		queue = append(queue, t.children[current]...)
	}
	return out
}

// Ancestors returns the node's ancestor ids, nearest first. The walk
// stops if it revisits a node, so a corrupt chain terminates.
func (t *Tree) Ancestors(id string) []string {
	var out []string
	seen := map[string]struct{}{id: {}}
	node := t.byID[id]
	for node != nil && node.ParentID != nil {
		parentID := *node.ParentID
		if _, ok := seen[parentID]; ok {
			break
		}
		seen[parentID] = struct{}{}
		out = append(out, parentID)
		node = t.byID[parentID]
	}
	return out
}

// ActiveLocations returns every active node in the tenant.
func (t *Tree) ActiveLocations() []Location {
	var out []Location
	for _, loc := range t.byID {
		if loc.IsActive {
			out = append(out, *loc)
		}
	}
	return out
}

// TreeCache caches tenant trees in an LRU, invalidated on location
// writes. Grants do not invalidate it; they are read per-request.
type TreeCache struct {
	store *Store
	cache *lru.Cache[string, *Tree]
}

// NewTreeCache creates a tree cache holding up to size tenants.
func NewTreeCache(store *Store, size int) (*TreeCache, error) {
	if size <= 0 {
		size = 256
	}
	cache, err := lru.New[string, *Tree](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create tree cache: %w", err)
	}
	return &TreeCache{store: store, cache: cache}, nil
}

// Tree returns the tenant's tree, loading and caching it on a miss.
func (tc *TreeCache) Tree(ctx context.Context, tenantID string) (*Tree, bool, error) {
	if tree, ok := tc.cache.Get(tenantID); ok {
		return tree, true, nil
	}
	locations, err := tc.store.ListLocations(ctx, tenantID, true)
	if err != nil {
		return nil, false, err
	}
	tree := NewTree(tenantID, locations)
	tc.cache.Add(tenantID, tree)
	return tree, false, nil
}

// Invalidate drops the tenant's cached tree.
func (tc *TreeCache) Invalidate(tenantID string) {
	tc.cache.Remove(tenantID)
}
