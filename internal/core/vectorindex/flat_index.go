// Package vectorindex holds an exact nearest-neighbour index over float32
// vectors and its snapshot persistence.
package vectorindex

import (
	"sort"
	"sync"

	"github.com/markdave123-py/railchat/internal/core"
)

// Entry is one vector and the id it was inserted under.
type Entry struct {
	ID     string
	Vector []float32
}

// Hit is a search result. Distance is squared L2; lower is closer.
type Hit struct {
	ID       string
	Distance float32
}

// FlatIndex is a brute-force L2 index. Vectors are stored contiguously in
// insertion order and every search scans all of them.
//
// Writers take the exclusive lock for the whole batch, so a reader sees
// either none or all of a batch.
type FlatIndex struct {
	mu      sync.RWMutex
	dim     int
	ids     []string
	vectors []float32
}

func NewFlatIndex(dim int) *FlatIndex {
	return &FlatIndex{dim: dim}
}

func (x *FlatIndex) Dimension() int { return x.dim }

// Len returns the number of stored entries.
func (x *FlatIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.ids)
}

// Insert appends one vector.
func (x *FlatIndex) Insert(vector []float32, id string) error {
	return x.InsertBatch([]Entry{{ID: id, Vector: vector}})
}

// InsertBatch appends all entries or none of them. Every vector is checked
// against the index dimension before anything is written.
func (x *FlatIndex) InsertBatch(entries []Entry) error {
	for _, e := range entries {
		if len(e.Vector) != x.dim {
			return &core.DimensionError{Expected: x.dim, Got: len(e.Vector)}
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	for _, e := range entries {
		x.ids = append(x.ids, e.ID)
		x.vectors = append(x.vectors, e.Vector...)
	}
	return nil
}

// Replace swaps the whole content for entries, validating first.
func (x *FlatIndex) Replace(entries []Entry) error {
	ids := make([]string, 0, len(entries))
	vecs := make([]float32, 0, len(entries)*x.dim)
	for _, e := range entries {
		if len(e.Vector) != x.dim {
			return &core.DimensionError{Expected: x.dim, Got: len(e.Vector)}
		}
		ids = append(ids, e.ID)
		vecs = append(vecs, e.Vector...)
	}

	x.mu.Lock()
	x.ids, x.vectors = ids, vecs
	x.mu.Unlock()
	return nil
}

// Search returns the min(k, Len()) nearest entries to query, closest first.
// Equal distances keep insertion order. An empty index yields an empty slice.
func (x *FlatIndex) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != x.dim {
		return nil, &core.DimensionError{Expected: x.dim, Got: len(query)}
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	n := len(x.ids)
	if k <= 0 || n == 0 {
		return []Hit{}, nil
	}

	hits := make([]Hit, n)
	for i := 0; i < n; i++ {
		hits[i] = Hit{ID: x.ids[i], Distance: squaredL2(query, x.vectors[i*x.dim:(i+1)*x.dim])}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Distance < hits[b].Distance })

	if k > n {
		k = n
	}
	return hits[:k], nil
}

// Remove drops every entry whose id matches and compacts the storage.
// It returns the number of entries removed.
func (x *FlatIndex) Remove(match func(id string) bool) int {
	x.mu.Lock()
	defer x.mu.Unlock()

	kept := 0
	for i, id := range x.ids {
		if match(id) {
			continue
		}
		if kept != i {
			x.ids[kept] = id
			copy(x.vectors[kept*x.dim:(kept+1)*x.dim], x.vectors[i*x.dim:(i+1)*x.dim])
		}
		kept++
	}
	removed := len(x.ids) - kept
	x.ids = x.ids[:kept]
	x.vectors = x.vectors[:kept*x.dim]
	return removed
}

// Entries returns a copy of the index content in insertion order.
func (x *FlatIndex) Entries() []Entry {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := make([]Entry, len(x.ids))
	for i, id := range x.ids {
		v := make([]float32, x.dim)
		copy(v, x.vectors[i*x.dim:(i+1)*x.dim])
		out[i] = Entry{ID: id, Vector: v}
	}
	return out
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
