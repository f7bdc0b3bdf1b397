package monitoring

import (
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"scorecast/db"
)

const DefaultRecentSize = 256

// RecentPredictions keeps the latest served predictions in memory so
// lookups by id skip the database.
type RecentPredictions struct {
	cache *lru.Cache[string, db.Prediction]
}

// NewRecentPredictions holds at most size entries. A non-positive size
// uses DefaultRecentSize.
func NewRecentPredictions(size int) (*RecentPredictions, error) {
	if size <= 0 {
		size = DefaultRecentSize
	}
	cache, err := lru.New[string, db.Prediction](size)
	if err != nil {
		return nil, err
	}
	return &RecentPredictions{cache: cache}, nil
}

// Add caches p under its id, evicting the least recently used entry when
// full.
func (r *RecentPredictions) Add(p db.Prediction) {
	r.cache.Add(p.ID, p)
}

// Get looks up a prediction by id.
func (r *RecentPredictions) Get(id string) (db.Prediction, bool) {
	return r.cache.Get(id)
}

// Len returns the number of cached predictions.
func (r *RecentPredictions) Len() int {
	return r.cache.Len()
}

// Latest returns up to n cached predictions, newest first.
func (r *RecentPredictions) Latest(n int) []db.Prediction {
	values := r.cache.Values()
	sort.SliceStable(values, func(i, j int) bool {
		return values[i].CreatedAt.After(values[j].CreatedAt)
	})
	if n > 0 && len(values) > n {
		values = values[:n]
	}
	return values
}
