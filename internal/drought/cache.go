package drought

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"

	"github.com/couchcryptid/palmer-drought-service/internal/domain"
	"github.com/couchcryptid/palmer-drought-service/internal/observability"
)

// CachedCalculator wraps a Computer with an in-memory LRU cache. The engine is
// deterministic, so identical requests share one result. A hit carries the
// time of the call in ComputedAt. Errors are never cached.
type CachedCalculator struct {
	inner   Computer
	cache   *resultLRU
	metrics *observability.Metrics
}

// NewCachedCalculator creates a cache decorator around a computer.
func NewCachedCalculator(inner Computer, maxEntries int, metrics *observability.Metrics) *CachedCalculator {
	return &CachedCalculator{
		inner:   inner,
		cache:   newResultLRU(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedCalculator) Compute(ctx context.Context, req domain.ComputationRequest) (domain.ComputationResult, error) {
	key, ok := cacheKey(req)
	if !ok {
		return c.inner.Compute(ctx, req)
	}
	if result, ok := c.cache.lookup(key); ok {
		c.metrics.ResultCache.WithLabelValues("hit").Inc()
		hit := cloneResult(result)
		hit.ComputedAt = domain.Now()
		return hit, nil
	}
	c.metrics.ResultCache.WithLabelValues("miss").Inc()

	result, err := c.inner.Compute(ctx, req)
	if err != nil {
		return result, err
	}
	c.cache.store(key, cloneResult(result))
	return result, nil
}

// Len returns the number of cached results.
func (c *CachedCalculator) Len() int {
	return c.cache.size()
}

// cacheKey hashes everything that affects the engine output. The request ID
// is excluded and the mode is resolved so "" and "both" share an entry.
// Requests with an invalid mode are not cached.
func cacheKey(req domain.ComputationRequest) (string, bool) {
	mode, err := domain.ParseMode(string(req.Mode))
	if err != nil {
		return "", false
	}
	req.ID = ""
	req.Mode = mode

	data, err := json.Marshal(req)
	if err != nil {
		return "", false
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), true
}

func cloneResult(r domain.ComputationResult) domain.ComputationResult {
	r.Original = cloneTable(r.Original)
	r.SelfCalibrated = cloneTable(r.SelfCalibrated)
	return r
}

func cloneTable(t *domain.ResultTable) *domain.ResultTable {
	if t == nil {
		return nil
	}
	return &domain.ResultTable{
		Columns: append([]string(nil), t.Columns...),
		Rows:    append([]domain.MonthlyRow(nil), t.Rows...),
	}
}

// resultLRU holds at most capacity results. Recency is kept on a circular
// list through a sentinel node: sentinel.next is the newest entry and
// sentinel.prev the oldest.
type resultLRU struct {
	mu       sync.Mutex
	capacity int
	byKey    map[string]*lruNode
	sentinel lruNode
}

type lruNode struct {
	key        string
	result     domain.ComputationResult
	prev, next *lruNode
}

func newResultLRU(capacity int) *resultLRU {
	c := &resultLRU{capacity: capacity, byKey: make(map[string]*lruNode)}
	c.sentinel.prev = &c.sentinel
	c.sentinel.next = &c.sentinel
	return c
}

func (c *resultLRU) lookup(key string) (domain.ComputationResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.byKey[key]
	if !ok {
		return domain.ComputationResult{}, false
	}
	c.unlink(n)
	c.pushFront(n)
	return n.result, true
}

// store inserts or refreshes key, then drops the oldest entries over capacity.
func (c *resultLRU) store(key string, result domain.ComputationResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.byKey[key]
	if ok {
		n.result = result
		c.unlink(n)
	} else {
		n = &lruNode{key: key, result: result}
		c.byKey[key] = n
	}
	c.pushFront(n)

	for len(c.byKey) > c.capacity {
		oldest := c.sentinel.prev
		c.unlink(oldest)
		delete(c.byKey, oldest.key)
	}
}

func (c *resultLRU) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byKey)
}

func (c *resultLRU) pushFront(n *lruNode) {
	n.prev = &c.sentinel
	n.next = c.sentinel.next
	n.next.prev = n
	c.sentinel.next = n
}

func (c *resultLRU) unlink(n *lruNode) {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.prev, n.next = nil, nil
}
