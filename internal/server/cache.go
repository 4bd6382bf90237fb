package server

import (
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/panbanda/prism/internal/service/analysis"
)

// DefaultCacheSize is the number of results kept in memory.
const DefaultCacheSize = 256

// resultCache keeps recent analysis results keyed by an xxhash of the
// request. The oldest entry is evicted first.
type resultCache struct {
	mu    sync.Mutex
	size  int
	items map[uint64]*analysis.Result
	order []uint64
}

func newResultCache(size int) *resultCache {
	return &resultCache{size: size, items: make(map[uint64]*analysis.Result, size)}
}

func requestKey(req analysis.Request) uint64 {
	d := xxhash.New()
	for _, part := range []string{req.Kind, req.Code, req.Markup, strconv.FormatBool(req.Performance)} {
		_, _ = d.WriteString(strconv.Itoa(len(part)))
		_, _ = d.WriteString(":")
		_, _ = d.WriteString(part)
	}
	return d.Sum64()
}

func (c *resultCache) get(key uint64) (*analysis.Result, bool) {
	if c == nil || c.size <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.items[key]
	return res, ok
}

func (c *resultCache) put(key uint64, res *analysis.Result) {
	if c == nil || c.size <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[key]; ok {
		c.items[key] = res
		return
	}
	for len(c.order) >= c.size {
		delete(c.items, c.order[0])
		c.order = c.order[1:]
	}
	c.items[key] = res
	c.order = append(c.order, key)
}

func (c *resultCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
