package similarity

// DefaultCacheCapacity is the entry count above which a FlushCache purges.
const DefaultCacheCapacity = 10000

// PairKey identifies an unordered pair of literal texts.
type PairKey struct {
	A, B string
}

// NewPairKey orders a and b so that (a, b) and (b, a) share a key.
func NewPairKey(a, b string) PairKey {
	if a > b {
		a, b = b, a
	}
	return PairKey{A: a, B: b}
}

// Cache stores computed pair scores. Implementations decide eviction.
type Cache interface {
	Get(key PairKey) (float64, bool)
	Put(key PairKey, score float64)
	Len() int
	Capacity() int
}

// FlushCache is an unbounded map that is cleared in full as soon as its size
// exceeds the capacity. There is no partial eviction.
type FlushCache struct {
	entries  map[PairKey]float64
	capacity int
	purges   int
	onPurge  func(size int)
}

// NewFlushCache creates a FlushCache. onPurge, if non-nil, is called with the
// size of the map that was dropped.
func NewFlushCache(capacity int, onPurge func(size int)) *FlushCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &FlushCache{
		entries:  make(map[PairKey]float64),
		capacity: capacity,
		onPurge:  onPurge,
	}
}

func (c *FlushCache) Get(key PairKey) (float64, bool) {
	v, ok := c.entries[key]
	return v, ok
}

func (c *FlushCache) Put(key PairKey, score float64) {
	c.entries[key] = score
	if len(c.entries) > c.capacity {
		size := len(c.entries)
		clear(c.entries)
		c.purges++
		if c.onPurge != nil {
			c.onPurge(size)
		}
	}
}

func (c *FlushCache) Len() int      { return len(c.entries) }
func (c *FlushCache) Capacity() int { return c.capacity }

// Purges returns how many times the cache has been cleared.
func (c *FlushCache) Purges() int { return c.purges }
