package application

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/ahrav/go-funcreg/internal/ports"
)

// DefaultApplierCacheSize bounds the number of call sites an ApplierCache
// remembers when no size is given.
const DefaultApplierCacheSize = 1024

// ApplierCache keeps one FunctionApplier per call site so binding happens
// once and every later invocation at that site reuses it.
// Concurrent first requests for the same call site share one Bind.
//
// A call-site key must identify both the function instance and the
// argument layout; when either changes the host must Invalidate the key.
type ApplierCache struct {
	// appliers holds bound appliers keyed by call site, evicting the least
	// recently used site when full.
	appliers *lru.Cache[string, *FunctionApplier]
	// sf collapses concurrent binds of the same call site.
	sf singleflight.Group
}

// NewApplierCache creates a cache holding at most size call sites.
// A non-positive size selects DefaultApplierCacheSize.
func NewApplierCache(size int) (*ApplierCache, error) {
	if size <= 0 {
		size = DefaultApplierCacheSize
	}
	appliers, err := lru.New[string, *FunctionApplier](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create applier cache: %w", err)
	}
	return &ApplierCache{appliers: appliers}, nil
}

// Get returns the applier cached for callSite, binding fn with the given
// layout on a miss. Bind errors are returned to every waiting caller and
// nothing is cached.
func (c *ApplierCache) Get(
	callSite string,
	fn ports.Function,
	inputs, outputs map[string]string,
) (*FunctionApplier, error) {
	if a, ok := c.appliers.Get(callSite); ok {
		return a, nil
	}

	v, err, _ := c.sf.Do(callSite, func() (any, error) {
		// Another caller may have finished binding while we waited.
		if a, ok := c.appliers.Get(callSite); ok {
			return a, nil
		}
		a, err := Bind(fn, inputs, outputs)
		if err != nil {
			return nil, err
		}
		c.appliers.Add(callSite, a)
		return a, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to bind call site %s: %w", callSite, err)
	}

	return v.(*FunctionApplier), nil
}

// Invalidate drops the applier cached for callSite.
func (c *ApplierCache) Invalidate(callSite string) { c.appliers.Remove(callSite) }

// Purge drops every cached applier.
func (c *ApplierCache) Purge() { c.appliers.Purge() }

// Len returns the number of cached call sites.
func (c *ApplierCache) Len() int { return c.appliers.Len() }
