package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/ahrav/go-funcreg/internal/domain"
	"github.com/ahrav/go-funcreg/internal/ports"
)

// CatalogEntry is one constructed function instance of a catalog.
type CatalogEntry struct {
	// Name is the instance name declared in the catalog.
	Name string
	// Type is the function type the instance was resolved from.
	Type string
	// Description is the free-form text from the catalog.
	Description string
	// Function is the ready instance.
	Function ports.Function
}

// Catalog holds the function instances and call sites declared by a
// CatalogConfig. A loaded Catalog is read-only: lookups are safe for
// concurrent use and appliers come from a shared ApplierCache.
//
// WARNING: Catalogs returned by CatalogLoader are cached and shared.
// Callers MUST NOT close a cached catalog while others may still use it.
// Concurrent loads of one configuration share a single build, which is not
// cancelled when an individual caller gives up.
type Catalog struct {
	entries map[string]CatalogEntry
	order   []string
	calls   map[string]CallConfig
	sites   []string
	cache   *ApplierCache
}

func newCatalog(cache *ApplierCache) *Catalog {
	return &Catalog{
		entries: make(map[string]CatalogEntry),
		calls:   make(map[string]CallConfig),
		cache:   cache,
	}
}

// add records an entry, rejecting repeated instance names.
func (c *Catalog) add(entry CatalogEntry) error {
	if _, exists := c.entries[entry.Name]; exists {
		return fmt.Errorf("duplicate function instance %q", entry.Name)
	}
	c.entries[entry.Name] = entry
	c.order = append(c.order, entry.Name)
	return nil
}

// addCall records a call site and binds it, so a bad binding fails the
// load instead of the first call.
func (c *Catalog) addCall(call CallConfig) error {
	c.calls[call.ID] = call
	c.sites = append(c.sites, call.ID)
	_, err := c.Applier(call.ID)
	return err
}

// Get returns the instance declared under name.
func (c *Catalog) Get(name string) (CatalogEntry, bool) {
	e, ok := c.entries[name]
	return e, ok
}

// Names returns instance names in declaration order.
func (c *Catalog) Names() []string { return slices.Clone(c.order) }

// CallSites returns declared call-site ids in declaration order.
func (c *Catalog) CallSites() []string { return slices.Clone(c.sites) }

// Status returns the status payload of the named instance.
func (c *Catalog) Status(name string) (any, error) {
	e, ok := c.entries[name]
	if !ok {
		return nil, fmt.Errorf("function instance %q not found", name)
	}
	return e.Function.Status(), nil
}

// Info returns the contract of the named instance.
func (c *Catalog) Info(name string) (domain.FunctionInfo, error) {
	e, ok := c.entries[name]
	if !ok {
		return domain.FunctionInfo{}, fmt.Errorf("function instance %q not found", name)
	}
	return e.Function.FunctionInfo(), nil
}

// Applier returns the cached applier of a declared call site.
func (c *Catalog) Applier(callSite string) (*FunctionApplier, error) {
	call, ok := c.calls[callSite]
	if !ok {
		return nil, fmt.Errorf("call site %q not declared", callSite)
	}
	e, ok := c.entries[call.Function]
	if !ok {
		return nil, fmt.Errorf("call site %q references unknown function %q", callSite, call.Function)
	}
	return c.cache.Get(callSite, e.Function, call.Inputs, call.Outputs)
}

// Call applies a declared call site to args.
func (c *Catalog) Call(ctx context.Context, callSite string, args domain.Context) (domain.Output, error) {
	a, err := c.Applier(callSite)
	if err != nil {
		return domain.Output{}, err
	}
	return a.Apply(ctx, args)
}

// Invoke applies the named instance with identity bindings, caching the
// applier under the instance name.
func (c *Catalog) Invoke(ctx context.Context, name string, args domain.Context) (domain.Output, error) {
	e, ok := c.entries[name]
	if !ok {
		return domain.Output{}, fmt.Errorf("function instance %q not found", name)
	}
	a, err := c.cache.Get("instance:"+name, e.Function, nil, nil)
	if err != nil {
		return domain.Output{}, err
	}
	return a.Apply(ctx, args)
}

// Close disposes of every instance that implements io.Closer and drops all
// cached appliers.
func (c *Catalog) Close() error {
	c.cache.Purge()

	var errs []error
	for _, name := range c.order {
		if closer, ok := c.entries[name].Function.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}
