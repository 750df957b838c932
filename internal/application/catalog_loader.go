package application

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-funcreg/internal/domain"
	"github.com/ahrav/go-funcreg/internal/ports"
)

// CatalogLoader provides YAML configuration parsing, validation, and caching
// for function catalogs, transforming declarative YAML into constructed
// function instances.
// Use CatalogLoader to load catalogs from files or readers while benefiting
// from SHA256-based caching and comprehensive validation.
type CatalogLoader struct {
	// validator performs struct field validation and the custom catalog
	// validation rules.
	validator *validator.Validate
	// registry resolves declared function types into instances.
	registry ports.FunctionRegistry
	// server is the host handle passed to every factory.
	server ports.Server
	// onProgress receives construction progress of every instance.
	onProgress ports.ProgressFunc
	// cacheSize bounds the applier cache of each catalog.
	cacheSize int
	// logger records load outcomes.
	logger *zap.Logger
	// cache stores loaded catalogs indexed by SHA256 hash of the
	// normalized configuration.
	cache map[string]*Catalog
	// cacheMu provides thread-safe access to the cache map.
	cacheMu sync.RWMutex
	// sf prevents duplicate construction when multiple goroutines load the
	// same catalog simultaneously.
	sf singleflight.Group
}

// CatalogLoaderOption configures a CatalogLoader.
type CatalogLoaderOption func(*CatalogLoader)

// WithProgress sets the progress callback passed to every factory.
func WithProgress(onProgress ports.ProgressFunc) CatalogLoaderOption {
	return func(cl *CatalogLoader) { cl.onProgress = onProgress }
}

// WithApplierCacheSize bounds the applier cache of each loaded catalog.
func WithApplierCacheSize(size int) CatalogLoaderOption {
	return func(cl *CatalogLoader) { cl.cacheSize = size }
}

// WithLoaderLogger sets the logger used by the loader.
func WithLoaderLogger(logger *zap.Logger) CatalogLoaderOption {
	return func(cl *CatalogLoader) {
		if logger != nil {
			cl.logger = logger
		}
	}
}

// NewCatalogLoader creates a loader resolving functions through registry
// and handing server to every factory.
// NewCatalogLoader returns an error if validator registration fails.
func NewCatalogLoader(registry ports.FunctionRegistry, server ports.Server, opts ...CatalogLoaderOption) (*CatalogLoader, error) {
	if registry == nil {
		return nil, errors.New("registry cannot be nil")
	}

	v := validator.New()
	if err := RegisterCatalogValidators(v); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	cl := &CatalogLoader{
		validator: v,
		registry:  registry,
		server:    server,
		cacheSize: DefaultApplierCacheSize,
		logger:    zap.NewNop(),
		cache:     make(map[string]*Catalog),
	}
	for _, opt := range opts {
		opt(cl)
	}
	return cl, nil
}

// LoadFromFile loads a catalog from a YAML file.
// WARNING: The returned catalog is a shared cached instance. Construction
// is shared too: cancelling ctx abandons the wait, not the build.
func (cl *CatalogLoader) LoadFromFile(ctx context.Context, path string) (*Catalog, error) {
	cleanPath := filepath.Clean(path)

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return cl.load(ctx, data)
}

// LoadFromReader loads a catalog from an io.Reader.
// WARNING: The returned catalog is a shared cached instance. Construction
// is shared too: cancelling ctx abandons the wait, not the build.
func (cl *CatalogLoader) LoadFromReader(ctx context.Context, r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}

	return cl.load(ctx, data)
}

// load parses, validates and builds a catalog, reusing a cached catalog
// built from an identical normalized configuration.
func (cl *CatalogLoader) load(ctx context.Context, data []byte) (*Catalog, error) {
	config, err := cl.parseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cl.validateConfig(config); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	hash, err := cl.calculateConfigHash(config)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate hash: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Join(domain.ErrCancelled, err)
	}

	// The build is shared by every caller waiting on this hash, so it runs
	// detached from any one caller's cancellation. A caller whose context
	// ends stops waiting; the build still finishes and is cached for the
	// others. Context values such as the active span are kept.
	buildCtx := context.WithoutCancel(ctx)
	ch := cl.sf.DoChan(hash, func() (any, error) {
		if catalog, ok := cl.getCachedCatalog(hash); ok {
			return catalog, nil
		}

		catalog, err := cl.buildCatalog(buildCtx, config)
		if err != nil {
			return nil, fmt.Errorf("failed to build catalog: %w", err)
		}

		cl.cacheCatalog(hash, catalog)
		return catalog, nil
	})

	select {
	case <-ctx.Done():
		return nil, errors.Join(domain.ErrCancelled, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Catalog), nil
	}
}

// parseYAML decodes catalog YAML in strict mode so unknown fields are
// reported instead of silently ignored.
func (cl *CatalogLoader) parseYAML(data []byte) (*CatalogConfig, error) {
	var config CatalogConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("YAML decode failed: %w", err)
	}
	return &config, nil
}

// validateConfig runs struct tag validation and the cross-entry rules that
// tags cannot express.
func (cl *CatalogLoader) validateConfig(config *CatalogConfig) error {
	if err := cl.validator.Struct(config); err != nil {
		return fmt.Errorf("struct validation failed: %w", err)
	}

	if err := cl.validateSemantics(config); err != nil {
		return fmt.Errorf("semantic validation failed: %w", err)
	}

	return nil
}

// validateSemantics checks instance and call-site name uniqueness, that
// every declared type is registered and that every call site references a
// declared instance.
func (cl *CatalogLoader) validateSemantics(config *CatalogConfig) error {
	verr := domain.NewValidationError("catalog")
	names := make(map[string]struct{}, len(config.Functions))

	for _, fn := range config.Functions {
		if _, exists := names[fn.Name]; exists {
			verr.AddError(fmt.Sprintf("duplicate function name %q", fn.Name))
		}
		names[fn.Name] = struct{}{}

		if _, ok := cl.registry.Lookup(fn.Type); !ok {
			verr.AddError(fmt.Sprintf("function %q uses unregistered type %q", fn.Name, fn.Type))
		}
	}

	callIDs := make(map[string]struct{}, len(config.Calls))
	for _, call := range config.Calls {
		if _, exists := callIDs[call.ID]; exists {
			verr.AddError(fmt.Sprintf("duplicate call site %q", call.ID))
		}
		callIDs[call.ID] = struct{}{}

		if _, ok := names[call.Function]; !ok {
			verr.AddError(fmt.Sprintf("call site %q references undeclared function %q", call.ID, call.Function))
		}
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// buildCatalog resolves every declared instance and binds every declared
// call site. A failure closes whatever was already constructed so no
// partially built catalog escapes.
func (cl *CatalogLoader) buildCatalog(ctx context.Context, config *CatalogConfig) (*Catalog, error) {
	cache, err := NewApplierCache(cl.cacheSize)
	if err != nil {
		return nil, err
	}
	catalog := newCatalog(cache)

	fail := func(err error) (*Catalog, error) {
		if cerr := catalog.Close(); cerr != nil {
			cl.logger.Warn("failed to dispose partially built catalog", zap.Error(cerr))
		}
		return nil, err
	}

	for _, fc := range config.Functions {
		fn, err := cl.registry.Resolve(ctx, fc.Type, cl.server, fc.Config, cl.onProgress)
		if err != nil {
			return fail(fmt.Errorf("function %s: %w", fc.Name, err))
		}
		if err := catalog.add(CatalogEntry{
			Name:        fc.Name,
			Type:        fc.Type,
			Description: fc.Description,
			Function:    fn,
		}); err != nil {
			return fail(err)
		}
		cl.logger.Info("function instance ready",
			zap.String("name", fc.Name),
			zap.String("type", fc.Type))
	}

	for _, call := range config.Calls {
		if err := catalog.addCall(call); err != nil {
			return fail(err)
		}
	}

	return catalog, nil
}

// calculateConfigHash computes the SHA256 hash of the re-encoded
// configuration so formatting differences do not defeat the cache.
func (cl *CatalogLoader) calculateConfigHash(config *CatalogConfig) (string, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)

	if err := encoder.Encode(config); err != nil {
		return "", fmt.Errorf("failed to encode config for hashing: %w", err)
	}

	hash := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(hash[:]), nil
}

func (cl *CatalogLoader) getCachedCatalog(hash string) (*Catalog, bool) {
	cl.cacheMu.RLock()
	defer cl.cacheMu.RUnlock()

	catalog, ok := cl.cache[hash]
	return catalog, ok
}

func (cl *CatalogLoader) cacheCatalog(hash string, catalog *Catalog) {
	cl.cacheMu.Lock()
	defer cl.cacheMu.Unlock()

	cl.cache[hash] = catalog
}

// ClearCache forgets every cached catalog, forcing subsequent loads to
// construct new instances. Forgotten catalogs are not closed.
func (cl *CatalogLoader) ClearCache() {
	cl.cacheMu.Lock()
	defer cl.cacheMu.Unlock()

	cl.cache = make(map[string]*Catalog)
}
