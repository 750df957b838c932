// Command funchost loads a function catalog, prints the status and contract
// of every instance and applies each one to the supplied arguments.
//
// Usage:
//
//	funchost -catalog catalog.yaml -args '{"text": "Paris", "reference": "paris"}'
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-funcreg/infrastructure/functions"
	"github.com/ahrav/go-funcreg/infrastructure/middleware"
	"github.com/ahrav/go-funcreg/internal/application"
	"github.com/ahrav/go-funcreg/internal/domain"
	"github.com/ahrav/go-funcreg/internal/logging"
)

// errInvocationFailed signals that at least one invocation failed after the
// report was written.
var errInvocationFailed = errors.New("one or more invocations failed")

type options struct {
	catalog   string
	logLevel  string
	logFile   string
	args      string
	rateLimit float64
	timeout   time.Duration
	breaker   int
}

// breakerCooldown is how long a tripped function type is rejected before a
// probe invocation is let through.
const breakerCooldown = 30 * time.Second

func main() {
	var opts options
	flag.StringVar(&opts.catalog, "catalog", "", "Path to the catalog YAML file (required)")
	flag.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	flag.StringVar(&opts.logFile, "log-file", "", "Optional rotating log file")
	flag.StringVar(&opts.args, "args", "{}", "JSON object of call-site arguments")
	flag.Float64Var(&opts.rateLimit, "rate", 0, "Invocations per second per function type (0 = unlimited)")
	flag.DurationVar(&opts.timeout, "timeout", 0, "Deadline for each invocation (0 = none)")
	flag.IntVar(&opts.breaker, "breaker", 0, "Consecutive failures that open a function type's circuit (0 = disabled)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout, prometheus.DefaultRegisterer); err != nil {
		fmt.Fprintf(os.Stderr, "funchost: %v\n", err)
		os.Exit(1)
	}
}

// run wires the registry, loads the catalog and writes one JSON report per
// instance and per declared call site to w.
func run(ctx context.Context, opts options, w io.Writer, reg prometheus.Registerer) error {
	if opts.catalog == "" {
		return errors.New("-catalog is required")
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = opts.logLevel
	logCfg.File = opts.logFile
	logger, err := logging.New(logCfg)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	args, err := parseArgs(opts.args)
	if err != nil {
		return err
	}

	metrics := middleware.NewPrometheusMetrics(reg)
	chain := []application.RegistryOption{
		application.WithRegistryLogger(logger),
		application.WithMiddleware(middleware.Tracing(nil), middleware.Metrics(metrics)),
	}
	if opts.breaker > 0 {
		chain = append(chain, application.WithMiddleware(middleware.CircuitBreak(opts.breaker, breakerCooldown, metrics)))
	}
	if opts.rateLimit > 0 {
		chain = append(chain, application.WithMiddleware(middleware.RateLimit(rate.Limit(opts.rateLimit), 1)))
	}
	if opts.timeout > 0 {
		chain = append(chain, application.WithMiddleware(middleware.Timeout(opts.timeout)))
	}

	registry := application.NewDefaultFunctionRegistry(chain...)
	if err := application.RegisterAll(registry, functions.Builtins()...); err != nil {
		return fmt.Errorf("failed to register built-in functions: %w", err)
	}
	metrics.RecordGauge(middleware.MetricRegisteredTypes, float64(len(registry.GetSupportedTypes())), nil)

	host := application.NewHost(logger)
	loader, err := application.NewCatalogLoader(registry, host, application.WithLoaderLogger(logger))
	if err != nil {
		return err
	}

	catalog, err := loader.LoadFromFile(ctx, opts.catalog)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	defer func() {
		if cerr := catalog.Close(); cerr != nil {
			logger.Warn("failed to close catalog", zap.Error(cerr))
		}
	}()
	metrics.RecordGauge(middleware.MetricCatalogSize, float64(len(catalog.Names())), nil)

	failed := false
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	for _, name := range catalog.Names() {
		entry, _ := catalog.Get(name)
		out, applyErr := catalog.Invoke(ctx, name, args)
		rep := newReport(name, entry.Type, entry.Function.Status(), entry.Function.FunctionInfo(), out, applyErr)
		failed = failed || applyErr != nil
		if err := enc.Encode(rep); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}

	for _, site := range catalog.CallSites() {
		applier, err := catalog.Applier(site)
		if err != nil {
			return err
		}
		out, applyErr := applier.Apply(ctx, args)
		fn := applier.Function()
		rep := newReport(site, "call", fn.Status(), applier.Info(), out, applyErr)
		failed = failed || applyErr != nil
		if err := enc.Encode(rep); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}

	if failed {
		return errInvocationFailed
	}
	return nil
}

// parseArgs decodes a JSON object into call-site arguments. Whole numbers
// become int64 so they satisfy integer pins; other numbers become float64.
func parseArgs(raw string) (domain.Context, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return domain.Context{}, fmt.Errorf("invalid -args: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return domain.Context{}, errors.New("invalid -args: trailing data after JSON object")
	}

	values := make(map[string]domain.Value, len(fields))
	for k, v := range fields {
		payload, err := normalizeJSON(v)
		if err != nil {
			return domain.Context{}, fmt.Errorf("invalid -args: argument %q: %w", k, err)
		}
		values[k] = domain.NewValue(payload, nowForArgs())
	}
	return domain.ContextOf(values), nil
}

// normalizeJSON turns json.Number into int64 where it fits and float64
// otherwise, walking nested arrays and objects.
func normalizeJSON(v any) (any, error) {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("number %s: %w", t, err)
		}
		return f, nil
	case []any:
		for i := range t {
			n, err := normalizeJSON(t[i])
			if err != nil {
				return nil, err
			}
			t[i] = n
		}
		return t, nil
	case map[string]any:
		for k := range t {
			n, err := normalizeJSON(t[k])
			if err != nil {
				return nil, err
			}
			t[k] = n
		}
		return t, nil
	default:
		return v, nil
	}
}
