package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/gxo-labs/fondsolve/internal/config"
	"github.com/gxo-labs/fondsolve/internal/events"
	"github.com/gxo-labs/fondsolve/internal/logger"
	"github.com/gxo-labs/fondsolve/internal/metrics"
	"github.com/gxo-labs/fondsolve/internal/policystore"
	"github.com/gxo-labs/fondsolve/internal/solver"
	"github.com/gxo-labs/fondsolve/internal/tracing"
	fond "github.com/gxo-labs/fondsolve/pkg/fond/v1"
	fondlog "github.com/gxo-labs/fondsolve/pkg/fond/v1/log"
)

const (
	DefaultEventBusSize = 256
	shutdownTimeout     = 5 * time.Second
)

type globalOptions struct {
	configPath  string
	logLevel    string
	logFormat   string
	metricsAddr string
	storePath   string
}

// solverFlags are the per-run overrides shared by solve and batch.
type solverFlags struct {
	timeout     time.Duration
	memoryLimit string
	maxNodes    int
	heuristic   string
	verify      bool
}

func (f *solverFlags) register(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Wall-clock limit per problem (overrides the config file; 0 disables)")
	cmd.Flags().StringVar(&f.memoryLimit, "memory-limit", "", "Heap budget for the search, e.g. 512MiB or 2GB")
	cmd.Flags().IntVar(&f.maxNodes, "max-nodes", 0, "Maximum number of search nodes (0 means unlimited)")
	cmd.Flags().StringVar(&f.heuristic, "heuristic", "max", "Heuristic: zero, table, goal-distance or max")
	cmd.Flags().BoolVar(&f.verify, "verify", true, "Check every proven policy before reporting it")
}

// app holds what every command needs once flags and the config file have
// been resolved.
type app struct {
	stdout io.Writer
	stderr io.Writer
	opts   globalOptions
	cfg    *config.SolverConfig
	log    fondlog.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "fondsolve",
		Short:         "Strong-cyclic policy synthesis for non-deterministic planning problems",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.opts.configPath, "config", "", "Path to a solver configuration YAML file")
	pf.StringVar(&a.opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&a.opts.logFormat, "log-format", "auto", "Log format (text, json, auto)")
	pf.StringVar(&a.opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while solving, e.g. :9090")
	pf.StringVar(&a.opts.storePath, "store", "", "Directory of the persistent policy store")

	root.AddCommand(
		newSolveCmd(a),
		newBatchCmd(a),
		newValidateCmd(a),
		newPolicyCmd(a),
		newVersionCmd(a),
	)
	return root
}

// argsUsage turns cobra's argument count errors into usage errors.
func argsUsage(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}

// setup loads the config file and builds the logger. Command-line flags take
// precedence over the file's logging block.
func (a *app) setup(cmd *cobra.Command) error {
	cfg := config.DefaultSolverConfig()
	if a.opts.configPath != "" {
		loaded, err := config.LoadSolverConfigFromFile(a.opts.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") || cfg.Logging.Level == "" {
		cfg.Logging.Level = a.opts.logLevel
	}
	if flags.Changed("log-format") || cfg.Logging.Format == "" {
		cfg.Logging.Format = a.opts.logFormat
	}
	switch cfg.Logging.Format {
	case "text", "json", "auto":
	default:
		return usageError(fmt.Errorf("--log-format must be 'text', 'json' or 'auto', got '%s'", cfg.Logging.Format))
	}
	if flags.Changed("store") {
		cfg.Store.Path = a.opts.storePath
	}

	a.cfg = cfg
	format := logger.ResolveFormat(cfg.Logging.Format, a.stderr)
	a.log = logger.NewLogger(cfg.Logging.Level, format, a.stderr).With("fondsolve_version", version)
	a.log.Debugf("Configuration resolved (config=%q, log-level=%s, log-format=%s).", a.opts.configPath, cfg.Logging.Level, format)
	return nil
}

// searchOptions applies the per-run flags to the configured search options.
func (a *app) searchOptions(f *solverFlags) (fond.SearchOptions, error) {
	opts := a.cfg.Search
	if f.maxNodes < 0 {
		return opts, usageError(errors.New("--max-nodes cannot be negative"))
	}
	if f.maxNodes > 0 {
		opts.MaxNodes = f.maxNodes
	}
	if f.memoryLimit != "" {
		limit, err := humanize.ParseBytes(f.memoryLimit)
		if err != nil {
			return opts, usageError(fmt.Errorf("invalid --memory-limit '%s': %w", f.memoryLimit, err))
		}
		opts.MemoryLimitBytes = limit
		a.log.Debugf("Search memory limit set to %s.", humanize.IBytes(limit))
	}
	return opts, nil
}

// newSolver wires a solver with the event bus, metrics, and tracing
// collaborators. The returned cleanup stops them and must always be called.
func (a *app) newSolver(cmd *cobra.Command, f *solverFlags) (*solver.Solver, func(), error) {
	ctx := cmd.Context()
	searchOpts, err := a.searchOptions(f)
	if err != nil {
		return nil, func() {}, err
	}
	timeout := a.cfg.TimeoutDuration()
	if cmd.Flags().Changed("timeout") {
		if f.timeout < 0 {
			return nil, func() {}, usageError(errors.New("--timeout cannot be negative"))
		}
		timeout = f.timeout
	}

	var provider *metrics.PrometheusRegistryProvider
	if a.opts.metricsAddr != "" {
		provider = metrics.NewProcessRegistryProvider()
	} else {
		provider = metrics.NewPrometheusRegistryProvider()
	}
	eventsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fond_events_total",
		Help: "Solver events by type.",
	}, []string{"type"})
	escalations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fond_bound_escalations_total",
		Help: "Times the policy bound grew after a failed iteration.",
	})
	provider.Registry().MustRegister(eventsTotal, escalations)

	bus := events.NewChannelEventBus(DefaultEventBusSize, a.log)
	listenerCtx, stopListener := context.WithCancel(ctx)
	listener := events.NewMetricsEventListener(bus, eventsTotal, escalations, a.log)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		listener.Start(listenerCtx)
	}()

	tracerProvider, err := tracing.NewProviderFromEnv(ctx, a.log)
	if err != nil {
		a.log.Warnf("Failed to initialize tracing from environment: %v. Using NoOp tracer.", err)
		tracerProvider, _ = tracing.NewNoOpProvider()
	}

	server := a.serveMetrics(provider)

	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if server != nil {
			if err := server.Shutdown(shutdownCtx); err != nil {
				a.log.Warnf("Error shutting down metrics server: %v", err)
			}
		}
		bus.Close()
		wg.Wait()
		stopListener()
		if dropped := bus.Dropped(); dropped > 0 {
			a.log.Debugf("Event bus dropped %d event(s).", dropped)
		}
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			a.log.Warnf("Error shutting down tracer provider: %v", err)
		}
	}

	solverOpts := []fond.SolverOption{
		fond.WithEventBus(bus),
		fond.WithMetricsRegistryProvider(provider),
		fond.WithTracerProvider(tracerProvider),
		fond.WithTimeout(timeout),
		fond.WithSearchOptions(searchOpts),
	}
	if grace := a.cfg.GracePeriodDuration(); grace > 0 {
		solverOpts = append(solverOpts, fond.WithGracePeriod(grace))
	}
	s, err := solver.NewSolver(a.log, solverOpts...)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	return s, cleanup, nil
}

// serveMetrics starts the Prometheus endpoint when --metrics-addr is set.
func (a *app) serveMetrics(provider *metrics.PrometheusRegistryProvider) *http.Server {
	if a.opts.metricsAddr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(provider.Registry(), promhttp.HandlerOpts{}))
	server := &http.Server{Addr: a.opts.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Errorf("Metrics server on %s failed: %v", a.opts.metricsAddr, err)
		}
	}()
	a.log.Infof("Serving metrics on %s/metrics", a.opts.metricsAddr)
	return server
}

// openStore opens the configured policy store.
func (a *app) openStore() (*policystore.Store, error) {
	if a.cfg.Store.Path == "" {
		return nil, usageError(errors.New("no policy store configured (use --store or store.path in the config file)"))
	}
	return policystore.Open(policystore.Config{Path: a.cfg.Store.Path, SyncWrites: true}, a.log)
}
