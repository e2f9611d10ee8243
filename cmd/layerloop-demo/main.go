// Command layerloop-demo runs a headless layerloop.App, driving a set of
// periodic layers behind a layers.Switcher, optionally with a terminal
// statistics overlay and a Prometheus endpoint.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KimMachineGun/automemlimit/memlimit"
	"github.com/google/renameio/v2"
	"github.com/joeycumines/go-layerloop"
	"github.com/joeycumines/go-layerloop/backend/headless"
	"github.com/joeycumines/go-layerloop/input"
	"github.com/joeycumines/go-layerloop/internal/config"
	"github.com/joeycumines/go-layerloop/layers"
	"github.com/joeycumines/go-layerloop/promstats"
	"github.com/joeycumines/logiface"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil && !errors.Is(err, flag.ErrHelp) {
		_, _ = fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

type flags struct {
	config      string
	logLevel    string
	logFormat   string
	metricsAddr string
	statsOut    string
	rate        float64
	frames      int
	switchEvery time.Duration
	overlay     bool
}

func parseFlags(args []string, output io.Writer) (*flags, *flag.FlagSet, error) {
	var f flags
	fs := flag.NewFlagSet(`layerloop-demo`, flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&f.config, `config`, ``, `path to a YAML or TOML config file`)
	fs.StringVar(&f.logLevel, `log-level`, ``, `log level, overriding the config`)
	fs.StringVar(&f.logFormat, `log-format`, ``, `log format (json, console, stumpy), overriding the config`)
	fs.StringVar(&f.metricsAddr, `metrics-addr`, ``, `listen address for /metrics, overriding the config`)
	fs.StringVar(&f.statsOut, `stats-out`, ``, `file to write the final statistics to, as JSON`)
	fs.Float64Var(&f.rate, `rate`, 0, `target render rate in hertz, overriding the config`)
	fs.IntVar(&f.frames, `frames`, 0, `stop after this many frames, overriding the config`)
	fs.DurationVar(&f.switchEvery, `switch-every`, 0, `cycle through the layers (as if by Alt+digit) at this interval`)
	fs.BoolVar(&f.overlay, `overlay`, false, `draw the statistics overlay to stdout`)
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if fs.NArg() != 0 {
		return nil, nil, fmt.Errorf("unexpected arguments: %q", fs.Args())
	}
	return &f, fs, nil
}

func loadConfig(f *flags, fs *flag.FlagSet, stderr io.Writer) (config.Config, error) {
	cfg := config.Default()
	if f.config != `` {
		var err error
		if cfg, err = config.Load(f.config); err != nil {
			return cfg, err
		}
	} else if file, ok := stderr.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		cfg.Log.Format = config.FormatConsole
	}
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case `log-level`:
			cfg.Log.Level = f.logLevel
		case `log-format`:
			cfg.Log.Format = f.logFormat
		case `metrics-addr`:
			cfg.Metrics.Addr = f.metricsAddr
		case `stats-out`:
			cfg.StatsOut = f.statsOut
		case `rate`:
			cfg.TargetRate = f.rate
		case `frames`:
			cfg.Frames = f.frames
		case `overlay`:
			cfg.Overlay.Enabled = f.overlay
		}
	})
	return cfg, cfg.Validate()
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	f, fs, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(f, fs, stderr)
	if err != nil {
		return err
	}

	logger, err := config.NewLogger(stderr, cfg.Log)
	if err != nil {
		return err
	}

	tuneRuntime(logger)

	backend, err := headless.New(
		headless.WithLogger(logger),
		headless.WithFrameLimit(cfg.Frames),
	)
	if err != nil {
		return err
	}

	app, err := layerloop.New(
		backend,
		layerloop.WithLogger(logger),
		layerloop.WithTargetRenderRate(cfg.TargetRate),
		layerloop.WithErrorLogRates(config.RateMap(cfg.ErrorLogRates)),
	)
	if err != nil {
		return err
	}

	switcher, err := newSwitcher(cfg, stdout)
	if err != nil {
		_ = app.Close()
		return err
	}
	if cfg.Start != `` {
		err = switcher.SwitchTo(app.Stack(), cfg.Start)
	} else {
		err = switcher.Switch(app.Stack(), 0)
	}
	if err != nil {
		_ = app.Close()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return runApp(gctx, app, cfg.StatsOut)
	})

	if cfg.Metrics.Addr != `` {
		g.Go(func() error {
			return serveMetrics(gctx, app, cfg.Metrics, logger)
		})
	}

	if f.switchEvery > 0 {
		g.Go(func() error {
			autopilot(gctx, backend, len(switcher.Names()), f.switchEvery)
			return nil
		})
	}

	return g.Wait()
}

func newSwitcher(cfg config.Config, stdout io.Writer) (*layers.Switcher, error) {
	entries := make([]layers.Entry, len(cfg.Layers))
	for i, l := range cfg.Layers {
		entries[i] = layers.Entry{
			Name: l.Name,
			Factory: func(app *layerloop.App) (layerloop.Layer, error) {
				return newTicker(app, l)
			},
		}
	}
	var keep []layerloop.Layer
	if cfg.Overlay.Enabled {
		ansi := false
		if file, ok := stdout.(*os.File); ok {
			ansi = term.IsTerminal(int(file.Fd()))
		}
		keep = append(keep, layers.NewStatsOverlay(
			stdout,
			layers.WithANSI(ansi),
			layers.WithColumn(cfg.Overlay.Column),
			layers.WithRefreshInterval(time.Duration(cfg.Overlay.Interval)),
		))
	}
	return layers.NewSwitcher(entries, keep...)
}

// runApp drives and then closes app, on the calling goroutine.
func runApp(ctx context.Context, app *layerloop.App, statsOut string) error {
	err := app.Run(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}

	stats := app.Stats()
	app.Logger().Info().
		Uint64(`frames`, stats.Frames).
		Uint64(`overruns`, stats.Overruns).
		Uint64(`updates`, stats.Updates).
		Uint64(`update_errors`, stats.UpdateErrors).
		Dur(`frame_p99`, stats.FrameTime.P99).
		Log(`final statistics`)

	if statsOut != `` {
		if e := writeStats(statsOut, stats); e != nil {
			err = errors.Join(err, e)
		}
	}

	if e := app.Close(); e != nil {
		err = errors.Join(err, e)
	}
	return err
}

func writeStats(path string, stats layerloop.Stats) error {
	b, err := json.MarshalIndent(stats, ``, `  `)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if err := renameio.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write stats: %w", err)
	}
	return nil
}

func serveMetrics(ctx context.Context, app *layerloop.App, cfg config.MetricsConfig, logger *logiface.Logger[logiface.Event]) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		promstats.New(app, cfg.Namespace, nil),
	)

	mux := http.NewServeMux()
	mux.Handle(`/metrics`, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str(`addr`, cfg.Addr).Log(`serving metrics`)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	return nil
}

// autopilot cycles through the switcher entries by injecting Alt+digit key
// presses.
func autopilot(ctx context.Context, backend *headless.Backend, entries int, interval time.Duration) {
	entries = min(entries, layers.MaxSwitcherEntries)
	t := time.NewTicker(interval)
	defer t.Stop()
	for i := 1; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		event := input.KeyEvent{
			Key:    input.DigitKey(i % entries),
			Action: input.Press,
			Mods:   input.ModAlt,
		}
		if err := backend.Send(ctx, event); err != nil {
			return
		}
	}
}

func tuneRuntime(logger *logiface.Logger[logiface.Event]) {
	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logger.Debug().Logf(format, args...)
	})); err != nil {
		logger.Warning().Err(err).Log(`failed to set GOMAXPROCS`)
	}
	if limit, err := memlimit.SetGoMemLimitWithOpts(
		memlimit.WithRatio(0.9),
		memlimit.WithProvider(memlimit.FromCgroup),
	); err != nil {
		logger.Debug().Err(err).Log(`memory limit not set`)
	} else {
		logger.Debug().Int64(`limit`, limit).Log(`memory limit set`)
	}
}
