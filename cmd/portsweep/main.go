// cmd/portsweep/main.go
// portsweep - concurrent TCP port reachability scanner

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/portsweep/portsweep/internal/core"
	"github.com/portsweep/portsweep/internal/output"
	"github.com/portsweep/portsweep/internal/scanner"
	"github.com/portsweep/portsweep/pkg/logger"
	"github.com/portsweep/portsweep/pkg/ratelimit"
)

var version = "0.1.0"

const (
	exitOK     = 0
	exitFatal  = 1
	exitSignal = 2
	exitConfig = 127
)

// configError marks failures that map to the invalid-configuration exit code.
type configError struct {
	err error
}

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	stop := new(atomic.Bool)

	cmd := newRootCmd(stop)
	cmd.SetArgs(args)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var cfgErr *configError
		if errors.As(err, &cfgErr) {
			return exitConfig
		}
		return exitFatal
	}

	if stop.Load() {
		return exitSignal
	}
	return exitOK
}

func newRootCmd(stop *atomic.Bool) *cobra.Command {
	var (
		cfgFile    string
		targets    string
		excludes   string
		ports      string
		concurrent int
		adaptive   bool
		timeoutMs  int
		jsonOut    string
		rate       int
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:           "portsweep",
		Short:         "Scans TCP ports",
		Long:          "Concurrent TCP port reachability scanner for address ranges.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := core.Load(cfgFile)
			if err != nil {
				return &configError{err}
			}

			f := cmd.Flags()
			if f.Changed("target") {
				cfg.Scan.Targets = parseList(targets)
			}
			if f.Changed("exclude") {
				cfg.Scan.Excludes = parseList(excludes)
			}
			if f.Changed("ports") {
				cfg.Scan.Ports = ports
			}
			if f.Changed("concurrent-scans") {
				cfg.Scan.ConcurrentScans = concurrent
			}
			if f.Changed("enable-adaptive-timing") {
				cfg.Scan.AdaptiveTiming = adaptive
			}
			if f.Changed("timeout") {
				cfg.Scan.Timeout = time.Duration(timeoutMs) * time.Millisecond
			}
			if f.Changed("json") {
				cfg.Output.JSON = jsonOut
			}
			if f.Changed("rate") {
				cfg.Scan.Rate = rate
			}
			if verbose {
				cfg.Log.Level = "debug"
			}

			if err := cfg.Validate(); err != nil {
				return &configError{err}
			}

			if err := logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer logger.Sync()

			return runScan(cmd.Context(), cfg, stop)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&targets, "target", "t", "",
		"Address(es) of the host(s) to scan, IP addresses or CIDRs separated by comma")
	flags.StringVarP(&excludes, "exclude", "e", "",
		"Comma-separated list of addresses to exclude from scanning")
	flags.StringVarP(&ports, "ports", "p", "1-100", "Ports to scan")
	flags.IntVarP(&concurrent, "concurrent-scans", "b", 100, "Number of concurrent scans to run")
	flags.BoolVarP(&adaptive, "enable-adaptive-timing", "A", false,
		"Enable adaptive timing (adapt timeout based on detected connection delay)")
	flags.IntVarP(&timeoutMs, "timeout", "T", 1000,
		"Timeout in ms to wait for response before determining port as closed/firewalled")
	flags.StringVarP(&jsonOut, "json", "j", "",
		"Write output as JSON into given file, - to write to stdout")
	flags.StringVar(&cfgFile, "config", "", "Path to YAML config file")
	flags.IntVar(&rate, "rate", 0, "Max probes per second, 0 for unlimited")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Verbose output (debug level)")

	return cmd
}

func runScan(ctx context.Context, cfg *core.Config, stop *atomic.Bool) error {
	rng, err := scanner.NewScanRange(cfg.Scan.Targets, cfg.Scan.Excludes, cfg.Scan.Ports, stop)
	if err != nil {
		return &configError{err}
	}

	var opts []scanner.Option
	if cfg.Scan.Rate > 0 {
		opts = append(opts, scanner.WithLimiter(ratelimit.New(cfg.Scan.Rate)))
	}

	eng, err := scanner.NewEngine(cfg.Parameters(), opts...)
	if err != nil {
		return &configError{err}
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		for range sigCh {
			// Cooperative: stop target issuance, let in-flight probes drain.
			logger.Info("received termination signal, setting stop flag")
			stop.Store(true)
		}
	}()

	summary := output.Collect(eng.Scan(ctx, rng))

	logger.Debug("collector stopped",
		logger.Int("hosts", summary.HostsScanned()),
		logger.Bool("stopped_early", stop.Load()),
	)

	if cfg.Output.JSON != "" {
		if err := output.WriteJSONFile(cfg.Output.JSON, summary); err != nil {
			return fmt.Errorf("unable to write JSON output: %w", err)
		}
		return nil
	}
	return output.NewConsoleWriter(os.Stdout).WriteSummary(summary)
}

// parseList parses comma-separated string into slice
func parseList(s string) []string {
	var result []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
