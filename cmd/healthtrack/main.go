// Command healthtrack operates the health record repository from the shell:
// it seeds, inspects and edits the dataset held by the configured backend.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"healthtrack/internal/config"
	"healthtrack/internal/core"
	"healthtrack/internal/platform/logger"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

var (
	exitFunc   = os.Exit
	loadConfig = config.Load
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, svc *core.Service, args []string, stdout io.Writer) error
}

var commands = []command{
	{"init", "initialize the default dataset when none is stored", runInit},
	{"stats", "print dashboard statistics for the current user", runStats},
	{"conditions", "list the current user's conditions with their symptoms", runConditions},
	{"add-condition", "register a condition with its symptoms", runAddCondition},
	{"update-condition", "change a condition's status or cured flag", runUpdateCondition},
	{"record", "append an intensity observation for a symptom", runRecord},
	{"use-user", "remember the current user", runUseUser},
	{"reset", "remove the stored dataset", runReset},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := cli(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	exitFunc(code)
}

func cli(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("healthtrack", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var showMetrics, showTrace bool
	fs.BoolVar(&showMetrics, "metrics", false, "print operation metrics to stderr on exit")
	fs.BoolVar(&showTrace, "trace", false, "print operation spans to stderr")
	fs.Usage = func() { usage(fs, stderr) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() == 0 {
		usage(fs, stderr)
		return exitUsage
	}
	cmd, ok := lookupCommand(fs.Arg(0))
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", fs.Arg(0))
		usage(fs, stderr)
		return exitUsage
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return exitFailure
	}
	log := logger.NewWithWriter(cfg.LogMode, stderr)
	defer log.Sync()

	var opts []core.Option
	registry := prometheus.NewRegistry()
	if showMetrics {
		metrics, err := core.NewPrometheusMetrics(registry)
		if err != nil {
			fmt.Fprintf(stderr, "register metrics: %v\n", err)
			return exitFailure
		}
		opts = append(opts, core.WithMetrics(metrics))
	}
	if showTrace {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(stderr), stdouttrace.WithPrettyPrint())
		if err != nil {
			fmt.Fprintf(stderr, "init tracing: %v\n", err)
			return exitFailure
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
		defer func() { _ = tp.Shutdown(context.WithoutCancel(ctx)) }()
		opts = append(opts, core.WithTracer(core.NewOTelTracer(tp)))
	}

	svc, closeStore, err := core.OpenService(ctx, cfg, log, opts...)
	if err != nil {
		log.Error("open service failed", "error", err)
		fmt.Fprintf(stderr, "%v\n", err)
		return exitFailure
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn("close storage failed", "error", err)
		}
	}()

	code := exitOK
	if err := cmd.run(ctx, svc, fs.Args()[1:], stdout); err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", cmd.name, err)
		code = exitFailure
		var uerr usageError
		if errors.As(err, &uerr) {
			code = exitUsage
		}
	}
	if showMetrics {
		if err := writeMetrics(registry, stderr); err != nil {
			fmt.Fprintf(stderr, "write metrics: %v\n", err)
		}
	}
	return code
}

func lookupCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func usage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintln(w, "usage: healthtrack [-metrics] [-trace] <command> [flags]")
	fmt.Fprintln(w, "\ncommands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-17s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(w, "\nglobal flags:")
	fs.PrintDefaults()
}

// usageError marks bad command-line input.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeMetrics(g prometheus.Gatherer, w io.Writer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

// symptomFlags collects repeated -symptom name:intensity values.
type symptomFlags []string

func (s *symptomFlags) String() string { return strings.Join(*s, ",") }

func (s *symptomFlags) Set(v string) error {
	*s = append(*s, v)
	return nil
}
