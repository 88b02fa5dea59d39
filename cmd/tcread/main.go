// Command tcread loads track files of one format and prints what was read.
//
// Usage:
//
//	go run ./cmd/tcread -format bdeck bal032023.dat bal042023.dat.gz
//
// Settings come from the environment (LOG_LEVEL, LOG_FORMAT, TCTRACK_WORKERS,
// TCTRACK_UPSAMPLE, METRICS_FILE).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/couchcryptid/tctrack"
	"github.com/couchcryptid/tctrack/bufr"
	"github.com/couchcryptid/tctrack/internal/config"
	"github.com/couchcryptid/tctrack/internal/observability"
	"github.com/couchcryptid/tctrack/internal/track"
)

func main() {
	format := flag.String("format", tctrack.BDeck, "input format: adeck, bdeck, edeck, fdeck, cxml or bufr")
	showSchema := flag.Bool("schema", false, "print the columnar schema of the result")
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	reg := prometheus.NewRegistry()
	metrics := tctrack.NewMetrics(reg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []tctrack.Option{
		tctrack.WithLogger(logger),
		tctrack.WithMetrics(metrics),
		tctrack.WithWorkers(cfg.Workers),
	}
	c, err := load(ctx, *format, flag.Args(), opts)
	if err != nil {
		logger.Error("read failed", "format", *format, "error", err)
		os.Exit(1)
	}

	switch {
	case cfg.Upsample <= 0:
	case *format != tctrack.ADeck && *format != tctrack.BDeck:
		logger.Warn("upsampling applies to a and b decks only", "format", *format)
	default:
		groups := track.ForecastGroups
		if *format == tctrack.BDeck {
			groups = track.BestTrackGroups
		}
		if c, err = track.Upsample(c, cfg.Upsample, groups...); err != nil {
			logger.Error("upsample failed", "step", cfg.Upsample, "error", err)
			os.Exit(1)
		}
		logger.Info("tracks upsampled", "step", cfg.Upsample, "records", c.Len())
	}

	report(os.Stdout, c)
	if *showSchema {
		fmt.Fprintln(os.Stdout, c.ArrowSchema())
	}

	if cfg.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(cfg.MetricsFile, reg); err != nil {
			logger.Error("write metrics failed", "path", cfg.MetricsFile, "error", err)
			os.Exit(1)
		}
	}
}

func load(ctx context.Context, format string, paths []string, opts []tctrack.Option) (*tctrack.Collection, error) {
	switch format {
	case tctrack.ADeck:
		return tctrack.ReadADecks(ctx, paths, opts...)
	case tctrack.BDeck:
		return tctrack.ReadBDecks(ctx, paths, opts...)
	}

	var (
		lazy *tctrack.Lazy
		err  error
	)
	switch format {
	case tctrack.EDeck:
		lazy, err = tctrack.ScanEDeck(paths, opts...)
	case tctrack.FDeck:
		lazy, err = tctrack.ScanFDeck(paths, opts...)
	case tctrack.CXML:
		lazy, err = tctrack.ScanCXML(paths, opts...)
	case bufr.Format:
		lazy, err = bufr.Scan(paths, opts...)
	default:
		return nil, errors.New("unknown format " + format)
	}
	if err != nil {
		return nil, err
	}
	return lazy.Collect(ctx)
}

func report(w io.Writer, c *tctrack.Collection) {
	s := c.Summary()
	fmt.Fprintf(w, "format:   %s\n", s.Format)
	fmt.Fprintf(w, "sources:  %d\n", len(s.Sources))
	fmt.Fprintf(w, "units:    %d\n", s.Units)
	fmt.Fprintf(w, "records:  %d (%d replaced)\n", c.Len(), s.Replaced)
	fmt.Fprintf(w, "rejected: %d schema, %d identity\n",
		s.RejectedBy(tctrack.ReasonSchema), s.RejectedBy(tctrack.ReasonIdentity))
	fmt.Fprintf(w, "fields:   %d conversion errors, %d unknown categories\n", s.FieldErrors, s.UnknownCategories)
	fmt.Fprintf(w, "elapsed:  %s\n", s.Duration())

	types := make(map[string]int)
	for _, r := range c.Records() {
		types[r.Type]++
	}
	for _, typ := range slices.Sorted(maps.Keys(types)) {
		fmt.Fprintf(w, "  %-48s %d\n", typ, types[typ])
	}
}
