// odflowd reads a stream of 56-byte flow records from stdin (or a named
// pipe fed by odflow-pcapread) and writes a ranked Hierarchical
// Heavy-Hitter summary to stdout or a file, once per aggregation
// interval (spec §5, §7).
package main

import (
	"errors"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/odflow/odflow/ingest"
	"github.com/odflow/odflow/odflow"
	"github.com/odflow/odflow/output"
	"github.com/odflow/odflow/pipeline"
	"github.com/odflow/odflow/query"
)

var (
	optCriteria  = flag.String("criteria", "byte", "aggregation criteria: byte, packet, or combination")
	optInterval  = flag.Int("interval", 60, "aggregation interval, seconds")
	optOutputInt = flag.Int("output_interval", 0, "two-stage output interval, seconds (0 disables two-stage)")
	optThreshold = flag.Float64("threshold", 1, "heavy-hitter threshold, percent of interval traffic")
	optNFlows    = flag.Int("nflows", 0, "cap the number of reported odflows (0 = unbounded)")
	optHeur      = flag.Int("disable_heuristics", 0, "0=all heuristics, 1=keep sub-attribute multiplier only, 2=none")
	optFilter    = flag.String("filter", "", `address/protocol filter, "<addr>[/len][:proto]"`)
	optFormat    = flag.String("format", "text", "output format: text, json, or debug")
	optOutput    = flag.String("output", "-", `output path, "-" for stdout`)
	optVerbose   = flag.Bool("v", false, "verbose (debug-level) logging")
)

func main() {
	flag.Parse()

	logLevel := zerolog.InfoLevel
	if *optVerbose {
		logLevel = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger().Level(logLevel)

	q := buildQuery(&log)

	var out *output.OutputRotator
	var outPath string
	if *optOutput != "-" {
		var err error
		out, err = output.NewOutputRotator(*optOutput, &log)
		if err != nil {
			log.Fatal().Err(err).Str("path", *optOutput).Msg("opening output file")
		}
		outPath = *optOutput
		defer out.Close()
	}

	var nResult int
	p := pipeline.New(q, func(result *odflow.Queue, buf *ingest.Response) {
		nResult++
		s := &output.Summary{
			Query:       q,
			Result:      result,
			StartTime:   buf.StartTime,
			EndTime:     buf.EndTime,
			Interval:    q.Interval,
			NFlows:      result.Len(),
			TotalByte:   sumByte(result),
			TotalPacket: sumPacket(result),
		}

		var w io.Writer = os.Stdout
		if out != nil {
			w = out
		}

		var err error
		switch *optFormat {
		case "json":
			err = output.WriteJSON(w, s)
		case "debug":
			err = output.WriteDebug(w, s)
		default:
			err = output.WriteText(w, s)
		}
		if err != nil {
			log.Error().Err(err).Msg("writing output")
		}
	}, &log)

	p.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
	go func() {
		for s := range sig {
			switch s {
			case syscall.SIGHUP:
				if out != nil {
					if err := out.Reopen(); err != nil {
						log.Error().Err(err).Msg("reopening output file on SIGHUP")
					}
				}
				p.Reopen()
			default:
				log.Info().Str("signal", s.String()).Msg("shutting down")
				// Stop only flags the pipeline for shutdown; it never
				// touches a buffer mutex, since this goroutine isn't the
				// one producing into it. The producer's own goroutine
				// below notices the flag via Adapter.Closing, lets
				// io.Copy return, and calls Close itself.
				p.Stop()
				return
			}
		}
	}()

	if _, err := io.Copy(p.Adapter, os.Stdin); err != nil &&
		!errors.Is(err, ingest.ErrClosing) && !errors.Is(err, ingest.ErrCaptureComplete) {
		log.Error().Err(err).Msg("reading flow records")
	}
	// Close runs on this, the producer's own goroutine, whether io.Copy
	// ended because Stop was observed mid-stream or because stdin simply
	// reached EOF; it finalizes the hand-off of the last buffer.
	p.Close()
	p.Wait()

	log.Info().Int("results", nResult).Str("output", outPath).Msg("odflowd exiting")
}

func buildQuery(log *zerolog.Logger) *query.Query {
	m := map[string]any{
		"criteria":           *optCriteria,
		"interval":           *optInterval,
		"output_interval":    *optOutputInt,
		"threshold":          *optThreshold,
		"nflows":             *optNFlows,
		"disable_heuristics": *optHeur,
	}
	q := query.FromMap(m)

	if *optFilter != "" {
		f, err := ingest.ParseFilterExpr(*optFilter)
		if err != nil {
			log.Fatal().Err(err).Str("filter", *optFilter).Msg("parsing filter expression")
		}
		q.Filter = f
	}

	return &q
}

func sumByte(q *odflow.Queue) (total uint64) {
	q.Each(func(o *odflow.Odflow) { total += o.Byte })
	return
}

func sumPacket(q *odflow.Queue) (total uint64) {
	q.Each(func(o *odflow.Odflow) { total += o.Packet })
	return
}
