// Package cli implements the blockworld command-line interface.
//
// The commands fetch a block's transaction values, pack them into parcels
// and emit MML markup, then either write it out, summarize it, preview it
// in the terminal, or serve it over HTTP. Results are cached through
// pkg/cache; the backend and the transaction source come from config.toml.
//
// # Commands
//
// The main commands are:
//   - render: Emit a block's markup to a file or stdout
//   - stats: Print the parcel size histogram of a block
//   - inspect: Parse a markup file and report its scene tree
//   - preview: Animate a block as a top-down map in the terminal
//   - serve: Serve blocks and world rooms over HTTP
//   - cache: Manage the result cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. A block run
// logs one info line when it finishes and, at debug level, one line per
// pipeline stage with its duration and whether the cache served it.
//
// # Example
//
//	import "github.com/matzehuels/blockworld/internal/cli"
//
//	func main() {
//	    c := cli.New(os.Stderr, cli.LogInfo)
//	    if err := c.RootCommand().ExecuteContext(ctx); err != nil {
//	        os.Exit(1)
//	    }
//	}
package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/blockworld/pkg/pipeline"
)

// newLogger creates a logger writing to w at level, with "HH:MM:SS.ms"
// timestamps (e.g. "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress times one command from its creation.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg with the elapsed time rounded to the millisecond and any
// extra key/value pairs, e.g. "Built block 840000 (1.234s) txs=3050".
func (p *progress) done(msg string, keyvals ...any) {
	p.logger.Info(fmt.Sprintf("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond)), keyvals...)
}

// block reports a finished pipeline run.
func (p *progress) block(res *pipeline.Result) {
	for _, st := range stages(res) {
		p.logger.Debug("stage", "name", st.name, "took", st.took.Round(time.Microsecond), "cached", st.cached)
	}
	p.done(fmt.Sprintf("Built block %d", res.BlockHeight),
		"txs", res.TxCount, "parcels", res.Stats.Total, "cached", cachedStages(res))
}

type stageTiming struct {
	name   string
	took   time.Duration
	cached bool
}

// stages lists the pipeline stages of res in execution order.
func stages(res *pipeline.Result) []stageTiming {
	return []stageTiming{
		{"fetch", res.Timings.Fetch, res.CacheInfo.FetchHit},
		{"pack", res.Timings.Pack, res.CacheInfo.PackHit},
		{"emit", res.Timings.Emit, res.CacheInfo.MarkupHit},
	}
}

// cachedStages formats the cache hits of res as "2/3".
func cachedStages(res *pipeline.Result) string {
	all := stages(res)
	n := 0
	for _, st := range all {
		if st.cached {
			n++
		}
	}
	return fmt.Sprintf("%d/%d", n, len(all))
}
