package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/blockworld/pkg/mml"
	"github.com/matzehuels/blockworld/pkg/pipeline"
)

func sampleResult() *pipeline.Result {
	return &pipeline.Result{
		BlockHeight: 840000,
		TxCount:     3050,
		Stats:       mml.Stats{Total: 3050},
		Timings:     pipeline.Timings{Fetch: 120 * time.Millisecond, Pack: 3 * time.Millisecond, Emit: 9 * time.Millisecond},
		CacheInfo:   pipeline.CacheInfo{FetchHit: true, PackHit: true},
	}
}

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name    string
		level   log.Level
		logFunc func(*log.Logger)
		wantLog bool
	}{
		{"stage detail hidden at info", log.InfoLevel, func(l *log.Logger) { l.Debug("stage", "name", "fetch") }, false},
		{"summary shown at info", log.InfoLevel, func(l *log.Logger) { l.Info("Built block 1") }, true},
		{"stage detail shown at debug", log.DebugLevel, func(l *log.Logger) { l.Debug("stage", "name", "fetch") }, true},
		{"warnings shown at info", log.InfoLevel, func(l *log.Logger) { l.Warn("cache unavailable") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.logFunc(newLogger(&buf, tt.level))
			if got := buf.Len() > 0; got != tt.wantLog {
				t.Errorf("got log output = %v, want %v", got, tt.wantLog)
			}
		})
	}
}

func TestProgressDone(t *testing.T) {
	var buf bytes.Buffer
	prog := newProgress(newLogger(&buf, log.InfoLevel))
	prog.done("Loaded media", "sources", 4)

	out := buf.String()
	for _, want := range []string{"Loaded media (", "s)", "sources=4"} {
		if !strings.Contains(out, want) {
			t.Errorf("done() output missing %q:\n%s", want, out)
		}
	}
}

func TestProgressBlock(t *testing.T) {
	tests := []struct {
		name       string
		level      log.Level
		wantStages bool
	}{
		{"info", log.InfoLevel, false},
		{"debug", log.DebugLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			newProgress(newLogger(&buf, tt.level)).block(sampleResult())
			out := buf.String()

			for _, want := range []string{"Built block 840000", "txs=3050", "parcels=3050", "cached=2/3"} {
				if !strings.Contains(out, want) {
					t.Errorf("block() output missing %q:\n%s", want, out)
				}
			}
			for _, stage := range []string{"name=fetch", "name=pack", "name=emit"} {
				if got := strings.Contains(out, stage); got != tt.wantStages {
					t.Errorf("stage line %q present = %v, want %v", stage, got, tt.wantStages)
				}
			}
			if tt.wantStages && !strings.Contains(out, "took=120ms") {
				t.Errorf("fetch stage should report its duration:\n%s", out)
			}
		})
	}
}

func TestStages(t *testing.T) {
	got := stages(sampleResult())
	want := []stageTiming{
		{"fetch", 120 * time.Millisecond, true},
		{"pack", 3 * time.Millisecond, true},
		{"emit", 9 * time.Millisecond, false},
	}
	if len(got) != len(want) {
		t.Fatalf("stages() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("stages()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestCachedStages(t *testing.T) {
	tests := []struct {
		info pipeline.CacheInfo
		want string
	}{
		{pipeline.CacheInfo{}, "0/3"},
		{pipeline.CacheInfo{FetchHit: true}, "1/3"},
		{pipeline.CacheInfo{FetchHit: true, PackHit: true, MarkupHit: true}, "3/3"},
	}
	for _, tt := range tests {
		res := &pipeline.Result{CacheInfo: tt.info}
		if got := cachedStages(res); got != tt.want {
			t.Errorf("cachedStages(%+v) = %q, want %q", tt.info, got, tt.want)
		}
	}
}
