package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/blockworld/pkg/cache"
	bwerrors "github.com/matzehuels/blockworld/pkg/errors"
	"github.com/matzehuels/blockworld/pkg/layout/mondrian"
	"github.com/matzehuels/blockworld/pkg/layout/sizeclass"
	"github.com/matzehuels/blockworld/pkg/mml"
	"github.com/matzehuels/blockworld/pkg/observability"
	"github.com/matzehuels/blockworld/pkg/scene"
	"github.com/matzehuels/blockworld/pkg/txdata"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and server use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache, source and logger. Multiple
// goroutines can safely use the same Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Source txdata.Source
	Logger *log.Logger

	// Clock supplies the default seed; nil means time.Now.
	Clock func() time.Time
}

// NewRunner creates a runner with the given cache, keyer and source.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, src txdata.Source, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Source: src,
		Logger: logger,
		Clock:  time.Now,
	}
}

func (r *Runner) now() time.Time {
	if r.Clock == nil {
		return time.Now()
	}
	return r.Clock()
}

// Prepare applies defaults and validates opts against the runner's clock
// and logger.
func (r *Runner) Prepare(opts *Options) error {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
	opts.SetDefaults(r.now())
	return opts.Validate()
}

// Execute runs the complete fetch → pack → emit pipeline with caching.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := r.Prepare(&opts); err != nil {
		return nil, err
	}
	logger := opts.Logger

	result := &Result{BlockHeight: opts.BlockHeight, Seed: opts.Seed, ModelIndex: -1}

	// Stage 1: Fetch
	start := time.Now()
	values, hit, err := r.Fetch(ctx, opts)
	if err != nil {
		return nil, err
	}
	result.TxCount = len(values)
	result.Timings.Fetch = time.Since(start)
	result.CacheInfo.FetchHit = hit
	logger.Info("fetched transactions",
		"height", opts.BlockHeight,
		"count", len(values),
		"cached", hit,
		"duration", result.Timings.Fetch)

	// Stage 2: Pack
	start = time.Now()
	packing, hit, err := r.Pack(ctx, values, opts)
	if err != nil {
		return nil, err
	}
	result.Packing = packing
	result.Timings.Pack = time.Since(start)
	result.CacheInfo.PackHit = hit
	logger.Info("packed parcels",
		"width", packing.Width,
		"rows", packing.Height,
		"cached", hit,
		"duration", result.Timings.Pack)

	// Stage 3: Emit
	start = time.Now()
	entry, hit, err := r.Emit(ctx, packing, opts)
	if err != nil {
		return nil, err
	}
	result.Markup = entry.Markup
	result.Stats = entry.Stats
	result.Animated = entry.Animated
	result.ModelIndex = entry.ModelIndex
	result.Timings.Emit = time.Since(start)
	result.CacheInfo.MarkupHit = hit
	logger.Info("emitted markup",
		"bytes", len(entry.Markup),
		"animated", entry.Animated,
		"seed", opts.Seed,
		"cached", hit,
		"duration", result.Timings.Emit)

	return result, nil
}

// Fetch returns the transaction sizes of opts.BlockHeight, from cache when
// possible. The boolean reports a cache hit.
func (r *Runner) Fetch(ctx context.Context, opts Options) ([]int64, bool, error) {
	if r.Source == nil {
		return nil, false, bwerrors.New(bwerrors.ErrCodeInvalidConfig, "no transaction source configured")
	}
	key := r.Keyer.TxKey(opts.BlockHeight)

	if !opts.Refresh {
		var values []int64
		if r.getJSON(ctx, key, &values) {
			return values, true, nil
		}
	}

	hooks := observability.Pipeline()
	hooks.OnFetchStart(ctx, opts.BlockHeight)
	start := time.Now()
	values, err := r.Source.Values(ctx, opts.BlockHeight)
	hooks.OnFetchComplete(ctx, opts.BlockHeight, len(values), time.Since(start), err)
	if err != nil {
		code := bwerrors.GetCode(err)
		switch {
		case code != "":
		case errors.Is(err, txdata.ErrNotFound):
			code = bwerrors.ErrCodeNotFound
		default:
			code = bwerrors.ErrCodeNetwork
		}
		return nil, false, bwerrors.Wrap(code, err, "fetch block %d", opts.BlockHeight)
	}

	r.setJSON(ctx, key, values, cache.TTLTx)
	return values, false, nil
}

// Pack classifies and places values, from cache when possible.
func (r *Runner) Pack(ctx context.Context, values []int64, opts Options) (*Packing, bool, error) {
	sizes := sizeclass.ClassifyAll(values)
	width := sizeclass.GridWidth(sizes)
	key := r.Keyer.LayoutKey(cache.HashValues(values), cache.LayoutKeyOpts{Width: width})

	if !opts.Refresh {
		var p Packing
		if r.getJSON(ctx, key, &p) && len(p.Squares) == len(values) {
			return &p, true, nil
		}
	}

	hooks := observability.Pipeline()
	hooks.OnPackStart(ctx, len(sizes), width)
	start := time.Now()
	p, err := PackSizes(sizes, width)
	hooks.OnPackComplete(ctx, len(sizes), time.Since(start), err)
	if err != nil {
		return nil, false, err
	}

	r.setJSON(ctx, key, p, cache.TTLLayout)
	return p, false, nil
}

// Emit writes markup for a packing, from cache when possible.
func (r *Runner) Emit(ctx context.Context, p *Packing, opts Options) (*markupEntry, bool, error) {
	layoutData, err := json.Marshal(p)
	if err != nil {
		return nil, false, bwerrors.Wrap(bwerrors.ErrCodeInternal, err, "serialize packing for cache key")
	}
	key := r.Keyer.MarkupKey(cache.Hash(layoutData), opts.MarkupKeyOpts())

	if !opts.Refresh {
		var entry markupEntry
		if r.getJSON(ctx, key, &entry) && entry.Markup != "" {
			return &entry, true, nil
		}
	}

	hooks := observability.Pipeline()
	hooks.OnEmitStart(ctx, len(p.Squares))
	start := time.Now()
	out, err := mml.Emit(p.Squares, p.Width, opts.EmitOptions())
	size := 0
	if out != nil {
		size = len(out.Markup)
	}
	hooks.OnEmitComplete(ctx, size, time.Since(start), err)
	if err != nil {
		return nil, false, err
	}

	entry := &markupEntry{
		Markup:     out.Markup,
		Stats:      out.Stats,
		Animated:   out.Animated,
		ModelIndex: out.ModelIndex,
	}
	r.setJSON(ctx, key, entry, cache.TTLMarkup)
	return entry, false, nil
}

// PackSizes places parcels of the given sizes, in order, on a grid of the
// given width.
func PackSizes(sizes []int, width int) (*Packing, error) {
	l, err := mondrian.Pack(width, sizes)
	if err != nil {
		return nil, bwerrors.Wrap(bwerrors.ErrCodeInvalidSize, err, "pack %d parcels", len(sizes))
	}
	squares := l.Squares()
	if squares == nil {
		squares = []mondrian.Square{}
	}
	return &Packing{
		Sizes:   sizes,
		Width:   width,
		Height:  l.Size().Height,
		Squares: squares,
	}, nil
}

// BuildScene parses markup and builds a scene with b. Parse warnings are
// logged, never returned.
func (r *Runner) BuildScene(ctx context.Context, markup string, b *scene.Builder) (*scene.Scene, error) {
	doc, err := mml.ParseString(markup)
	if err != nil {
		return nil, err
	}
	for _, w := range doc.Warnings {
		r.Logger.Warn("markup", "warning", w.String())
	}
	if b == nil {
		b = scene.NewBuilder(nil, r.Logger)
	}
	return b.Build(ctx, doc)
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// getJSON reports whether key was cached and decoded into v. Decode
// failures count as a miss so the stage recomputes.
func (r *Runner) getJSON(ctx context.Context, key string, v any) bool {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		r.Logger.Debug("cache read failed", "key", key, "error", err)
		return false
	}
	if !hit {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		r.Logger.Debug("cache entry unreadable", "key", key, "error", err)
		return false
	}
	return true
}

func (r *Runner) setJSON(ctx context.Context, key string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := r.Cache.Set(ctx, key, data, ttl); err != nil {
		r.Logger.Debug("cache write failed", "key", key, "error", err)
	}
}
