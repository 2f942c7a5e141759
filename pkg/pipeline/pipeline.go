// Package pipeline turns a block height into markup and a live scene.
//
// This package implements the fetch → pack → emit → build pipeline shared by
// the CLI and the HTTP server, so both entry points cache and log the same
// way.
//
// # Architecture
//
// The pipeline consists of four stages:
//
//  1. Fetch: read the block's transaction sizes from a [txdata.Source]
//  2. Pack: classify every value into a parcel size and place the parcels
//     on a square grid (sizeclass + mondrian)
//  3. Emit: write one cube per parcel as MML markup
//  4. Build: parse markup into an animated [scene.Scene]
//
// Fetched values and packings are cached for a long time because confirmed
// blocks never change. Markup embeds a seed and is cached per seed and
// emitter options.
//
// # Usage
//
//	runner := pipeline.NewRunner(c, nil, txdata.NewClient(url, key), logger)
//	result, err := runner.Execute(ctx, pipeline.Options{BlockHeight: 840000})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Markup)
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/blockworld/pkg/cache"
	bwerrors "github.com/matzehuels/blockworld/pkg/errors"
	"github.com/matzehuels/blockworld/pkg/layout/mondrian"
	"github.com/matzehuels/blockworld/pkg/mml"
	"github.com/matzehuels/blockworld/pkg/seed"
)

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for one pipeline run.
// This struct supports JSON serialization for API requests.
type Options struct {
	BlockHeight int64 `json:"block_height"`

	// Emit options; zero values select the emitter defaults.
	Scale       float64 `json:"scale,omitempty"`
	Color       string  `json:"color,omitempty"`
	Seed        string  `json:"seed,omitempty"` // empty: current UTC minute
	AnimChance  float64 `json:"anim_chance,omitempty"`
	ModelSrc    string  `json:"model_src,omitempty"`
	ModelSize   int     `json:"model_size,omitempty"`
	ModelChance float64 `json:"model_chance,omitempty"`

	// Refresh bypasses cached reads; results are still written back.
	Refresh bool `json:"refresh,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`
}

// SetDefaults fills zero fields. now supplies the default seed.
func (o *Options) SetDefaults(now time.Time) {
	if o.Scale == 0 {
		o.Scale = mml.DefaultScale
	}
	if o.Color == "" {
		o.Color = mml.DefaultParcelColor
	}
	if o.AnimChance == 0 {
		o.AnimChance = mml.DefaultAnimChance
	}
	if o.ModelChance == 0 {
		o.ModelChance = mml.DefaultModelChance
	}
	if o.Seed == "" {
		o.Seed = seed.Minute(now)
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// Validate checks the block height and the emitter options.
func (o *Options) Validate() error {
	if err := bwerrors.ValidateBlockHeight(o.BlockHeight); err != nil {
		return err
	}
	return o.EmitOptions().WithDefaults().Validate()
}

// EmitOptions returns the options handed to [mml.Emit].
func (o *Options) EmitOptions() mml.EmitOptions {
	return mml.EmitOptions{
		Scale:       o.Scale,
		Color:       o.Color,
		Seed:        o.Seed,
		AnimChance:  o.AnimChance,
		ModelSrc:    o.ModelSrc,
		ModelSize:   o.ModelSize,
		ModelChance: o.ModelChance,
	}
}

// MarkupKeyOpts returns cache key options for emitted markup.
func (o *Options) MarkupKeyOpts() cache.MarkupKeyOpts {
	return cache.MarkupKeyOpts{
		Scale:       o.Scale,
		Color:       o.Color,
		Seed:        o.Seed,
		AnimChance:  o.AnimChance,
		ModelSrc:    o.ModelSrc,
		ModelSize:   o.ModelSize,
		ModelChance: o.ModelChance,
	}
}

// =============================================================================
// Results
// =============================================================================

// Packing is a block's parcels placed on the grid.
type Packing struct {
	Sizes   []int             `json:"sizes"`   // parcel size per transaction, input order
	Width   int               `json:"width"`   // grid width
	Height  int               `json:"height"`  // rows actually used
	Squares []mondrian.Square `json:"squares"` // placement per parcel, input order
}

// Result contains the outputs of a pipeline run.
type Result struct {
	BlockHeight int64
	Seed        string
	TxCount     int

	Packing *Packing
	Markup  string
	Stats   mml.Stats

	Animated   int
	ModelIndex int

	Timings   Timings
	CacheInfo CacheInfo
}

// Timings records the duration of each stage.
type Timings struct {
	Fetch time.Duration
	Pack  time.Duration
	Emit  time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	FetchHit  bool
	PackHit   bool
	MarkupHit bool
}

// markupEntry is the cached form of an emit result.
type markupEntry struct {
	Markup     string    `json:"markup"`
	Stats      mml.Stats `json:"stats"`
	Animated   int       `json:"animated"`
	ModelIndex int       `json:"model_index"`
}
