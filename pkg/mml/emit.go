package mml

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	bwerrors "github.com/matzehuels/blockworld/pkg/errors"
	"github.com/matzehuels/blockworld/pkg/layout/mondrian"
	"github.com/matzehuels/blockworld/pkg/seed"
)

// Emitter defaults.
const (
	DefaultScale       = 0.5
	DefaultParcelColor = "#f7931a"
	DefaultAnimChance  = 0.05
	DefaultModelChance = 0.5

	// gapFactor shrinks each cube so neighbours do not touch.
	gapFactor = 0.9

	animStart     = 0.5
	animStartTime = 2000
	animMinDur    = 5000
)

// EmitOptions controls how placed squares become markup. Zero values select
// defaults; a negative AnimChance or ModelChance disables that decoration.
type EmitOptions struct {
	Scale       float64 // world units per grid cell
	Color       string  // parcel color, #rgb or #rrggbb
	Seed        string  // base key for every random decision
	AnimChance  float64 // probability a parcel bobs up and down
	ModelSrc    string  // model placed on one parcel; empty disables
	ModelSize   int     // parcel size that may carry the model; 0 picks the largest
	ModelChance float64 // probability the model is placed at all
}

// WithDefaults returns a copy with zero fields filled in.
func (o EmitOptions) WithDefaults() EmitOptions {
	if o.Scale == 0 {
		o.Scale = DefaultScale
	}
	if o.Color == "" {
		o.Color = DefaultParcelColor
	}
	if o.AnimChance == 0 {
		o.AnimChance = DefaultAnimChance
	}
	if o.ModelChance == 0 {
		o.ModelChance = DefaultModelChance
	}
	return o
}

// Validate checks the options after defaults have been applied.
func (o EmitOptions) Validate() error {
	if o.Scale <= 0 || math.IsNaN(o.Scale) || math.IsInf(o.Scale, 0) {
		return bwerrors.New(bwerrors.ErrCodeInvalidInput, "scale must be positive, got %v", o.Scale)
	}
	if err := bwerrors.ValidateColor(o.Color); err != nil {
		return err
	}
	if o.AnimChance > 1 {
		return bwerrors.New(bwerrors.ErrCodeInvalidInput, "anim chance must be at most 1, got %v", o.AnimChance)
	}
	if o.ModelChance > 1 {
		return bwerrors.New(bwerrors.ErrCodeInvalidInput, "model chance must be at most 1, got %v", o.ModelChance)
	}
	if o.ModelSize < 0 {
		return bwerrors.New(bwerrors.ErrCodeInvalidSize, "model size cannot be negative: %d", o.ModelSize)
	}
	return nil
}

// Stats summarizes parcel sizes in a block.
type Stats struct {
	Counts map[string]int `json:"counts"` // parcel size → count
	Total  int            `json:"total"`
	Width  int            `json:"width"` // grid width the parcels were packed into
}

// Sizes returns the sizes present, ascending.
func (s Stats) Sizes() []int {
	sizes := make([]int, 0, len(s.Counts))
	for k := range s.Counts {
		n, err := strconv.Atoi(k)
		if err == nil {
			sizes = append(sizes, n)
		}
	}
	sort.Ints(sizes)
	return sizes
}

// Output is the result of [Emit].
type Output struct {
	Markup     string
	Root       *Group
	Stats      Stats
	Animated   int // parcels carrying an attr-anim
	ModelIndex int // parcel carrying the model, or -1
}

// Emit turns placed squares into a markup document, one m-cube per square in
// placement order under a root m-group. gridWidth is the packer's width and
// centers the block on the origin. Random decorations are pure functions of
// opts.Seed, so equal inputs always produce byte-identical markup.
func Emit(squares []mondrian.Square, gridWidth int, opts EmitOptions) (*Output, error) {
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if gridWidth < 1 {
		return nil, bwerrors.New(bwerrors.ErrCodeInvalidSize, "grid width must be at least 1, got %d", gridWidth)
	}

	out := &Output{
		Root:       NewGroup(),
		Stats:      Stats{Counts: make(map[string]int), Width: gridWidth},
		ModelIndex: -1,
	}

	for i, sq := range squares {
		if sq.R < 1 {
			return nil, bwerrors.New(bwerrors.ErrCodeInvalidSize, "parcel %d has size %d", i, sq.R)
		}
		cube := parcelCube(i, sq, gridWidth, opts)
		if anim, ok := parcelAnim(i, opts); ok {
			cube.Anims = append(cube.Anims, anim)
			out.Animated++
		}
		out.Root.Children = append(out.Root.Children, cube)
		out.Stats.Counts[strconv.Itoa(sq.R)]++
		out.Stats.Total++
	}

	if idx, ok := modelParcel(squares, opts); ok {
		cube := out.Root.Children[idx].(*Cube)
		cube.Children = append(cube.Children, parcelModel(opts.ModelSrc))
		out.ModelIndex = idx
	}

	out.Markup = EncodeString(out.Root)
	return out, nil
}

// parcelCube maps a grid square to world space: x and z come from the grid
// column and row, centered on the block, and the cube sits on y=0.
func parcelCube(i int, sq mondrian.Square, gridWidth int, opts EmitOptions) *Cube {
	r := float64(sq.R)
	s := opts.Scale
	half := float64(gridWidth) / 2
	margin := s * 0.5
	thickness := s * 0.1

	c := &Cube{
		Common: NewCommon(),
		Width:  r * s * gapFactor,
		Height: thickness * r,
		Depth:  r * s * gapFactor,
		Color:  opts.Color,
	}
	c.ID = fmt.Sprintf("parcel-%d-size-%d", i, sq.R)
	c.Transform.X = (float64(sq.X)+r-half)*s - margin*r
	c.Transform.Y = 0.1 * r / 2
	c.Transform.Z = (float64(sq.Y)+r-half)*s - margin*r
	return c
}

func parcelAnim(i int, opts EmitOptions) (AttrAnim, bool) {
	if opts.AnimChance <= 0 {
		return AttrAnim{}, false
	}
	rng := seed.New(seed.Key(opts.Seed, "anim", i))
	if rng.Float64() <= 1-opts.AnimChance {
		return AttrAnim{}, false
	}
	return AttrAnim{
		Attr:      "y",
		Start:     animStart,
		End:       animStart + math.Floor(rng.Float64()*10),
		StartTime: animStartTime,
		Duration:  animMinDur + math.Floor(rng.Float64()*animMinDur),
		PingPong:  true,
		Easing:    DefaultEasing,
	}, true
}

func parcelModel(src string) *Model {
	m := &Model{Common: NewCommon(), Src: src}
	m.Transform.Y = 0.65
	m.Transform.SX, m.Transform.SY, m.Transform.SZ = 0.5, 0.5, 0.5
	return m
}

// modelParcel picks at most one parcel of the model size to carry the model.
func modelParcel(squares []mondrian.Square, opts EmitOptions) (int, bool) {
	if opts.ModelSrc == "" || opts.ModelChance <= 0 || len(squares) == 0 {
		return 0, false
	}
	target := opts.ModelSize
	if target == 0 {
		for _, sq := range squares {
			target = max(target, sq.R)
		}
	}

	var candidates []int
	for i, sq := range squares {
		if sq.R == target {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return 0, false
	}

	rng := seed.New(seed.Key(opts.Seed, "model"))
	if rng.Float64() >= opts.ModelChance {
		return 0, false
	}
	return candidates[rng.IntN(len(candidates))], true
}
