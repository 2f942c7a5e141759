package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	bwerrors "github.com/matzehuels/blockworld/pkg/errors"
	"github.com/matzehuels/blockworld/pkg/pipeline"
)

// blockOpts holds the flags shared by every command that renders a block.
// Flags left unset fall back to the [render] section of the config.
type blockOpts struct {
	scale       float64
	color       string
	seed        string
	anim        float64
	model       string
	modelSize   int
	modelChance float64
	sourceFile  string
	noCache     bool
	refresh     bool

	flags *pflag.FlagSet
}

func (b *blockOpts) register(fs *pflag.FlagSet) {
	b.flags = fs
	fs.Float64Var(&b.scale, "scale", 0, "world units per grid cell (default 0.5)")
	fs.StringVar(&b.color, "color", "", "parcel color as #rgb or #rrggbb")
	fs.StringVar(&b.seed, "seed", "", "decoration seed (default: current UTC minute)")
	fs.Float64Var(&b.anim, "anim", 0, "chance a parcel floats, 0..1 (negative disables)")
	fs.StringVar(&b.model, "model", "", "model placed on one large parcel")
	fs.IntVar(&b.modelSize, "model-size", 0, "minimum parcel size that may carry the model")
	fs.Float64Var(&b.modelChance, "model-chance", 0, "chance the model is placed, 0..1 (negative disables)")
	fs.StringVar(&b.sourceFile, "source-file", "", "read values from a file instead of the API ({height} is replaced)")
	fs.BoolVar(&b.noCache, "no-cache", false, "disable caching")
	fs.BoolVar(&b.refresh, "refresh", false, "ignore cached results and fetch again")
}

func (b *blockOpts) changed(name string) bool {
	return b.flags != nil && b.flags.Changed(name)
}

// options merges config defaults with the flags that were set.
func (b *blockOpts) options(height int64, cfg Config) pipeline.Options {
	opts := cfg.renderDefaults()
	opts.BlockHeight = height
	opts.Seed = b.seed
	opts.Refresh = b.refresh
	if b.changed("scale") {
		opts.Scale = b.scale
	}
	if b.changed("color") {
		opts.Color = b.color
	}
	if b.changed("anim") {
		opts.AnimChance = b.anim
	}
	if b.changed("model") {
		opts.ModelSrc = b.model
	}
	if b.changed("model-size") {
		opts.ModelSize = b.modelSize
	}
	if b.changed("model-chance") {
		opts.ModelChance = b.modelChance
	}
	return opts
}

// executeBlock loads the config, runs the pipeline for the block named by
// arg and returns the runner for further use. The caller closes it.
func (c *CLI) executeBlock(ctx context.Context, arg string, bo *blockOpts) (*pipeline.Result, *pipeline.Runner, error) {
	height, err := bwerrors.ParseBlockHeight(arg)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := loadConfig(c.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	runner, err := c.newRunner(ctx, cfg, sourceOpts{file: bo.sourceFile, noCache: bo.noCache})
	if err != nil {
		return nil, nil, err
	}

	prog := newProgress(c.Logger)
	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Building block %d...", height))
	spinner.Start()
	res, err := runner.Execute(ctx, bo.options(height, cfg))
	spinner.Stop()
	if err != nil {
		runner.Close()
		return nil, nil, err
	}
	prog.block(res)
	return res, runner, nil
}

type renderOpts struct {
	blockOpts
	output string
	stats  bool
}

// renderCommand creates the render command that emits a block's markup.
func (c *CLI) renderCommand() *cobra.Command {
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render <height>",
		Short: "Render a block as MML markup",
		Long: `Render fetches the transactions of a block, packs them into parcels and
writes the resulting MML document to a file or stdout.

Decorations (floating parcels, the model) are seeded; pass the same --seed
to reproduce a document byte for byte.`,
		Example: `  blockworld render 840000 -o block.html
  blockworld render 840000 --seed demo --anim 0.2 --model duck.glb
  blockworld render 1 --source-file testdata/block-{height}.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRender(cmd.Context(), args[0], &opts)
		},
	}

	opts.register(cmd.Flags())
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&opts.stats, "stats", false, "print the parcel size table after rendering")

	return cmd
}

func (c *CLI) runRender(ctx context.Context, arg string, opts *renderOpts) error {
	res, runner, err := c.executeBlock(ctx, arg, &opts.blockOpts)
	if err != nil {
		return err
	}
	defer runner.Close()

	if opts.output == "" {
		_, err := fmt.Fprintln(os.Stdout, res.Markup)
		return err
	}
	if err := os.WriteFile(opts.output, []byte(res.Markup+"\n"), 0o644); err != nil {
		return bwerrors.Wrap(bwerrors.ErrCodeInternal, err, "write %s", opts.output)
	}
	c.Logger.Debug("wrote markup", "path", opts.output, "bytes", len(res.Markup)+1)

	printSuccess("Block %s", StyleHighlight.Render(fmt.Sprint(res.BlockHeight)))
	printBlockStats(res)
	printFile(opts.output)
	if opts.stats {
		printNewline()
		fmt.Println(statsTable(res.Stats))
	}
	printNewline()
	printNextStep("Preview it", fmt.Sprintf("%s inspect %s", appName, opts.output))
	return nil
}
