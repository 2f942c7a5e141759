package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	bwerrors "github.com/matzehuels/blockworld/pkg/errors"
	"github.com/matzehuels/blockworld/pkg/mml"
	"github.com/matzehuels/blockworld/pkg/scene"
	"github.com/matzehuels/blockworld/pkg/scene/nodelink"
)

type inspectOpts struct {
	json     bool
	tree     string
	detailed bool
	load     bool
	timeout  time.Duration
}

// inspectCommand creates the inspect command that parses markup and reports
// the scene it builds.
func (c *CLI) inspectCommand() *cobra.Command {
	opts := inspectOpts{timeout: 10 * time.Second}

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Parse MML markup and report its scene tree",
		Long: `Inspect parses an MML document (use "-" for stdin), builds its scene and
prints the element counts and parse warnings. With --load, media sources are
fetched and their status reported. With --tree, the scene tree is drawn with
Graphviz (.svg, .png or .dot by extension).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInspect(cmd.Context(), args[0], &opts)
		},
	}

	cmd.Flags().BoolVar(&opts.json, "json", false, "print the scene as JSON")
	cmd.Flags().StringVar(&opts.tree, "tree", "", "write the scene tree diagram to this file")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "include geometry and media in tree labels")
	cmd.Flags().BoolVar(&opts.load, "load", false, "load media sources before reporting")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", opts.timeout, "how long to wait for media with --load")

	return cmd
}

func (c *CLI) runInspect(ctx context.Context, input string, opts *inspectOpts) error {
	doc, err := readMarkup(input)
	if err != nil {
		return err
	}

	var loader scene.Loader
	if opts.load {
		root := "."
		if input != "-" {
			root = filepath.Dir(input)
		}
		loader = scene.NewMultiLoader(root)
	}
	s, err := scene.NewBuilder(loader, c.Logger).Build(ctx, doc)
	if err != nil {
		return err
	}
	defer s.Close()

	if opts.load && s.Pending() > 0 {
		prog, sources := newProgress(c.Logger), s.Pending()
		spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Loading %d media sources...", sources))
		spinner.Start()
		waitCtx, cancel := context.WithTimeout(ctx, opts.timeout)
		err := s.Wait(waitCtx)
		cancel()
		spinner.Stop()
		if err != nil && ctx.Err() == nil {
			printWarning("%d media sources still loading after %s", s.Pending(), opts.timeout)
		} else if err == nil {
			prog.done("Loaded media", "sources", sources)
		}
	}

	if opts.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	fmt.Println(StyleTitle.Render(inspectTitle(input)))
	printNewline()
	fmt.Println(countTable(mml.Count(doc.Root)))
	for _, w := range doc.Warnings {
		printWarning("%s", w.String())
	}
	if opts.load {
		printMediaReport(s)
	}

	if opts.tree != "" {
		if err := writeTree(s, opts.tree, opts.detailed); err != nil {
			return err
		}
		printFile(opts.tree)
	}
	return nil
}

func inspectTitle(input string) string {
	if input == "-" {
		return "stdin"
	}
	return input
}

func readMarkup(input string) (*mml.Document, error) {
	var r io.Reader = os.Stdin
	if input != "-" {
		f, err := os.Open(input)
		if err != nil {
			return nil, bwerrors.Wrap(bwerrors.ErrCodeNotFound, err, "open %s", input)
		}
		defer f.Close()
		r = f
	}
	return mml.Parse(r)
}

// countTable renders element counts, most frequent first.
func countTable(counts map[string]int) string {
	tags := make([]string, 0, len(counts))
	for tag := range counts {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool {
		if counts[tags[i]] != counts[tags[j]] {
			return counts[tags[i]] > counts[tags[j]]
		}
		return tags[i] < tags[j]
	})

	rows := make([][]string, len(tags))
	for i, tag := range tags {
		rows[i] = []string{tag, strconv.Itoa(counts[tag])}
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("ELEMENT", "COUNT").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return tableHeaderStyle
			}
			return tableCellStyle
		}).
		String()
}

func printMediaReport(s *scene.Scene) {
	var loaded, failed, pending int
	s.Walk(func(n *scene.Node) bool {
		if !n.Kind.IsMedia() {
			return true
		}
		switch n.Content.Status {
		case scene.ContentLoaded:
			loaded++
			printDetail("%s %s: %s", n.Tag, n.Src, n.Content.Media.MIME)
		case scene.ContentFailed:
			failed++
			printError("%s %s: %s", n.Tag, n.Src, n.Content.Err)
		case scene.ContentPending:
			pending++
		}
		return true
	})
	fmt.Println(statsLine([]string{
		fmt.Sprintf("%d loaded", loaded),
		fmt.Sprintf("%d failed", failed),
		fmt.Sprintf("%d pending", pending),
	}, ""))
}

// writeTree renders the scene tree in the format implied by path's extension.
func writeTree(s *scene.Scene, path string, detailed bool) error {
	dot := nodelink.ToDOT(s, nodelink.Options{Detailed: detailed})

	var (
		data []byte
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".dot", ".gv":
		data = []byte(dot)
	case ".png":
		data, err = nodelink.RenderPNG(dot)
	case ".svg", "":
		data, err = nodelink.RenderSVG(dot)
	default:
		return bwerrors.New(bwerrors.ErrCodeUnsupported, "unsupported tree format %q (want .svg, .png or .dot)", ext)
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return bwerrors.Wrap(bwerrors.ErrCodeInternal, err, "write %s", path)
	}
	return nil
}
