package cli

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/spf13/cobra"

	"github.com/matzehuels/blockworld/pkg/mml"
	"github.com/matzehuels/blockworld/pkg/scene"
)

const defaultPreviewFPS = 20

var previewShades = []string{"▒", "▓", "█"}

type previewOpts struct {
	blockOpts
	watch bool
	fps   int
}

// previewCommand creates the preview command that animates a block or a
// markup file as a top-down map in the terminal.
func (c *CLI) previewCommand() *cobra.Command {
	opts := previewOpts{fps: defaultPreviewFPS}

	cmd := &cobra.Command{
		Use:   "preview <height|file>",
		Short: "Animate a block top-down in the terminal",
		Long: `Preview draws a block's parcels from above and plays their animations.
Raised parcels are drawn brighter. The argument is a block height, or a
path to an MML file; with --watch the file is reloaded when it changes.

Keys: space pauses, q quits.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPreview(cmd.Context(), args[0], &opts)
		},
	}

	opts.register(cmd.Flags())
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "reload the markup file when it changes")
	cmd.Flags().IntVar(&opts.fps, "fps", opts.fps, "frames per second")

	return cmd
}

func (c *CLI) runPreview(ctx context.Context, arg string, opts *previewOpts) error {
	var (
		markup string
		title  string
		isFile bool
	)
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		data, err := os.ReadFile(arg)
		if err != nil {
			return err
		}
		markup, title, isFile = string(data), arg, true
	} else {
		res, runner, err := c.executeBlock(ctx, arg, &opts.blockOpts)
		if err != nil {
			return err
		}
		runner.Close()
		markup, title = res.Markup, fmt.Sprintf("Block %d · seed %s", res.BlockHeight, res.Seed)
	}

	m, err := newPreviewModel(ctx, title, markup, opts.fps)
	if err != nil {
		return err
	}

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if opts.watch {
		if !isFile {
			printWarning("--watch only applies to markup files")
		} else {
			w, err := newMarkupWatcher(arg, c.Logger)
			if err != nil {
				return err
			}
			watchCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			go w.run(watchCtx, func(markup string, err error) {
				p.Send(reloadMsg{markup: markup, err: err})
			})
		}
	}

	final, err := p.Run()
	if fm, ok := final.(previewModel); ok {
		fm.scene.Close()
	}
	return err
}

// =============================================================================
// previewModel - Animated top-down parcel map
// =============================================================================

type frameMsg time.Time

type reloadMsg struct {
	markup string
	err    error
}

// pauseClock is a wall clock that stands still while paused, so resuming
// does not jump animations forward.
type pauseClock struct {
	now    func() time.Time
	paused bool
	since  time.Time
	offset time.Duration
}

func (c *pauseClock) Now() time.Time {
	if c.paused {
		return c.since.Add(-c.offset)
	}
	return c.now().Add(-c.offset)
}

func (c *pauseClock) Toggle() {
	t := c.now()
	if c.paused {
		c.offset += t.Sub(c.since)
	} else {
		c.since = t
	}
	c.paused = !c.paused
}

type previewModel struct {
	ctx      context.Context
	title    string
	scene    *scene.Scene
	animator *scene.Animator
	clock    *pauseClock
	fps      int
	width    int
	height   int
	frames   int
	status   string
}

func newPreviewModel(ctx context.Context, title, markup string, fps int) (previewModel, error) {
	if fps <= 0 {
		fps = defaultPreviewFPS
	}
	m := previewModel{
		ctx:    ctx,
		title:  title,
		clock:  &pauseClock{now: time.Now},
		fps:    fps,
		width:  80,
		height: 24,
	}
	s, err := buildPreviewScene(ctx, markup)
	if err != nil {
		return m, err
	}
	m.setScene(s)
	return m, nil
}

func buildPreviewScene(ctx context.Context, markup string) (*scene.Scene, error) {
	doc, err := mml.ParseString(markup)
	if err != nil {
		return nil, err
	}
	return scene.NewBuilder(nil, log.New(io.Discard)).Build(ctx, doc)
}

func (m *previewModel) setScene(s *scene.Scene) {
	m.scene = s
	m.animator = scene.NewAnimator(s)
	m.animator.Now = m.clock.Now
}

func (m previewModel) tick() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(m.fps), func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func (m previewModel) Init() tea.Cmd {
	return m.tick()
}

func (m previewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case " ", "p":
			m.clock.Toggle()
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case frameMsg:
		m.animator.Frame()
		m.frames++
		return m, m.tick()
	case reloadMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
			return m, nil
		}
		s, err := buildPreviewScene(m.ctx, msg.markup)
		if err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.scene.Close()
		m.setScene(s)
		m.status = "reloaded " + m.clock.now().Format("15:04:05")
	}
	return m, nil
}

func (m previewModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render(m.title))
	b.WriteString("\n\n")

	rows := m.height - 5
	cols := m.width
	if rows*2 < cols {
		cols = rows * 2
	}
	if rows > 0 && cols > 0 {
		b.WriteString(drawGrid(rasterize(m.scene, cols, rows)))
	}

	b.WriteString("\n")
	state := "playing"
	if m.clock.paused {
		state = "paused"
	}
	parts := []string{
		fmt.Sprintf("%d parcels", m.scene.Count(scene.KindCube)),
		state,
		fmt.Sprintf("frame %d", m.frames),
	}
	if m.status != "" {
		parts = append(parts, m.status)
	}
	b.WriteString(statsLine(parts, ""))
	b.WriteString("\n")
	b.WriteString(StyleDim.Render("  space pause  q quit"))
	return b.String()
}

// =============================================================================
// Rasterizer
// =============================================================================

// cell is one character of the top-down map. Top is the world height of
// the highest box covering it; Level is Top scaled to the scene's height.
type cell struct {
	Set   bool
	Color colorful.Color
	Top   float32
	Level float64
}

// rasterize projects every primitive's box onto the XZ plane, keeping the
// highest box per cell.
func rasterize(s *scene.Scene, cols, rows int) [][]cell {
	grid := make([][]cell, rows)
	for i := range grid {
		grid[i] = make([]cell, cols)
	}
	box := s.Bounds()
	if box.Empty || cols <= 0 || rows <= 0 {
		return grid
	}
	size := box.Size()
	span := math.Max(float64(size.X), float64(size.Z))
	if span <= 0 {
		span = 1
	}
	toCol := func(x float32) float64 { return float64(x-box.Min.X) / span * float64(cols) }
	toRow := func(z float32) float64 { return float64(z-box.Min.Z) / span * float64(rows) }

	s.EachBox(func(n *scene.Node, b scene.Box) {
		c0, c1 := clampSpan(toCol(b.Min.X), toCol(b.Max.X), cols)
		r0, r1 := clampSpan(toRow(b.Min.Z), toRow(b.Max.Z), rows)
		for r := r0; r <= r1; r++ {
			for c := c0; c <= c1; c++ {
				cl := &grid[r][c]
				if !cl.Set || b.Max.Y > cl.Top {
					*cl = cell{Set: true, Color: n.Color, Top: b.Max.Y}
				}
			}
		}
	})

	height := float64(size.Y)
	for r := range grid {
		for c := range grid[r] {
			cl := &grid[r][c]
			if cl.Set && height > 0 {
				cl.Level = float64(cl.Top-box.Min.Y) / height
			}
		}
	}
	return grid
}

// clampSpan turns a continuous [lo, hi) range into inclusive cell indices.
func clampSpan(lo, hi float64, n int) (int, int) {
	a := int(math.Floor(lo))
	z := int(math.Ceil(hi)) - 1
	if z < a {
		z = a
	}
	return max(0, min(a, n-1)), max(0, min(z, n-1))
}

// drawGrid renders cells with a shade per height and the parcel color
// darkened toward the ground.
func drawGrid(grid [][]cell) string {
	black := colorful.Color{}
	styles := map[string]lipgloss.Style{}

	var b strings.Builder
	for _, row := range grid {
		for _, cl := range row {
			if !cl.Set {
				b.WriteString(" ")
				continue
			}
			shade := int(math.Round(cl.Level * float64(len(previewShades)-1)))
			shade = max(0, min(shade, len(previewShades)-1))
			hex := cl.Color.BlendLab(black, 0.4*(1-cl.Level)).Clamped().Hex()
			st, ok := styles[hex]
			if !ok {
				st = lipgloss.NewStyle().Foreground(lipgloss.Color(hex))
				styles[hex] = st
			}
			b.WriteString(st.Render(previewShades[shade]))
		}
		b.WriteString("\n")
	}
	return b.String()
}
