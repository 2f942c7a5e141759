package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/blockworld/pkg/mml"
)

var (
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan).Padding(0, 1)
	tableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
	tableTotalStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorWhite).Padding(0, 1)
)

// statsCommand creates the stats command that summarizes a block's parcels.
func (c *CLI) statsCommand() *cobra.Command {
	var opts blockOpts

	cmd := &cobra.Command{
		Use:   "stats <height>",
		Short: "Show the parcel size histogram of a block",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runStats(cmd.Context(), args[0], &opts)
		},
	}
	opts.register(cmd.Flags())
	return cmd
}

func (c *CLI) runStats(ctx context.Context, arg string, opts *blockOpts) error {
	res, runner, err := c.executeBlock(ctx, arg, opts)
	if err != nil {
		return err
	}
	defer runner.Close()

	fmt.Println(StyleTitle.Render(fmt.Sprintf("Block %d", res.BlockHeight)))
	printNewline()
	printKeyValue("Transactions", StyleNumber.Render(strconv.Itoa(res.TxCount)))
	printKeyValue("Grid", fmt.Sprintf("%d × %d", res.Packing.Width, res.Packing.Height))
	printKeyValue("Fill", fmt.Sprintf("%.1f%%", fillRatio(res.Stats, res.Packing.Width, res.Packing.Height)*100))
	printKeyValue("Seed", res.Seed)
	printKeyValue("Animated", strconv.Itoa(res.Animated))
	printNewline()
	fmt.Println(statsTable(res.Stats))
	return nil
}

// statsTable renders one row per parcel size with its count, the grid
// cells it covers, and its share of all parcels.
func statsTable(st mml.Stats) string {
	rows := [][]string{}
	cells := 0
	for _, size := range st.Sizes() {
		n := st.Counts[strconv.Itoa(size)]
		area := size * size * n
		cells += area
		share := 0.0
		if st.Total > 0 {
			share = float64(n) / float64(st.Total) * 100
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d×%d", size, size),
			strconv.Itoa(n),
			strconv.Itoa(area),
			fmt.Sprintf("%.1f%%", share),
		})
	}
	rows = append(rows, []string{"total", strconv.Itoa(st.Total), strconv.Itoa(cells), ""})
	last := len(rows)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("SIZE", "PARCELS", "CELLS", "SHARE").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == -1:
				return tableHeaderStyle
			case row == last-1:
				return tableTotalStyle
			default:
				return tableCellStyle
			}
		})
	return t.String()
}

// fillRatio returns the share of the grid covered by parcels.
func fillRatio(st mml.Stats, width, height int) float64 {
	if width <= 0 || height <= 0 {
		return 0
	}
	cells := 0
	for _, size := range st.Sizes() {
		cells += size * size * st.Counts[strconv.Itoa(size)]
	}
	return float64(cells) / float64(width*height)
}
