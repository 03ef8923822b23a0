package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/HendryAvila/gemini-planner/internal/contexts"
	"github.com/HendryAvila/gemini-planner/internal/server"
)

func (a *app) listCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored planning contexts, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := server.OpenStore(cfg.Storage, a.logger(cmd, cfg), nil)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			summaries, err := store.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing contexts: %w", err)
			}
			out := cmd.OutOrStdout()
			if asJSON {
				data, err := json.MarshalIndent(summaries, "", "  ")
				if err != nil {
					return err
				}
				printf(out, "%s\n", data)
				return nil
			}
			renderList(out, newStyles(out), summaries)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the listing as JSON")
	addStorageFlags(cmd)
	return cmd
}

func renderList(w io.Writer, st styles, summaries []contexts.Summary) {
	if len(summaries) == 0 {
		printf(w, "%s\n", st.muted.Render("No planning contexts yet."))
		return
	}

	headers := []string{"ID", "PROJECT", "PHASE", "PLANS", "UPDATED"}
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			s.ID,
			s.ProjectName,
			string(s.CurrentPhase),
			strconv.Itoa(s.Plans),
			s.UpdatedAt.Format(time.RFC3339),
		})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	cells := make([]string, len(headers))
	for i, h := range headers {
		cells[i] = st.label.Render(pad(h, widths[i]))
	}
	printf(w, "%s\n", strings.TrimRight(strings.Join(cells, "  "), " "))

	for r, row := range rows {
		for i, cell := range row {
			padded := pad(cell, widths[i])
			if i == 2 {
				padded = strings.Replace(padded, cell, st.phase(summaries[r].CurrentPhase), 1)
			}
			cells[i] = padded
		}
		printf(w, "%s\n", strings.TrimRight(strings.Join(cells, "  "), " "))
	}
}

// pad right-pads s to width display cells.
func pad(s string, width int) string {
	if gap := width - lipgloss.Width(s); gap > 0 {
		return s + strings.Repeat(" ", gap)
	}
	return s
}
