package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/HendryAvila/gemini-planner/internal/config"
	"github.com/HendryAvila/gemini-planner/internal/contexts"
	"github.com/HendryAvila/gemini-planner/internal/server"
)

// Output formats for view.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func (a *app) viewCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "view <contextId>",
		Short: "Show a stored planning context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch output {
			case formatText, formatJSON, formatYAML:
			default:
				return fmt.Errorf("unknown output format %q: must be text, json or yaml", output)
			}
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := server.OpenStore(cfg.Storage, a.logger(cmd, cfg), nil)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			pc, err := store.Get(cmd.Context(), args[0])
			if errors.Is(err, contexts.ErrNotFound) {
				return fmt.Errorf("context %s not found", args[0])
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch output {
			case formatJSON:
				data, err := json.MarshalIndent(pc, "", "  ")
				if err != nil {
					return err
				}
				printf(out, "%s\n", data)
				return nil
			case formatYAML:
				data, err := toYAML(pc)
				if err != nil {
					return err
				}
				printf(out, "%s", data)
				return nil
			}
			renderContext(out, newStyles(out), pc)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", formatText, "output format: text, json or yaml")
	addStorageFlags(cmd)
	return cmd
}

func addStorageFlags(cmd *cobra.Command) {
	cmd.Flags().String("storage", "", "directory holding planning contexts")
	cmd.Flags().String("driver", "", "storage driver: "+config.DriverFile+" or "+config.DriverSQLite)
}

// toYAML converts v through its JSON form so field names and key order match
// the persisted document.
func toYAML(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("converting to yaml: %w", err)
	}
	blockStyle(&doc)
	return yaml.Marshal(&doc)
}

// blockStyle clears the flow and quoting styles the JSON source left on every node.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

func renderContext(w io.Writer, st styles, pc *contexts.PlanningContext) {
	printf(w, "%s\n", st.title.Render("Project Context Overview"))
	printf(w, "%s %s\n", st.label.Render("ID:"), pc.ID)
	printf(w, "%s %s\n", st.label.Render("Project:"), pc.ProjectName)
	printf(w, "%s %s\n", st.label.Render("Phase:"), st.phase(pc.CurrentPhase))
	printf(w, "%s %s\n", st.label.Render("Created:"), pc.CreatedAt.Format(time.RFC3339))
	printf(w, "%s %s\n", st.label.Render("Updated:"), pc.UpdatedAt.Format(time.RFC3339))
	printf(w, "\n")

	printf(w, "%s\n", st.header.Render("Planning History"))
	if len(pc.PlanningHistory) == 0 {
		printf(w, "  %s\n", st.muted.Render("none"))
	}
	for i, p := range pc.PlanningHistory {
		printf(w, "  %d. %s - %s\n", i+1, p.Timestamp.Format(time.RFC3339), p.Model)
		printf(w, "     Steps: %d\n", len(p.Output.Plan.ImplementationSteps))
	}
	printf(w, "\n")

	printf(w, "%s\n", st.header.Render("Execution History"))
	if len(pc.ExecutionHistory) == 0 {
		printf(w, "  %s\n", st.muted.Render("none"))
	}
	for i, e := range pc.ExecutionHistory {
		printf(w, "  %d. %s - Success: %.0f%% (%s)\n", i+1, e.Timestamp.Format(time.RFC3339), e.SuccessRate*100, e.CompletionStatus)
		printf(w, "     Files: %d created, %d modified\n", len(e.FilesCreated), len(e.FilesModified))
		printf(w, "     Issues: %d\n", len(e.Issues))
	}
	printf(w, "\n")

	printf(w, "%s\n", st.header.Render("Feedback"))
	unresolved := 0
	for _, f := range pc.Feedback {
		if !f.Resolved {
			unresolved++
		}
	}
	printf(w, "  Total: %d, Unresolved: %d\n", len(pc.Feedback), unresolved)
	for _, f := range pc.Feedback {
		if f.Resolved {
			continue
		}
		printf(w, "  - [%s] %s\n", f.Priority, f.Content)
	}
}
