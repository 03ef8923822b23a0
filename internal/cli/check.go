package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/gemini-planner/internal/docs"
)

func (a *app) checkCmd() *cobra.Command {
	var withDocs bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Test that the Gemini CLI answers with the configured model",
		Long: `check sends a canary prompt through the configured Gemini CLI and exits
non-zero when the reply does not come back. With --docs it also lists the
tools offered by the documentation service.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := a.logger(cmd, cfg)
			out := cmd.OutOrStdout()
			st := newStyles(out)

			tester := a.newTester(cfg.Gemini, logger)
			printf(out, "%s\n", st.title.Render("Gemini CLI connection"))
			printf(out, "  %s %s\n", st.label.Render("CLI:"), tester.CLIPath())
			printf(out, "  %s %s\n", st.label.Render("Model:"), orDash(tester.Model()))
			printf(out, "  %s %t\n", st.label.Render("API key set:"), tester.HasAPIKey())

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Gemini.Timeout)
			defer cancel()

			failed := false
			if tester.TestConnection(ctx) {
				printf(out, "  %s\n", st.ok.Render("connection successful"))
			} else {
				printf(out, "  %s\n", st.fail.Render("connection failed"))
				failed = true
			}

			if withDocs {
				printf(out, "%s\n", st.title.Render("Documentation service"))
				printf(out, "  %s %s\n", st.label.Render("URL:"), cfg.Docs.URL)
				client := docs.New(cfg.Docs.URL, cfg.Docs.Timeout, nil)
				docsCtx, cancelDocs := context.WithTimeout(cmd.Context(), cfg.Docs.Timeout)
				defer cancelDocs()
				list, err := client.ListTools(docsCtx)
				if err != nil {
					printf(out, "  %s %v\n", st.fail.Render("unreachable:"), err)
					failed = true
				} else {
					for _, tool := range list.Tools {
						printf(out, "  - %s\n", tool.Name)
					}
				}
			}

			if failed {
				return errSilent
			}
			return nil
		},
	}
	cmd.Flags().String("model", "", "Gemini model name (overrides GEMINI_MODEL)")
	cmd.Flags().BoolVar(&withDocs, "docs", false, "also test the documentation service")
	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
