package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/gemini-planner/internal/server"
	"github.com/HendryAvila/gemini-planner/internal/updater"
)

func (a *app) updateCmd() *cobra.Command {
	var checkOnly bool
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update gemini-planner to the latest release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			checker := a.newChecker(cfg.Updater.Repo, a.logger(cmd, cfg))
			out := cmd.ErrOrStderr()
			st := newStyles(out)

			printf(out, "Checking %s for updates...\n", cfg.Updater.Repo)
			res, err := checker.Check(cmd.Context(), server.Version)
			if err != nil {
				return err
			}
			if !res.UpdateAvailable {
				printf(out, "%s (v%s)\n", st.ok.Render("Already at the latest version"), res.CurrentVersion)
				return nil
			}
			printf(out, "New version available: v%s -> v%s\n", res.CurrentVersion, res.LatestVersion)
			if checkOnly {
				printf(out, "Release: %s\n", res.ReleaseURL)
				return nil
			}

			printf(out, "Downloading...\n")
			if _, err := checker.SelfUpdate(cmd.Context(), server.Version); err != nil {
				if errors.Is(err, updater.ErrUpToDate) {
					printf(out, "%s\n", st.ok.Render("Already at the latest version"))
					return nil
				}
				printf(out, "%s %v\n", st.fail.Render("Update failed:"), err)
				printf(out, "You can download manually from:\n  %s\n", res.ReleaseURL)
				return errSilent
			}
			printf(out, "%s\n", st.ok.Render("Updated to v"+res.LatestVersion+"."))
			printf(out, "Restart gemini-planner to use the new version.\n")
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkOnly, "check", false, "only report whether a newer release exists")
	return cmd
}
