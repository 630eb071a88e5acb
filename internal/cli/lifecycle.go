package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"crash/internal/core/types"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the core, the dashboard and the geo databases",
	Long: `Install downloads the selected core for the configured target, the selected
dashboard and the geo databases the core reads. Existing files are kept
unless --force is given. A default core config is written when none exists.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		if err := appInstance.Installer.Install(cmd.Context(), appInstance.Config, force); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("✓ ") + fmt.Sprintf("%s installed in %s", appInstance.Config.Core, appInstance.Store.Dir()))
		return nil
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the core",
	Long: `Start launches the core in the background. A running core is left alone
unless --force is given or it has run longer than max-runtime. After
'stop --force', start needs --force.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		if err := appInstance.Controller.Start(appInstance.Config, force); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("✓ ") + fmt.Sprintf("%s is running", appInstance.Config.Core))
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the core",
	Long: `Stop kills the core. With --force, later starts (including the scheduled
refresh) are refused until 'start --force'.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		if err := appInstance.Controller.Stop(appInstance.Config, force); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("✓ ") + fmt.Sprintf("%s stopped", appInstance.Config.Core))
		return nil
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the core",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := appInstance.Controller.Restart(appInstance.Config); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("✓ ") + fmt.Sprintf("%s restarted", appInstance.Config.Core))
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show core status",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	fmt.Print(renderStatus(appInstance.Reporter.Status(appInstance.Config)))
	return nil
}

func renderStatus(s *types.Status) string {
	lines := s.Lines()
	width := 0
	for _, l := range lines {
		width = max(width, len(l.Key))
	}

	var b strings.Builder
	for _, l := range lines {
		value := valueStyle.Render(l.Value)
		if l.Key == "status" {
			if s.Running {
				value = successStyle.Render(l.Value)
			} else {
				value = errorStyle.Render(l.Value)
			}
		}
		fmt.Fprintf(&b, "%s : %s\n", labelStyle.Render(fmt.Sprintf("%-*s", width, l.Key)), value)
	}
	return b.String()
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Fetch the core config from the configured url",
	Long: `Update fetches the configured url (http(s) or a local path), adapts it to
the selected core and writes it as the core config. An existing config is
kept unless --force is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		if err := appInstance.Updater.UpdateConfig(cmd.Context(), appInstance.Config, force); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("✓ ") + "config written to " + appInstance.Store.CoreConfigPath(appInstance.Config))
		if appInstance.Controller.IsRunning(appInstance.Config) {
			fmt.Println(dimStyle.Render("  run 'crash restart' to apply it"))
		}
		return nil
	},
}

var updateGeoCmd = &cobra.Command{
	Use:   "update-geo",
	Short: "Download the geo databases",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		failed := appInstance.Installer.InstallGeo(cmd.Context(), appInstance.Config, force)
		if len(failed) > 0 {
			fmt.Println(warningStyle.Render("! ") + "not installed: " + strings.Join(failed, ", "))
			return nil
		}
		fmt.Println(successStyle.Render("✓ ") + "geo databases up to date")
		return nil
	},
}

var runTaskCmd = &cobra.Command{
	Use:    "run-task",
	Short:  "Refresh config and geo databases, then restart (used by the scheduled task)",
	Args:   cobra.NoArgs,
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return appInstance.RunTask(cmd.Context())
	},
}

func init() {
	for _, cmd := range []*cobra.Command{installCmd, startCmd, stopCmd, updateCmd, updateGeoCmd} {
		cmd.Flags().BoolP("force", "f", false, "")
	}
	installCmd.Flags().Lookup("force").Usage = "re-download files that already exist"
	startCmd.Flags().Lookup("force").Usage = "restart a running core and clear a forced stop"
	stopCmd.Flags().Lookup("force").Usage = "refuse later starts until 'start --force'"
	updateCmd.Flags().Lookup("force").Usage = "replace an existing core config"
	updateGeoCmd.Flags().Lookup("force").Usage = "re-download databases that already exist"

	rootCmd.AddCommand(installCmd, startCmd, stopCmd, restartCmd, statusCmd, updateCmd, updateGeoCmd, runTaskCmd)
}
