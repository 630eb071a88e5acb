package cli

import (
	"fmt"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"crash/internal/app"
	"crash/internal/paths"
	"crash/internal/task"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Schedule the weekly config and geo refresh",
	Long: `Task registers 'crash --dir <install dir> run-task' with the OS scheduler
(crontab on Unix, Task Scheduler on Windows) to run every Wednesday at 03:00.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		exe, err := app.Executable()
		if err != nil {
			return err
		}

		added, err := appInstance.Tasks.Register(exe, appInstance.InstallDir)
		if err != nil {
			return err
		}
		if added {
			fmt.Println(successStyle.Render("✓ ") + "scheduled " + task.CronEntry(exe, appInstance.InstallDir))
		} else {
			fmt.Println(dimStyle.Render("already scheduled: " + task.CronEntry(exe, appInstance.InstallDir)))
		}

		next, err := task.NextRun(task.Schedule, appInstance.Clock)
		if err != nil {
			return err
		}
		fmt.Printf("next run: %s\n", next.Format("2006-01-02 15:04 MST"))
		return nil
	},
}

var sizeCmd = &cobra.Command{
	Use:   "size",
	Short: "Show disk usage of the installation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := appInstance.Store.Dir()
		fmt.Printf("%s %s\n", units.HumanSize(float64(paths.DirSize(dir))), dimStyle.Render(dir))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(taskCmd, sizeCmd)
}
