package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/earosenfeld/clausi-cli/internal/config"
	"github.com/earosenfeld/clausi-cli/internal/storage"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past scans recorded on this machine",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(config.Flags{})
		if err != nil {
			return err
		}
		store, err := storage.Open(filepath.Join(app.dir, storage.HistoryFileName))
		if err != nil {
			return fmt.Errorf("open scan history: %w", err)
		}
		defer store.Close()

		runs, err := store.ListRuns(historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No scans recorded yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tOUTCOME\tPATH\tREGULATIONS\tFINDINGS\tCOST\tDURATION")
		for _, run := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t$%.2f\t%s\n",
				run.CreatedAt.Local().Format("2006-01-02 15:04"),
				run.Outcome,
				run.Path,
				run.Regulations,
				run.TotalFindings,
				run.ActualCost,
				(time.Duration(run.DurationMS) * time.Millisecond).Round(100*time.Millisecond))
		}
		w.Flush()
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Most recent runs to show (0 shows all)")
	rootCmd.AddCommand(historyCmd)
}
