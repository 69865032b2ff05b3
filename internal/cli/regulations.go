package cli

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/earosenfeld/clausi-cli/internal/config"
	"github.com/earosenfeld/clausi-cli/internal/regulations"
)

var regulationsCmd = &cobra.Command{
	Use:     "regulations",
	Aliases: []string{"list-regulations"},
	Short:   "List the regulations available for scanning",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(config.Flags{})
		if err != nil {
			return err
		}
		registry := regulations.New(app.client, app.dir, log)

		catalog := registry.List(cmd.Context())
		codes := make([]string, 0, len(catalog))
		for code := range catalog {
			codes = append(codes, code)
		}
		sort.Strings(codes)

		selected := map[string]bool{}
		for _, code := range app.cfg.Regulations.Selected {
			selected[code] = true
		}

		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "  CODE\tNAME\tDESCRIPTION")
		for _, code := range codes {
			info := catalog[code]
			marker := " "
			if selected[code] {
				marker = "*"
			}
			fmt.Fprintf(w, "%s %s\t%s\t%s\n", marker, info.Code, info.Name, clip(info.Description, 70))
		}
		w.Flush()

		custom := registry.DiscoverCustom(".")
		if len(custom) > 0 {
			codes = codes[:0]
			for code := range custom {
				codes = append(codes, code)
			}
			sort.Strings(codes)
			fmt.Println("\nCustom regulations found in this project:")
			for _, code := range codes {
				fmt.Printf("  %s (%s)\n", code, custom[code])
			}
		}

		fmt.Println("\n* currently selected; change with `clausi config set regulations.selected ...`")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(regulationsCmd)
}
