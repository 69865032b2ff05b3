package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/earosenfeld/clausi-cli/internal/config"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show the credit balance for the saved token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(config.Flags{})
		if err != nil {
			return err
		}
		token := app.creds.Token()
		if token == "" {
			fmt.Println("No token saved. Run `clausi login` first.")
			return nil
		}
		status, err := app.client.TokenStatus(cmd.Context(), token)
		if err != nil {
			return err
		}
		if !status.Valid {
			fmt.Println("Saved token is no longer valid. Run `clausi login` again.")
			return nil
		}
		fmt.Printf("Token: %s\n", maskToken(token))
		fmt.Printf("Credits: %d\n", status.Credits)
		if status.Plan != "" {
			fmt.Printf("Plan: %s\n", status.Plan)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}
