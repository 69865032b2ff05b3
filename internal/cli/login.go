package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/earosenfeld/clausi-cli/internal/authflow"
	"github.com/earosenfeld/clausi-cli/internal/config"
	"github.com/earosenfeld/clausi-cli/internal/support"
)

var loginPort int

var loginCmd = &cobra.Command{
	Use:   "login [token]",
	Short: "Authenticate with the clausi service",
	Long: `Authenticate with the clausi service.

Without arguments a browser window opens and the token arrives on a local
callback. Pass a token directly to skip the browser flow.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().IntVar(&loginPort, "port", 8123, "Local callback port (0 picks a free one)")
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	app, err := loadApp(config.Flags{})
	if err != nil {
		return err
	}

	if len(args) == 1 {
		return saveToken(app.creds, args[0])
	}

	flow := authflow.New(log)
	if err := flow.Start(loginPort); err != nil {
		return fmt.Errorf("start callback listener: %w", err)
	}
	defer flow.Close()

	authURL := flow.AuthURL(app.cfg.API.URL)
	fmt.Printf("Opening browser for authentication...\n\n  %s\n\n", authURL)
	if err := support.OpenBrowser(authURL); err != nil {
		fmt.Println("Could not open a browser; visit the URL above manually.")
	}
	fmt.Printf("Waiting for the callback on port %d (5 minute timeout, Ctrl-C cancels)...\n", flow.Port())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	token, err := flow.Wait(ctx)
	if err != nil {
		return err
	}
	return saveToken(app.creds, token)
}

func saveToken(creds *config.CredentialStore, token string) error {
	if err := creds.SaveToken(token); err != nil {
		return err
	}
	fmt.Printf("Logged in. Token %s saved to %s\n", maskToken(token), creds.Path())
	return nil
}

// maskToken keeps enough of the token to recognize it without exposing it.
func maskToken(tok string) string {
	if len(tok) <= 12 {
		return "****"
	}
	return tok[:8] + "..." + tok[len(tok)-4:]
}
