// Package cli wires the commands. Setting precedence is CLI flag >
// environment > config file > built-in default, resolved once per
// invocation; commands only read the resolved snapshot.
package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/earosenfeld/clausi-cli/internal/api"
	"github.com/earosenfeld/clausi-cli/internal/config"
	"github.com/earosenfeld/clausi-cli/internal/costgate"
	"github.com/earosenfeld/clausi-cli/internal/logging"
	"github.com/earosenfeld/clausi-cli/internal/report"
)

var version = "1.0.0"

var (
	flagConfigDir string
	flagAPIURL    string
	flagVerbose   bool

	log = logging.NewNop()
)

var rootCmd = &cobra.Command{
	Use:     "clausi",
	Short:   "AI compliance scanning from the command line",
	Long:    "Clausi scans a codebase against EU AI Act, GDPR and other regulations\nthrough the hosted analysis service and renders audit-ready reports.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is fine; the shell environment still applies.
		_ = godotenv.Load()
		var err error
		log, err = logging.New(flagVerbose)
		return err
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfigDir, "config-dir", "", "Configuration directory (default ~/.clausi)")
	pf.StringVar(&flagAPIURL, "api-url", "", "Service base URL override")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
}

// appState is the per-invocation wiring derived from the resolved config.
type appState struct {
	cfg     config.Config
	cfgPath string
	dir     string
	client  *api.Client
	creds   *config.CredentialStore
}

func loadApp(flags config.Flags) (*appState, error) {
	flags.ConfigDir = flagConfigDir
	if flags.APIURL == "" {
		flags.APIURL = flagAPIURL
	}
	cfg, cfgPath, warnings, err := config.Resolve(flags)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		log.Warn(w)
	}
	dir, err := config.Dir(flagConfigDir)
	if err != nil {
		return nil, err
	}
	client := api.New(cfg.API.URL, cfg.AI.Provider, cfg.ProviderKey(), time.Duration(cfg.API.Timeout)*time.Second, log)
	return &appState{
		cfg:     cfg,
		cfgPath: cfgPath,
		dir:     dir,
		client:  client,
		creds:   config.NewCredentialStore(dir),
	}, nil
}

// Execute runs the CLI. Exit codes: 0 success, 2 payment required,
// 3 budget exceeded, 1 everything else.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(exitCode(err))
	}
	flushLog()
}

func flushLog() {
	if log != nil {
		_ = log.Sync()
	}
}

func exitCode(err error) int {
	var authErr *api.AuthorizationError
	if errors.As(err, &authErr) {
		return 2
	}
	var budgetErr *costgate.BudgetExceededError
	if errors.As(err, &budgetErr) {
		return 3
	}
	return 1
}

func printError(err error) {
	defer flushLog()

	var authErr *api.AuthorizationError
	if errors.As(err, &authErr) {
		fmt.Fprintln(os.Stderr, "Payment required before this scan can run.")
		if authErr.CheckoutURL != "" {
			fmt.Fprintf(os.Stderr, "Complete checkout at: %s\n", authErr.CheckoutURL)
		}
		return
	}
	var budgetErr *costgate.BudgetExceededError
	if errors.As(err, &budgetErr) {
		fmt.Fprintf(os.Stderr, "Estimated cost $%.2f exceeds the --max-cost ceiling of $%.2f.\n", budgetErr.EstimatedCost, budgetErr.Ceiling)
		fmt.Fprintln(os.Stderr, "Raise the ceiling or narrow the scan to proceed.")
		return
	}
	if errors.Is(err, costgate.ErrNotConfirmed) {
		fmt.Fprintln(os.Stderr, "Scan cancelled.")
		return
	}
	var transportErr *api.TransportError
	if errors.As(err, &transportErr) {
		fmt.Fprintf(os.Stderr, "Network error during %s: %v\n", transportErr.Op, transportErr.Err)
		fmt.Fprintln(os.Stderr, "Check connectivity and retry; nothing was charged for a failed call.")
		return
	}
	var remoteErr *api.RemoteError
	if errors.As(err, &remoteErr) {
		fmt.Fprintf(os.Stderr, "The service rejected the %s request (status %d).\n", remoteErr.Stage, remoteErr.Status)
		if remoteErr.Body != "" {
			fmt.Fprintf(os.Stderr, "  %s\n", remoteErr.Body)
		}
		return
	}
	var cfgErr *report.ConfigurationError
	if errors.As(err, &cfgErr) {
		fmt.Fprintf(os.Stderr, "Configuration error: %s\n", cfgErr.Msg)
		fmt.Fprintf(os.Stderr, "Templates: %v; formats: pdf, html, json, all.\n", report.TemplateNames())
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}
