package cli

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/earosenfeld/clausi-cli/internal/config"
	"github.com/earosenfeld/clausi-cli/internal/costgate"
	"github.com/earosenfeld/clausi-cli/internal/models"
	"github.com/earosenfeld/clausi-cli/internal/orchestrator"
	"github.com/earosenfeld/clausi-cli/internal/regulations"
	"github.com/earosenfeld/clausi-cli/internal/report"
	"github.com/earosenfeld/clausi-cli/internal/session"
	"github.com/earosenfeld/clausi-cli/internal/storage"
	"github.com/earosenfeld/clausi-cli/internal/support"
)

var (
	scanRegulations []string
	scanMode        string
	scanOutput      string
	scanFormat      string
	scanTemplate    string
	scanIgnore      []string
	scanMaxCost     float64
	scanYes         bool
	scanMinSeverity string
	scanProvider    string
	scanModel       string
	scanCompany     string
	scanLogo        string
	scanInclude     []string
	scanExclude     []string
	scanTimeout     int
)

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Scan a project for compliance findings",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runScan,
}

func init() {
	f := scanCmd.Flags()
	f.StringSliceVarP(&scanRegulations, "regulation", "r", nil, "Regulation to scan against (repeatable)")
	f.StringVar(&scanMode, "mode", "", "Scan mode: ai (lightweight) or full (deep)")
	f.StringVarP(&scanOutput, "output", "o", "", "Output directory for reports")
	f.StringVar(&scanFormat, "format", "", "Report format: pdf, html, json or all")
	f.StringVar(&scanTemplate, "template", "", "Report template: default, detailed or executive")
	f.StringArrayVar(&scanIgnore, "ignore", nil, "Extra ignore pattern, gitignore syntax (repeatable)")
	f.Float64Var(&scanMaxCost, "max-cost", 0, "Abort when the estimate exceeds this many USD")
	f.BoolVarP(&scanYes, "skip-confirmation", "y", false, "Run without the confirmation prompt")
	f.StringVar(&scanMinSeverity, "min-severity", "", "Drop findings below this severity")
	f.StringVar(&scanProvider, "provider", "", "AI provider: clausi, claude or openai")
	f.StringVar(&scanModel, "model", "", "Model override for the provider")
	f.StringVar(&scanCompany, "company-name", "", "Company name shown on the report")
	f.StringVar(&scanLogo, "company-logo", "", "Logo file embedded in the report")
	f.StringSliceVar(&scanInclude, "include-clauses", nil, "Restrict the scan to these clause ids")
	f.StringSliceVar(&scanExclude, "exclude-clauses", nil, "Skip these clause ids")
	f.IntVar(&scanTimeout, "timeout", 0, "Per-request timeout in seconds")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	app, err := loadApp(config.Flags{
		Timeout:     scanTimeout,
		Provider:    scanProvider,
		Model:       scanModel,
		Format:      scanFormat,
		OutputDir:   scanOutput,
		Template:    scanTemplate,
		CompanyName: scanCompany,
		CompanyLogo: scanLogo,
		Regulations: scanRegulations,
	})
	if err != nil {
		return err
	}

	path := "."
	if len(args) == 1 {
		path = args[0]
	}
	mode, err := models.ParseScanMode(scanMode)
	if err != nil {
		return err
	}
	var minSev models.Severity
	if scanMinSeverity != "" {
		minSev = models.ParseSeverity(scanMinSeverity)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := regulations.New(app.client, app.dir, log)
	if err := registry.Validate(ctx, app.cfg.Regulations.Selected, path); err != nil {
		return err
	}

	deps := orchestrator.Deps{
		Gate:     costgate.New(app.client, log),
		Session:  session.New(app.client, app.creds, log),
		Renderer: report.New(&report.ChromeEngine{Timeout: time.Duration(app.cfg.API.Timeout) * time.Second}, log),
		Registry: registry,
		Download: app.client,
		Creds:    app.creds,
		Log:      log,
	}
	if store, err := storage.Open(filepath.Join(app.dir, storage.HistoryFileName)); err != nil {
		log.Warnw("scan history unavailable", "err", err)
	} else {
		defer store.Close()
		deps.History = store
	}

	opts := orchestrator.Options{
		Request: models.ScanRequest{
			Path:           path,
			Regulations:    app.cfg.Regulations.Selected,
			Mode:           mode,
			Provider:       app.cfg.AI.Provider,
			Model:          app.cfg.AI.Model,
			Template:       app.cfg.Report.Template,
			Formats:        []string{app.cfg.Report.Format},
			CompanyName:    app.cfg.Report.CompanyName,
			CompanyLogo:    app.cfg.Report.CompanyLogo,
			IncludeClauses: scanInclude,
			ExcludeClauses: scanExclude,
			MinSeverity:    minSev,
			MaxCost:        scanMaxCost,
		},
		IgnorePatterns: scanIgnore,
		OutputDir:      app.cfg.Report.OutputDir,
		AutoConfirm:    scanYes,
		Confirm:        confirmEstimate,
	}

	fmt.Printf("Scanning %s against %s (%s mode)\n", path, strings.Join(opts.Request.Regulations, ", "), mode)

	summary, err := orchestrator.New(deps).Run(ctx, opts)
	if err != nil {
		return err
	}
	printSummary(summary, app.cfg.UI.ShowCacheStats)

	if app.cfg.UI.AutoOpenFindings {
		for _, a := range summary.Artifacts {
			if a.Format == "html" {
				if err := support.OpenBrowser("file://" + a.Path); err != nil {
					log.Debugw("could not open findings in browser", "err", err)
				}
				break
			}
		}
	}
	return nil
}

// confirmEstimate shows the priced estimate and asks before spending.
func confirmEstimate(est models.CostEstimate) bool {
	printEstimate(est)
	fmt.Print("Proceed with the scan? [y/N]: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func printEstimate(est models.CostEstimate) {
	fmt.Printf("\nEstimated cost: $%.2f (%d tokens)\n", est.EstimatedCost, est.TotalTokens)
	if len(est.RegulationBreakdown) > 0 {
		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		for _, rc := range est.RegulationBreakdown {
			fmt.Fprintf(w, "  %s\t%d tokens\t$%.2f\n", rc.Regulation, rc.Tokens, rc.Cost)
		}
		w.Flush()
	}
	if oversize := est.OversizeFiles(); len(oversize) > 0 {
		fmt.Println("Files flagged too large by the service:")
		for _, fc := range oversize {
			fmt.Printf("  %s (%d tokens)\n", fc.Path, fc.Tokens)
		}
	}
	fmt.Println()
}

func printSummary(s *orchestrator.Summary, showCache bool) {
	counts := models.CountBySeverity(s.Findings)
	fmt.Printf("\nScan complete in %s\n", s.Elapsed.Round(100*time.Millisecond))
	fmt.Printf("  Files analyzed: %d (of %d seen, %d ignored)\n", s.FilesAnalyzed, s.Stats.Seen, s.Stats.SkippedIgnored)
	fmt.Printf("  Findings: %d (%d critical, %d high, %d medium, %d low)\n",
		len(s.Findings),
		counts[models.SeverityCritical], counts[models.SeverityHigh],
		counts[models.SeverityMedium], counts[models.SeverityLow])
	fmt.Printf("  Cost: $%.2f (%d tokens)\n", s.TokenUsage.Cost, s.TokenUsage.TotalTokens)
	if showCache && s.CacheStats != nil {
		fmt.Printf("  Cache: %d hits, %d misses (%.1f%% hit rate), $%.2f saved\n",
			s.CacheStats.CacheHits, s.CacheStats.CacheMisses,
			s.CacheStats.CacheHitRate*100, s.CacheStats.CostSaved)
	}

	if len(s.Findings) > 0 {
		fmt.Println("\nFindings:")
		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "  SEVERITY\tCLAUSE\tLOCATION\tDESCRIPTION")
		for _, f := range s.Findings {
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n",
				strings.ToUpper(string(f.Severity)), f.ClauseID, f.Location, clip(f.Description, 80))
		}
		w.Flush()
	}

	fmt.Printf("\nReports: %s\n", s.OutputDir)
	for _, a := range s.Artifacts {
		fmt.Printf("  %s (%s)\n", a.Filename, humanSize(a.Size))
	}
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
