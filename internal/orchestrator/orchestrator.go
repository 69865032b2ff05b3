// Package orchestrator runs one scan end to end: collect files, clear the
// cost gate, submit, render and publish. Artifacts are staged in a hidden
// temp directory and appear under the output directory in a single rename,
// so an aborted or failed run leaves nothing behind.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/earosenfeld/clausi-cli/internal/api"
	"github.com/earosenfeld/clausi-cli/internal/costgate"
	"github.com/earosenfeld/clausi-cli/internal/ignore"
	"github.com/earosenfeld/clausi-cli/internal/models"
	"github.com/earosenfeld/clausi-cli/internal/regulations"
	"github.com/earosenfeld/clausi-cli/internal/report"
	"github.com/earosenfeld/clausi-cli/internal/scanner"
	"github.com/earosenfeld/clausi-cli/internal/session"
	"github.com/earosenfeld/clausi-cli/internal/storage"
	"github.com/earosenfeld/clausi-cli/internal/support"
)

type downloader interface {
	DownloadReport(ctx context.Context, filename, token string) ([]byte, error)
}

type credentialSource interface {
	Token() string
}

type historyStore interface {
	RecordRun(*storage.RunRecord) error
}

// Deps are the collaborators one scan needs. History may be nil.
type Deps struct {
	Gate     *costgate.Gate
	Session  *session.Session
	Renderer *report.Renderer
	Registry *regulations.Registry
	Download downloader
	Creds    credentialSource
	History  historyStore
	Log      *zap.SugaredLogger
}

// Options configure one invocation. Confirm is the interactive channel for
// an estimate that needs a human decision; nil means there is none and an
// unconfirmed scan aborts.
type Options struct {
	Request        models.ScanRequest
	IgnorePatterns []string
	OutputDir      string
	AutoConfirm    bool
	Confirm        func(models.CostEstimate) bool
}

// Summary is what a completed run reports back.
type Summary struct {
	RunID         string
	OutputDir     string
	Artifacts     []report.Artifact
	Findings      []models.Finding
	FilesAnalyzed int
	Stats         scanner.Stats
	Estimate      models.CostEstimate
	TokenUsage    models.TokenUsage
	CacheStats    *models.CacheStats
	Elapsed       time.Duration
}

type Orchestrator struct {
	gate     *costgate.Gate
	session  *session.Session
	renderer *report.Renderer
	registry *regulations.Registry
	download downloader
	creds    credentialSource
	history  historyStore
	log      *zap.SugaredLogger
}

func New(deps Deps) *Orchestrator {
	log := deps.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Orchestrator{
		gate:     deps.Gate,
		session:  deps.Session,
		renderer: deps.Renderer,
		registry: deps.Registry,
		download: deps.Download,
		creds:    deps.Creds,
		history:  deps.History,
		log:      log,
	}
}

// Run executes the pipeline. Render configuration is validated before the
// first network call so a bad template or format never costs credits.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Summary, error) {
	started := time.Now()
	runID := uuid.NewString()
	req := opts.Request

	tmpl, err := report.Lookup(req.Template)
	if err != nil {
		return nil, err
	}
	if _, err := report.ExpandFormats(req.Formats); err != nil {
		return nil, err
	}
	if req.CompanyLogo != "" {
		tmpl.Assets = append(tmpl.Assets, report.Asset{Type: "logo", Path: req.CompanyLogo})
	}

	absPath, err := filepath.Abs(req.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve scan path: %w", err)
	}
	req.Path = absPath

	matcher := ignore.Build(absPath, opts.IgnorePatterns)
	files, stats, err := scanner.New(absPath, req.Mode, matcher, o.log).Collect(ctx)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no scannable files under %s", absPath)
	}
	req.Files = files

	token := o.creds.Token()

	// Deep scans are never covered by trial credits; check before pricing.
	if req.Mode == models.ModeDeep {
		if err := o.gate.CheckPayment(ctx, req.Mode, token); err != nil {
			o.record(o.outcomeRecord(runID, req, stats, started, outcomeFor(err), err.Error()))
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	est, err := o.gate.Estimate(ctx, api.EstimateRequest{
		Files:       req.FileMap(),
		Regulations: req.Regulations,
		Mode:        req.Mode,
	}, token)
	if err != nil {
		o.record(o.outcomeRecord(runID, req, stats, started, storage.OutcomeFailed, err.Error()))
		return nil, err
	}

	if err := o.authorize(est, opts); err != nil {
		rec := o.outcomeRecord(runID, req, stats, started, storage.OutcomeAborted, err.Error())
		rec.EstimatedCost = est.EstimatedCost
		o.record(rec)
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	payload := buildPayload(req, o.registry.ForScan(req.Regulations, absPath))
	success, err := o.session.Run(ctx, payload, token)
	if err != nil {
		rec := o.outcomeRecord(runID, req, stats, started, outcomeFor(err), err.Error())
		rec.EstimatedCost = est.EstimatedCost
		o.record(rec)
		return nil, err
	}

	findings := models.FilterMinSeverity(success.Findings, req.MinSeverity)

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("prepare output dir: %w", err)
	}
	stage, err := os.MkdirTemp(opts.OutputDir, ".staging-")
	if err != nil {
		return nil, fmt.Errorf("prepare staging dir: %w", err)
	}
	// A published stage is gone; RemoveAll then cleans up nothing.
	defer os.RemoveAll(stage)

	now := time.Now()
	in := report.Input{
		ScanPath:       absPath,
		Regulations:    req.Regulations,
		Mode:           req.Mode,
		Provider:       req.Provider,
		Model:          req.Model,
		CompanyName:    req.CompanyName,
		IncludeClauses: req.IncludeClauses,
		ExcludeClauses: req.ExcludeClauses,
		FilesAnalyzed:  len(files),
		Findings:       findings,
		TokenUsage:     success.TokenUsage,
		Timestamp:      now,
	}
	artifacts, err := o.renderer.Render(ctx, tmpl, in, req.Formats, stage)
	if err != nil {
		rec := o.outcomeRecord(runID, req, stats, started, storage.OutcomeFailed, err.Error())
		rec.EstimatedCost = est.EstimatedCost
		o.record(rec)
		return nil, err
	}
	artifacts = append(artifacts, o.fetchRemoteReports(ctx, success.GeneratedReports, token, stage)...)

	finalDir := filepath.Join(opts.OutputDir, fmt.Sprintf("%s_%s", filepath.Base(absPath), now.Format("20060102_150405")))
	if _, err := os.Stat(finalDir); err == nil {
		finalDir += "_" + runID[:8]
	}
	if err := support.PublishDir(stage, finalDir); err != nil {
		rec := o.outcomeRecord(runID, req, stats, started, storage.OutcomeFailed, err.Error())
		rec.EstimatedCost = est.EstimatedCost
		o.record(rec)
		return nil, fmt.Errorf("publish run dir: %w", err)
	}
	for i := range artifacts {
		artifacts[i].Path = filepath.Join(finalDir, artifacts[i].Filename)
	}

	counts := models.CountBySeverity(findings)
	rec := o.outcomeRecord(runID, req, stats, started, storage.OutcomeCompleted, "")
	rec.TotalFindings = len(findings)
	rec.Critical = counts[models.SeverityCritical]
	rec.High = counts[models.SeverityHigh]
	rec.Medium = counts[models.SeverityMedium]
	rec.Low = counts[models.SeverityLow]
	rec.EstimatedCost = est.EstimatedCost
	rec.ActualCost = success.TokenUsage.Cost
	rec.TotalTokens = success.TokenUsage.TotalTokens
	rec.OutputDir = finalDir
	o.record(rec)

	elapsed := time.Since(started)
	o.log.Infow("scan complete",
		"run_id", runID,
		"files", len(files),
		"findings", len(findings),
		"cost", success.TokenUsage.Cost,
		"output", finalDir,
		"elapsed", elapsed,
	)
	return &Summary{
		RunID:         runID,
		OutputDir:     finalDir,
		Artifacts:     artifacts,
		Findings:      findings,
		FilesAnalyzed: len(files),
		Stats:         stats,
		Estimate:      est,
		TokenUsage:    success.TokenUsage,
		CacheStats:    success.CacheStats,
		Elapsed:       elapsed,
	}, nil
}

// authorize resolves the gate verdict, routing an unconfirmed estimate to
// the interactive channel when one exists. A budget violation is already
// final by the time it gets here.
func (o *Orchestrator) authorize(est models.CostEstimate, opts Options) error {
	err := o.gate.Authorize(est, opts.Request.MaxCost, opts.AutoConfirm)
	if errors.Is(err, costgate.ErrNotConfirmed) && opts.Confirm != nil {
		if opts.Confirm(est) {
			return nil
		}
		return costgate.ErrNotConfirmed
	}
	return err
}

// fetchRemoteReports pulls service-rendered extras into the stage.
// Failures degrade to warnings; the local artifacts already cover the run.
func (o *Orchestrator) fetchRemoteReports(ctx context.Context, reports []models.GeneratedReport, token, stage string) []report.Artifact {
	var extra []report.Artifact
	for _, rep := range reports {
		name := filepath.Base(rep.Filename)
		path := filepath.Join(stage, name)
		if _, err := os.Stat(path); err == nil {
			o.log.Warnw("remote report name collides with a local artifact, skipping", "filename", name)
			continue
		}
		data, err := o.download.DownloadReport(ctx, rep.Filename, token)
		if err != nil {
			o.log.Warnw("remote report download failed", "filename", rep.Filename, "err", err)
			continue
		}
		if err := support.WriteFileAtomic(path, data); err != nil {
			o.log.Warnw("remote report write failed", "filename", name, "err", err)
			continue
		}
		extra = append(extra, report.Artifact{Format: rep.Format, Filename: name, Path: path, Size: int64(len(data))})
	}
	return extra
}

func (o *Orchestrator) outcomeRecord(runID string, req models.ScanRequest, stats scanner.Stats, started time.Time, outcome, detail string) *storage.RunRecord {
	return &storage.RunRecord{
		ID:            runID,
		Path:          req.Path,
		Regulations:   storage.JoinList(req.Regulations),
		Mode:          string(req.Mode),
		Template:      req.Template,
		Formats:       storage.JoinList(req.Formats),
		FilesAnalyzed: stats.Collected,
		Outcome:       outcome,
		Detail:        detail,
		CreatedAt:     started,
		DurationMS:    time.Since(started).Milliseconds(),
	}
}

// record is best-effort; a failed history write never fails a scan.
func (o *Orchestrator) record(rec *storage.RunRecord) {
	if o.history == nil {
		return
	}
	if err := o.history.RecordRun(rec); err != nil {
		o.log.Warnw("history write failed", "err", err)
	}
}

// outcomeFor classifies an error for the history record. Gate refusals and
// payment blocks are aborts; everything else failed.
func outcomeFor(err error) string {
	var authErr *api.AuthorizationError
	var budgetErr *costgate.BudgetExceededError
	if errors.As(err, &authErr) || errors.As(err, &budgetErr) || errors.Is(err, costgate.ErrNotConfirmed) {
		return storage.OutcomeAborted
	}
	return storage.OutcomeFailed
}

func buildPayload(req models.ScanRequest, custom []api.CustomRegulation) api.ScanPayload {
	return api.ScanPayload{
		Path:              req.Path,
		Files:             req.FileMap(),
		Regulations:       req.Regulations,
		CustomRegulations: custom,
		Mode:              req.Mode,
		Provider:          req.Provider,
		Model:             req.Model,
		MinSeverity:       string(req.MinSeverity),
		IncludeClauses:    req.IncludeClauses,
		ExcludeClauses:    req.ExcludeClauses,
		Formats:           req.Formats,
		Template:          req.Template,
		CompanyName:       req.CompanyName,
		CompanyLogo:       req.CompanyLogo,
	}
}
