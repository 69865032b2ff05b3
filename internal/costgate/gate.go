// Package costgate prices a scan and enforces the spend checkpoint: nothing
// is submitted over budget or without an explicit go-ahead.
package costgate

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/earosenfeld/clausi-cli/internal/api"
	"github.com/earosenfeld/clausi-cli/internal/models"
)

// ErrNotConfirmed blocks submission when the user has neither confirmed the
// estimate nor passed the skip-confirmation flag.
var ErrNotConfirmed = errors.New("scan not confirmed")

// BudgetExceededError aborts a scan whose estimate lands above the ceiling.
type BudgetExceededError struct {
	EstimatedCost float64
	Ceiling       float64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("estimated cost $%.2f exceeds --max-cost $%.2f", e.EstimatedCost, e.Ceiling)
}

// pricer is the slice of the service client the gate needs.
type pricer interface {
	Estimate(ctx context.Context, req api.EstimateRequest, token string) (models.CostEstimate, error)
	CheckPaymentRequired(ctx context.Context, mode models.ScanMode, token string) (api.PaymentStatus, error)
}

// Gate prices scans and rules on whether they may be submitted. It performs
// no user interaction itself; confirmation arrives as autoConfirm.
type Gate struct {
	client pricer
	log    *zap.SugaredLogger
}

func New(client pricer, log *zap.SugaredLogger) *Gate {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Gate{client: client, log: log}
}

// Estimate prices the selected files against the chosen regulations.
// Failures pass through untouched so the caller can tell transport from
// remote rejection; the gate never retries.
func (g *Gate) Estimate(ctx context.Context, req api.EstimateRequest, token string) (models.CostEstimate, error) {
	est, err := g.client.Estimate(ctx, req, token)
	if err != nil {
		return models.CostEstimate{}, err
	}
	if n := len(est.OversizeFiles()); n > 0 {
		g.log.Warnw("service skipped oversize files", "count", n)
	}
	g.log.Infow("scan priced",
		"total_tokens", est.TotalTokens,
		"estimated_cost", est.EstimatedCost)
	return est, nil
}

// Authorize rules on a received estimate. nil means the scan may be
// submitted. A ceiling of zero means no ceiling; a breach wins over
// autoConfirm.
func (g *Gate) Authorize(est models.CostEstimate, ceiling float64, autoConfirm bool) error {
	if ceiling > 0 && est.EstimatedCost > ceiling {
		return &BudgetExceededError{EstimatedCost: est.EstimatedCost, Ceiling: ceiling}
	}
	if !autoConfirm {
		return ErrNotConfirmed
	}
	return nil
}

// CheckPayment is the pre-flight that avoids paying for an estimate the
// user cannot ultimately use.
func (g *Gate) CheckPayment(ctx context.Context, mode models.ScanMode, token string) error {
	status, err := g.client.CheckPaymentRequired(ctx, mode, token)
	if err != nil {
		return err
	}
	if status.Required {
		return &api.AuthorizationError{CheckoutURL: status.CheckoutURL}
	}
	return nil
}
