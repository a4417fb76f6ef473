// Package policy decides per request whether an organization may use a
// hosted provider.
package policy

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/ogulcanaydogan/genroute/internal/metrics"
	"github.com/ogulcanaydogan/genroute/pkg/ledger"
	"github.com/ogulcanaydogan/genroute/pkg/model"
)

// DefaultSoftMultiplier is how far past its limits a budget may go for
// critical tasks.
const DefaultSoftMultiplier = 2.0

const (
	ReasonNoBudget       = "no budget limits set"
	ReasonWithinBudget   = "within budget"
	ReasonCriticalWithin = "critical task within soft limit"
	ReasonExceeded       = "daily budget exceeded"
)

// BudgetFinder looks up an organization's active budget for today. It
// returns nil, nil when the organization has none.
type BudgetFinder interface {
	Find(ctx context.Context, orgID string) (*model.Budget, error)
}

// Decision is the outcome of a hosted-provider check.
type Decision struct {
	Permitted bool
	Reason    string
}

// Selector evaluates hosted-provider eligibility.
type Selector struct {
	budgets        BudgetFinder
	softMultiplier float64
	logger         *slog.Logger
}

// NewSelector creates a selector. A soft multiplier of 1.0 or less falls
// back to DefaultSoftMultiplier.
func NewSelector(budgets BudgetFinder, softMultiplier float64, logger *slog.Logger) *Selector {
	if softMultiplier <= 1.0 {
		softMultiplier = DefaultSoftMultiplier
	}
	return &Selector{budgets: budgets, softMultiplier: softMultiplier, logger: logger}
}

// SoftMultiplier returns the multiplier applied to critical tasks.
func (s *Selector) SoftMultiplier() float64 { return s.softMultiplier }

// Evaluate decides whether orgID may use a hosted provider for task. A denial
// is a normal Decision; an error means the budget could not be read.
func (s *Selector) Evaluate(ctx context.Context, orgID, task string) (Decision, error) {
	critical := model.IsCriticalTask(task)

	b, err := s.budgets.Find(ctx, orgID)
	if err != nil {
		return Decision{}, err
	}

	var d Decision
	switch {
	case b == nil:
		d = Decision{Permitted: true, Reason: ReasonNoBudget}
	case critical:
		if ledger.IsOverLimit(b, s.softMultiplier) {
			d = Decision{Reason: fmt.Sprintf("critical task over soft limit (x%.1f)", s.softMultiplier)}
		} else {
			d = Decision{Permitted: true, Reason: ReasonCriticalWithin}
		}
	default:
		if ledger.IsOverLimit(b, 1.0) {
			d = Decision{Reason: ReasonExceeded}
		} else {
			d = Decision{Permitted: true, Reason: ReasonWithinBudget}
		}
	}

	decision := "permit"
	if !d.Permitted {
		decision = "deny"
		s.logger.Info("hosted provider denied", "org", orgID, "task", task, "reason", d.Reason)
	}
	metrics.PolicyDecisionsTotal.WithLabelValues(decision, strconv.FormatBool(critical)).Inc()
	return d, nil
}
