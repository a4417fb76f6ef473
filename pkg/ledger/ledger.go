// Package ledger keeps per-organization daily budgets: lazy creation, lazy
// daily reset, limit checks and usage recording.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ogulcanaydogan/genroute/pkg/alerts"
	"github.com/ogulcanaydogan/genroute/pkg/model"
	"github.com/ogulcanaydogan/genroute/pkg/storage"
)

// Config holds ledger defaults and behavior switches.
type Config struct {
	DefaultDailyTokens int64
	DefaultDailyCost   float64
	// StrictAccounting charges usage with a single atomic update instead of
	// read-modify-write. Without it concurrent requests may under-count.
	StrictAccounting bool
	// AlertThresholdPct is the warning level for notifiers; 0 disables warnings.
	AlertThresholdPct float64
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Ledger manages organization budgets.
type Ledger struct {
	store     storage.Storage
	cfg       Config
	notifiers []alerts.Notifier
	logger    *slog.Logger
}

// New creates a ledger backed by store.
func New(store storage.Storage, cfg Config, notifiers []alerts.Notifier, logger *slog.Logger) *Ledger {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Ledger{
		store:     store,
		cfg:       cfg,
		notifiers: notifiers,
		logger:    logger,
	}
}

func (l *Ledger) today() string {
	return model.Day(l.cfg.Now())
}

// IsOverLimit reports whether either counter exceeds its limit scaled by
// multiplier. Multipliers below 1.0 are treated as 1.0.
func IsOverLimit(b *model.Budget, multiplier float64) bool {
	if multiplier < 1.0 {
		multiplier = 1.0
	}
	return float64(b.TokensUsedToday) > float64(b.DailyTokenLimit)*multiplier ||
		b.CostUsedToday > b.DailyCostLimit*multiplier
}

// GetOrCreate returns the organization's active budget, creating one with
// default limits if none exists.
func (l *Ledger) GetOrCreate(ctx context.Context, orgID string) (*model.Budget, error) {
	b, err := l.store.GetBudget(ctx, orgID)
	if errors.Is(err, storage.ErrNotFound) {
		b, err = l.store.CreateBudget(ctx, &model.Budget{
			OrganizationID:    orgID,
			DailyTokenLimit:   l.cfg.DefaultDailyTokens,
			DailyCostLimit:    l.cfg.DefaultDailyCost,
			CurrentPeriodDate: l.today(),
		})
		if err != nil {
			return nil, fmt.Errorf("create budget for %s: %w", orgID, err)
		}
		l.logger.Info("budget created", "org", orgID,
			"daily_tokens", b.DailyTokenLimit, "daily_cost", b.DailyCostLimit)
	}
	if err != nil {
		return nil, fmt.Errorf("get budget for %s: %w", orgID, err)
	}
	return l.rollover(ctx, b)
}

// Find returns the organization's active budget, or nil when there is none.
// A missing budget is not an error.
func (l *Ledger) Find(ctx context.Context, orgID string) (*model.Budget, error) {
	b, err := l.store.GetBudget(ctx, orgID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find budget for %s: %w", orgID, err)
	}
	return l.rollover(ctx, b)
}

// rollover zeroes the counters and persists when the stored period is
// behind the current day.
func (l *Ledger) rollover(ctx context.Context, b *model.Budget) (*model.Budget, error) {
	today := l.today()
	if b.CurrentPeriodDate >= today {
		return b, nil
	}
	l.logger.Debug("budget period reset", "org", b.OrganizationID,
		"from", b.CurrentPeriodDate, "to", today)
	b.CurrentPeriodDate = today
	b.TokensUsedToday = 0
	b.CostUsedToday = 0
	if err := l.store.SaveUsage(ctx, b); err != nil {
		return nil, fmt.Errorf("reset budget for %s: %w", b.OrganizationID, err)
	}
	return b, nil
}

// RecordUsage charges tokens and cost to the organization's budget for the
// current day, creating the budget if needed.
func (l *Ledger) RecordUsage(ctx context.Context, orgID string, tokens int64, cost float64) (*model.Budget, error) {
	if tokens < 0 || cost < 0 {
		return nil, fmt.Errorf("record usage for %s: negative amount", orgID)
	}

	b, err := l.GetOrCreate(ctx, orgID)
	if err != nil {
		return nil, err
	}
	prevPct := b.PercentageUsed()

	if l.cfg.StrictAccounting {
		b, err = l.store.AddBudgetUsage(ctx, orgID, l.today(), tokens, cost)
		if err != nil {
			return nil, fmt.Errorf("record usage for %s: %w", orgID, err)
		}
	} else {
		b.TokensUsedToday += tokens
		b.CostUsedToday += cost
		if err := l.store.SaveUsage(ctx, b); err != nil {
			return nil, fmt.Errorf("record usage for %s: %w", orgID, err)
		}
	}

	l.checkThresholds(ctx, b, prevPct)
	return b, nil
}

// UsageStats reports the organization's consumption for the current day
// without modifying anything. Organizations without a budget report the
// default limits and zero usage.
func (l *Ledger) UsageStats(ctx context.Context, orgID string) (model.UsageStats, error) {
	stats := model.UsageStats{
		OrganizationID: orgID,
		TokensLimit:    l.cfg.DefaultDailyTokens,
		CostLimit:      l.cfg.DefaultDailyCost,
	}

	b, err := l.store.GetBudget(ctx, orgID)
	if errors.Is(err, storage.ErrNotFound) {
		return stats, nil
	}
	if err != nil {
		return model.UsageStats{}, fmt.Errorf("usage stats for %s: %w", orgID, err)
	}

	view := *b
	if view.CurrentPeriodDate < l.today() {
		view.TokensUsedToday = 0
		view.CostUsedToday = 0
	}
	stats.TokensUsed = view.TokensUsedToday
	stats.TokensLimit = view.DailyTokenLimit
	stats.CostUsed = view.CostUsedToday
	stats.CostLimit = view.DailyCostLimit
	stats.PercentageUsed = view.PercentageUsed()
	return stats, nil
}

// SetLimits changes an organization's daily limits, creating the budget if
// needed.
func (l *Ledger) SetLimits(ctx context.Context, orgID string, tokens int64, cost float64) (*model.Budget, error) {
	if tokens <= 0 || cost <= 0 {
		return nil, fmt.Errorf("set limits for %s: limits must be positive", orgID)
	}
	if _, err := l.GetOrCreate(ctx, orgID); err != nil {
		return nil, err
	}
	b, err := l.store.UpdateLimits(ctx, orgID, tokens, cost)
	if err != nil {
		return nil, fmt.Errorf("set limits for %s: %w", orgID, err)
	}
	l.logger.Info("budget limits updated", "org", orgID, "daily_tokens", tokens, "daily_cost", cost)
	return b, nil
}

// Deactivate soft-deletes the organization's budget. Later requests for the
// organization skip budget checks until a new budget is created.
func (l *Ledger) Deactivate(ctx context.Context, orgID string) error {
	if err := l.store.DeactivateBudget(ctx, orgID); err != nil {
		return fmt.Errorf("deactivate budget for %s: %w", orgID, err)
	}
	l.logger.Info("budget deactivated", "org", orgID)
	return nil
}
