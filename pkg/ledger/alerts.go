package ledger

import (
	"context"

	"github.com/ogulcanaydogan/genroute/internal/metrics"
	"github.com/ogulcanaydogan/genroute/pkg/alerts"
	"github.com/ogulcanaydogan/genroute/pkg/model"
)

// checkThresholds dispatches an alert when usage moved the budget into a
// more severe level than before the charge.
func (l *Ledger) checkThresholds(ctx context.Context, b *model.Budget, prevPct float64) {
	pct := b.PercentageUsed()
	prev := alerts.LevelFor(prevPct, l.cfg.AlertThresholdPct)
	level := alerts.LevelFor(pct, l.cfg.AlertThresholdPct)
	if !alerts.Escalates(prev, level) {
		return
	}

	alert := alerts.Alert{
		Level:          level,
		OrganizationID: b.OrganizationID,
		TokensUsed:     b.TokensUsedToday,
		TokenLimit:     b.DailyTokenLimit,
		CostUsed:       b.CostUsedToday,
		CostLimit:      b.DailyCostLimit,
		PercentageUsed: pct,
		ThresholdPct:   l.cfg.AlertThresholdPct,
		PeriodDate:     b.CurrentPeriodDate,
	}
	alert.Message = alert.Summary()

	metrics.BudgetAlertsTotal.WithLabelValues(string(level)).Inc()
	l.logger.Warn("budget threshold crossed",
		"org", b.OrganizationID,
		"level", level,
		"pct", pct,
		"tokens", b.TokensUsedToday,
		"cost", b.CostUsedToday,
	)

	for _, notifier := range l.notifiers {
		if err := notifier.Send(ctx, alert); err != nil {
			l.logger.Error("send alert failed",
				"notifier", notifier.Name(),
				"org", b.OrganizationID,
				"error", err,
			)
		}
	}
}
