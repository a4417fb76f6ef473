package alerts

import (
	"context"
	"fmt"
)

// AlertLevel indicates how far into its daily budget an organization is.
type AlertLevel string

const (
	AlertNone     AlertLevel = ""
	AlertWarning  AlertLevel = "warning"  // past the configured threshold
	AlertCritical AlertLevel = "critical" // 95% or more
	AlertExceeded AlertLevel = "exceeded" // over the nominal limit
)

var severity = map[AlertLevel]int{
	AlertNone:     0,
	AlertWarning:  1,
	AlertCritical: 2,
	AlertExceeded: 3,
}

// LevelFor classifies a usage percentage against a warning threshold.
func LevelFor(pct, thresholdPct float64) AlertLevel {
	switch {
	case pct >= 100:
		return AlertExceeded
	case pct >= 95:
		return AlertCritical
	case thresholdPct > 0 && pct >= thresholdPct:
		return AlertWarning
	default:
		return AlertNone
	}
}

// Escalates reports whether moving from prev to next raises severity.
func Escalates(prev, next AlertLevel) bool {
	return severity[next] > severity[prev]
}

// Alert is a budget threshold notification for one organization.
type Alert struct {
	Level          AlertLevel `json:"level"`
	OrganizationID string     `json:"organization_id"`
	TokensUsed     int64      `json:"tokens_used"`
	TokenLimit     int64      `json:"token_limit"`
	CostUsed       float64    `json:"cost_used"`
	CostLimit      float64    `json:"cost_limit"`
	PercentageUsed float64    `json:"percentage_used"`
	ThresholdPct   float64    `json:"threshold_pct"`
	PeriodDate     string     `json:"period_date"`
	Message        string     `json:"message"`
}

// Summary renders the alert as a one-line human message.
func (a Alert) Summary() string {
	return fmt.Sprintf("Organization %q at %.1f%% of daily budget (%d/%d tokens, $%.2f/$%.2f)",
		a.OrganizationID, a.PercentageUsed, a.TokensUsed, a.TokenLimit, a.CostUsed, a.CostLimit)
}

// Notifier sends alerts to external systems.
type Notifier interface {
	// Name returns the notifier identifier.
	Name() string

	// Send delivers an alert. Implementations must be safe for concurrent use.
	Send(ctx context.Context, alert Alert) error
}
