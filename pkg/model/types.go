package model

import "time"

// DateLayout is the layout used for budget period dates.
const DateLayout = "2006-01-02"

// Task identifiers understood by the routing core. Any other string is a
// valid, non-critical task.
const (
	TaskAdsCopy     = "ads_copy"
	TaskBrandVoice  = "brand_voice"
	TaskSafetyCheck = "safety_check"
)

var criticalTasks = map[string]struct{}{
	TaskAdsCopy:     {},
	TaskBrandVoice:  {},
	TaskSafetyCheck: {},
}

// IsCriticalTask reports whether a task belongs to the critical set.
func IsCriticalTask(task string) bool {
	_, ok := criticalTasks[task]
	return ok
}

// Day formats t as a UTC calendar date.
func Day(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// Budget is an organization's daily allowance and the counters charged
// against it.
type Budget struct {
	ID                string    `json:"id" db:"id"`
	OrganizationID    string    `json:"organization_id" db:"organization_id"`
	DailyTokenLimit   int64     `json:"daily_token_limit" db:"daily_token_limit"`
	DailyCostLimit    float64   `json:"daily_cost_limit" db:"daily_cost_limit"`
	CurrentPeriodDate string    `json:"current_period_date" db:"current_period_date"`
	TokensUsedToday   int64     `json:"tokens_used_today" db:"tokens_used_today"`
	CostUsedToday     float64   `json:"cost_used_today" db:"cost_used_today"`
	Active            bool      `json:"active" db:"active"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// PercentageUsed returns the larger of token and cost consumption as a
// percentage of the respective limit.
func (b *Budget) PercentageUsed() float64 {
	var tokenPct, costPct float64
	if b.DailyTokenLimit > 0 {
		tokenPct = float64(b.TokensUsedToday) / float64(b.DailyTokenLimit) * 100
	}
	if b.DailyCostLimit > 0 {
		costPct = b.CostUsedToday / b.DailyCostLimit * 100
	}
	return max(tokenPct, costPct)
}

// GenerationRequest is a single call into the routing core.
type GenerationRequest struct {
	Task           string `json:"task"`
	Prompt         string `json:"prompt"`
	System         string `json:"system,omitempty"`
	OrganizationID string `json:"organization_id,omitempty"`
	Critical       bool   `json:"critical,omitempty"`
	// Provider optionally pins a hosted provider ("kind:model").
	Provider string `json:"provider,omitempty"`
}

// GenerationResult is the outcome of a generation and also the cache payload.
type GenerationResult struct {
	Text         string        `json:"text"`
	Provider     string        `json:"provider"`
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
	CostUSD      float64       `json:"cost_usd"`
	FromCache    bool          `json:"from_cache"`
	Duration     time.Duration `json:"duration"`
	PolicyReason string        `json:"policy_reason,omitempty"`
}

// UsageStats is a read-only view of an organization's budget for the current day.
type UsageStats struct {
	OrganizationID string  `json:"organization_id"`
	TokensUsed     int64   `json:"tokens_used"`
	TokensLimit    int64   `json:"tokens_limit"`
	CostUsed       float64 `json:"cost_used"`
	CostLimit      float64 `json:"cost_limit"`
	PercentageUsed float64 `json:"percentage_used"`
}

// UsageRecord is one row of the generation log.
type UsageRecord struct {
	ID             string        `json:"id" db:"id"`
	OrganizationID string        `json:"organization_id" db:"organization_id"`
	Task           string        `json:"task" db:"task"`
	Provider       string        `json:"provider" db:"provider"`
	InputTokens    int64         `json:"input_tokens" db:"input_tokens"`
	OutputTokens   int64         `json:"output_tokens" db:"output_tokens"`
	CostUSD        float64       `json:"cost_usd" db:"cost_usd"`
	Duration       time.Duration `json:"duration"`
	PolicyReason   string        `json:"policy_reason,omitempty" db:"policy_reason"`
	Timestamp      time.Time     `json:"timestamp" db:"timestamp"`
}

// ReportPeriod defines the time window for a usage report.
type ReportPeriod string

const (
	PeriodDaily   ReportPeriod = "daily"
	PeriodWeekly  ReportPeriod = "weekly"
	PeriodMonthly ReportPeriod = "monthly"
)

// ReportFilter controls which generation log rows are included in reports.
type ReportFilter struct {
	OrganizationID string    `json:"organization_id,omitempty"`
	Provider       string    `json:"provider,omitempty"`
	Task           string    `json:"task,omitempty"`
	StartTime      time.Time `json:"start_time,omitempty"`
	EndTime        time.Time `json:"end_time,omitempty"`
}

// UsageSummary holds aggregated generation log statistics.
type UsageSummary struct {
	TotalCostUSD      float64            `json:"total_cost_usd"`
	TotalInputTokens  int64              `json:"total_input_tokens"`
	TotalOutputTokens int64              `json:"total_output_tokens"`
	RecordCount       int64              `json:"record_count"`
	ByProvider        map[string]float64 `json:"by_provider,omitempty"`
	ByTask            map[string]float64 `json:"by_task,omitempty"`
}

// PeriodBounds returns the start and end of the period containing now.
func PeriodBounds(period ReportPeriod, now time.Time) (start, end time.Time) {
	now = now.UTC()
	switch period {
	case PeriodWeekly:
		weekday := int(now.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		start = time.Date(now.Year(), now.Month(), now.Day()-weekday+1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 0, 7)
	case PeriodMonthly:
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, 0)
	default:
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 0, 1)
	}
	return start, end
}
