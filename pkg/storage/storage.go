package storage

import (
	"context"
	"errors"

	"github.com/ogulcanaydogan/genroute/pkg/model"
)

// ErrNotFound is returned when no active budget exists for an organization.
var ErrNotFound = errors.New("storage: budget not found")

// Op names used in Error for diagnostics.
const (
	OpGetBudget    = "get_budget"
	OpCreateBudget = "create_budget"
	OpSaveUsage    = "save_usage"
	OpSetLimits    = "set_limits"
	OpAddUsage     = "add_usage"
	OpDeactivate   = "deactivate_budget"
	OpListBudgets  = "list_budgets"
	OpRecordUsage  = "record_usage"
	OpQueryUsage   = "query_usage"
	OpAggregate    = "aggregate_usage"
)

// Error wraps a persistence failure with the operation that caused it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return "storage: " + e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Storage defines the persistence layer for budgets and the generation log.
type Storage interface {
	// GetBudget returns the active budget for an organization or ErrNotFound.
	GetBudget(ctx context.Context, orgID string) (*model.Budget, error)

	// CreateBudget inserts a budget, or reactivates a deactivated one, and
	// returns the stored row. An already active budget is returned unchanged.
	CreateBudget(ctx context.Context, budget *model.Budget) (*model.Budget, error)

	// SaveUsage overwrites the counters and period date of an active budget.
	// Limits are left untouched.
	SaveUsage(ctx context.Context, budget *model.Budget) error

	// UpdateLimits changes only the daily limits of an active budget and
	// returns the stored row.
	UpdateLimits(ctx context.Context, orgID string, tokens int64, cost float64) (*model.Budget, error)

	// AddBudgetUsage atomically charges tokens and cost for the given day,
	// restarting the counters if the stored period is older.
	AddBudgetUsage(ctx context.Context, orgID, day string, tokens int64, cost float64) (*model.Budget, error)

	// DeactivateBudget soft-deletes the active budget for an organization.
	DeactivateBudget(ctx context.Context, orgID string) error

	// ListBudgets returns all active budgets.
	ListBudgets(ctx context.Context) ([]model.Budget, error)

	// RecordUsage appends a row to the generation log.
	RecordUsage(ctx context.Context, record *model.UsageRecord) error

	// QueryUsage retrieves generation log rows matching the filter.
	QueryUsage(ctx context.Context, filter model.ReportFilter) ([]model.UsageRecord, error)

	// AggregateUsage returns totals for the filter.
	AggregateUsage(ctx context.Context, filter model.ReportFilter) (*model.UsageSummary, error)

	// Close releases resources.
	Close() error
}
