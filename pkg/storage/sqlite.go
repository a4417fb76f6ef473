package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ogulcanaydogan/genroute/pkg/model"

	_ "modernc.org/sqlite"
)

// Compile-time check: SQLite implements Storage.
var _ Storage = (*SQLite)(nil)

const budgetColumns = `id, organization_id, daily_token_limit, daily_cost_limit, current_period_date,
	tokens_used_today, cost_used_today, active, created_at, updated_at`

// SQLite implements the Storage interface using an SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates an SQLite database at the given path.
func NewSQLite(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection serializes writers; pragmas below stay in effect.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBudget(row rowScanner) (*model.Budget, error) {
	var b model.Budget
	err := row.Scan(&b.ID, &b.OrganizationID, &b.DailyTokenLimit, &b.DailyCostLimit, &b.CurrentPeriodDate,
		&b.TokensUsedToday, &b.CostUsedToday, &b.Active, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *SQLite) GetBudget(ctx context.Context, orgID string) (*model.Budget, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE organization_id = ? AND active = 1`, orgID)
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &Error{Op: OpGetBudget, Err: err}
	}
	return b, nil
}

func (s *SQLite) CreateBudget(ctx context.Context, budget *model.Budget) (*model.Budget, error) {
	if budget.ID == "" {
		budget.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if budget.CreatedAt.IsZero() {
		budget.CreatedAt = now
	}
	budget.UpdatedAt = now

	// Reactivation starts the budget over; an active row is left untouched.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO budgets (`+budgetColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		 ON CONFLICT(organization_id) DO UPDATE SET
		   daily_token_limit = excluded.daily_token_limit,
		   daily_cost_limit = excluded.daily_cost_limit,
		   current_period_date = excluded.current_period_date,
		   tokens_used_today = excluded.tokens_used_today,
		   cost_used_today = excluded.cost_used_today,
		   active = 1,
		   updated_at = excluded.updated_at
		 WHERE budgets.active = 0`,
		budget.ID, budget.OrganizationID, budget.DailyTokenLimit, budget.DailyCostLimit,
		budget.CurrentPeriodDate, budget.TokensUsedToday, budget.CostUsedToday,
		budget.CreatedAt, budget.UpdatedAt,
	)
	if err != nil {
		return nil, &Error{Op: OpCreateBudget, Err: err}
	}

	stored, err := s.GetBudget(ctx, budget.OrganizationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &Error{Op: OpCreateBudget, Err: err}
		}
		return nil, err
	}
	return stored, nil
}

func (s *SQLite) SaveUsage(ctx context.Context, budget *model.Budget) error {
	budget.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE budgets SET
		   current_period_date = ?, tokens_used_today = ?, cost_used_today = ?, updated_at = ?
		 WHERE organization_id = ? AND active = 1`,
		budget.CurrentPeriodDate, budget.TokensUsedToday, budget.CostUsedToday, budget.UpdatedAt,
		budget.OrganizationID,
	)
	if err != nil {
		return &Error{Op: OpSaveUsage, Err: err}
	}
	return requireRow(result, OpSaveUsage)
}

func (s *SQLite) UpdateLimits(ctx context.Context, orgID string, tokens int64, cost float64) (*model.Budget, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE budgets SET daily_token_limit = ?, daily_cost_limit = ?, updated_at = ?
		 WHERE organization_id = ? AND active = 1`,
		tokens, cost, time.Now().UTC(), orgID,
	)
	if err != nil {
		return nil, &Error{Op: OpSetLimits, Err: err}
	}
	if err := requireRow(result, OpSetLimits); err != nil {
		return nil, err
	}
	return s.GetBudget(ctx, orgID)
}

func (s *SQLite) AddBudgetUsage(ctx context.Context, orgID, day string, tokens int64, cost float64) (*model.Budget, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE budgets SET
		   tokens_used_today = CASE WHEN current_period_date < ? THEN ? ELSE tokens_used_today + ? END,
		   cost_used_today   = CASE WHEN current_period_date < ? THEN ? ELSE cost_used_today + ? END,
		   current_period_date = MAX(current_period_date, ?),
		   updated_at = ?
		 WHERE organization_id = ? AND active = 1`,
		day, tokens, tokens,
		day, cost, cost,
		day, time.Now().UTC(), orgID,
	)
	if err != nil {
		return nil, &Error{Op: OpAddUsage, Err: err}
	}
	if err := requireRow(result, OpAddUsage); err != nil {
		return nil, err
	}
	return s.GetBudget(ctx, orgID)
}

func (s *SQLite) DeactivateBudget(ctx context.Context, orgID string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE budgets SET active = 0, updated_at = ? WHERE organization_id = ? AND active = 1`,
		time.Now().UTC(), orgID,
	)
	if err != nil {
		return &Error{Op: OpDeactivate, Err: err}
	}
	return requireRow(result, OpDeactivate)
}

func (s *SQLite) ListBudgets(ctx context.Context) ([]model.Budget, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE active = 1 ORDER BY organization_id`)
	if err != nil {
		return nil, &Error{Op: OpListBudgets, Err: err}
	}
	defer rows.Close()

	var budgets []model.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, &Error{Op: OpListBudgets, Err: err}
		}
		budgets = append(budgets, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, &Error{Op: OpListBudgets, Err: err}
	}
	return budgets, nil
}

func requireRow(result sql.Result, op string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return &Error{Op: op, Err: fmt.Errorf("check rows affected: %w", err)}
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) RecordUsage(ctx context.Context, record *model.UsageRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO generation_log (id, organization_id, task, provider, input_tokens, output_tokens,
		   cost_usd, duration_ms, policy_reason, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.OrganizationID, record.Task, record.Provider,
		record.InputTokens, record.OutputTokens, record.CostUSD,
		record.Duration.Milliseconds(), record.PolicyReason, record.Timestamp,
	)
	if err != nil {
		return &Error{Op: OpRecordUsage, Err: err}
	}
	return nil
}

func (s *SQLite) QueryUsage(ctx context.Context, filter model.ReportFilter) ([]model.UsageRecord, error) {
	query := `SELECT id, organization_id, task, provider, input_tokens, output_tokens, cost_usd,
		duration_ms, policy_reason, timestamp FROM generation_log`
	where, args := buildWhereClause(filter)
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY timestamp DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &Error{Op: OpQueryUsage, Err: err}
	}
	defer rows.Close()

	var records []model.UsageRecord
	for rows.Next() {
		var (
			r          model.UsageRecord
			durationMS int64
		)
		if err := rows.Scan(&r.ID, &r.OrganizationID, &r.Task, &r.Provider, &r.InputTokens, &r.OutputTokens,
			&r.CostUSD, &durationMS, &r.PolicyReason, &r.Timestamp); err != nil {
			return nil, &Error{Op: OpQueryUsage, Err: err}
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &Error{Op: OpQueryUsage, Err: err}
	}
	return records, nil
}

func (s *SQLite) AggregateUsage(ctx context.Context, filter model.ReportFilter) (*model.UsageSummary, error) {
	query := `SELECT
		COALESCE(SUM(cost_usd), 0),
		COALESCE(SUM(input_tokens), 0),
		COALESCE(SUM(output_tokens), 0),
		COUNT(*)
	FROM generation_log`
	where, args := buildWhereClause(filter)
	if where != "" {
		query += " WHERE " + where
	}

	summary := &model.UsageSummary{}
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&summary.TotalCostUSD,
		&summary.TotalInputTokens,
		&summary.TotalOutputTokens,
		&summary.RecordCount,
	)
	if err != nil {
		return nil, &Error{Op: OpAggregate, Err: err}
	}

	summary.ByProvider, err = s.aggregateByField(ctx, "provider", where, args)
	if err != nil {
		return nil, err
	}

	summary.ByTask, err = s.aggregateByField(ctx, "task", where, args)
	if err != nil {
		return nil, err
	}

	return summary, nil
}

func (s *SQLite) aggregateByField(ctx context.Context, field, where string, args []any) (map[string]float64, error) {
	query := fmt.Sprintf("SELECT %s, COALESCE(SUM(cost_usd), 0) FROM generation_log", field)
	if where != "" {
		query += " WHERE " + where
	}
	query += fmt.Sprintf(" GROUP BY %s", field)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &Error{Op: OpAggregate, Err: fmt.Errorf("by %s: %w", field, err)}
	}
	defer rows.Close()

	result := make(map[string]float64)
	for rows.Next() {
		var name string
		var total float64
		if err := rows.Scan(&name, &total); err != nil {
			return nil, &Error{Op: OpAggregate, Err: fmt.Errorf("scan %s: %w", field, err)}
		}
		result[name] = total
	}
	return result, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// buildWhereClause constructs a SQL WHERE clause from a ReportFilter.
func buildWhereClause(filter model.ReportFilter) (string, []any) {
	var conditions []string
	var args []any

	if filter.OrganizationID != "" {
		conditions = append(conditions, "organization_id = ?")
		args = append(args, filter.OrganizationID)
	}
	if filter.Provider != "" {
		conditions = append(conditions, "provider = ?")
		args = append(args, filter.Provider)
	}
	if filter.Task != "" {
		conditions = append(conditions, "task = ?")
		args = append(args, filter.Task)
	}
	if !filter.StartTime.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, filter.StartTime)
	}
	if !filter.EndTime.IsZero() {
		conditions = append(conditions, "timestamp < ?")
		args = append(args, filter.EndTime)
	}

	return strings.Join(conditions, " AND "), args
}
