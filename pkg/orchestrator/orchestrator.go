// Package orchestrator composes the response cache, the provider selection
// policy, the providers and the budget ledger into single and batch
// generation.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ogulcanaydogan/genroute/internal/metrics"
	"github.com/ogulcanaydogan/genroute/pkg/cache"
	"github.com/ogulcanaydogan/genroute/pkg/estimator"
	"github.com/ogulcanaydogan/genroute/pkg/model"
	"github.com/ogulcanaydogan/genroute/pkg/policy"
	"github.com/ogulcanaydogan/genroute/pkg/providers"
)

// Defaults for Config.
var (
	DefaultPrimary       = providers.MustParseID("openai:gpt-4o-mini")
	DefaultOpen          = providers.MustParseID("ollama:llama3.1")
	DefaultSlowThreshold = 10 * time.Second
)

// ProviderSource resolves provider ids to callable providers.
type ProviderSource interface {
	Get(id providers.ID) (providers.Provider, error)
}

// Policy decides hosted-provider eligibility.
type Policy interface {
	Evaluate(ctx context.Context, orgID, task string) (policy.Decision, error)
}

// Ledger charges usage to an organization's daily budget.
type Ledger interface {
	RecordUsage(ctx context.Context, orgID string, tokens int64, cost float64) (*model.Budget, error)
}

// UsageLog keeps a per-generation history.
type UsageLog interface {
	RecordUsage(ctx context.Context, record *model.UsageRecord) error
}

// Deps are the collaborators of an Orchestrator. Providers and Estimator are
// required; the rest may be nil, which disables that step.
type Deps struct {
	Providers ProviderSource
	Estimator *estimator.Estimator
	Cache     *cache.ResponseCache
	Policy    Policy
	Ledger    Ledger
	UsageLog  UsageLog
}

// Config selects providers and the slow-generation threshold.
type Config struct {
	// Primary is the hosted provider used when the policy permits.
	Primary providers.ID
	// Open is the self-hosted provider used when the policy denies.
	Open          providers.ID
	SlowThreshold time.Duration
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Orchestrator serves generation requests.
type Orchestrator struct {
	deps   Deps
	cfg    Config
	logger *slog.Logger
}

// New creates an orchestrator. Zero Config fields take the package defaults.
func New(deps Deps, cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.Primary == (providers.ID{}) {
		cfg.Primary = DefaultPrimary
	}
	if cfg.Open == (providers.ID{}) {
		cfg.Open = DefaultOpen
	}
	if cfg.SlowThreshold <= 0 {
		cfg.SlowThreshold = DefaultSlowThreshold
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Orchestrator{deps: deps, cfg: cfg, logger: logger}
}

// Generate serves one request: cache lookup, policy check, provider call,
// usage recording and cache write.
func (o *Orchestrator) Generate(ctx context.Context, req model.GenerationRequest) (model.GenerationResult, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return model.GenerationResult{}, fmt.Errorf("%w: prompt is required", ErrInvalidRequest)
	}
	var preferred providers.ID
	if req.Provider != "" {
		id, err := providers.ParseID(req.Provider)
		if err != nil {
			return model.GenerationResult{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		preferred = id
	}

	key, cacheable := cache.MakeKey(req)
	if cacheable && o.deps.Cache != nil {
		if res, ok := o.deps.Cache.Get(ctx, key); ok {
			metrics.GenerationsTotal.WithLabelValues(res.Provider, "cached").Inc()
			o.logger.Debug("cache hit", "task", req.Task, "org", req.OrganizationID)
			return res, nil
		}
	}

	target, reason, err := o.route(ctx, req, preferred)
	if err != nil {
		return model.GenerationResult{}, err
	}

	p, err := o.deps.Providers.Get(target)
	if err != nil {
		return model.GenerationResult{}, &StageError{Stage: StageProvider, Err: err}
	}

	start := o.cfg.Now()
	text, err := p.Complete(ctx, req.Prompt, req.System)
	elapsed := o.cfg.Now().Sub(start)
	if err != nil {
		metrics.GenerationsTotal.WithLabelValues(target.String(), "error").Inc()
		o.logger.Error("generation failed", "provider", target.String(), "task", req.Task,
			"org", req.OrganizationID, "error", err)
		return model.GenerationResult{}, &StageError{Stage: StageProvider, Err: err}
	}
	metrics.GenerationsTotal.WithLabelValues(target.String(), "success").Inc()
	metrics.GenerationDuration.WithLabelValues(target.String()).Observe(elapsed.Seconds())

	in := estimator.EstimateTokens(req.Prompt + req.System)
	out := estimator.EstimateTokens(text)
	cost := o.deps.Estimator.EstimateCost(target.String(), in, out)
	metrics.GenerationTokensTotal.WithLabelValues(target.String(), "input").Add(float64(in))
	metrics.GenerationTokensTotal.WithLabelValues(target.String(), "output").Add(float64(out))

	res := model.GenerationResult{
		Text:         text,
		Provider:     target.String(),
		InputTokens:  in,
		OutputTokens: out,
		CostUSD:      cost,
		Duration:     elapsed,
		PolicyReason: reason,
	}

	if req.OrganizationID != "" && o.deps.Ledger != nil {
		if _, err := o.deps.Ledger.RecordUsage(ctx, req.OrganizationID, int64(in+out), cost); err != nil {
			return model.GenerationResult{}, &StageError{Stage: StageLedger, Err: err}
		}
	}
	o.logUsage(ctx, req, res)

	if cacheable && o.deps.Cache != nil {
		o.deps.Cache.Put(ctx, key, res)
	}

	if elapsed > o.cfg.SlowThreshold {
		metrics.SlowGenerationsTotal.WithLabelValues(target.String()).Inc()
		o.logger.Warn("slow generation", "provider", target.String(), "task", req.Task,
			"org", req.OrganizationID, "duration", elapsed, "threshold", o.cfg.SlowThreshold)
	}
	return res, nil
}

// route picks the provider for req and the policy reason behind it.
func (o *Orchestrator) route(ctx context.Context, req model.GenerationRequest, preferred providers.ID) (providers.ID, string, error) {
	hosted := o.cfg.Primary
	if preferred != (providers.ID{}) {
		hosted = preferred
	}
	if req.OrganizationID == "" || o.deps.Policy == nil || o.deps.Ledger == nil {
		return hosted, "", nil
	}

	d, err := o.deps.Policy.Evaluate(ctx, req.OrganizationID, req.Task)
	if err != nil {
		return providers.ID{}, "", &StageError{Stage: StagePolicy, Err: err}
	}
	if d.Permitted {
		return hosted, d.Reason, nil
	}
	o.logger.Info("routing to open provider", "org", req.OrganizationID, "task", req.Task,
		"provider", o.cfg.Open.String(), "reason", d.Reason)
	return o.cfg.Open, d.Reason, nil
}

func (o *Orchestrator) logUsage(ctx context.Context, req model.GenerationRequest, res model.GenerationResult) {
	if o.deps.UsageLog == nil {
		return
	}
	rec := &model.UsageRecord{
		OrganizationID: req.OrganizationID,
		Task:           req.Task,
		Provider:       res.Provider,
		InputTokens:    int64(res.InputTokens),
		OutputTokens:   int64(res.OutputTokens),
		CostUSD:        res.CostUSD,
		Duration:       res.Duration,
		PolicyReason:   res.PolicyReason,
		Timestamp:      o.cfg.Now().UTC(),
	}
	if err := o.deps.UsageLog.RecordUsage(ctx, rec); err != nil {
		o.logger.Warn("failed to write generation log", "org", req.OrganizationID, "error", err)
	}
}
