package takeoff

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"planbid/internal/domain"
	"planbid/internal/logger"
	"planbid/internal/port"
	"planbid/internal/vision"
)

// DefaultProviderTimeout bounds a single provider call when none is configured.
const DefaultProviderTimeout = 4 * time.Minute

// Provider is one named vision backend taking part in the analysis.
type Provider struct {
	Name     string
	Analyzer port.VisionAnalyzer
	Timeout  time.Duration
}

// ProviderResult is what one provider contributed to a run.
type ProviderResult struct {
	Provider string
	Model    string
	Items    []domain.TakeoffItem
	Err      error
	Skipped  bool
	Salvaged bool
	Rejected int
}

// AnalyzeResult is the merged outcome of a run plus per-provider detail.
type AnalyzeResult struct {
	Result     domain.MergedTakeoffResult
	Providers  []ProviderResult
	ModelsUsed []string
}

// Analyzer fans one prompt out to every provider and merges the answers.
type Analyzer struct {
	providers []Provider
	cooldowns []*providerCooldown
	merger    *Merger
	logger    *zap.Logger
	now       func() time.Time
}

// NewAnalyzer creates an Analyzer over the given providers.
func NewAnalyzer(providers []Provider, merger *Merger, l *zap.Logger) (*Analyzer, error) {
	if len(providers) == 0 {
		return nil, domain.ErrNoVisionProviders
	}
	if merger == nil {
		merger = NewMerger(DefaultMergeOptions())
	}
	cooldowns := make([]*providerCooldown, len(providers))
	for i := range cooldowns {
		cooldowns[i] = &providerCooldown{}
	}
	return &Analyzer{
		providers: providers,
		cooldowns: cooldowns,
		merger:    merger,
		logger:    logger.OrNop(l).Named("takeoff.Analyzer"),
		now:       time.Now,
	}, nil
}

// ProviderNames returns the provider names in configured order.
func (a *Analyzer) ProviderNames() []string {
	names := make([]string, len(a.providers))
	for i, p := range a.providers {
		names[i] = p.Name
	}
	return names
}

// Analyze calls every provider concurrently and merges whatever came back.
// Provider failures never fail the run: a failed, timed-out, rate-limited or
// unparseable provider contributes an empty list.
func (a *Analyzer) Analyze(ctx context.Context, input port.VisionInput) *AnalyzeResult {
	results := make([]ProviderResult, len(a.providers))

	var wg sync.WaitGroup
	for i := range a.providers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = a.runProvider(ctx, i, input)
		}(i)
	}
	wg.Wait()

	lists := make([]ProviderItems, 0, len(results))
	var models []string
	for _, r := range results {
		pi := ProviderItems{Provider: r.Provider, Items: r.Items}
		if r.Err != nil {
			pi.Err = r.Err.Error()
		}
		lists = append(lists, pi)
		if r.Model != "" && r.Err == nil {
			models = append(models, r.Model)
		}
	}

	merged := a.merger.Merge(lists)
	a.logger.Info("takeoff merged",
		zap.Int("raw_items", merged.Metadata.TotalRawItems),
		zap.Int("items", len(merged.Items)),
		zap.Int("duplicates_removed", merged.Metadata.DuplicatesRemoved))

	return &AnalyzeResult{Result: merged, Providers: results, ModelsUsed: models}
}

func (a *Analyzer) runProvider(ctx context.Context, i int, input port.VisionInput) (res ProviderResult) {
	p := a.providers[i]
	res = ProviderResult{Provider: p.Name, Items: []domain.TakeoffItem{}}

	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("provider panicked", zap.String("provider", p.Name), zap.Any("panic", r))
			res.Items = []domain.TakeoffItem{}
			res.Err = fmt.Errorf("%s: panic: %v", p.Name, r)
		}
	}()

	now := a.now()
	if until, cooling := a.cooldowns[i].active(now); cooling {
		a.logger.Warn("skipping provider, rate-limit cooldown",
			zap.String("provider", p.Name), zap.Time("until", until))
		res.Skipped = true
		res.Err = fmt.Errorf("%s: rate limited until %s", p.Name, until.Format(time.RFC3339))
		return res
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := a.now()
	out, err := p.Analyzer.Analyze(callCtx, input)
	if err != nil {
		var rlErr *vision.RateLimitError
		if errors.As(err, &rlErr) {
			a.cooldowns[i].trip(now, rlErr.RetryAfter)
		}
		a.logger.Warn("provider failed", zap.String("provider", p.Name), zap.Error(err))
		res.Err = err
		return res
	}
	a.cooldowns[i].clear()
	res.Model = out.Model

	parsed, err := ParseItems(out.Text)
	if err != nil {
		a.logger.Warn("provider response unparseable",
			zap.String("provider", p.Name), zap.Error(err),
			zap.String("response", vision.Truncate(out.Text, 200)))
		res.Err = err
		return res
	}

	res.Items = parsed.Items
	res.Salvaged = parsed.Salvaged()
	res.Rejected = parsed.Rejected
	a.logger.Info("provider answered",
		zap.String("provider", p.Name),
		zap.String("model", out.Model),
		zap.String("shape", parsed.Shape),
		zap.Int("items", len(parsed.Items)),
		zap.Int("rejected", parsed.Rejected),
		zap.Duration("elapsed", a.now().Sub(start)))
	return res
}
