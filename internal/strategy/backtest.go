package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"vicitrade/internal/domain"
	"vicitrade/internal/engine"
	"vicitrade/internal/indicator"
	"vicitrade/internal/performance"
	"vicitrade/internal/store"
	"vicitrade/internal/util"
)

// Request describes one backtest run.
type Request struct {
	Name           string
	Strategy       string
	Params         Params
	Symbols        []string
	Start          time.Time
	End            time.Time
	InitialCapital float64
	CommissionRate float64
}

// validate checks the request fields the engine never sees and returns the
// normalized symbol list.
func (r Request) validate() ([]string, error) {
	if r.Strategy == "" {
		return nil, fmt.Errorf("%w: strategy name is required", engine.ErrInvalidRequest)
	}
	if r.End.Before(r.Start) {
		return nil, fmt.Errorf("%w: end %s is before start %s", engine.ErrInvalidRequest,
			r.End.Format(domain.DateLayout), r.Start.Format(domain.DateLayout))
	}

	seen := make(map[string]bool, len(r.Symbols))
	var symbols []string
	for _, s := range r.Symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		symbols = append(symbols, s)
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("%w: %w", engine.ErrInvalidRequest, engine.ErrNoData)
	}
	sort.Strings(symbols)
	return symbols, nil
}

// Option configures a Backtester.
type Option func(*Backtester)

// WithLogger sets the logger used by the Backtester and its engine.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backtester) { b.logger = logger }
}

// WithIndicators sets the custom indicator registry consulted for names
// that are not built in.
func WithIndicators(reg *indicator.Registry) Option {
	return func(b *Backtester) { b.indicators = reg }
}

// WithRiskFreeRate sets the annual risk-free rate used for the Sharpe ratio.
func WithRiskFreeRate(rate float64) Option {
	return func(b *Backtester) { b.riskFreeRate = rate }
}

// WithMaxConcurrent bounds the number of runs RunBatch executes at once.
// Values below one mean no limit.
func WithMaxConcurrent(n int) Option {
	return func(b *Backtester) { b.maxConcurrent = n }
}

// Backtester loads bars for a request, replays them through a freshly built
// strategy, computes metrics, and persists the outcome.
type Backtester struct {
	bars     store.BarStore
	results  store.ResultStore
	registry *Registry

	indicators    *indicator.Registry
	riskFreeRate  float64
	maxConcurrent int
	logger        *slog.Logger
	engine        *engine.Engine
	now           func() time.Time
}

// NewBacktester creates a Backtester that reads bars from barStore, looks up
// strategies in registry, and saves runs to results.
func NewBacktester(barStore store.BarStore, results store.ResultStore, registry *Registry, opts ...Option) *Backtester {
	b := &Backtester{
		bars:     barStore,
		results:  results,
		registry: registry,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = util.OrDefault(b.logger)
	b.engine = engine.New(b.logger)
	return b
}

// Strategies returns the sorted names of all runnable strategies.
func (b *Backtester) Strategies() []string {
	return b.registry.List()
}

// Run executes a single backtest and stores its record. Configuration
// problems are reported before any data is read and nothing is stored for
// them. A run that fails inside the engine is stored with StatusFailed.
func (b *Backtester) Run(ctx context.Context, req Request) (*store.RunRecord, error) {
	symbols, err := req.validate()
	if err != nil {
		return nil, err
	}
	strat, err := b.registry.New(req.Strategy, req.Params)
	if err != nil {
		return nil, err
	}
	params := engine.Params{InitialCapital: req.InitialCapital, CommissionRate: req.CommissionRate}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	data := make(map[string][]domain.Bar, len(symbols))
	for _, sym := range symbols {
		bars, err := b.bars.ReadBars(ctx, sym, req.Start, req.End)
		if err != nil {
			return nil, fmt.Errorf("loading bars for %s: %w", sym, err)
		}
		data[sym] = bars
	}

	name := req.Name
	if name == "" {
		name = req.Strategy
	}
	rec := &store.RunRecord{
		RunSummary: store.RunSummary{
			ID:             uuid.NewString(),
			Name:           name,
			Strategy:       req.Strategy,
			Symbols:        symbols,
			StartDate:      req.Start.Format(domain.DateLayout),
			EndDate:        req.End.Format(domain.DateLayout),
			InitialCapital: req.InitialCapital,
			CommissionRate: req.CommissionRate,
			CreatedAt:      b.now().UTC(),
		},
	}

	p, runErr := b.engine.Run(ctx, data, strat, params, b.indicators)
	if runErr != nil {
		if errors.Is(runErr, engine.ErrInvalidRequest) || ctx.Err() != nil {
			return nil, runErr
		}
		rec.Status = store.StatusFailed
		if err := b.save(ctx, rec); err != nil {
			b.logger.Error("saving failed run", "id", rec.ID, "error", err)
		}
		return nil, runErr
	}

	rec.Status = store.StatusCompleted
	rec.Metrics = performance.Calculate(p, performance.WithRiskFreeRate(b.riskFreeRate))
	rec.Trades = p.Trades()
	rec.EquityCurve = p.EquityHistory()
	if n := len(rec.EquityCurve); n > 0 {
		rec.FinalEquity = rec.EquityCurve[n-1].Equity
	}

	if err := b.save(ctx, rec); err != nil {
		return nil, fmt.Errorf("saving run %s: %w", rec.ID, err)
	}
	return rec, nil
}

func (b *Backtester) save(ctx context.Context, rec *store.RunRecord) error {
	if b.results == nil {
		return nil
	}
	if err := b.results.SaveRun(ctx, rec); err != nil {
		return err
	}
	b.logger.Info("backtest saved",
		"id", rec.ID,
		"strategy", rec.Strategy,
		"status", rec.Status,
		"trades", len(rec.Trades),
	)
	return nil
}

// RunBatch executes reqs concurrently, each with its own strategy instance,
// and returns the records in request order. The first failure cancels the
// remaining runs and is returned.
func (b *Backtester) RunBatch(ctx context.Context, reqs []Request) ([]*store.RunRecord, error) {
	out := make([]*store.RunRecord, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	if b.maxConcurrent > 0 {
		g.SetLimit(b.maxConcurrent)
	}
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			rec, err := b.Run(gctx, req)
			if err != nil {
				return fmt.Errorf("request %d (%s): %w", i, req.Strategy, err)
			}
			out[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Stored runs
// ---------------------------------------------------------------------------

// ErrNoResultStore is returned by lookups on a Backtester built without a
// result store.
var ErrNoResultStore = errors.New("no result store configured")

// Get returns a stored run.
func (b *Backtester) Get(ctx context.Context, id string) (*store.RunRecord, error) {
	if b.results == nil {
		return nil, ErrNoResultStore
	}
	return b.results.GetRun(ctx, id)
}

// List returns summaries of all stored runs, newest first.
func (b *Backtester) List(ctx context.Context) ([]store.RunSummary, error) {
	if b.results == nil {
		return nil, ErrNoResultStore
	}
	return b.results.ListRuns(ctx)
}

// Delete removes a stored run.
func (b *Backtester) Delete(ctx context.Context, id string) error {
	if b.results == nil {
		return ErrNoResultStore
	}
	return b.results.DeleteRun(ctx, id)
}
