package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"vicitrade/internal/config"
	"vicitrade/internal/store"
	"vicitrade/internal/strategy"
	"vicitrade/internal/strategy/builtins"
	"vicitrade/pkg/vici"
)

// backend runs and inspects backtests either in-process or on a vici-server.
// Records are exchanged as decoded JSON maps so both sides print alike.
type backend interface {
	Run(ctx context.Context, reqs []*config.RunRequest) ([]map[string]any, error)
	Get(ctx context.Context, id string) (map[string]any, error)
	List(ctx context.Context) ([]map[string]any, error)
	Delete(ctx context.Context, id string) error
	Strategies(ctx context.Context) ([]string, error)
	Close() error
}

func openBackend(cfg *config.Config, server string) (backend, error) {
	if server != "" {
		c, err := vici.Dial(server)
		if err != nil {
			return nil, err
		}
		return remoteBackend{c}, nil
	}
	l, err := openLocal(cfg)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// ---------------------------------------------------------------------------
// In-process
// ---------------------------------------------------------------------------

type localBackend struct {
	bt      *strategy.Backtester
	results *store.SQLiteStore
}

func openLocal(cfg *config.Config) (*localBackend, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLitePath), 0o755); err != nil {
		return nil, err
	}
	results, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("opening result store: %w", err)
	}
	bt := strategy.NewBacktester(
		store.NewParquetStore(cfg.Storage.DataDir),
		results,
		builtins.NewRegistry(),
		strategy.WithRiskFreeRate(cfg.Backtest.RiskFreeRate),
		strategy.WithMaxConcurrent(cfg.Backtest.MaxConcurrent),
	)
	return &localBackend{bt: bt, results: results}, nil
}

func toStrategyRequest(r *config.RunRequest) (strategy.Request, error) {
	start, err := r.StartDate()
	if err != nil {
		return strategy.Request{}, err
	}
	end, err := r.EndDate()
	if err != nil {
		return strategy.Request{}, err
	}
	return strategy.Request{
		Name:           r.Name,
		Strategy:       r.Strategy,
		Params:         strategy.Params(r.Params),
		Symbols:        r.Symbols,
		Start:          start,
		End:            end,
		InitialCapital: r.InitialCapital,
		CommissionRate: r.CommissionRate,
	}, nil
}

func (l *localBackend) Run(ctx context.Context, reqs []*config.RunRequest) ([]map[string]any, error) {
	batch := make([]strategy.Request, len(reqs))
	for i, r := range reqs {
		req, err := toStrategyRequest(r)
		if err != nil {
			return nil, err
		}
		batch[i] = req
	}

	recs, err := l.bt.RunBatch(ctx, batch)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, len(recs))
	for i, rec := range recs {
		if out[i], err = recordMap(rec); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (l *localBackend) Get(ctx context.Context, id string) (map[string]any, error) {
	rec, err := l.bt.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return recordMap(rec)
}

func (l *localBackend) List(ctx context.Context) ([]map[string]any, error) {
	runs, err := l.bt.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, len(runs))
	for i, r := range runs {
		if out[i], err = toMap(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (l *localBackend) Delete(ctx context.Context, id string) error {
	return l.bt.Delete(ctx, id)
}

func (l *localBackend) Strategies(context.Context) ([]string, error) {
	return l.bt.Strategies(), nil
}

func (l *localBackend) Close() error {
	return l.results.Close()
}

// recordMap converts rec with metrics rounded for display.
func recordMap(rec *store.RunRecord) (map[string]any, error) {
	shown := *rec
	shown.Metrics = rec.Metrics.Rounded()
	return toMap(shown)
}

func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// ---------------------------------------------------------------------------
// Remote
// ---------------------------------------------------------------------------

type remoteBackend struct {
	c *vici.Client
}

func (r remoteBackend) Run(ctx context.Context, reqs []*config.RunRequest) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(reqs))
	for _, req := range reqs {
		rate := req.CommissionRate
		rec, err := r.c.Run(ctx, vici.RunRequest{
			Name:           req.Name,
			Strategy:       req.Strategy,
			Params:         req.Params,
			Symbols:        req.Symbols,
			Start:          req.Start,
			End:            req.End,
			InitialCapital: req.InitialCapital,
			CommissionRate: &rate,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", req.Name, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r remoteBackend) Get(ctx context.Context, id string) (map[string]any, error) {
	return r.c.Get(ctx, id)
}

func (r remoteBackend) List(ctx context.Context) ([]map[string]any, error) {
	return r.c.List(ctx)
}

func (r remoteBackend) Delete(ctx context.Context, id string) error {
	return r.c.Delete(ctx, id)
}

func (r remoteBackend) Strategies(ctx context.Context) ([]string, error) {
	return r.c.Strategies(ctx)
}

func (r remoteBackend) Close() error {
	return r.c.Close()
}
