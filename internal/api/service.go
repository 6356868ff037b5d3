package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"vicitrade/internal/config"
	"vicitrade/internal/engine"
	"vicitrade/internal/store"
	"vicitrade/internal/strategy"
	"vicitrade/internal/strategy/builtins"
	"vicitrade/internal/util"
)

// Compile-time interface check.
var _ BacktestServer = (*Service)(nil)

// Service implements BacktestServer on top of a strategy.Backtester.
type Service struct {
	bt       *strategy.Backtester
	defaults config.Backtest
	logger   *slog.Logger
}

// NewService creates a Service. defaults fill monetary settings a request
// leaves unset.
func NewService(bt *strategy.Backtester, defaults config.Backtest, logger *slog.Logger) *Service {
	return &Service{bt: bt, defaults: defaults, logger: util.OrDefault(logger)}
}

// runRequest is the JSON shape of a Run payload.
type runRequest struct {
	Name           string             `json:"name"`
	Strategy       string             `json:"strategy"`
	Params         map[string]float64 `json:"params"`
	Symbols        []string           `json:"symbols"`
	Start          string             `json:"start"`
	End            string             `json:"end"`
	InitialCapital float64            `json:"initial_capital"`
	CommissionRate *float64           `json:"commission_rate"`
}

func (s *Service) toRequest(in *structpb.Struct) (strategy.Request, error) {
	var r runRequest
	if err := decode(in, &r); err != nil {
		return strategy.Request{}, err
	}
	start, err := time.Parse(time.DateOnly, r.Start)
	if err != nil {
		return strategy.Request{}, status.Errorf(codes.InvalidArgument, "start: %v", err)
	}
	end, err := time.Parse(time.DateOnly, r.End)
	if err != nil {
		return strategy.Request{}, status.Errorf(codes.InvalidArgument, "end: %v", err)
	}

	req := strategy.Request{
		Name:           r.Name,
		Strategy:       r.Strategy,
		Params:         strategy.Params(r.Params),
		Symbols:        r.Symbols,
		Start:          start,
		End:            end,
		InitialCapital: r.InitialCapital,
		CommissionRate: s.defaults.CommissionRate,
	}
	if req.InitialCapital == 0 {
		req.InitialCapital = s.defaults.InitialCapital
	}
	if r.CommissionRate != nil {
		req.CommissionRate = *r.CommissionRate
	}
	return req, nil
}

// Run executes a backtest and returns the stored run record.
func (s *Service) Run(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := s.toRequest(in)
	if err != nil {
		return nil, err
	}
	rec, err := s.bt.Run(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(rec)
}

// Get returns the stored run named by the "id" field.
func (s *Service) Get(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := idField(in)
	if err != nil {
		return nil, err
	}
	rec, err := s.bt.Get(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(rec)
}

// List returns {"runs": [...]} with summaries of all stored runs.
func (s *Service) List(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	runs, err := s.bt.List(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	if runs == nil {
		runs = []store.RunSummary{}
	}
	return encode(map[string]any{"runs": runs})
}

// Delete removes the stored run named by the "id" field.
func (s *Service) Delete(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := idField(in)
	if err != nil {
		return nil, err
	}
	if err := s.bt.Delete(ctx, id); err != nil {
		return nil, toStatus(err)
	}
	s.logger.Info("backtest deleted", "id", id)
	return &structpb.Struct{}, nil
}

// Strategies returns {"strategies": [...]} with every runnable strategy.
func (s *Service) Strategies(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return encode(map[string]any{"strategies": s.bt.Strategies()})
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func idField(in *structpb.Struct) (string, error) {
	id := in.GetFields()["id"].GetStringValue()
	if id == "" {
		return "", status.Error(codes.InvalidArgument, "id is required")
	}
	return id, nil
}

func decode(in *structpb.Struct, v any) error {
	data, err := json.Marshal(in.AsMap())
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "decoding request: %v", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return status.Errorf(codes.InvalidArgument, "decoding request: %v", err)
	}
	return nil
}

func encode(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	return out, nil
}

// toStatus maps domain errors onto gRPC status codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.Is(err, engine.ErrInvalidRequest),
		errors.Is(err, strategy.ErrUnknownStrategy),
		errors.Is(err, builtins.ErrInvalidParams):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, store.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, strategy.ErrNoResultStore):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, fmt.Sprintf("backtest: %v", err))
	}
}
