// Package vici is a Go client for the vicitrade backtest service.
package vici

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "vicitrade.v1.Backtest"

func method(name string) string {
	return "/" + ServiceName + "/" + name
}

// RunRequest describes a backtest to run remotely. Zero InitialCapital and a
// nil CommissionRate use the server defaults.
type RunRequest struct {
	Name           string
	Strategy       string
	Params         map[string]float64
	Symbols        []string
	Start          string // YYYY-MM-DD
	End            string // YYYY-MM-DD
	InitialCapital float64
	CommissionRate *float64
}

func (r RunRequest) toStruct() (*structpb.Struct, error) {
	params := make(map[string]any, len(r.Params))
	for k, v := range r.Params {
		params[k] = v
	}
	symbols := make([]any, len(r.Symbols))
	for i, s := range r.Symbols {
		symbols[i] = s
	}
	m := map[string]any{
		"name":     r.Name,
		"strategy": r.Strategy,
		"params":   params,
		"symbols":  symbols,
		"start":    r.Start,
		"end":      r.End,
	}
	if r.InitialCapital != 0 {
		m["initial_capital"] = r.InitialCapital
	}
	if r.CommissionRate != nil {
		m["commission_rate"] = *r.CommissionRate
	}
	return structpb.NewStruct(m)
}

// Client provides a Go SDK for the vici-server gRPC API. Results are
// returned as decoded JSON-style maps.
type Client struct {
	conn grpc.ClientConnInterface
	own  *grpc.ClientConn
}

// Dial creates a client for the server at addr using an insecure transport.
func Dial(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	return &Client{conn: conn, own: conn}, nil
}

// NewClient wraps an existing connection. Close does not close conn.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Close releases a connection opened by Dial.
func (c *Client) Close() error {
	if c.own == nil {
		return nil
	}
	return c.own.Close()
}

func (c *Client) call(ctx context.Context, name string, in map[string]any) (map[string]any, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, err
	}
	return c.invoke(ctx, name, req)
}

func (c *Client) invoke(ctx context.Context, name string, req *structpb.Struct) (map[string]any, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method(name), req, out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

// Run executes a backtest on the server and returns the stored run record.
func (c *Client) Run(ctx context.Context, req RunRequest) (map[string]any, error) {
	in, err := req.toStruct()
	if err != nil {
		return nil, err
	}
	return c.invoke(ctx, "Run", in)
}

// Get retrieves a stored run by ID.
func (c *Client) Get(ctx context.Context, id string) (map[string]any, error) {
	return c.call(ctx, "Get", map[string]any{"id": id})
}

// List retrieves summaries of all stored runs, newest first.
func (c *Client) List(ctx context.Context) ([]map[string]any, error) {
	out, err := c.call(ctx, "List", map[string]any{})
	if err != nil {
		return nil, err
	}
	raw, _ := out["runs"].([]any)
	runs := make([]map[string]any, 0, len(raw))
	for _, r := range raw {
		if m, ok := r.(map[string]any); ok {
			runs = append(runs, m)
		}
	}
	return runs, nil
}

// Delete removes a stored run.
func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := c.call(ctx, "Delete", map[string]any{"id": id})
	return err
}

// Strategies lists the strategy names the server can run.
func (c *Client) Strategies(ctx context.Context) ([]string, error) {
	out, err := c.call(ctx, "Strategies", map[string]any{})
	if err != nil {
		return nil, err
	}
	raw, _ := out["strategies"].([]any)
	names := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			names = append(names, s)
		}
	}
	return names, nil
}
