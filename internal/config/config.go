// Package config loads the service configuration and backtest run requests
// from YAML files, with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the vicitrade services.
type Config struct {
	Storage  Storage  `yaml:"storage"`
	Server   Server   `yaml:"server"`
	Logging  Logging  `yaml:"logging"`
	Backtest Backtest `yaml:"backtest"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration.
type Server struct {
	Host     string `yaml:"host"`
	GRPCPort int    `yaml:"grpc_port"`
}

// Addr returns the gRPC listen address.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.GRPCPort)
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Backtest holds defaults applied to run requests that leave them unset.
type Backtest struct {
	InitialCapital float64 `yaml:"initial_capital"`
	CommissionRate float64 `yaml:"commission_rate"`
	RiskFreeRate   float64 `yaml:"risk_free_rate"`
	MaxConcurrent  int     `yaml:"max_concurrent"`
}

// Default returns the configuration used when a file omits a setting.
func Default() *Config {
	return &Config{
		Storage: Storage{
			DataDir:    "data",
			SQLitePath: "data/vici.db",
		},
		Server: Server{
			Host:     "127.0.0.1",
			GRPCPort: 50051,
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
		Backtest: Backtest{
			InitialCapital: 100000,
			CommissionRate: 0.001,
			MaxConcurrent:  4,
		},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path over Default(),
// and then applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("VICI_GRPC_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("VICI_GRPC_PORT: %w", err)
		}
		cfg.Server.GRPCPort = port
	}

	if v := os.Getenv("VICI_INITIAL_CAPITAL"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("VICI_INITIAL_CAPITAL: %w", err)
		}
		cfg.Backtest.InitialCapital = f
	}

	if v := os.Getenv("VICI_COMMISSION_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("VICI_COMMISSION_RATE: %w", err)
		}
		cfg.Backtest.CommissionRate = f
	}

	return nil
}

// ---------------------------------------------------------------------------
// Run requests
// ---------------------------------------------------------------------------

// ErrInvalidRequestFile is returned by LoadRequest for a request that is
// missing required fields or has malformed dates.
var ErrInvalidRequestFile = errors.New("invalid run request")

// RunRequest is the on-disk description of one backtest run. Zero
// InitialCapital and CommissionRate fall back to the Backtest defaults.
type RunRequest struct {
	Name           string             `yaml:"name"`
	Strategy       string             `yaml:"strategy"`
	Params         map[string]float64 `yaml:"params"`
	Symbols        []string           `yaml:"symbols"`
	Start          string             `yaml:"start"`
	End            string             `yaml:"end"`
	InitialCapital float64            `yaml:"initial_capital"`
	CommissionRate float64            `yaml:"commission_rate"`
}

// StartDate parses Start as YYYY-MM-DD.
func (r RunRequest) StartDate() (time.Time, error) {
	return time.Parse(time.DateOnly, r.Start)
}

// EndDate parses End as YYYY-MM-DD.
func (r RunRequest) EndDate() (time.Time, error) {
	return time.Parse(time.DateOnly, r.End)
}

// LoadRequest reads a run request file and fills unset monetary settings
// from defaults.
func LoadRequest(path string, defaults Backtest) (*RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	req := &RunRequest{}
	if err := yaml.Unmarshal(data, req); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if req.InitialCapital == 0 {
		req.InitialCapital = defaults.InitialCapital
	}
	if req.CommissionRate == 0 {
		req.CommissionRate = defaults.CommissionRate
	}
	if req.Name == "" {
		req.Name = req.Strategy
	}

	if req.Strategy == "" {
		return nil, fmt.Errorf("%w: strategy is required", ErrInvalidRequestFile)
	}
	if len(req.Symbols) == 0 {
		return nil, fmt.Errorf("%w: at least one symbol is required", ErrInvalidRequestFile)
	}
	start, err := req.StartDate()
	if err != nil {
		return nil, fmt.Errorf("%w: start: %v", ErrInvalidRequestFile, err)
	}
	end, err := req.EndDate()
	if err != nil {
		return nil, fmt.Errorf("%w: end: %v", ErrInvalidRequestFile, err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end %s is before start %s", ErrInvalidRequestFile, req.End, req.Start)
	}
	return req, nil
}
