package indicator

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Indicator is a custom indicator contributed outside the built-in library.
// Compute must return exactly one value per frame row.
type Indicator interface {
	// Name is used as the output column name.
	Name() string

	// Compute derives the indicator column from the frame.
	Compute(f *Frame) ([]float64, error)
}

// Factory constructs a custom Indicator from configuration parameters.
type Factory func(params map[string]float64) (Indicator, error)

var (
	// ErrUnknownIndicator is returned when a config names an indicator that
	// is neither built in nor registered.
	ErrUnknownIndicator = errors.New("unknown indicator")

	// ErrInvalidParams is returned for unexpected or out-of-range built-in
	// parameters.
	ErrInvalidParams = errors.New("invalid indicator parameters")

	// ErrUnknownColumn is returned when a config's source column is absent.
	ErrUnknownColumn = errors.New("unknown source column")
)

// ---------------------------------------------------------------------------
// Built-in table
// ---------------------------------------------------------------------------

// Param describes one built-in parameter. A NaN Default marks a required
// parameter.
type Param struct {
	Name    string
	Default float64
}

// Required reports whether the parameter has no default.
func (p Param) Required() bool {
	return math.IsNaN(p.Default)
}

type output struct {
	name   string // empty for single-column built-ins
	values []float64
}

type builtin struct {
	params  []Param
	compute func(f *Frame, src []float64, p paramSet) ([]output, error)
}

var required = math.NaN()

var builtins = map[string]builtin{
	"sma": {
		params: []Param{{"period", required}},
		compute: func(_ *Frame, src []float64, p paramSet) ([]output, error) {
			period, err := p.period("period")
			if err != nil {
				return nil, err
			}
			return []output{{values: SMA(src, period)}}, nil
		},
	},
	"ema": {
		params: []Param{{"period", required}},
		compute: func(_ *Frame, src []float64, p paramSet) ([]output, error) {
			period, err := p.period("period")
			if err != nil {
				return nil, err
			}
			return []output{{values: EMA(src, period)}}, nil
		},
	},
	"rsi": {
		params: []Param{{"period", 14}},
		compute: func(_ *Frame, src []float64, p paramSet) ([]output, error) {
			period, err := p.period("period")
			if err != nil {
				return nil, err
			}
			return []output{{values: RSI(src, period)}}, nil
		},
	},
	"macd": {
		params: []Param{{"fast_period", 12}, {"slow_period", 26}, {"signal_period", 9}},
		compute: func(_ *Frame, src []float64, p paramSet) ([]output, error) {
			fast, err := p.period("fast_period")
			if err != nil {
				return nil, err
			}
			slow, err := p.period("slow_period")
			if err != nil {
				return nil, err
			}
			signal, err := p.period("signal_period")
			if err != nil {
				return nil, err
			}
			line, sig, hist := MACD(src, fast, slow, signal)
			return []output{
				{name: "macd_line", values: line},
				{name: "signal_line", values: sig},
				{name: "histogram", values: hist},
			}, nil
		},
	},
	"bollinger_bands": {
		params: []Param{{"period", 20}, {"num_std", 2}},
		compute: func(_ *Frame, src []float64, p paramSet) ([]output, error) {
			period, err := p.period("period")
			if err != nil {
				return nil, err
			}
			upper, middle, lower := BollingerBands(src, period, p["num_std"])
			return []output{
				{name: "bb_upper", values: upper},
				{name: "bb_middle", values: middle},
				{name: "bb_lower", values: lower},
			}, nil
		},
	},
	"atr": {
		params: []Param{{"period", 14}},
		compute: func(f *Frame, _ []float64, p paramSet) ([]output, error) {
			period, err := p.period("period")
			if err != nil {
				return nil, err
			}
			h, l, c := ohlc(f)
			return []output{{values: ATR(h, l, c, period)}}, nil
		},
	},
	"stochastic_oscillator": {
		params: []Param{{"k_period", 14}, {"d_period", 3}},
		compute: func(f *Frame, _ []float64, p paramSet) ([]output, error) {
			kp, err := p.period("k_period")
			if err != nil {
				return nil, err
			}
			dp, err := p.period("d_period")
			if err != nil {
				return nil, err
			}
			h, l, c := ohlc(f)
			k, d := Stochastic(h, l, c, kp, dp)
			return []output{
				{name: "stoch_k", values: k},
				{name: "stoch_d", values: d},
			}, nil
		},
	},
	"vwap": {
		compute: func(f *Frame, _ []float64, _ paramSet) ([]output, error) {
			h, l, c := ohlc(f)
			v, _ := f.Column(ColVolume)
			return []output{{values: VWAP(h, l, c, v)}}, nil
		},
	},
}

// usesSource reports whether a built-in reads the config's source column
// rather than the full OHLCV frame.
func usesSource(name string) bool {
	switch name {
	case "atr", "stochastic_oscillator", "vwap":
		return false
	}
	return true
}

func ohlc(f *Frame) (high, low, closes []float64) {
	high, _ = f.Column(ColHigh)
	low, _ = f.Column(ColLow)
	closes, _ = f.Column(ColClose)
	return high, low, closes
}

// Describe returns the declared parameters of a built-in indicator.
func Describe(name string) ([]Param, bool) {
	b, ok := builtins[name]
	if !ok {
		return nil, false
	}
	out := make([]Param, len(b.params))
	copy(out, b.params)
	return out, true
}

// ---------------------------------------------------------------------------
// Parameters
// ---------------------------------------------------------------------------

// paramSet is a built-in's resolved parameters: config values over defaults.
type paramSet map[string]float64

func resolveParams(name string, b builtin, given map[string]float64) (paramSet, error) {
	known := make(map[string]bool, len(b.params))
	for _, p := range b.params {
		known[p.Name] = true
	}
	for k := range given {
		if !known[k] {
			return nil, fmt.Errorf("%w: %s does not accept %q", ErrInvalidParams, name, k)
		}
	}

	ps := make(paramSet, len(b.params))
	for _, p := range b.params {
		v, ok := given[p.Name]
		if !ok {
			if p.Required() {
				return nil, fmt.Errorf("%w: %s requires %q", ErrInvalidParams, name, p.Name)
			}
			v = p.Default
		}
		ps[p.Name] = v
	}
	return ps, nil
}

// period returns the named parameter as a positive whole number.
func (p paramSet) period(key string) (int, error) {
	v := p[key]
	if v < 1 || v != math.Trunc(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s must be a positive integer, got %v", ErrInvalidParams, key, v)
	}
	return int(v), nil
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

// Registry resolves indicator names. Built-ins are always available and take
// precedence over custom indicators registered under the same name. A
// Registry is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	custom map[string]Factory
}

// NewRegistry creates a Registry holding only the built-in indicators.
func NewRegistry() *Registry {
	return &Registry{
		custom: make(map[string]Factory),
	}
}

// Register adds a custom indicator factory under name.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.custom[name] = factory
}

// IsBuiltin reports whether name resolves to a built-in indicator.
func IsBuiltin(name string) bool {
	_, ok := builtins[name]
	return ok
}

// lookup returns the custom factory for name. Built-ins are checked by the
// caller first.
func (r *Registry) lookup(name string) (Factory, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.custom[name]
	return f, ok
}

// Names returns every resolvable indicator name, sorted.
func (r *Registry) Names() []string {
	seen := make(map[string]struct{}, len(builtins))
	for name := range builtins {
		seen[name] = struct{}{}
	}
	if r != nil {
		r.mu.RLock()
		for name := range r.custom {
			seen[name] = struct{}{}
		}
		r.mu.RUnlock()
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
