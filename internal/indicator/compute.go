package indicator

import (
	"fmt"
	"strconv"
	"strings"

	"vicitrade/internal/domain"
)

// Compute evaluates configs in order against a copy of f and returns the
// copy with the computed columns appended. Indicator configuration is applied
// all-or-nothing: the first failing config aborts with an error and f is
// left untouched. A nil registry resolves built-ins only.
func Compute(f *Frame, configs []domain.IndicatorConfig, reg *Registry) (*Frame, error) {
	result := f.Clone()

	for _, cfg := range configs {
		if b, ok := builtins[cfg.Name]; ok {
			if err := applyBuiltin(result, cfg, b); err != nil {
				return nil, err
			}
			continue
		}

		factory, ok := reg.lookup(cfg.Name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownIndicator, cfg.Name)
		}
		if err := applyCustom(result, cfg, factory); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func applyBuiltin(f *Frame, cfg domain.IndicatorConfig, b builtin) error {
	params, err := resolveParams(cfg.Name, b, cfg.Params)
	if err != nil {
		return err
	}

	var src []float64
	if usesSource(cfg.Name) {
		col := cfg.SourceColumn()
		var ok bool
		src, ok = f.Column(col)
		if !ok {
			return fmt.Errorf("%w: %s reads %q", ErrUnknownColumn, cfg.Name, col)
		}
	}

	outputs, err := b.compute(f, src, params)
	if err != nil {
		return fmt.Errorf("computing %s: %w", cfg.Name, err)
	}
	for _, out := range outputs {
		name := out.name
		if name == "" {
			name = ColumnName(cfg.Name, cfg.Params)
		}
		if err := f.SetColumn(name, out.values); err != nil {
			return err
		}
	}
	return nil
}

func applyCustom(f *Frame, cfg domain.IndicatorConfig, factory Factory) error {
	ind, err := factory(cfg.Params)
	if err != nil {
		return fmt.Errorf("building indicator %q: %w", cfg.Name, err)
	}
	values, err := ind.Compute(f)
	if err != nil {
		return fmt.Errorf("computing %s: %w", ind.Name(), err)
	}
	return f.SetColumn(ind.Name(), values)
}

// ColumnName returns the output column of a single-column built-in: the
// indicator name followed by the configured parameter values, joined by "_"
// in the built-in's declared parameter order (sma with period 20 is
// "sma_20"). Only parameters present in params contribute.
func ColumnName(name string, params map[string]float64) string {
	b, ok := builtins[name]
	if !ok || len(params) == 0 {
		return name
	}

	parts := []string{name}
	for _, p := range b.params {
		if v, ok := params[p.Name]; ok {
			parts = append(parts, strconv.FormatFloat(v, 'f', -1, 64))
		}
	}
	return strings.Join(parts, "_")
}
