package indicator

import (
	"fmt"
	"math"

	"vicitrade/internal/domain"
)

// Base column names present in every Frame built from bars.
const (
	ColOpen   = "open"
	ColHigh   = "high"
	ColLow    = "low"
	ColClose  = "close"
	ColVolume = "volume"
)

// Frame is a columnar view of one symbol's daily series. Columns keep their
// insertion order so that appended indicator columns are reported in the
// order they were configured.
type Frame struct {
	Symbol string

	dates []string
	index map[string]int
	names []string
	cols  map[string][]float64
}

// NewFrame builds a Frame from bars, which must be sorted ascending by date.
func NewFrame(symbol string, bars []domain.Bar) *Frame {
	n := len(bars)
	f := &Frame{
		Symbol: symbol,
		dates:  make([]string, n),
		index:  make(map[string]int, n),
		cols:   make(map[string][]float64, 8),
	}

	open := make([]float64, n)
	high := make([]float64, n)
	low := make([]float64, n)
	closes := make([]float64, n)
	volume := make([]float64, n)
	for i, b := range bars {
		key := b.DateKey()
		f.dates[i] = key
		f.index[key] = i
		open[i] = b.Open
		high[i] = b.High
		low[i] = b.Low
		closes[i] = b.Close
		volume[i] = float64(b.Volume)
	}

	f.put(ColOpen, open)
	f.put(ColHigh, high)
	f.put(ColLow, low)
	f.put(ColClose, closes)
	f.put(ColVolume, volume)
	return f
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.dates)
}

// Dates returns a copy of the frame's date index.
func (f *Frame) Dates() []string {
	out := make([]string, len(f.dates))
	copy(out, f.dates)
	return out
}

// Index returns the row position of date.
func (f *Frame) Index(date string) (int, bool) {
	i, ok := f.index[date]
	return i, ok
}

// Columns returns the column names in insertion order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.names))
	copy(out, f.names)
	return out
}

// Column returns the named column. The returned slice is shared with the
// frame and must not be modified.
func (f *Frame) Column(name string) ([]float64, bool) {
	c, ok := f.cols[name]
	return c, ok
}

// SetColumn adds or replaces a column. Replacing keeps the original position.
func (f *Frame) SetColumn(name string, values []float64) error {
	if len(values) != f.Len() {
		return fmt.Errorf("column %q has %d values, frame has %d rows", name, len(values), f.Len())
	}
	f.put(name, values)
	return nil
}

func (f *Frame) put(name string, values []float64) {
	if _, exists := f.cols[name]; !exists {
		f.names = append(f.names, name)
	}
	f.cols[name] = values
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	c := &Frame{
		Symbol: f.Symbol,
		dates:  make([]string, len(f.dates)),
		index:  make(map[string]int, len(f.index)),
		names:  make([]string, len(f.names)),
		cols:   make(map[string][]float64, len(f.cols)),
	}
	copy(c.dates, f.dates)
	copy(c.names, f.names)
	for k, v := range f.index {
		c.index[k] = v
	}
	for k, v := range f.cols {
		col := make([]float64, len(v))
		copy(col, v)
		c.cols[k] = col
	}
	return c
}

// Row materializes row i as a Row keyed by column name.
func (f *Frame) Row(i int) Row {
	r := make(Row, len(f.names))
	for _, name := range f.names {
		r[name] = f.cols[name][i]
	}
	return r
}

// ---------------------------------------------------------------------------
// Row
// ---------------------------------------------------------------------------

// Row holds one date's values for a symbol: the OHLCV columns plus every
// precomputed indicator column. Undefined indicator values are NaN.
type Row map[string]float64

// Value returns the named value, or NaN if the column does not exist.
func (r Row) Value(name string) float64 {
	v, ok := r[name]
	if !ok {
		return math.NaN()
	}
	return v
}

// Defined reports whether the named column exists and is not NaN.
func (r Row) Defined(name string) bool {
	v, ok := r[name]
	return ok && !math.IsNaN(v)
}

func (r Row) Open() float64   { return r[ColOpen] }
func (r Row) High() float64   { return r[ColHigh] }
func (r Row) Low() float64    { return r[ColLow] }
func (r Row) Close() float64  { return r[ColClose] }
func (r Row) Volume() float64 { return r[ColVolume] }
