package optimizer

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"slices"

	"github.com/evdnx/gotsopt/config"
	"github.com/shopspring/decimal"
)

// maxDimensionValues caps a single range so a typo in a step cannot
// allocate a huge value table.
const maxDimensionValues = 1_000_000

// Dimension is an inclusive (Min, Max, Step) range over one named knob of
// config.ParameterSet.
type Dimension struct {
	Name string  `json:"name"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Step float64 `json:"step"`
}

func (d Dimension) String() string {
	return fmt.Sprintf("%s=%g:%g:%g", d.Name, d.Min, d.Max, d.Step)
}

// Values expands the range. Values are Min + k*Step computed in decimal, so
// 0.1 steps do not drift. Step == 0 or Min == Max yields the single value Min.
func (d Dimension) Values() ([]float64, error) {
	for _, v := range []float64{d.Min, d.Max, d.Step} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("dimension %s: non-finite bound", d.Name)
		}
	}
	if d.Step < 0 {
		return nil, fmt.Errorf("dimension %s: step (%g) cannot be negative", d.Name, d.Step)
	}
	if d.Max < d.Min {
		return nil, fmt.Errorf("dimension %s: max (%g) below min (%g)", d.Name, d.Max, d.Min)
	}
	if d.Step == 0 || d.Min == d.Max {
		return []float64{d.Min}, nil
	}

	lo := decimal.NewFromFloat(d.Min)
	step := decimal.NewFromFloat(d.Step)
	n := decimal.NewFromFloat(d.Max).Sub(lo).Div(step).Floor().IntPart() + 1
	if n > maxDimensionValues {
		return nil, fmt.Errorf("dimension %s: %d values exceeds the limit of %d", d.Name, n, maxDimensionValues)
	}
	vals := make([]float64, n)
	for k := range n {
		vals[k] = lo.Add(step.Mul(decimal.NewFromInt(k))).InexactFloat64()
	}
	return vals, nil
}

// Space is the Cartesian product of dimensions applied over a base
// parameter set. It is immutable and enumerates lazily.
type Space struct {
	base   config.ParameterSet
	dims   []Dimension
	values [][]float64
	size   int
}

// NewSpace validates the dimensions against the ParameterSet knob names.
// A knob with no dimension keeps its base value.
func NewSpace(base config.ParameterSet, dims ...Dimension) (*Space, error) {
	s := &Space{base: base, size: 1}
	seen := make(map[string]bool, len(dims))
	for _, d := range dims {
		if !slices.Contains(config.ParamNames, d.Name) {
			return nil, fmt.Errorf("dimension %q: %w", d.Name, config.ErrUnknownParameter)
		}
		if seen[d.Name] {
			return nil, fmt.Errorf("dimension %q given twice", d.Name)
		}
		seen[d.Name] = true
		if config.IsIntegerParam(d.Name) && !wholeBounds(d) {
			return nil, fmt.Errorf("dimension %s: bar-count knob needs whole-number min, max and step", d)
		}

		vals, err := d.Values()
		if err != nil {
			return nil, err
		}
		if s.size > math.MaxInt/len(vals) {
			return nil, errors.New("parameter space too large")
		}
		s.size *= len(vals)
		s.dims = append(s.dims, d)
		s.values = append(s.values, vals)
	}
	return s, nil
}

// wholeBounds reports whether every value d enumerates is an integer, so
// rounding in ParameterSet.With cannot fold two values into one.
func wholeBounds(d Dimension) bool {
	for _, v := range []float64{d.Min, d.Max, d.Step} {
		if v != math.Trunc(v) {
			return false
		}
	}
	return true
}

// Size is the number of combinations.
func (s *Space) Size() int { return s.size }

// Dimensions returns a copy of the dimensions in enumeration order.
func (s *Space) Dimensions() []Dimension { return slices.Clone(s.dims) }

// At decodes combination i. The last dimension varies fastest.
func (s *Space) At(i int) config.ParameterSet {
	p := s.base
	for d := len(s.dims) - 1; d >= 0; d-- {
		vals := s.values[d]
		// Names were checked in NewSpace; With cannot fail here.
		p, _ = p.With(s.dims[d].Name, vals[i%len(vals)])
		i /= len(vals)
	}
	return p
}

// All yields every combination with its index, in order.
func (s *Space) All() iter.Seq2[int, config.ParameterSet] {
	return func(yield func(int, config.ParameterSet) bool) {
		for i := range s.size {
			if !yield(i, s.At(i)) {
				return
			}
		}
	}
}
