package indicators

import (
	"github.com/evdnx/goti"
	"github.com/evdnx/gotsopt/types"
)

// MFIFilter confirms oscillator entries with the goti money-flow index.
// It is stateful: the owner feeds it one bar at a time, in order, and keeps
// one filter per simulation run.
type MFIFilter struct {
	suite *goti.IndicatorSuite
	// broken is set once the suite rejects a bar; the filter then stays
	// neutral for the rest of the run.
	broken bool
}

// NewMFIFilter builds a fresh goti suite with the stock thresholds.
func NewMFIFilter() (*MFIFilter, error) {
	ic := goti.DefaultConfig()
	ic.MFIOverbought = 80
	ic.MFIOversold = 20
	suite, err := goti.NewIndicatorSuiteWithConfig(ic)
	if err != nil {
		return nil, err
	}
	return &MFIFilter{suite: suite}, nil
}

// Add feeds the next completed bar.
func (f *MFIFilter) Add(b types.Bar) error {
	if f.broken {
		return nil
	}
	if err := f.suite.Add(b.High, b.Low, b.Close, b.Volume); err != nil {
		f.broken = true
		return err
	}
	return nil
}

// Value returns the current MFI, or 50 while it is unavailable.
func (f *MFIFilter) Value() float64 {
	if f.broken {
		return 50
	}
	v, err := f.suite.GetMFI().Calculate()
	if err != nil {
		return 50
	}
	return v
}

// ConfirmLong reports whether money flow sits at or below the midline.
func (f *MFIFilter) ConfirmLong() bool { return f.Value() <= 50 }

// ConfirmShort reports whether money flow sits at or above the midline.
func (f *MFIFilter) ConfirmShort() bool { return f.Value() >= 50 }
