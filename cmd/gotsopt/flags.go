package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/evdnx/gotsopt/optimizer"
)

// rangeFlags collects repeated -range name=min:max[:step] values.
type rangeFlags []optimizer.Dimension

func (r *rangeFlags) String() string {
	parts := make([]string, len(*r))
	for i, d := range *r {
		parts[i] = d.String()
	}
	return strings.Join(parts, ",")
}

func (r *rangeFlags) Set(s string) error {
	d, err := parseDimension(s)
	if err != nil {
		return err
	}
	*r = append(*r, d)
	return nil
}

// parseDimension reads name=min:max[:step] or name=value. A missing step
// means a single value at min.
func parseDimension(s string) (optimizer.Dimension, error) {
	name, bounds, ok := strings.Cut(strings.TrimSpace(s), "=")
	if !ok || name == "" {
		return optimizer.Dimension{}, fmt.Errorf("range %q: want name=min:max:step", s)
	}
	fields := strings.Split(bounds, ":")
	if len(fields) > 3 {
		return optimizer.Dimension{}, fmt.Errorf("range %q: too many fields", s)
	}
	vals := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return optimizer.Dimension{}, fmt.Errorf("range %q: %w", s, err)
		}
		vals[i] = v
	}
	d := optimizer.Dimension{Name: strings.TrimSpace(name), Min: vals[0], Max: vals[0]}
	if len(vals) >= 2 {
		d.Max = vals[1]
	}
	if len(vals) == 3 {
		d.Step = vals[2]
	}
	if _, err := d.Values(); err != nil {
		return optimizer.Dimension{}, err
	}
	return d, nil
}

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"}

// parseTime accepts RFC3339, "YYYY-MM-DD HH:MM" or a bare date, in UTC. The
// empty string is the zero time.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}
