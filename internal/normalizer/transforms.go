package normalizer

import (
	"fmt"

	"vizpilot/internal/domain"
)

// movingAverage is a trailing window mean. Rows before a full window, and windows
// containing a null, are null.
func movingAverage(table domain.Table, field string, window int) []*float64 {
	values, valid := table.Floats(field)
	out := make([]*float64, len(values))
	for i := window - 1; i < len(values); i++ {
		var sum float64
		complete := true
		for j := i - window + 1; j <= i; j++ {
			if !valid[j] {
				complete = false
				break
			}
			sum += values[j]
		}
		if complete {
			out[i] = domain.PtrFloat(sum / float64(window))
		}
	}
	return out
}

func rebasedIndex(table domain.Table, field string, base float64) ([]*float64, error) {
	values, valid := table.Floats(field)
	first := -1
	for i, ok := range valid {
		if ok {
			first = i
			break
		}
	}
	if first < 0 || values[first] == 0 {
		return nil, fmt.Errorf("%w: cannot rebase %q: no valid non-zero first value", domain.ErrBadData, field)
	}
	anchor := values[first]
	out := make([]*float64, len(values))
	for i := range values {
		if !valid[i] {
			continue
		}
		if i == first {
			out[i] = domain.PtrFloat(base)
			continue
		}
		out[i] = domain.PtrFloat(values[i] / anchor * base)
	}
	return out, nil
}

// pctChange is the relative change over periods rows. A zero denominator yields
// zero when the numerator is also zero and null otherwise.
func pctChange(table domain.Table, field string, periods int) []*float64 {
	values, valid := table.Floats(field)
	out := make([]*float64, len(values))
	for i := periods; i < len(values); i++ {
		j := i - periods
		if !valid[i] || !valid[j] {
			continue
		}
		diff := values[i] - values[j]
		if values[j] == 0 {
			if diff == 0 {
				out[i] = domain.PtrFloat(0)
			}
			continue
		}
		out[i] = domain.PtrFloat(diff / values[j])
	}
	return out
}
