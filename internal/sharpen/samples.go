package sharpen

import (
	"math"
	"sort"

	"github.com/fieldscale-data/thermal.report/internal/raster"
)

const (
	// cvSentinel marks pixels whose coefficient of variation is undefined;
	// it is far above any usable homogeneity threshold so such pixels never
	// pass the comparison.
	cvSentinel = 1000
	// zeroMeanEpsilon replaces exactly-zero aggregated means before the
	// std/mean division.
	zeroMeanEpsilon = 1e-6
	// DefaultAutoThresholdPercentile is the CV percentile used when the
	// homogeneity threshold is derived automatically.
	DefaultAutoThresholdPercentile = 80
)

// windowSamples accumulates one window's training set across scenes. Rows of
// X are per-band aggregated fine-resolution means; Y holds coarse values and
// W the inverse-CV weights. The three always have equal length.
type windowSamples struct {
	X [][]float64
	Y []float64
	W []float64
}

// computeCV returns the per-coarse-pixel coefficient of variation: the mean
// over bands of std/mean. Zero means are substituted with a small epsilon;
// non-finite results are set to the sentinel.
func computeCV(mean, std *raster.Scene) []float64 {
	n := mean.Rows * mean.Cols
	cv := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for b := 0; b < mean.Bands; b++ {
			m := mean.Band(b)[i]
			if m == 0 {
				m = zeroMeanEpsilon
			}
			sum += std.Band(b)[i] / m
		}
		v := sum / float64(mean.Bands)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = cvSentinel
		}
		cv[i] = v
	}
	return cv
}

// qualityPixels combines the optional coarse quality mask with the validity
// of the coarse value and the aggregated fine means. quality may be nil.
func qualityPixels(coarse []float64, mean *raster.Scene, quality []bool) []bool {
	out := make([]bool, len(coarse))
	for i := range out {
		if quality != nil && !quality[i] {
			continue
		}
		if math.IsNaN(coarse[i]) {
			continue
		}
		bad := false
		for b := 0; b < mean.Bands; b++ {
			if math.IsNaN(mean.Band(b)[i]) {
				bad = true
				break
			}
		}
		out[i] = !bad
	}
	return out
}

// selectWindowSamples extracts the good training pixels of one window.
// threshold <= 0 derives the homogeneity threshold from the window's own CV
// distribution at the given percentile; the derived value is returned and
// never persisted across windows. The returned eligible count is the number
// of quality pixels considered, for diagnostics.
func selectWindowSamples(w Window, coarse []float64, mean *raster.Scene, cv []float64,
	quality []bool, cols int, threshold, percentile float64) (ws windowSamples, usedThreshold float64, eligible int) {

	usedThreshold = threshold
	if usedThreshold <= 0 {
		var candidates []float64
		for r := w.RowStart; r < w.RowEnd; r++ {
			for c := w.ColStart; c < w.ColEnd; c++ {
				i := r*cols + c
				if quality[i] && cv[i] > 0 && cv[i] < cvSentinel {
					candidates = append(candidates, cv[i])
				}
			}
		}
		if len(candidates) == 0 {
			usedThreshold = 0
		} else {
			if percentile <= 0 {
				percentile = DefaultAutoThresholdPercentile
			}
			usedThreshold = quantile(candidates, percentile)
		}
	}

	for r := w.RowStart; r < w.RowEnd; r++ {
		for c := w.ColStart; c < w.ColEnd; c++ {
			i := r*cols + c
			if !quality[i] {
				continue
			}
			eligible++
			if cv[i] <= 0 || cv[i] >= usedThreshold {
				continue
			}
			row := make([]float64, mean.Bands)
			for b := 0; b < mean.Bands; b++ {
				row[b] = mean.Band(b)[i]
			}
			ws.X = append(ws.X, row)
			ws.Y = append(ws.Y, coarse[i])
			ws.W = append(ws.W, 1/cv[i])
		}
	}
	return ws, usedThreshold, eligible
}

// quantile returns the p-th percentile (0-100) of vals using linear
// interpolation between order statistics, so at least p% of the values fall
// at or below the result.
func quantile(vals []float64, p float64) float64 {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	pos := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	frac := pos - float64(lo)
	if lo+1 >= len(sorted) {
		return sorted[lo]
	}
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

func (ws *windowSamples) append(other windowSamples) {
	ws.X = append(ws.X, other.X...)
	ws.Y = append(ws.Y, other.Y...)
	ws.W = append(ws.W, other.W...)
}

func (ws windowSamples) empty() bool { return len(ws.Y) == 0 }
