package raster

import "math"

// QualityMask converts band 0 of a quality scene into a boolean good-pixel
// mask. A pixel is good when its value equals one of the good flags. NaN
// pixels are never good.
func QualityMask(quality *Scene, goodFlags []int) []bool {
	band := quality.Band(0)
	mask := make([]bool, len(band))

	flags := make(map[int]bool, len(goodFlags))
	for _, f := range goodFlags {
		flags[f] = true
	}

	for i, v := range band {
		if math.IsNaN(v) {
			continue
		}
		iv := int(v)
		if float64(iv) == v && flags[iv] {
			mask[i] = true
		}
	}
	return mask
}
