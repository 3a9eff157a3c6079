// Package units converts between temperature scales and the fourth-power
// radiance domain used when averaging thermal imagery across resolutions.
//
// Temperatures are not linearly averageable: the physically meaningful
// quantity at a coarser resolution is emitted radiance, which scales with
// the fourth power of absolute temperature. All cross-resolution
// arithmetic on temperature targets therefore happens in the radiance
// domain, with conversion back to temperature only at the reporting edge.
package units

import "math"

// ZeroCelsiusK is the Kelvin value of 0 degrees Celsius.
const ZeroCelsiusK = 273.15

// CelsiusToKelvin converts a Celsius temperature to Kelvin.
func CelsiusToKelvin(c float64) float64 {
	return c + ZeroCelsiusK
}

// KelvinToCelsius converts a Kelvin temperature to Celsius.
func KelvinToCelsius(k float64) float64 {
	return k - ZeroCelsiusK
}

// Radiance maps an absolute temperature into the fourth-power radiance
// domain.
func Radiance(t float64) float64 {
	return math.Pow(t, 4)
}

// Temperature maps a radiance-domain value back to absolute temperature.
// A negative radicand has no real fourth root; ok is false and the value
// NaN in that case.
func Temperature(rad float64) (t float64, ok bool) {
	if rad < 0 {
		return math.NaN(), false
	}
	return math.Pow(rad, 0.25), true
}

// CelsiusResidual converts a radiance-domain residual into a Celsius
// residual around the freezing point, which is how temperature residuals
// are reported. Returns NaN when the shifted radicand is negative.
func CelsiusResidual(radResid float64) float64 {
	t, ok := Temperature(radResid + Radiance(ZeroCelsiusK))
	if !ok {
		return math.NaN()
	}
	return KelvinToCelsius(t)
}
