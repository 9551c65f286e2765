package position

// Distance converts a signal strength reading to a distance with a linear
// path-loss model. slope is expected to be negative. Readings outside the
// calibrated range may give negative distances; they are not clamped.
func Distance(rssi, slope, intercept float64) float64 {
	return slope*rssi + intercept
}
