// Package fingerprint turns a decoded frame stream into the compact
// perceptual fingerprint used for duplicate-scene search: a per-frame mean
// brightness series and the time gaps between its local maxima.
package fingerprint

// MeanBrightness reduces one luminance plane to its arithmetic mean as
// float32. No smoothing, no gamma correction.
func MeanBrightness(frame []byte) float32 {
	if len(frame) == 0 {
		return 0
	}
	var sum uint64
	for _, b := range frame {
		sum += uint64(b)
	}
	return float32(float64(sum) / float64(len(frame)))
}

// Collect consumes frames from next until it reports no more frames and
// returns the ordered brightness series. next returns the frame plane and
// false once the stream ends; a truncated stream simply yields a shorter
// series.
func Collect(next func() ([]byte, bool)) []float32 {
	var series []float32
	for {
		frame, ok := next()
		if !ok {
			return series
		}
		series = append(series, MeanBrightness(frame))
	}
}
