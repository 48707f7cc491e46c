package audio

import "math"

// Level returns the RMS amplitude of s16le PCM normalised to 0–1.
// Empty input yields 0.
func Level(pcm []byte) float64 {
	n := len(pcm) / BytesPerSample
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		v := float64(sampleAt(pcm, i)) / 32768
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(n))
	return min(rms, 1)
}
