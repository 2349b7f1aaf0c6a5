package offload

// DominantFrequency estimates the strongest frequency of every frame in msg.
// Frames are decibel spectra of FFTSize/2 bins. When several adjacent bins
// share the maximum, as happens once values are clamped, the middle of the
// first such run is reported. Flat frames carry no estimate and are skipped.
func DominantFrequency(msg Message) []Result {
	results := make([]Result, 0, len(msg.Payload))
	for _, f := range msg.Payload {
		bin, ok := peakBin(f.Samples)
		if !ok {
			continue
		}
		r := Result{
			ID:     f.ID,
			Handle: f.Handle,
			Bin:    bin,
			Ratio:  float64(bin) / float64(len(f.Samples)),
		}
		if msg.FFTSize > 0 {
			r.Frequency = float64(bin) * float64(msg.SampleRate) / float64(msg.FFTSize)
		}
		results = append(results, r)
	}
	return results
}

func peakBin(spec []float32) (int, bool) {
	if len(spec) == 0 {
		return 0, false
	}
	best, lowest := 0, spec[0]
	for i, v := range spec {
		if v > spec[best] {
			best = i
		}
		lowest = min(lowest, v)
	}
	if spec[best] == lowest {
		return 0, false
	}
	end := best
	for end+1 < len(spec) && spec[end+1] == spec[best] {
		end++
	}
	return (best + end) / 2, true
}
