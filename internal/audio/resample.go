package audio

// Resample converts mono PCM from srcRate to dstRate by linear
// interpolation. Equal rates return the input slice unchanged, so skipping
// the conversion is byte-identical to never asking for it.
//
// Each call is independent: streaming callers resample every chunk on its
// own, accepting a discontinuity at chunk boundaries in exchange for not
// buffering filter state across chunks.
func Resample(pcm []int16, srcRate, dstRate int) []int16 {
	if srcRate == dstRate || len(pcm) == 0 {
		return pcm
	}

	n := int(int64(len(pcm)) * int64(dstRate) / int64(srcRate))
	if n < 1 {
		n = 1
	}
	out := make([]int16, n)
	ratio := float64(srcRate) / float64(dstRate)
	last := len(pcm) - 1

	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= last {
			out[i] = pcm[last]
			continue
		}
		frac := pos - float64(idx)
		a := float64(pcm[idx])
		b := float64(pcm[idx+1])
		out[i] = int16(a + (b-a)*frac)
	}
	return out
}
