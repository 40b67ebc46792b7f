// ABOUTME: Linear interpolation resampler for interleaved float32 audio
// ABOUTME: Carries the last input frame across calls so chunk edges stay continuous
package resample

// Resampler performs linear interpolation to convert between sample rates
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64

	// position is measured from prev, the last frame of the previous chunk
	position float64
	prev     []float32
	primed   bool
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
		prev:       make([]float32, channels),
	}
}

// Process resamples interleaved input and appends the result to out.
// Partial trailing frames in input are ignored.
func (r *Resampler) Process(input, out []float32) []float32 {
	input = input[:len(input)/r.channels*r.channels]
	if len(input) == 0 {
		return out
	}

	if !r.primed {
		copy(r.prev, input[:r.channels])
		input = input[r.channels:]
		r.primed = true
	}

	// Virtual frame 0 is prev, frame k is input frame k-1
	frames := 1 + len(input)/r.channels
	at := func(idx, ch int) float32 {
		if idx == 0 {
			return r.prev[ch]
		}
		return input[(idx-1)*r.channels+ch]
	}

	for {
		idx := int(r.position)
		if idx+1 >= frames {
			break
		}
		frac := float32(r.position - float64(idx))
		for ch := 0; ch < r.channels; ch++ {
			a, b := at(idx, ch), at(idx+1, ch)
			out = append(out, a+(b-a)*frac)
		}
		r.position += r.ratio
	}

	r.position -= float64(frames - 1)
	if len(input) > 0 {
		copy(r.prev, input[len(input)-r.channels:])
	}
	return out
}

// Reset clears the carried frame and position
func (r *Resampler) Reset() {
	r.position = 0
	r.primed = false
	for i := range r.prev {
		r.prev[i] = 0
	}
}

// Ratio returns input rate divided by output rate
func (r *Resampler) Ratio() float64 {
	return r.ratio
}

// OutputSamplesNeeded estimates how many output samples input samples produce
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	inputFrames := inputSamples / r.channels
	outputFrames := int(float64(inputFrames) / r.ratio)
	return outputFrames * r.channels
}
