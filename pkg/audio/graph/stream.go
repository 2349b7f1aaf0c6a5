package graph

// SampleSource supplies samples to a StreamSource. ReadSamples must not block;
// it returns how many samples it wrote into p and leaves the rest untouched.
type SampleSource interface {
	ReadSamples(p []float32) int
}

// StreamSource plays samples from an external source, such as a live capture
// stream. Missing samples render as silence.
type StreamSource struct {
	*node
	src SampleSource
}

// NewStreamSource creates a source node reading from src.
func (c *Context) NewStreamSource(src SampleSource) *StreamSource {
	s := &StreamSource{src: src}
	s.node = newNode(c, s)
	return s
}

func (s *StreamSource) process(_, out []float32, _ int64) {
	n := 0
	if s.src != nil {
		n = s.src.ReadSamples(out)
	}
	clear(out[n:])
}
