// Package summarizer builds the end-of-run report for decode jobs.
package summarizer

import "time"

// Summary contains everything reported about one decode run.
type Summary struct {
	GeneratedAt time.Time

	Settings Settings
	Streams  []StreamInfo
}

// Settings records how the decoder was configured.
type Settings struct {
	Codec          string
	Variant        string
	HardwareDevice string
	CompleteFrames bool
	Output         string
}

// StreamInfo contains the counters of one decoded stream.
type StreamInfo struct {
	Name        string
	Destination int64

	Frames         int64
	Pictures       int64
	Pushed         int64
	Bytes          int64
	Rebuilds       int64
	HardErrors     int64
	ConfigFailures int64

	Elapsed time.Duration
	// Error is empty when the stream was decoded to its end.
	Error string
}

// Failed reports whether the stream ended with an error.
func (s StreamInfo) Failed() bool { return s.Error != "" }

// Totals sums the counters of every stream. Elapsed is the longest
// stream time, as streams run concurrently.
func (s *Summary) Totals() StreamInfo {
	var t StreamInfo
	for _, st := range s.Streams {
		t.Frames += st.Frames
		t.Pictures += st.Pictures
		t.Pushed += st.Pushed
		t.Bytes += st.Bytes
		t.Rebuilds += st.Rebuilds
		t.HardErrors += st.HardErrors
		t.ConfigFailures += st.ConfigFailures
		if st.Elapsed > t.Elapsed {
			t.Elapsed = st.Elapsed
		}
	}
	return t
}

// NewSummary creates a new Summary with the current timestamp.
func NewSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Now(),
	}
}

// Builder provides a fluent interface for building a Summary.
type Builder struct {
	summary *Summary
}

// NewBuilder creates a new Builder.
func NewBuilder() *Builder {
	return &Builder{
		summary: NewSummary(),
	}
}

// WithSettings sets the decoder settings.
func (b *Builder) WithSettings(settings Settings) *Builder {
	b.summary.Settings = settings
	return b
}

// AddStream appends one stream's results.
func (b *Builder) AddStream(stream StreamInfo) *Builder {
	b.summary.Streams = append(b.summary.Streams, stream)
	return b
}

// Build returns the constructed Summary.
func (b *Builder) Build() *Summary {
	return b.summary
}
