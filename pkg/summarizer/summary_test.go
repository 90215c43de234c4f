package summarizer

import (
	"testing"
	"time"
)

func TestNewSummary(t *testing.T) {
	before := time.Now()
	summary := NewSummary()
	after := time.Now()

	if summary.GeneratedAt.Before(before) || summary.GeneratedAt.After(after) {
		t.Errorf("GeneratedAt should be between %v and %v, got %v",
			before, after, summary.GeneratedAt)
	}
}

func TestBuilder(t *testing.T) {
	summary := NewBuilder().
		WithSettings(Settings{Codec: "h264", Variant: "software"}).
		AddStream(StreamInfo{Name: "a.mp4", Destination: 1}).
		AddStream(StreamInfo{Name: "b.mp4", Destination: 2}).
		Build()

	if summary.Settings.Codec != "h264" || summary.Settings.Variant != "software" {
		t.Errorf("settings = %+v", summary.Settings)
	}
	if len(summary.Streams) != 2 || summary.Streams[1].Name != "b.mp4" {
		t.Errorf("streams = %+v", summary.Streams)
	}
}

func TestSummary_Totals(t *testing.T) {
	s := &Summary{Streams: []StreamInfo{
		{Frames: 10, Pictures: 9, Bytes: 100, HardErrors: 1, Elapsed: 2 * time.Second},
		{Frames: 5, Pictures: 5, Bytes: 50, ConfigFailures: 2, Elapsed: 3 * time.Second},
	}}

	total := s.Totals()
	if total.Frames != 15 || total.Pictures != 14 || total.Bytes != 150 {
		t.Errorf("totals = %+v", total)
	}
	if total.HardErrors != 1 || total.ConfigFailures != 2 {
		t.Errorf("error totals = %+v", total)
	}
	if total.Elapsed != 3*time.Second {
		t.Errorf("elapsed = %v, want the longest stream", total.Elapsed)
	}
}

func TestStreamInfo_Failed(t *testing.T) {
	if (StreamInfo{}).Failed() {
		t.Error("empty error reported as failed")
	}
	if !(StreamInfo{Error: "boom"}).Failed() {
		t.Error("error not reported as failed")
	}
}
