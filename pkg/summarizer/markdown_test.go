package summarizer

import (
	"strings"
	"testing"
	"time"
)

func sampleSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		Settings: Settings{
			Codec:          "h264",
			Variant:        "hardware",
			HardwareDevice: "vaapi",
			Output:         "frames.bin",
		},
		Streams: []StreamInfo{
			{
				Name:        "camera.mp4",
				Destination: 1,
				Frames:      100,
				Pictures:    99,
				Bytes:       1024 * 1024,
				Rebuilds:    2,
				HardErrors:  1,
				Elapsed:     1500 * time.Millisecond,
			},
			{
				Name:        "screen.h264",
				Destination: 2,
				Frames:      3,
				Error:       "sink disconnected",
			},
		},
	}
}

func TestMarkdownFormatter_Format_Basic(t *testing.T) {
	result := NewMarkdownFormatter().Format(sampleSummary())

	checks := []string{
		"# Decode Summary",
		"2024-01-15T10:30:00Z",
		"| Codec | h264 |",
		"| Backend | hardware |",
		"| Hardware Device | vaapi |",
		"| Complete Frames | No |",
		"| camera.mp4 | 1 | 100 | 99 | 1.00 MB | 2 | 1 | 1500 ms | OK |",
		"Failed: sink disconnected",
		"- Frames: 103",
		"- Dropped Frames: 1",
	}
	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("expected output to contain %q\n%s", check, result)
		}
	}
	if strings.Contains(result, "Configuration Failures") {
		t.Error("configuration failures shown although there were none")
	}
}

func TestMarkdownFormatter_NoStreams(t *testing.T) {
	result := NewMarkdownFormatter().Format(&Summary{GeneratedAt: time.Now()})

	if !strings.Contains(result, "No streams were decoded.") {
		t.Error("expected empty stream notice")
	}
	if strings.Contains(result, "## Totals") {
		t.Error("totals shown without streams")
	}
}

func TestMarkdownFormatter_EscapesCells(t *testing.T) {
	s := &Summary{
		GeneratedAt: time.Now(),
		Streams:     []StreamInfo{{Name: "a|b", Error: "x|y"}},
	}
	result := NewMarkdownFormatter().Format(s)
	if !strings.Contains(result, `a\|b`) || !strings.Contains(result, `x\|y`) {
		t.Errorf("pipes not escaped:\n%s", result)
	}
}

func TestMarkdownFormatter_WithTranslator(t *testing.T) {
	translator := func(key string) string {
		translations := map[string]string{
			"Decode Summary": "デコードサマリー",
			"Streams":        "ストリーム",
			"Failed":         "失敗",
		}
		if v, ok := translations[key]; ok {
			return v
		}
		return key
	}

	result := NewMarkdownFormatter(WithTranslator(translator)).Format(sampleSummary())

	for _, want := range []string{"デコードサマリー", "## ストリーム", "失敗: sink disconnected"} {
		if !strings.Contains(result, want) {
			t.Errorf("expected translated %q", want)
		}
	}
}

func TestMarkdownFormatter_WithVersion(t *testing.T) {
	result := NewMarkdownFormatter(WithVersion("v1.2.0")).Format(&Summary{GeneratedAt: time.Now()})

	if !strings.Contains(result, "v1.2.0") {
		t.Error("expected output to contain version 'v1.2.0'")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{100, "100 B"},
		{1024, "1.00 KB"},
		{1536, "1.50 KB"},
		{1024 * 1024, "1.00 MB"},
		{1024 * 1024 * 1024, "1.00 GB"},
		{1536 * 1024 * 1024, "1.50 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := formatBytes(tt.bytes)
			if got != tt.want {
				t.Errorf("formatBytes(%d) = %q, want %q", tt.bytes, got, tt.want)
			}
		})
	}
}
