package summarizer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/user/framedecode/pkg/adapters/osfilesystem"
)

func TestWriter_Write(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "summary.md")
	formatter := FormatFunc(func(s *Summary) string { return "streams: 1" })

	w := NewWriter(formatter, osfilesystem.New())
	if err := w.Write(path, NewBuilder().AddStream(StreamInfo{Name: "x"}).Build()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "streams: 1" {
		t.Errorf("content = %q", data)
	}
}
