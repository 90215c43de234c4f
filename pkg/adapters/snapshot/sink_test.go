package snapshot

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"path/filepath"
	"testing"
	"time"

	"github.com/user/framedecode/pkg/adapters/logger"
	"github.com/user/framedecode/pkg/mocks"
	"github.com/user/framedecode/pkg/ports"
	"github.com/user/framedecode/pkg/wireframe"
)

func grayMessage(dest int64, w, h int) []byte {
	y := bytes.Repeat([]byte{200}, w*h)
	uv := bytes.Repeat([]byte{128}, w*((h+1)/2))
	return wireframe.Pack(dest, ports.DecodedImage{
		Width:       w,
		Height:      h,
		Luminance:   ports.Plane{Stride: w, Bytes: y},
		Chrominance: ports.Plane{Stride: w, Bytes: uv},
	})
}

func TestSink_SnapshotsEveryNth(t *testing.T) {
	next := mocks.NewSink()
	fs := mocks.NewFileSystem()
	s := New(next, fs, Options{Dir: "snaps", Every: 2, Width: 32}, logger.NewNoop())

	for i := 0; i < 5; i++ {
		if err := s.Push(grayMessage(4, 64, 48)); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}
	if next.Count() != 5 {
		t.Errorf("forwarded = %d, want 5", next.Count())
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	written := s.Written()
	if len(written) != 3 {
		t.Fatalf("snapshots = %v, want 3", written)
	}
	if written[0] != filepath.Join("snaps", "dest4-000001.png") {
		t.Errorf("first snapshot = %s", written[0])
	}

	data, ok := fs.GetFile(written[1])
	if !ok {
		t.Fatalf("snapshot %s not written", written[1])
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 24 {
		t.Errorf("snapshot size = %v", b)
	}
}

func TestSink_ForwardErrorStopsSnapshot(t *testing.T) {
	next := mocks.NewSink()
	next.DisconnectAfter = 0
	fs := mocks.NewFileSystem()
	s := New(next, fs, Options{Dir: "snaps"}, logger.NewNoop())

	if err := s.Push(grayMessage(1, 8, 8)); !errors.Is(err, mocks.ErrDisconnected) {
		t.Errorf("err = %v", err)
	}
	_ = s.Close()
	if len(fs.GetAllFiles()) != 0 {
		t.Errorf("snapshot written for refused message")
	}
}

func TestSink_BadMessageIsNotFatal(t *testing.T) {
	next := mocks.NewSink()
	s := New(next, mocks.NewFileSystem(), Options{Dir: "snaps"}, logger.NewNoop())
	if err := s.Push([]byte{1, 2, 3}); err != nil {
		t.Errorf("err = %v", err)
	}
	_ = s.Close()
	if len(s.Written()) != 0 {
		t.Errorf("snapshot written for malformed message")
	}
}

func TestSink_SlowWriterDoesNotBlockPush(t *testing.T) {
	next := mocks.NewSink()
	fs := mocks.NewFileSystem()
	release := make(chan struct{})
	fs.WriteFileFunc = func(path string, data []byte) error {
		<-release
		return nil
	}
	s := New(next, fs, Options{Dir: "snaps", Every: 1, Queue: 1}, logger.NewNoop())

	const n = 10
	pushed := make(chan error, 1)
	go func() {
		for i := 0; i < n; i++ {
			if err := s.Push(grayMessage(2, 16, 16)); err != nil {
				pushed <- err
				return
			}
		}
		pushed <- nil
	}()

	select {
	case err := <-pushed:
		if err != nil {
			t.Fatalf("Push: %v", err)
		}
	case <-time.After(2 * time.Second):
		close(release)
		t.Fatal("Push blocked on the snapshot writer")
	}
	if next.Count() != n {
		t.Errorf("forwarded = %d, want %d", next.Count(), n)
	}
	if s.Dropped() == 0 {
		t.Error("no snapshots skipped while the writer was blocked")
	}

	close(release)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := int64(len(s.Written())) + s.Dropped(); got != n {
		t.Errorf("written + skipped = %d, want %d", got, n)
	}
}

func TestSink_PushAfterClose(t *testing.T) {
	next := mocks.NewSink()
	s := New(next, mocks.NewFileSystem(), Options{Dir: "snaps"}, logger.NewNoop())
	_ = s.Close()
	_ = s.Close()

	if err := s.Push(grayMessage(1, 8, 8)); err != nil {
		t.Errorf("err = %v", err)
	}
	if next.Count() != 1 || len(s.Written()) != 0 {
		t.Errorf("forwarded = %d, written = %v", next.Count(), s.Written())
	}
}

func TestRender_KeepsSmallImages(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 10, 6))
	out := Render(src, 100, "")
	if b := out.Bounds(); b.Dx() != 10 || b.Dy() != 6 {
		t.Errorf("size = %v", b)
	}
}
