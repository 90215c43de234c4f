package decoder

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/user/framedecode/pkg/adapters/logger"
	"github.com/user/framedecode/pkg/mocks"
	"github.com/user/framedecode/pkg/ports"
)

var software = Options{Variant: ports.VariantSoftware}

func newTestContext(t *testing.T, b *mocks.Backend, opts Options) *Context {
	t.Helper()
	c, err := NewContext(b, 640, 480, opts, logger.NewNoop())
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	return c
}

func TestNewContext_Software(t *testing.T) {
	b := mocks.NewBackend()
	c := newTestContext(t, b, Options{Variant: ports.VariantSoftware, CompleteFrames: true})
	defer c.Dispose()

	if c.Variant() != ports.VariantSoftware {
		t.Errorf("Variant() = %s", c.Variant())
	}
	if c.Width() != 640 || c.Height() != 480 {
		t.Errorf("size = %dx%d", c.Width(), c.Height())
	}
	want := []string{"alloc codec", "alloc parser", "alloc packet", "alloc picture1", "open codec"}
	if got := b.Calls(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if !b.CompleteFrames() {
		t.Errorf("complete-frames flag not passed to parser")
	}
	if codecs := b.Codecs(); len(codecs) != 1 || codecs[0].Codec != ports.CodecH264 {
		t.Errorf("codecs = %+v", codecs)
	}
}

func TestNewContext_VariantRequired(t *testing.T) {
	for _, v := range []ports.BackendVariant{"", "gpu"} {
		b := mocks.NewBackend()
		_, err := NewContext(b, 640, 480, Options{Variant: v}, logger.NewNoop())
		if !errors.Is(err, ErrConfiguration) {
			t.Errorf("variant %q: err = %v, want ErrConfiguration", v, err)
		}
		if len(b.Calls()) != 0 {
			t.Errorf("variant %q: backend touched: %v", v, b.Calls())
		}
	}
}

func TestNewContext_InvalidDimensions(t *testing.T) {
	b := mocks.NewBackend()
	if _, err := NewContext(b, 0, 480, software, logger.NewNoop()); !errors.Is(err, ErrConfiguration) {
		t.Errorf("err = %v, want ErrConfiguration", err)
	}
}

func TestNewContext_PartialFailureReleasesEverything(t *testing.T) {
	steps := []string{mocks.StepCodec, mocks.StepParser, mocks.StepPacket, mocks.StepPicture, mocks.StepOpen}
	for _, step := range steps {
		t.Run(step, func(t *testing.T) {
			b := mocks.NewBackend()
			cause := errors.New("no memory")
			b.FailOn[step] = cause

			c, err := NewContext(b, 640, 480, software, logger.NewNoop())
			if c != nil {
				t.Errorf("context returned on failure")
			}
			if !errors.Is(err, ErrConfiguration) || !errors.Is(err, cause) {
				t.Errorf("err = %v, want ErrConfiguration wrapping cause", err)
			}
			if n := b.LiveHandles(); n != 0 {
				t.Errorf("%d handles leaked: %v", n, b.Calls())
			}
			if f := b.Faults(); len(f) != 0 {
				t.Errorf("faults: %v", f)
			}
		})
	}
}

func TestNewContext_Hardware(t *testing.T) {
	b := mocks.NewBackend()
	c := newTestContext(t, b, Options{Variant: ports.VariantHardware, HardwareDevice: "vaapi"})
	defer c.Dispose()

	if c.Variant() != ports.VariantHardware {
		t.Fatalf("Variant() = %s", c.Variant())
	}
	want := []string{
		"alloc codec", "alloc device", "attach vaapi", "free device",
		"alloc picture1", "alloc packet", "alloc picture2", "open codec",
	}
	if got := b.Calls(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestNewContext_HardwareFallback(t *testing.T) {
	b := mocks.NewBackend()
	b.FailOn[mocks.StepDevice] = ports.ErrHardwareUnavailable
	c := newTestContext(t, b, Options{Variant: ports.VariantHardware})
	defer c.Dispose()

	if c.Variant() != ports.VariantSoftware {
		t.Errorf("Variant() = %s, want software fallback", c.Variant())
	}
	calls := strings.Join(b.Calls(), ",")
	if !strings.Contains(calls, "alloc parser") {
		t.Errorf("fallback context has no parser: %s", calls)
	}
}

func TestNewContext_HardwareAttachFailure(t *testing.T) {
	b := mocks.NewBackend()
	b.FailOn[mocks.StepAttach] = errors.New("unsupported")
	_, err := NewContext(b, 640, 480, Options{Variant: ports.VariantHardware}, logger.NewNoop())
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("err = %v, want ErrConfiguration", err)
	}
	if n := b.LiveHandles(); n != 0 {
		t.Errorf("%d handles leaked", n)
	}
}

func TestContext_DisposeOrder(t *testing.T) {
	b := mocks.NewBackend()
	c := newTestContext(t, b, software)
	b.ResetCalls()

	c.Dispose()

	want := []string{"flush codec", "free parser", "free picture1", "free packet", "free codec"}
	if got := b.Calls(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if n := b.LiveHandles(); n != 0 {
		t.Errorf("%d handles leaked", n)
	}
}

func TestContext_DisposeOrderHardware(t *testing.T) {
	b := mocks.NewBackend()
	c := newTestContext(t, b, Options{Variant: ports.VariantHardware})
	b.ResetCalls()

	c.Dispose()

	// picture1 is the transfer picture.
	want := []string{"flush codec", "free picture1", "free picture2", "free packet", "free codec"}
	if got := b.Calls(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestContext_DisposeTwice(t *testing.T) {
	b := mocks.NewBackend()
	c := newTestContext(t, b, software)
	c.Dispose()
	b.ResetCalls()
	c.Dispose()

	if got := b.Calls(); len(got) != 0 {
		t.Errorf("second Dispose touched the backend: %v", got)
	}
	if f := b.Faults(); len(f) != 0 {
		t.Errorf("faults: %v", f)
	}
}

func TestContext_UseAfterDispose(t *testing.T) {
	b := mocks.NewBackend()
	c := newTestContext(t, b, software)
	c.Dispose()

	if _, _, err := c.Feed([]byte{1}); !errors.Is(err, ErrContextDisposed) {
		t.Errorf("Feed err = %v", err)
	}
	for _, err := range c.Drain() {
		if !errors.Is(err, ErrContextDisposed) {
			t.Errorf("Drain err = %v", err)
		}
	}
	if err := c.Finish(); !errors.Is(err, ErrContextDisposed) {
		t.Errorf("Finish err = %v", err)
	}
}

func TestContext_FeedSplitsAccessUnits(t *testing.T) {
	b := mocks.NewBackend()
	b.UnitSize = 4
	c := newTestContext(t, b, software)
	defer c.Dispose()

	data := []byte{1, 2, 3, 4, 5, 6}
	n, sent, err := c.Feed(data)
	if err != nil || n != 4 || !sent {
		t.Fatalf("Feed = %d, %v, %v; want 4, true, nil", n, sent, err)
	}
	n, sent, err = c.Feed(data[n:])
	if err != nil || n != 2 || !sent {
		t.Fatalf("Feed = %d, %v, %v; want 2, true, nil", n, sent, err)
	}
	if sent := b.Sent(); len(sent) != 2 || len(sent[0]) != 4 || len(sent[1]) != 2 {
		t.Errorf("sent = %v", sent)
	}
}

func TestContext_FeedEmitsHeldUnit(t *testing.T) {
	b := mocks.NewBackend()
	b.HoldUnits = true
	c := newTestContext(t, b, software)
	defer c.Dispose()

	first, second := []byte{0, 0, 0, 1, 0x65}, []byte{0, 0, 0, 1, 0x41}
	n, sent, err := c.Feed(first)
	if err != nil || n != len(first) || sent {
		t.Fatalf("Feed = %d, %v, %v; want %d, false, nil", n, sent, err, len(first))
	}
	n, sent, err = c.Feed(second)
	if err != nil || n != 0 || !sent {
		t.Fatalf("Feed = %d, %v, %v; want 0, true, nil", n, sent, err)
	}
	if got := b.Sent(); len(got) != 1 || got[0][4] != 0x65 {
		t.Errorf("sent = %x", got)
	}
}

func TestContext_FeedWithoutParser(t *testing.T) {
	b := mocks.NewBackend()
	c := newTestContext(t, b, Options{Variant: ports.VariantHardware})
	defer c.Dispose()

	n, sent, err := c.Feed([]byte{1, 2, 3})
	if err != nil || n != 3 || !sent {
		t.Fatalf("Feed = %d, %v, %v", n, sent, err)
	}
	if sent := b.Sent(); len(sent) != 1 || len(sent[0]) != 3 {
		t.Errorf("sent = %v", sent)
	}
}

func TestContext_FeedTransientIsNotError(t *testing.T) {
	b := mocks.NewBackend()
	b.FailOn[mocks.StepSend] = ports.ErrNeedMoreInput
	c := newTestContext(t, b, software)
	defer c.Dispose()

	if _, _, err := c.Feed([]byte{1}); err != nil {
		t.Errorf("Feed err = %v, want nil", err)
	}
}

func TestContext_FeedRejected(t *testing.T) {
	b := mocks.NewBackend()
	b.Reject = func(data []byte) bool { return data[0] == 0xff }
	c := newTestContext(t, b, software)
	defer c.Dispose()

	_, _, err := c.Feed([]byte{0xff})
	if !errors.Is(err, ErrHardDecode) {
		t.Fatalf("err = %v, want ErrHardDecode", err)
	}
	var be *ports.BackendError
	if !errors.As(err, &be) || be.Code >= 0 {
		t.Errorf("backend status not reachable: %v", err)
	}
}

func TestContext_DrainStopsOnNeedMoreInput(t *testing.T) {
	b := mocks.NewBackend()
	b.PicturesPerPacket = 3
	c := newTestContext(t, b, software)
	defer c.Dispose()

	if _, _, err := c.Feed([]byte{1}); err != nil {
		t.Fatal(err)
	}
	var seqs []byte
	for img, err := range c.Drain() {
		if err != nil {
			t.Fatalf("Drain: %v", err)
		}
		if img.Width != 640 || img.Height != 480 {
			t.Errorf("image size = %dx%d", img.Width, img.Height)
		}
		seqs = append(seqs, img.Luminance.Bytes[0])
	}
	if !reflect.DeepEqual(seqs, []byte{1, 2, 3}) {
		t.Errorf("pictures = %v", seqs)
	}

	count := 0
	for range c.Drain() {
		count++
	}
	if count != 0 {
		t.Errorf("second drain yielded %d pictures", count)
	}
}

func TestContext_DrainReceiveError(t *testing.T) {
	b := mocks.NewBackend()
	c := newTestContext(t, b, software)
	defer c.Dispose()
	b.FailOn[mocks.StepReceive] = &ports.BackendError{Op: "receive", Code: -5}

	n := 0
	for _, err := range c.Drain() {
		n++
		if !errors.Is(err, ErrHardDecode) {
			t.Errorf("err = %v, want ErrHardDecode", err)
		}
	}
	if n != 1 {
		t.Errorf("yielded %d times, want 1", n)
	}
}

func TestContext_DrainHardwareTransfer(t *testing.T) {
	b := mocks.NewBackend()
	c := newTestContext(t, b, Options{Variant: ports.VariantHardware})
	defer c.Dispose()

	if _, _, err := c.Feed([]byte{1}); err != nil {
		t.Fatal(err)
	}
	got := 0
	for _, err := range c.Drain() {
		if err != nil {
			t.Fatalf("Drain: %v", err)
		}
		got++
	}
	if got != 1 {
		t.Errorf("pictures = %d", got)
	}
	if !strings.Contains(strings.Join(b.Calls(), ","), "transfer") {
		t.Errorf("picture was not transferred to host memory")
	}
}

func TestContext_DrainTransferFailure(t *testing.T) {
	b := mocks.NewBackend()
	b.FailOn[mocks.StepTransfer] = errors.New("copy failed")
	c := newTestContext(t, b, Options{Variant: ports.VariantHardware})
	defer c.Dispose()

	if _, _, err := c.Feed([]byte{1}); err != nil {
		t.Fatal(err)
	}
	for _, err := range c.Drain() {
		if !errors.Is(err, ErrHardDecode) {
			t.Errorf("err = %v, want ErrHardDecode", err)
		}
	}
}

func TestContext_DrainEarlyBreak(t *testing.T) {
	b := mocks.NewBackend()
	b.PicturesPerPacket = 2
	c := newTestContext(t, b, software)
	defer c.Dispose()

	if _, _, err := c.Feed([]byte{1}); err != nil {
		t.Fatal(err)
	}
	for range c.Drain() {
		break
	}
	n := 0
	for range c.Drain() {
		n++
	}
	if n != 1 {
		t.Errorf("remaining pictures = %d, want 1", n)
	}
}

func TestContext_Finish(t *testing.T) {
	b := mocks.NewBackend()
	c := newTestContext(t, b, software)
	defer c.Dispose()

	if err := c.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if err := c.Finish(); err != nil {
		t.Errorf("second Finish: %v", err)
	}
	if _, _, err := c.Feed([]byte{1}); !errors.Is(err, ErrContextFinished) {
		t.Errorf("Feed after Finish err = %v", err)
	}
	for _, err := range c.Drain() {
		t.Errorf("unexpected drain result: %v", err)
	}
}
