package yuv

import (
	"bytes"
	"testing"

	"github.com/user/framedecode/pkg/ports"
)

func TestChromaRows(t *testing.T) {
	tests := []struct {
		height, want int
	}{
		{2, 1},
		{3, 2},
		{480, 240},
		{1, 1},
	}
	for _, tt := range tests {
		if got := ChromaRows(tt.height); got != tt.want {
			t.Errorf("ChromaRows(%d) = %d, want %d", tt.height, got, tt.want)
		}
	}
}

func TestInterleaveChroma(t *testing.T) {
	// 4x2 picture: chroma is 2x1, padded source strides.
	u := []byte{1, 2, 0, 0}
	v := []byte{5, 6, 0, 0}
	got, stride := InterleaveChroma(nil, 4, 2, u, 4, v, 4)
	if stride != 4 {
		t.Errorf("stride = %d, want 4", stride)
	}
	if want := []byte{1, 5, 2, 6}; !bytes.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestInterleaveChroma_ReusesBuffer(t *testing.T) {
	buf := make([]byte, 0, 64)
	got, _ := InterleaveChroma(buf, 4, 4, []byte{1, 2, 3, 4}, 2, []byte{5, 6, 7, 8}, 2)
	if &got[0] != &buf[:1][0] {
		t.Errorf("buffer was reallocated")
	}
	if want := []byte{1, 5, 2, 6, 3, 7, 4, 8}; !bytes.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestInterleaveChroma_OddDimensions(t *testing.T) {
	// 3x3 picture: chroma is 2x2.
	got, stride := InterleaveChroma(nil, 3, 3, []byte{1, 2, 3, 4}, 2, []byte{5, 6, 7, 8}, 2)
	if stride != 4 || len(got) != 8 {
		t.Fatalf("stride = %d len = %d", stride, len(got))
	}
}

func TestToYCbCr(t *testing.T) {
	img := ports.DecodedImage{
		Width:       2,
		Height:      2,
		Luminance:   ports.Plane{Stride: 4, Bytes: []byte{10, 20, 0, 0, 30, 40, 0, 0}},
		Chrominance: ports.Plane{Stride: 4, Bytes: []byte{100, 200, 0, 0}},
	}
	out, err := ToYCbCr(img)
	if err != nil {
		t.Fatalf("ToYCbCr: %v", err)
	}
	if got := out.YCbCrAt(1, 1); got.Y != 40 || got.Cb != 100 || got.Cr != 200 {
		t.Errorf("pixel (1,1) = %+v", got)
	}
	if got := out.YCbCrAt(0, 0); got.Y != 10 {
		t.Errorf("pixel (0,0) Y = %d", got.Y)
	}
}

func TestToYCbCr_ShortPlane(t *testing.T) {
	img := ports.DecodedImage{
		Width:       4,
		Height:      4,
		Luminance:   ports.Plane{Stride: 4, Bytes: make([]byte, 8)},
		Chrominance: ports.Plane{Stride: 4, Bytes: make([]byte, 8)},
	}
	if _, err := ToYCbCr(img); err == nil {
		t.Error("expected error for short luminance plane")
	}
}
