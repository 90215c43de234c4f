// Package yuv converts between planar and semi-planar 4:2:0 layouts.
package yuv

import (
	"fmt"
	"image"

	"github.com/user/framedecode/pkg/ports"
)

// ChromaRows returns the number of chroma rows for a picture height.
func ChromaRows(height int) int {
	return (height + 1) / 2
}

// InterleaveChroma writes the U and V planes of a YUV420P picture into dst
// as an NV12 UV plane with stride 2*((width+1)/2). dst is grown when needed
// and returned together with the stride.
func InterleaveChroma(dst []byte, width, height int, u []byte, uStride int, v []byte, vStride int) ([]byte, int) {
	cw := (width + 1) / 2
	rows := ChromaRows(height)
	stride := 2 * cw
	n := stride * rows
	if cap(dst) < n {
		dst = make([]byte, n)
	}
	dst = dst[:n]

	for y := 0; y < rows; y++ {
		out := dst[y*stride : (y+1)*stride]
		ur := u[y*uStride:]
		vr := v[y*vStride:]
		for x := 0; x < cw; x++ {
			out[2*x] = ur[x]
			out[2*x+1] = vr[x]
		}
	}
	return dst, stride
}

// ToYCbCr copies an NV12 picture into a 4:2:0 image.YCbCr.
func ToYCbCr(img ports.DecodedImage) (*image.YCbCr, error) {
	w, h := img.Width, img.Height
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("yuv: invalid dimensions %dx%d", w, h)
	}
	rows := ChromaRows(h)
	cw := (w + 1) / 2
	if need := (h-1)*img.Luminance.Stride + w; len(img.Luminance.Bytes) < need {
		return nil, fmt.Errorf("yuv: luminance plane has %d bytes, need %d", len(img.Luminance.Bytes), need)
	}
	if need := (rows-1)*img.Chrominance.Stride + 2*cw; len(img.Chrominance.Bytes) < need {
		return nil, fmt.Errorf("yuv: chrominance plane has %d bytes, need %d", len(img.Chrominance.Bytes), need)
	}

	out := image.NewYCbCr(image.Rect(0, 0, w, h), image.YCbCrSubsampleRatio420)
	for y := 0; y < h; y++ {
		copy(out.Y[y*out.YStride:y*out.YStride+w], img.Luminance.Bytes[y*img.Luminance.Stride:])
	}
	for y := 0; y < rows; y++ {
		src := img.Chrominance.Bytes[y*img.Chrominance.Stride:]
		cb := out.Cb[y*out.CStride:]
		cr := out.Cr[y*out.CStride:]
		for x := 0; x < cw; x++ {
			cb[x] = src[2*x]
			cr[x] = src[2*x+1]
		}
	}
	return out, nil
}
