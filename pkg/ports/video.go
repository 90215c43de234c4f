package ports

import "io"

// Codec identifies the compressed bitstream format.
type Codec string

const (
	CodecH264 Codec = "h264"
	CodecHEVC Codec = "hevc"
)

// ParseCodec parses a codec name. An empty string yields CodecH264.
func ParseCodec(s string) (Codec, bool) {
	switch s {
	case "", "h264", "avc":
		return CodecH264, true
	case "hevc", "h265":
		return CodecHEVC, true
	default:
		return "", false
	}
}

// BackendVariant selects how a decode context is built.
type BackendVariant string

const (
	// VariantSoftware decodes on the CPU behind a bitstream parser.
	VariantSoftware BackendVariant = "software"
	// VariantHardware decodes on a hardware device and copies pictures
	// back to host memory. It falls back to VariantSoftware when the
	// device cannot be opened.
	VariantHardware BackendVariant = "hardware"
)

// Valid reports whether v names a known variant.
func (v BackendVariant) Valid() bool {
	return v == VariantSoftware || v == VariantHardware
}

// CompressedVideoFrame is one unit of compressed video as received from a
// remote peer. Width and Height are the advertised picture dimensions.
type CompressedVideoFrame struct {
	Width  int32
	Height int32
	Buffer []byte
}

// Plane is one image plane: Stride bytes per row, Bytes holding every row.
type Plane struct {
	Stride int
	Bytes  []byte
}

// DecodedImage is a decoded picture in NV12 layout. Luminance holds the Y
// plane and Chrominance the interleaved UV plane at half vertical
// resolution.
//
// The plane bytes are borrowed from the decoder's picture buffer and stay
// valid only until the decoder produces the next picture. Copy them to
// keep them.
type DecodedImage struct {
	Width       int
	Height      int
	Luminance   Plane
	Chrominance Plane
}

// FrameSink receives packed wire messages for one display surface.
// Push must not block. A non-nil error means the receiver is gone.
type FrameSink interface {
	Push(msg []byte) error
}

// FrameSource yields compressed frames in arrival order. Next returns io.EOF
// after the last frame.
type FrameSource interface {
	Next() (CompressedVideoFrame, error)
	io.Closer
}
