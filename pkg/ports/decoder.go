package ports

import (
	"errors"
	"fmt"
)

var (
	// ErrNeedMoreInput is returned by a codec or parser that has nothing to
	// hand out until it is given more data.
	ErrNeedMoreInput = errors.New("backend: needs more input")

	// ErrEndOfStream is returned once a flushed codec has no pictures left.
	ErrEndOfStream = errors.New("backend: end of stream")

	// ErrHardwareUnavailable is returned when a hardware device cannot be
	// opened on this machine.
	ErrHardwareUnavailable = errors.New("backend: hardware device unavailable")

	// ErrUnsupportedCodec is returned when the backend has no decoder for
	// the requested codec.
	ErrUnsupportedCodec = errors.New("backend: codec not supported")
)

// BackendError carries a native status code from a failed backend call.
type BackendError struct {
	Op      string
	Code    int
	Message string
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.Code)
}

// CodecParams configures a codec handle before it is opened.
type CodecParams struct {
	Codec  Codec
	Width  int
	Height int
}

// DecoderBackend allocates the native objects a decode context is built
// from. Every handle it returns must be released exactly once.
type DecoderBackend interface {
	// Name identifies the backend in logs.
	Name() string

	// NewCodec finds the decoder for params.Codec and allocates a handle
	// with the fixed output parameters applied. The handle is not open yet.
	NewCodec(params CodecParams) (CodecHandle, error)

	// NewParser allocates a bitstream parser that splits input into
	// access units.
	NewParser(codec Codec) (ParserHandle, error)

	// NewHardwareDevice opens the named hardware device, or the platform
	// default when name is empty. It returns an error wrapping
	// ErrHardwareUnavailable when the device is missing.
	NewHardwareDevice(name string) (DeviceHandle, error)

	// NewPacket allocates an empty compressed-data packet.
	NewPacket() (PacketHandle, error)

	// NewPicture allocates an empty picture buffer.
	NewPicture() (PictureHandle, error)
}

// CodecHandle is an allocated decoder instance.
type CodecHandle interface {
	// AttachHardware takes its own reference on dev. The caller may free
	// dev afterwards.
	AttachHardware(dev DeviceHandle) error
	Open() error
	// SendPacket submits one access unit. ErrNeedMoreInput means the codec
	// must be drained first.
	SendPacket(pkt PacketHandle) error
	// ReceivePicture fills pic with the next decoded picture, or returns
	// ErrNeedMoreInput or ErrEndOfStream.
	ReceivePicture(pic PictureHandle) error
	// Flush signals end of stream.
	Flush()
	Free()
}

// ParserHandle splits a byte stream into access units.
type ParserHandle interface {
	// Parse consumes a prefix of data and reports its length. When an
	// access unit is complete it is staged in pkt (pkt.Len() > 0).
	Parse(codec CodecHandle, pkt PacketHandle, data []byte) (int, error)
	// SetCompleteFrames tells the parser that every input buffer ends on
	// an access-unit boundary.
	SetCompleteFrames(complete bool)
	Close()
}

// PacketHandle holds one access unit ready for submission.
type PacketHandle interface {
	// Reference points the packet at data without timestamps. data must
	// stay unchanged until the packet is submitted or reset.
	Reference(data []byte)
	Len() int
	Reset()
	Free()
}

// PictureHandle is a reusable decoded-picture buffer.
type PictureHandle interface {
	// Image exposes the picture as NV12 planes borrowed from the buffer.
	Image() (DecodedImage, error)
	// TransferFrom copies a device-resident picture into host memory.
	TransferFrom(src PictureHandle) error
	// Unref releases the current picture so the buffer can be reused.
	Unref()
	Free()
}

// DeviceHandle is a reference to an opened hardware device.
type DeviceHandle interface {
	Name() string
	Free()
}
