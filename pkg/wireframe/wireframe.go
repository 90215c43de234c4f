// Package wireframe packs decoded pictures into the binary message consumed
// by display surfaces.
//
// Layout, all integers little-endian:
//
//	int64  destination id
//	int32  width
//	int32  height
//	int32  luminance stride
//	int32  chrominance stride
//	int32  luminance length N
//	N      luminance bytes
//	int32  chrominance length M
//	M      chrominance bytes
package wireframe

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/user/framedecode/pkg/ports"
)

// HeaderSize is the fixed prefix before the luminance length field.
const HeaderSize = 24

var (
	// ErrTruncated is returned when a message ends before a declared field.
	ErrTruncated = errors.New("wireframe: message truncated")

	// ErrLength is returned when declared lengths disagree with the message.
	ErrLength = errors.New("wireframe: length mismatch")
)

// Message is an unpacked wire message. Plane bytes alias the input buffer.
type Message struct {
	Destination int64
	Width       int32
	Height      int32
	Luminance   ports.Plane
	Chrominance ports.Plane
}

// Size returns the packed size of img.
func Size(img ports.DecodedImage) int {
	return HeaderSize + 4 + len(img.Luminance.Bytes) + 4 + len(img.Chrominance.Bytes)
}

// Pack serializes img for destination dest into a freshly allocated buffer.
// The plane bytes are copied, so img may be reused once Pack returns.
func Pack(dest int64, img ports.DecodedImage) []byte {
	le := binary.LittleEndian
	y, uv := img.Luminance.Bytes, img.Chrominance.Bytes

	buf := make([]byte, Size(img))
	le.PutUint64(buf[0:], uint64(dest))
	le.PutUint32(buf[8:], uint32(int32(img.Width)))
	le.PutUint32(buf[12:], uint32(int32(img.Height)))
	le.PutUint32(buf[16:], uint32(int32(img.Luminance.Stride)))
	le.PutUint32(buf[20:], uint32(int32(img.Chrominance.Stride)))

	off := HeaderSize
	le.PutUint32(buf[off:], uint32(len(y)))
	off += 4
	off += copy(buf[off:], y)
	le.PutUint32(buf[off:], uint32(len(uv)))
	off += 4
	copy(buf[off:], uv)
	return buf
}

// Unpack parses a message produced by Pack.
func Unpack(msg []byte) (Message, error) {
	le := binary.LittleEndian
	var m Message
	if len(msg) < HeaderSize+4 {
		return m, fmt.Errorf("%w: %d bytes", ErrTruncated, len(msg))
	}
	m.Destination = int64(le.Uint64(msg[0:]))
	m.Width = int32(le.Uint32(msg[8:]))
	m.Height = int32(le.Uint32(msg[12:]))
	m.Luminance.Stride = int(int32(le.Uint32(msg[16:])))
	m.Chrominance.Stride = int(int32(le.Uint32(msg[20:])))

	rest := msg[HeaderSize:]
	y, rest, err := field(rest, "luminance")
	if err != nil {
		return m, err
	}
	uv, rest, err := field(rest, "chrominance")
	if err != nil {
		return m, err
	}
	if len(rest) != 0 {
		return m, fmt.Errorf("%w: %d trailing bytes", ErrLength, len(rest))
	}
	m.Luminance.Bytes = y
	m.Chrominance.Bytes = uv
	return m, nil
}

func field(b []byte, name string) ([]byte, []byte, error) {
	if len(b) < 4 {
		return nil, nil, fmt.Errorf("%w: missing %s length", ErrTruncated, name)
	}
	n := int(int32(binary.LittleEndian.Uint32(b)))
	b = b[4:]
	if n < 0 || n > len(b) {
		return nil, nil, fmt.Errorf("%w: %s declares %d bytes, %d remain", ErrLength, name, n, len(b))
	}
	return b[:n], b[n:], nil
}

// Image returns the message planes as a DecodedImage.
func (m Message) Image() ports.DecodedImage {
	return ports.DecodedImage{
		Width:       int(m.Width),
		Height:      int(m.Height),
		Luminance:   m.Luminance,
		Chrominance: m.Chrominance,
	}
}
