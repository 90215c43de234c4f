// Package decoder turns compressed video frames into NV12 pictures and hands
// them to a display sink as wire messages.
package decoder

import (
	"fmt"
	"iter"

	"github.com/user/framedecode/pkg/ports"
)

// Options configures how a decode context is built.
type Options struct {
	// Codec defaults to H.264.
	Codec ports.Codec

	// Variant is required. There is no default.
	Variant ports.BackendVariant

	// HardwareDevice names the device for VariantHardware. Empty selects
	// the backend's platform default.
	HardwareDevice string

	// CompleteFrames tells the parser that each input buffer holds whole
	// access units, so a picture is emitted without waiting for the next
	// frame.
	CompleteFrames bool
}

type contextState int

const (
	stateConfigured contextState = iota
	stateFinished
	stateDisposed
)

// Context owns one configured decoder instance for a fixed picture size.
// It is not safe for concurrent use.
type Context struct {
	log     ports.Logger
	width   int
	height  int
	variant ports.BackendVariant
	state   contextState

	codec    ports.CodecHandle
	parser   ports.ParserHandle
	packet   ports.PacketHandle
	picture  ports.PictureHandle
	transfer ports.PictureHandle
}

// NewContext builds a context for width x height pictures. Either every
// native resource is acquired or none is kept: on error everything
// allocated so far has been released.
func NewContext(backend ports.DecoderBackend, width, height int, opts Options, log ports.Logger) (_ *Context, err error) {
	if !opts.Variant.Valid() {
		return nil, fmt.Errorf("%w: backend variant %q", ErrConfiguration, opts.Variant)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: invalid dimensions %dx%d", ErrConfiguration, width, height)
	}
	codec := opts.Codec
	if codec == "" {
		codec = ports.CodecH264
	}

	c := &Context{
		log:     log,
		width:   width,
		height:  height,
		variant: opts.Variant,
	}
	defer func() {
		if err != nil {
			c.Dispose()
		}
	}()

	c.codec, err = backend.NewCodec(ports.CodecParams{Codec: codec, Width: width, Height: height})
	if err != nil {
		return nil, configError("find decoder", err)
	}

	if c.variant == ports.VariantHardware {
		if err = c.attachHardware(backend, opts.HardwareDevice); err != nil {
			return nil, err
		}
	}

	if c.variant == ports.VariantSoftware {
		c.parser, err = backend.NewParser(codec)
		if err != nil {
			return nil, configError("allocate parser", err)
		}
		c.parser.SetCompleteFrames(opts.CompleteFrames)
	}

	if c.packet, err = backend.NewPacket(); err != nil {
		return nil, configError("allocate packet", err)
	}
	if c.picture, err = backend.NewPicture(); err != nil {
		return nil, configError("allocate picture", err)
	}
	if err = c.codec.Open(); err != nil {
		return nil, configError("open codec", err)
	}

	log.Debug("Decode context ready: %dx%d %s (%s)", width, height, c.variant, backend.Name())
	return c, nil
}

// attachHardware opens the device and hands it to the codec. A missing
// device downgrades the context to software decoding.
func (c *Context) attachHardware(backend ports.DecoderBackend, name string) error {
	dev, err := backend.NewHardwareDevice(name)
	if err != nil {
		c.log.Warn("Hardware device %s unavailable, using software decoding: %v", deviceLabel(name), err)
		c.variant = ports.VariantSoftware
		return nil
	}
	// The codec holds its own reference from here on.
	err = c.codec.AttachHardware(dev)
	dev.Free()
	if err != nil {
		return configError("attach hardware device", err)
	}
	if c.transfer, err = backend.NewPicture(); err != nil {
		return configError("allocate transfer picture", err)
	}
	return nil
}

func deviceLabel(name string) string {
	if name == "" {
		return "(default)"
	}
	return name
}

// Width returns the configured picture width.
func (c *Context) Width() int { return c.width }

// Height returns the configured picture height.
func (c *Context) Height() int { return c.height }

// Variant returns the variant in effect after any hardware fallback.
func (c *Context) Variant() ports.BackendVariant { return c.variant }

// Feed submits input to the codec. With a parser it stops after the first
// complete access unit and reports how many bytes were consumed and
// whether a packet was sent; drain the context before feeding the
// remainder. The parser may emit a unit it held back without consuming
// any of data, so consumed == 0 with sent == true means "call again with
// the same bytes". Without a parser the whole buffer is submitted as one
// packet.
func (c *Context) Feed(data []byte) (consumed int, sent bool, err error) {
	switch c.state {
	case stateDisposed:
		return 0, false, ErrContextDisposed
	case stateFinished:
		return 0, false, ErrContextFinished
	}
	if len(data) == 0 {
		return 0, false, nil
	}

	if c.parser == nil {
		c.packet.Reference(data)
		err := c.submit()
		c.packet.Reset()
		return len(data), true, err
	}

	for consumed < len(data) {
		n, err := c.parser.Parse(c.codec, c.packet, data[consumed:])
		if err != nil {
			return consumed, false, hardDecodeError("parse", err)
		}
		consumed += n
		if c.packet.Len() > 0 {
			err := c.submit()
			c.packet.Reset()
			return consumed, true, err
		}
		if n == 0 {
			break
		}
	}
	return consumed, false, nil
}

func (c *Context) submit() error {
	err := c.codec.SendPacket(c.packet)
	if err == nil {
		return nil
	}
	if IsTransient(err) {
		c.log.Debug("Packet of %d bytes not accepted: %v", c.packet.Len(), err)
		return nil
	}
	return hardDecodeError("send packet", err)
}

// Finish signals end of input. Any access unit still held by the parser
// is submitted and the codec is told to flush, so a following Drain
// returns every remaining picture. Feed fails afterwards.
func (c *Context) Finish() error {
	switch c.state {
	case stateDisposed:
		return ErrContextDisposed
	case stateFinished:
		return nil
	}
	c.state = stateFinished

	if c.parser != nil {
		if _, err := c.parser.Parse(c.codec, c.packet, nil); err != nil {
			return hardDecodeError("parse", err)
		}
		if c.packet.Len() > 0 {
			err := c.submit()
			c.packet.Reset()
			if err != nil {
				return err
			}
		}
	}
	c.codec.Flush()
	return nil
}

// Drain yields every picture the codec can produce right now. The sequence
// ends when the codec needs more input or reaches end of stream. Any other
// failure is yielded once as an ErrHardDecode error.
//
// A yielded image borrows the context's picture buffer. It is valid only
// inside the loop body that receives it.
func (c *Context) Drain() iter.Seq2[ports.DecodedImage, error] {
	return func(yield func(ports.DecodedImage, error) bool) {
		if c.state == stateDisposed {
			yield(ports.DecodedImage{}, ErrContextDisposed)
			return
		}
		for {
			if err := c.codec.ReceivePicture(c.picture); err != nil {
				if !IsTransient(err) {
					yield(ports.DecodedImage{}, hardDecodeError("receive picture", err))
				}
				return
			}

			img, err := c.image()
			if err != nil {
				c.release()
				yield(ports.DecodedImage{}, err)
				return
			}
			more := yield(img, nil)
			c.release()
			if !more || c.state == stateDisposed {
				return
			}
		}
	}
}

func (c *Context) image() (ports.DecodedImage, error) {
	src := c.picture
	if c.transfer != nil {
		if err := c.transfer.TransferFrom(c.picture); err != nil {
			return ports.DecodedImage{}, hardDecodeError("transfer picture", err)
		}
		src = c.transfer
	}
	img, err := src.Image()
	if err != nil {
		return ports.DecodedImage{}, hardDecodeError("map picture", err)
	}
	return img, nil
}

func (c *Context) release() {
	if c.state == stateDisposed {
		return
	}
	if c.transfer != nil {
		c.transfer.Unref()
	}
	c.picture.Unref()
}

// Dispose releases every native resource. It is safe to call more than
// once. The codec is flushed first and freed last.
func (c *Context) Dispose() {
	if c.state == stateDisposed {
		return
	}
	c.state = stateDisposed

	if c.codec != nil {
		c.codec.Flush()
	}
	if c.transfer != nil {
		c.transfer.Free()
		c.transfer = nil
	}
	if c.parser != nil {
		c.parser.Close()
		c.parser = nil
	}
	if c.picture != nil {
		c.picture.Free()
		c.picture = nil
	}
	if c.packet != nil {
		c.packet.Free()
		c.packet = nil
	}
	if c.codec != nil {
		c.codec.Free()
		c.codec = nil
	}
}
