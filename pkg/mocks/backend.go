package mocks

import (
	"fmt"
	"sync"

	"github.com/user/framedecode/pkg/ports"
)

// Failure steps understood by Backend.FailOn.
const (
	StepCodec    = "codec"
	StepParser   = "parser"
	StepDevice   = "device"
	StepAttach   = "attach"
	StepPacket   = "packet"
	StepPicture  = "picture"
	StepOpen     = "open"
	StepParse    = "parse"
	StepSend     = "send"
	StepReceive  = "receive"
	StepTransfer = "transfer"
)

// ErrInvalidData is returned by SendPacket for payloads matched by Reject.
var ErrInvalidData = &ports.BackendError{Op: "send packet", Code: -1094995529, Message: "Invalid data found when processing input"}

// Backend is a scriptable ports.DecoderBackend. It logs every allocation
// and release so tests can check ordering and leaks.
type Backend struct {
	mu sync.Mutex

	// FailOn makes the named step return the given error.
	FailOn map[string]error
	// UnitSize is the number of input bytes the parser turns into one
	// packet. Zero means the whole input.
	UnitSize int
	// PicturesPerPacket is how many pictures each accepted packet yields.
	PicturesPerPacket int
	// Reject marks payloads the codec refuses with ErrInvalidData.
	Reject func(data []byte) bool
	// HoldUnits makes the parser keep each unit until the next call, the
	// way a real parser waits for the following start code. The held unit
	// is emitted without consuming any of the new input.
	HoldUnits bool

	calls    []string
	live     map[string]int
	faults   []string
	sent     [][]byte
	codecs   []ports.CodecParams
	pictures int
	complete bool
	devices  []string
}

// NewBackend creates a backend that yields one picture per packet.
func NewBackend() *Backend {
	return &Backend{
		FailOn:            make(map[string]error),
		PicturesPerPacket: 1,
		live:              make(map[string]int),
	}
}

func (b *Backend) Name() string { return "mock" }

func (b *Backend) record(format string, args ...interface{}) {
	b.calls = append(b.calls, fmt.Sprintf(format, args...))
}

func (b *Backend) fail(step string) error {
	if err, ok := b.FailOn[step]; ok {
		b.record("fail %s", step)
		return err
	}
	return nil
}

func (b *Backend) alloc(kind string) {
	b.live[kind]++
	b.record("alloc %s", kind)
}

func (b *Backend) release(kind string, freed *bool) {
	if *freed {
		b.faults = append(b.faults, "double free "+kind)
		return
	}
	*freed = true
	b.live[kind]--
	b.record("free %s", kind)
}

func (b *Backend) NewCodec(params ports.CodecParams) (ports.CodecHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fail(StepCodec); err != nil {
		return nil, err
	}
	b.alloc("codec")
	b.codecs = append(b.codecs, params)
	return &codec{b: b, params: params}, nil
}

func (b *Backend) NewParser(c ports.Codec) (ports.ParserHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fail(StepParser); err != nil {
		return nil, err
	}
	b.alloc("parser")
	return &parser{b: b}, nil
}

func (b *Backend) NewHardwareDevice(name string) (ports.DeviceHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fail(StepDevice); err != nil {
		return nil, err
	}
	if name == "" {
		name = "mockhw"
	}
	b.alloc("device")
	b.devices = append(b.devices, name)
	return &device{b: b, name: name}, nil
}

func (b *Backend) NewPacket() (ports.PacketHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fail(StepPacket); err != nil {
		return nil, err
	}
	b.alloc("packet")
	return &packet{b: b}, nil
}

func (b *Backend) NewPicture() (ports.PictureHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fail(StepPicture); err != nil {
		return nil, err
	}
	b.pictures++
	p := &picture{b: b, kind: fmt.Sprintf("picture%d", b.pictures)}
	b.alloc(p.kind)
	return p, nil
}

// Calls returns the allocation and call log.
func (b *Backend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// ResetCalls clears the call log.
func (b *Backend) ResetCalls() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = nil
}

// LiveHandles returns the number of allocated handles not yet released.
func (b *Backend) LiveHandles() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, v := range b.live {
		n += v
	}
	return n
}

// Faults returns misuse detected so far, such as double frees.
func (b *Backend) Faults() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.faults...)
}

// Sent returns copies of every packet payload submitted to a codec.
func (b *Backend) Sent() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]byte(nil), b.sent...)
}

// Codecs returns the parameters of every codec allocated.
func (b *Backend) Codecs() []ports.CodecParams {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]ports.CodecParams(nil), b.codecs...)
}

// Devices returns the names of every hardware device opened.
func (b *Backend) Devices() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.devices...)
}

// CompleteFrames reports the last value set on a parser.
func (b *Backend) CompleteFrames() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.complete
}

type codec struct {
	b       *Backend
	params  ports.CodecParams
	pending int
	flushed bool
	hw      bool
	seq     byte
	freed   bool
}

func (c *codec) AttachHardware(dev ports.DeviceHandle) error {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	if err := c.b.fail(StepAttach); err != nil {
		return err
	}
	c.hw = true
	c.b.record("attach %s", dev.Name())
	return nil
}

func (c *codec) Open() error {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	if err := c.b.fail(StepOpen); err != nil {
		return err
	}
	c.b.record("open codec")
	return nil
}

func (c *codec) SendPacket(pkt ports.PacketHandle) error {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	if err := c.b.fail(StepSend); err != nil {
		return err
	}
	data := pkt.(*packet).data
	if c.b.Reject != nil && c.b.Reject(data) {
		c.b.record("reject %d", len(data))
		return ErrInvalidData
	}
	c.b.sent = append(c.b.sent, append([]byte(nil), data...))
	c.b.record("send %d", len(data))
	c.pending += c.b.PicturesPerPacket
	return nil
}

func (c *codec) ReceivePicture(pic ports.PictureHandle) error {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	if err := c.b.fail(StepReceive); err != nil {
		return err
	}
	if c.pending == 0 {
		if c.flushed {
			return ports.ErrEndOfStream
		}
		return ports.ErrNeedMoreInput
	}
	c.pending--
	c.seq++
	p := pic.(*picture)
	p.img = syntheticImage(c.params.Width, c.params.Height, c.seq)
	p.filled = true
	p.device = c.hw
	return nil
}

func (c *codec) Flush() {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	c.flushed = true
	c.b.record("flush codec")
}

func (c *codec) Free() {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	c.b.release("codec", &c.freed)
}

// syntheticImage builds an NV12 picture whose luminance bytes all equal seq.
func syntheticImage(w, h int, seq byte) ports.DecodedImage {
	cstride := 2 * ((w + 1) / 2)
	y := make([]byte, w*h)
	for i := range y {
		y[i] = seq
	}
	uv := make([]byte, cstride*((h+1)/2))
	for i := range uv {
		uv[i] = 128
	}
	return ports.DecodedImage{
		Width:       w,
		Height:      h,
		Luminance:   ports.Plane{Stride: w, Bytes: y},
		Chrominance: ports.Plane{Stride: cstride, Bytes: uv},
	}
}

type parser struct {
	b     *Backend
	held  []byte
	freed bool
}

func (p *parser) Parse(c ports.CodecHandle, pkt ports.PacketHandle, data []byte) (int, error) {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	if err := p.b.fail(StepParse); err != nil {
		return 0, err
	}
	if p.b.HoldUnits && p.held != nil {
		pkt.(*packet).data = p.held
		p.held = nil
		p.b.record("parse 0")
		return 0, nil
	}
	n := len(data)
	if p.b.UnitSize > 0 && n > p.b.UnitSize {
		n = p.b.UnitSize
	}
	if n > 0 {
		if p.b.HoldUnits {
			p.held = append([]byte(nil), data[:n]...)
		} else {
			pkt.(*packet).data = data[:n]
		}
	}
	p.b.record("parse %d", n)
	return n, nil
}

func (p *parser) SetCompleteFrames(complete bool) {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	p.b.complete = complete
}

func (p *parser) Close() {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	p.b.release("parser", &p.freed)
}

type packet struct {
	b     *Backend
	data  []byte
	freed bool
}

func (p *packet) Reference(data []byte) { p.data = data }
func (p *packet) Len() int              { return len(p.data) }
func (p *packet) Reset()                { p.data = nil }

func (p *packet) Free() {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	p.b.release("packet", &p.freed)
}

type picture struct {
	b      *Backend
	kind   string
	img    ports.DecodedImage
	filled bool
	device bool
	freed  bool
}

func (p *picture) Image() (ports.DecodedImage, error) {
	if !p.filled {
		return ports.DecodedImage{}, fmt.Errorf("%s: empty picture", p.kind)
	}
	if p.device {
		return ports.DecodedImage{}, fmt.Errorf("%s: picture is in device memory", p.kind)
	}
	return p.img, nil
}

func (p *picture) TransferFrom(src ports.PictureHandle) error {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	if err := p.b.fail(StepTransfer); err != nil {
		return err
	}
	s := src.(*picture)
	p.img = s.img
	p.filled = s.filled
	p.device = false
	p.b.record("transfer")
	return nil
}

func (p *picture) Unref() {
	p.img = ports.DecodedImage{}
	p.filled = false
	p.device = false
}

func (p *picture) Free() {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	p.b.release(p.kind, &p.freed)
}

type device struct {
	b     *Backend
	name  string
	freed bool
}

func (d *device) Name() string { return d.name }

func (d *device) Free() {
	d.b.mu.Lock()
	defer d.b.mu.Unlock()
	d.b.release("device", &d.freed)
}

var _ ports.DecoderBackend = (*Backend)(nil)
