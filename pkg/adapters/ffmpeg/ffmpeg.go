// Package ffmpeg implements ports.DecoderBackend on top of libavcodec.
package ffmpeg

/*
#cgo pkg-config: libavcodec libavutil
#include <libavcodec/avcodec.h>
#include <libavutil/error.h>
#include <libavutil/hwcontext.h>
#include <libavutil/log.h>
#include <libavutil/mem.h>
#include <libavutil/pixdesc.h>
#include <libavutil/pixfmt.h>
#include <stdlib.h>
#include <string.h>

static int fd_eagain(void) { return AVERROR(EAGAIN); }
static int fd_eof(void) { return AVERROR_EOF; }
static int fd_enosys(void) { return AVERROR(ENOSYS); }

static enum AVCodecID fd_codec_id(int hevc) {
    return hevc ? AV_CODEC_ID_HEVC : AV_CODEC_ID_H264;
}

static void fd_configure(AVCodecContext *ctx, int width, int height) {
    ctx->width = width;
    ctx->height = height;
    ctx->framerate = (AVRational){1, 1};
    ctx->pix_fmt = AV_PIX_FMT_NV12;
    ctx->color_range = AVCOL_RANGE_JPEG;
    ctx->color_primaries = AVCOL_PRI_BT709;
    ctx->color_trc = AVCOL_TRC_BT709;
    ctx->colorspace = AVCOL_SPC_BT709;
    ctx->flags2 |= AV_CODEC_FLAG2_LOCAL_HEADER;
}

static int fd_attach_device(AVCodecContext *ctx, AVBufferRef *dev) {
    AVBufferRef *ref = av_buffer_ref(dev);
    if (!ref) {
        return AVERROR(ENOMEM);
    }
    av_buffer_unref(&ctx->hw_device_ctx);
    ctx->hw_device_ctx = ref;
    return 0;
}

static void fd_free_codec(AVCodecContext *ctx) {
    av_buffer_unref(&ctx->hw_device_ctx);
    avcodec_free_context(&ctx);
}

static void fd_flush(AVCodecContext *ctx) {
    avcodec_send_packet(ctx, NULL);
}

static void fd_set_complete_frames(AVCodecParserContext *p, int on) {
    if (on) {
        p->flags |= PARSER_FLAG_COMPLETE_FRAMES;
    } else {
        p->flags &= ~PARSER_FLAG_COMPLETE_FRAMES;
    }
}

static int fd_parse(AVCodecParserContext *p, AVCodecContext *ctx, AVPacket *pkt, const uint8_t *buf, int size) {
    uint8_t *out = NULL;
    int out_size = 0;
    int n = av_parser_parse2(p, ctx, &out, &out_size, buf, size, AV_NOPTS_VALUE, AV_NOPTS_VALUE, 0);
    if (n < 0) {
        return n;
    }
    pkt->data = out;
    pkt->size = out_size;
    return n;
}

// fd_stage copies n bytes into a padded av_malloc buffer, growing it when
// needed. Returns NULL when allocation fails.
static uint8_t *fd_stage(uint8_t *dst, size_t *cap, const uint8_t *src, size_t n) {
    size_t want = n + AV_INPUT_BUFFER_PADDING_SIZE;
    if (*cap < want) {
        av_free(dst);
        dst = av_malloc(want);
        if (!dst) {
            *cap = 0;
            return NULL;
        }
        *cap = want;
    }
    memcpy(dst, src, n);
    memset(dst + n, 0, AV_INPUT_BUFFER_PADDING_SIZE);
    return dst;
}

static void fd_packet_set(AVPacket *pkt, uint8_t *data, int size) {
    pkt->data = data;
    pkt->size = size;
    pkt->pts = AV_NOPTS_VALUE;
    pkt->dts = AV_NOPTS_VALUE;
}

static int fd_packet_size(AVPacket *pkt) { return pkt->size; }

static int fd_hwdevice_create(AVBufferRef **out, const char *name) {
    enum AVHWDeviceType t = av_hwdevice_find_type_by_name(name);
    if (t == AV_HWDEVICE_TYPE_NONE) {
        return AVERROR(ENOSYS);
    }
    return av_hwdevice_ctx_create(out, t, NULL, NULL, 0);
}

static int fd_hwdevice_none(void) { return AV_HWDEVICE_TYPE_NONE; }

static int fd_next_hwdevice(int prev) {
    return (int)av_hwdevice_iterate_types((enum AVHWDeviceType)prev);
}

static const char *fd_hwdevice_name(int t) {
    return av_hwdevice_get_type_name((enum AVHWDeviceType)t);
}

static int fd_transfer(AVFrame *dst, AVFrame *src) {
    if (!src->hw_frames_ctx) {
        return av_frame_ref(dst, src);
    }
    int ret = av_hwframe_transfer_data(dst, src, 0);
    if (ret < 0) {
        return ret;
    }
    return av_frame_copy_props(dst, src);
}

static int fd_frame_width(AVFrame *f) { return f->width; }
static int fd_frame_height(AVFrame *f) { return f->height; }
static uint8_t *fd_frame_data(AVFrame *f, int i) { return f->data[i]; }
static int fd_frame_linesize(AVFrame *f, int i) { return f->linesize[i]; }
static int fd_frame_on_device(AVFrame *f) { return f->hw_frames_ctx != NULL; }
static int fd_frame_is_nv12(AVFrame *f) { return f->format == AV_PIX_FMT_NV12; }
static int fd_frame_is_yuv420p(AVFrame *f) {
    return f->format == AV_PIX_FMT_YUV420P || f->format == AV_PIX_FMT_YUVJ420P;
}
static const char *fd_frame_format_name(AVFrame *f) {
    const char *name = av_get_pix_fmt_name((enum AVPixelFormat)f->format);
    return name ? name : "none";
}

static void fd_log_setup(int level) {
    av_log_set_level(level);
    av_log_set_flags(AV_LOG_SKIP_REPEATED);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	"github.com/user/framedecode/pkg/ports"
	"github.com/user/framedecode/pkg/yuv"
)

// ErrAllocation is returned when libav cannot allocate an object.
var ErrAllocation = errors.New("ffmpeg: allocation failed")

// Backend creates libavcodec decoders.
type Backend struct{}

// New creates a libavcodec backend.
func New() *Backend {
	return &Backend{}
}

// Name returns the libavcodec version.
func (b *Backend) Name() string {
	v := uint32(C.avcodec_version())
	return fmt.Sprintf("libavcodec %d.%d.%d", v>>16, (v>>8)&0xff, v&0xff)
}

// InitLogging sets the library's own log level. Repeated messages are
// collapsed.
func InitLogging(level ports.LogLevel) {
	var av C.int
	switch level {
	case ports.LevelDebug:
		av = C.AV_LOG_DEBUG
	case ports.LevelInfo:
		av = C.AV_LOG_INFO
	case ports.LevelWarn:
		av = C.AV_LOG_WARNING
	case ports.LevelError:
		av = C.AV_LOG_ERROR
	default:
		av = C.AV_LOG_QUIET
	}
	C.fd_log_setup(av)
}

// DefaultHardwareDevice returns the device type tried when none is named.
func DefaultHardwareDevice() string {
	switch runtime.GOOS {
	case "windows":
		return "d3d11va"
	case "darwin":
		return "videotoolbox"
	default:
		return "vaapi"
	}
}

// HardwareDeviceTypes lists the device types compiled into libavutil.
func HardwareDeviceTypes() []string {
	var names []string
	none := C.fd_hwdevice_none()
	t := C.fd_next_hwdevice(none)
	for t != none {
		names = append(names, C.GoString(C.fd_hwdevice_name(t)))
		t = C.fd_next_hwdevice(t)
	}
	return names
}

// statusError maps a negative libav status to an error.
func statusError(op string, code C.int) error {
	switch code {
	case C.fd_eagain():
		return ports.ErrNeedMoreInput
	case C.fd_eof():
		return ports.ErrEndOfStream
	}
	var buf [64]C.char
	C.av_strerror(code, &buf[0], C.size_t(len(buf)))
	return &ports.BackendError{Op: op, Code: int(code), Message: C.GoString(&buf[0])}
}

func codecID(c ports.Codec) (C.enum_AVCodecID, error) {
	switch c {
	case ports.CodecH264:
		return C.fd_codec_id(0), nil
	case ports.CodecHEVC:
		return C.fd_codec_id(1), nil
	default:
		return 0, fmt.Errorf("%w: %s", ports.ErrUnsupportedCodec, c)
	}
}

// NewCodec finds the decoder and applies the fixed output parameters:
// NV12, full range, BT.709.
func (b *Backend) NewCodec(params ports.CodecParams) (ports.CodecHandle, error) {
	id, err := codecID(params.Codec)
	if err != nil {
		return nil, err
	}
	dec := C.avcodec_find_decoder(id)
	if dec == nil {
		return nil, fmt.Errorf("%w: %s", ports.ErrUnsupportedCodec, params.Codec)
	}
	ctx := C.avcodec_alloc_context3(dec)
	if ctx == nil {
		return nil, fmt.Errorf("%w: codec context", ErrAllocation)
	}
	C.fd_configure(ctx, C.int(params.Width), C.int(params.Height))
	return &codec{ctx: ctx, dec: dec}, nil
}

// NewParser allocates a bitstream parser for codec.
func (b *Backend) NewParser(c ports.Codec) (ports.ParserHandle, error) {
	id, err := codecID(c)
	if err != nil {
		return nil, err
	}
	p := C.av_parser_init(C.int(id))
	if p == nil {
		return nil, fmt.Errorf("%w: parser for %s", ErrAllocation, c)
	}
	return &parser{ctx: p}, nil
}

// NewHardwareDevice opens a hardware device by libav type name, or the
// platform default when name is empty.
func (b *Backend) NewHardwareDevice(name string) (ports.DeviceHandle, error) {
	if name == "" {
		name = DefaultHardwareDevice()
	}
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	var ref *C.AVBufferRef
	if ret := C.fd_hwdevice_create(&ref, cname); ret < 0 {
		if ret == C.fd_enosys() {
			return nil, fmt.Errorf("%w: %s is not a known device type", ports.ErrHardwareUnavailable, name)
		}
		return nil, fmt.Errorf("%w: %s: %w", ports.ErrHardwareUnavailable, name, statusError("create hardware device", ret))
	}
	return &device{ref: ref, name: name}, nil
}

// NewPacket allocates an empty packet.
func (b *Backend) NewPacket() (ports.PacketHandle, error) {
	pkt := C.av_packet_alloc()
	if pkt == nil {
		return nil, fmt.Errorf("%w: packet", ErrAllocation)
	}
	return &packet{pkt: pkt}, nil
}

// NewPicture allocates an empty frame.
func (b *Backend) NewPicture() (ports.PictureHandle, error) {
	f := C.av_frame_alloc()
	if f == nil {
		return nil, fmt.Errorf("%w: frame", ErrAllocation)
	}
	return &picture{frame: f}, nil
}

type codec struct {
	ctx    *C.AVCodecContext
	dec    *C.AVCodec
	opened bool
}

func (c *codec) AttachHardware(dev ports.DeviceHandle) error {
	d, ok := dev.(*device)
	if !ok || d.ref == nil {
		return fmt.Errorf("ffmpeg: foreign device handle %T", dev)
	}
	if ret := C.fd_attach_device(c.ctx, d.ref); ret < 0 {
		return statusError("attach hardware device", ret)
	}
	return nil
}

func (c *codec) Open() error {
	if ret := C.avcodec_open2(c.ctx, c.dec, nil); ret < 0 {
		return statusError("open codec", ret)
	}
	c.opened = true
	return nil
}

func (c *codec) SendPacket(pkt ports.PacketHandle) error {
	p := pkt.(*packet)
	if ret := C.avcodec_send_packet(c.ctx, p.pkt); ret < 0 {
		return statusError("send packet", ret)
	}
	return nil
}

func (c *codec) ReceivePicture(pic ports.PictureHandle) error {
	p := pic.(*picture)
	if ret := C.avcodec_receive_frame(c.ctx, p.frame); ret < 0 {
		return statusError("receive frame", ret)
	}
	return nil
}

func (c *codec) Flush() {
	if c.ctx != nil && c.opened {
		C.fd_flush(c.ctx)
	}
}

func (c *codec) Free() {
	if c.ctx != nil {
		C.fd_free_codec(c.ctx)
		c.ctx = nil
	}
}

type parser struct {
	ctx      *C.AVCodecParserContext
	stage    *C.uint8_t
	stageCap C.size_t
}

// Parse copies data into a padded C buffer before parsing: the parser may
// hand back a unit pointing into its input, and that unit outlives this
// call.
func (p *parser) Parse(c ports.CodecHandle, pkt ports.PacketHandle, data []byte) (int, error) {
	cc := c.(*codec)
	pk := pkt.(*packet)

	var buf *C.uint8_t
	if len(data) > 0 {
		buf = C.fd_stage(p.stage, &p.stageCap, (*C.uint8_t)(unsafe.Pointer(&data[0])), C.size_t(len(data)))
		if buf == nil {
			p.stage = nil
			return 0, fmt.Errorf("%w: parser staging buffer", ErrAllocation)
		}
		p.stage = buf
	}

	n := C.fd_parse(p.ctx, cc.ctx, pk.pkt, buf, C.int(len(data)))
	if n < 0 {
		return 0, statusError("parse", n)
	}
	return int(n), nil
}

func (p *parser) SetCompleteFrames(complete bool) {
	on := C.int(0)
	if complete {
		on = 1
	}
	C.fd_set_complete_frames(p.ctx, on)
}

func (p *parser) Close() {
	if p.ctx != nil {
		C.av_parser_close(p.ctx)
		p.ctx = nil
	}
	if p.stage != nil {
		C.av_free(unsafe.Pointer(p.stage))
		p.stage = nil
		p.stageCap = 0
	}
}

type packet struct {
	pkt      *C.AVPacket
	stage    *C.uint8_t
	stageCap C.size_t
}

// Reference copies data into the packet's padded staging buffer. The
// packet never points at Go memory.
func (p *packet) Reference(data []byte) {
	if len(data) == 0 {
		p.Reset()
		return
	}
	buf := C.fd_stage(p.stage, &p.stageCap, (*C.uint8_t)(unsafe.Pointer(&data[0])), C.size_t(len(data)))
	p.stage = buf
	if buf == nil {
		p.Reset()
		return
	}
	C.fd_packet_set(p.pkt, buf, C.int(len(data)))
}

func (p *packet) Len() int {
	return int(C.fd_packet_size(p.pkt))
}

func (p *packet) Reset() {
	C.fd_packet_set(p.pkt, nil, 0)
}

func (p *packet) Free() {
	if p.pkt != nil {
		p.Reset()
		C.av_packet_free(&p.pkt)
	}
	if p.stage != nil {
		C.av_free(unsafe.Pointer(p.stage))
		p.stage = nil
		p.stageCap = 0
	}
}

type picture struct {
	frame  *C.AVFrame
	chroma []byte
}

// Image exposes the frame as NV12. NV12 planes are borrowed from the frame;
// planar 4:2:0 chroma is interleaved into a buffer reused across pictures.
func (p *picture) Image() (ports.DecodedImage, error) {
	f := p.frame
	if C.fd_frame_on_device(f) != 0 {
		return ports.DecodedImage{}, errors.New("ffmpeg: picture is in device memory")
	}
	w, h := int(C.fd_frame_width(f)), int(C.fd_frame_height(f))
	if w <= 0 || h <= 0 {
		return ports.DecodedImage{}, fmt.Errorf("ffmpeg: empty picture %dx%d", w, h)
	}
	rows := yuv.ChromaRows(h)

	lumaStride := int(C.fd_frame_linesize(f, 0))
	if lumaStride <= 0 {
		return ports.DecodedImage{}, fmt.Errorf("ffmpeg: unsupported luma stride %d", lumaStride)
	}
	img := ports.DecodedImage{
		Width:     w,
		Height:    h,
		Luminance: ports.Plane{Stride: lumaStride, Bytes: plane(f, 0, h*lumaStride)},
	}

	switch {
	case C.fd_frame_is_nv12(f) != 0:
		stride := int(C.fd_frame_linesize(f, 1))
		img.Chrominance = ports.Plane{Stride: stride, Bytes: plane(f, 1, rows*stride)}
	case C.fd_frame_is_yuv420p(f) != 0:
		us, vs := int(C.fd_frame_linesize(f, 1)), int(C.fd_frame_linesize(f, 2))
		u := plane(f, 1, rows*us)
		v := plane(f, 2, rows*vs)
		var stride int
		p.chroma, stride = yuv.InterleaveChroma(p.chroma, w, h, u, us, v, vs)
		img.Chrominance = ports.Plane{Stride: stride, Bytes: p.chroma}
	default:
		return ports.DecodedImage{}, fmt.Errorf("ffmpeg: unsupported pixel format %s", C.GoString(C.fd_frame_format_name(f)))
	}
	return img, nil
}

func plane(f *C.AVFrame, i, n int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(C.fd_frame_data(f, C.int(i)))), n)
}

func (p *picture) TransferFrom(src ports.PictureHandle) error {
	s := src.(*picture)
	if ret := C.fd_transfer(p.frame, s.frame); ret < 0 {
		return statusError("transfer frame", ret)
	}
	return nil
}

func (p *picture) Unref() {
	if p.frame != nil {
		C.av_frame_unref(p.frame)
	}
}

func (p *picture) Free() {
	if p.frame != nil {
		C.av_frame_free(&p.frame)
	}
	p.chroma = nil
}

type device struct {
	ref  *C.AVBufferRef
	name string
}

func (d *device) Name() string { return d.name }

func (d *device) Free() {
	if d.ref != nil {
		C.av_buffer_unref(&d.ref)
	}
}

var _ ports.DecoderBackend = (*Backend)(nil)
