package decoder

import (
	"fmt"
	"sync/atomic"

	"github.com/user/framedecode/pkg/ports"
	"github.com/user/framedecode/pkg/wireframe"
)

// Stats is a snapshot of session counters.
type Stats struct {
	Frames         int64
	Pictures       int64
	Pushed         int64
	Bytes          int64
	Rebuilds       int64
	HardErrors     int64
	ConfigFailures int64
}

type counters struct {
	frames         atomic.Int64
	pictures       atomic.Int64
	pushed         atomic.Int64
	bytes          atomic.Int64
	rebuilds       atomic.Int64
	hardErrors     atomic.Int64
	configFailures atomic.Int64
}

// Session decodes the video stream of one remote connection for one
// display surface. Decode calls must be serialized; Stats may be read
// from any goroutine.
type Session struct {
	backend     ports.DecoderBackend
	sink        ports.FrameSink
	destination int64
	opts        Options
	log         ports.Logger

	ctx   *Context
	stats counters
}

// NewSession creates a session that pushes pictures for destination to
// sink. No decode context exists until the first frame arrives.
func NewSession(backend ports.DecoderBackend, sink ports.FrameSink, destination int64, opts Options, log ports.Logger) *Session {
	return &Session{
		backend:     backend,
		sink:        sink,
		destination: destination,
		opts:        opts,
		log:         log,
	}
}

// Destination returns the display surface id stamped on every message.
func (s *Session) Destination() int64 { return s.destination }

// Decode feeds one compressed frame and forwards every picture it yields.
// The decode context is rebuilt when the frame's dimensions differ from
// the current ones.
func (s *Session) Decode(frame ports.CompressedVideoFrame) error {
	if err := s.ensureContext(int(frame.Width), int(frame.Height)); err != nil {
		s.stats.configFailures.Add(1)
		return err
	}
	s.stats.frames.Add(1)

	data := frame.Buffer
	for len(data) > 0 {
		n, sent, err := s.ctx.Feed(data)
		if err != nil {
			s.stats.hardErrors.Add(1)
			return err
		}
		if err := s.forward(); err != nil {
			return err
		}
		if n == 0 && !sent {
			break
		}
		data = data[n:]
	}
	return nil
}

// Finish flushes the current context, forwards the pictures it still
// holds and releases it. The next Decode builds a fresh context.
func (s *Session) Finish() error {
	if s.ctx == nil {
		return nil
	}
	defer s.dispose()
	if err := s.ctx.Finish(); err != nil {
		s.stats.hardErrors.Add(1)
		return err
	}
	return s.forward()
}

// Close releases the decode context. It is safe to call more than once.
func (s *Session) Close() {
	s.dispose()
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	return Stats{
		Frames:         s.stats.frames.Load(),
		Pictures:       s.stats.pictures.Load(),
		Pushed:         s.stats.pushed.Load(),
		Bytes:          s.stats.bytes.Load(),
		Rebuilds:       s.stats.rebuilds.Load(),
		HardErrors:     s.stats.hardErrors.Load(),
		ConfigFailures: s.stats.configFailures.Load(),
	}
}

func (s *Session) ensureContext(width, height int) error {
	if s.ctx != nil && s.ctx.Width() == width && s.ctx.Height() == height {
		return nil
	}
	if s.ctx != nil {
		s.log.Info("Resolution changed from %dx%d to %dx%d", s.ctx.Width(), s.ctx.Height(), width, height)
		s.dispose()
	}

	ctx, err := NewContext(s.backend, width, height, s.opts, s.log)
	if err != nil {
		return err
	}
	s.ctx = ctx
	s.stats.rebuilds.Add(1)
	return nil
}

// forward drains the context and pushes each picture. A refused push
// stops the drain and drops the pictures still pending.
func (s *Session) forward() error {
	for img, err := range s.ctx.Drain() {
		if err != nil {
			s.stats.hardErrors.Add(1)
			return err
		}
		s.stats.pictures.Add(1)

		msg := wireframe.Pack(s.destination, img)
		if err := s.sink.Push(msg); err != nil {
			return fmt.Errorf("%w: destination %d: %w", ErrSinkDisconnected, s.destination, err)
		}
		s.stats.pushed.Add(1)
		s.stats.bytes.Add(int64(len(msg)))
	}
	return nil
}

func (s *Session) dispose() {
	if s.ctx != nil {
		s.ctx.Dispose()
		s.ctx = nil
	}
}
