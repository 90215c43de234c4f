// Package snapshot writes periodic PNG snapshots of the pictures flowing
// to a display sink.
package snapshot

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/user/framedecode/pkg/ports"
	"github.com/user/framedecode/pkg/wireframe"
	"github.com/user/framedecode/pkg/yuv"
)

// Options controls how often and how large snapshots are.
type Options struct {
	Dir   string
	Every int
	Width int
	// Queue is how many captures may wait for the writer. Captures
	// arriving while it is full are skipped.
	Queue int
}

type job struct {
	msg   []byte
	index int
}

// Sink forwards every message to the next sink and renders every Nth one
// on a background goroutine, so Push never waits for image work or disk
// I/O. Forwarded messages are only read by the writer, never modified.
type Sink struct {
	next ports.FrameSink
	fs   ports.FileSystem
	opts Options
	log  ports.Logger

	queue   chan job
	done    chan struct{}
	dropped atomic.Int64

	mu      sync.Mutex
	seen    int
	closed  bool
	written []string
}

// New wraps next and starts the snapshot writer. Every and Queue default
// to 1 and 4. Close stops the writer.
func New(next ports.FrameSink, fs ports.FileSystem, opts Options, log ports.Logger) *Sink {
	if opts.Every < 1 {
		opts.Every = 1
	}
	if opts.Queue < 1 {
		opts.Queue = 4
	}
	s := &Sink{
		next:  next,
		fs:    fs,
		opts:  opts,
		log:   log,
		queue: make(chan job, opts.Queue),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

// Push forwards msg and queues a snapshot when one is due. Snapshot
// failures are logged and never reach the decoder.
func (s *Sink) Push(msg []byte) error {
	if err := s.next.Push(msg); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.seen++
	if (s.seen-1)%s.opts.Every != 0 {
		return nil
	}
	select {
	case s.queue <- job{msg: msg, index: s.seen}:
	default:
		s.dropped.Add(1)
		s.log.Debug("Snapshot #%d skipped, writer busy", s.seen)
	}
	return nil
}

func (s *Sink) run() {
	defer close(s.done)
	for j := range s.queue {
		path, err := s.capture(j.msg, j.index)
		if err != nil {
			s.log.Warn("Snapshot failed: %v", err)
			continue
		}
		s.mu.Lock()
		s.written = append(s.written, path)
		s.mu.Unlock()
		s.log.Debug("Snapshot written: %s", path)
	}
}

// Close writes the queued snapshots and stops the writer. The next sink
// is left open.
func (s *Sink) Close() error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	<-s.done
	return nil
}

// Dropped returns how many due snapshots were skipped because the writer
// was busy.
func (s *Sink) Dropped() int64 {
	return s.dropped.Load()
}

func (s *Sink) capture(msg []byte, index int) (string, error) {
	m, err := wireframe.Unpack(msg)
	if err != nil {
		return "", err
	}
	img, err := yuv.ToYCbCr(m.Image())
	if err != nil {
		return "", err
	}
	caption := fmt.Sprintf("dest %d  #%d  %dx%d", m.Destination, index, m.Width, m.Height)
	data, err := EncodePNG(Render(img, s.opts.Width, caption))
	if err != nil {
		return "", err
	}

	if err := s.fs.MkdirAll(s.opts.Dir); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}
	path := filepath.Join(s.opts.Dir, fmt.Sprintf("dest%d-%06d.png", m.Destination, index))
	if err := s.fs.WriteFile(path, data); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}

// Written returns the paths of snapshots written so far, in write order.
func (s *Sink) Written() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.written...)
}

var _ ports.FrameSink = (*Sink)(nil)
