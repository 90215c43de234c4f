package decoder

import (
	"context"
	"errors"
	"sync"

	"github.com/user/framedecode/pkg/ports"
)

// Worker serializes decoding for one remote connection. Frames submitted
// from the network side are decoded in arrival order on the goroutine
// running Run, which is the only one touching the session.
type Worker struct {
	session *Session
	frames  chan ports.CompressedVideoFrame
	done    chan struct{}
	log     ports.Logger

	// stop wakes blocked Submit calls so CloseInput can take mu and close
	// frames without racing a send.
	stop      chan struct{}
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// NewWorker creates a worker for session with room for queueSize pending
// frames.
func NewWorker(session *Session, queueSize int, log ports.Logger) *Worker {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Worker{
		session: session,
		frames:  make(chan ports.CompressedVideoFrame, queueSize),
		done:    make(chan struct{}),
		log:     log,
		stop:    make(chan struct{}),
	}
}

// Session returns the session the worker drives.
func (w *Worker) Session() *Session { return w.session }

// Submit queues a frame, waiting while the queue is full. After
// CloseInput or once Run has returned it fails with ErrWorkerStopped.
func (w *Worker) Submit(ctx context.Context, frame ports.CompressedVideoFrame) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrWorkerStopped
	}
	select {
	case <-w.done:
		return ErrWorkerStopped
	default:
	}
	select {
	case w.frames <- frame:
		return nil
	case <-w.stop:
		return ErrWorkerStopped
	case <-w.done:
		return ErrWorkerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CloseInput marks the end of the stream. Run flushes the decoder and
// returns once the queued frames are processed. It is safe to call more
// than once and concurrently with Submit.
func (w *Worker) CloseInput() {
	w.closeOnce.Do(func() {
		close(w.stop)
		w.mu.Lock()
		w.closed = true
		close(w.frames)
		w.mu.Unlock()
	})
}

// Done is closed when Run returns.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Run decodes queued frames until the input is closed, the context is
// cancelled or the sink disconnects. Configuration and decode errors are
// logged and skipped. The session is closed before Run returns.
func (w *Worker) Run(ctx context.Context) error {
	defer close(w.done)
	defer w.session.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-w.frames:
			if !ok {
				return w.handle(w.session.Finish())
			}
			if err := w.handle(w.session.Decode(frame)); err != nil {
				return err
			}
		}
	}
}

func (w *Worker) handle(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrSinkDisconnected):
		w.log.Warn("Destination %d disconnected: %v", w.session.Destination(), err)
		return err
	case errors.Is(err, ErrConfiguration):
		w.log.Warn("Failed to configure decoder: %v", err)
		return nil
	case errors.Is(err, ErrHardDecode):
		w.log.Warn("Dropped frame: %v", err)
		return nil
	default:
		return err
	}
}
