package decoder

import (
	"errors"
	"fmt"

	"github.com/user/framedecode/pkg/ports"
)

var (
	// ErrConfiguration is returned when a decode context cannot be built.
	// Nothing is retained; the next frame retries construction.
	ErrConfiguration = errors.New("decoder: configuration failed")

	// ErrHardDecode is returned when the backend rejects input or fails to
	// produce a picture. The context stays configured.
	ErrHardDecode = errors.New("decoder: decode failed")

	// ErrSinkDisconnected is returned when the output sink refuses a frame.
	ErrSinkDisconnected = errors.New("decoder: sink disconnected")

	// ErrContextDisposed is returned when a disposed context is used.
	ErrContextDisposed = errors.New("decoder: context disposed")

	// ErrContextFinished is returned when input is fed after Finish.
	ErrContextFinished = errors.New("decoder: context finished")

	// ErrWorkerStopped is returned by Submit once the worker has exited.
	ErrWorkerStopped = errors.New("decoder: worker stopped")
)

// IsTransient reports whether err only means the backend wants more input
// or has reached the end of its stream.
func IsTransient(err error) bool {
	return errors.Is(err, ports.ErrNeedMoreInput) || errors.Is(err, ports.ErrEndOfStream)
}

func configError(step string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrConfiguration, step, err)
}

func hardDecodeError(step string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrHardDecode, step, err)
}
