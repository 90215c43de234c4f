package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/user/framedecode/pkg/adapters/chansink"
	"github.com/user/framedecode/pkg/adapters/filesink"
	"github.com/user/framedecode/pkg/adapters/nullsink"
	"github.com/user/framedecode/pkg/adapters/snapshot"
	"github.com/user/framedecode/pkg/config"
	"github.com/user/framedecode/pkg/ports"
	"github.com/user/framedecode/pkg/wireframe"
)

// output is the sink of one job plus whatever must be closed after it.
type output struct {
	sink ports.FrameSink
	path string

	once    sync.Once
	closers []func() error
	err     error
}

// Close releases the output. Only the first call does any work.
func (o *output) Close() error {
	o.once.Do(func() {
		for _, c := range o.closers {
			if err := c(); err != nil && o.err == nil {
				o.err = err
			}
		}
	})
	return o.err
}

// outputPath numbers the recording when several inputs share one path.
func outputPath(path string, dest int64, total int) string {
	if total <= 1 {
		return path
	}
	return fmt.Sprintf("%s.%d", path, dest)
}

// openOutput builds the sink chain for destination dest.
func openOutput(cfg config.Config, dest int64, total int, fs ports.FileSystem, log ports.Logger) (*output, error) {
	out := &output{}

	switch cfg.Output.Kind {
	case config.OutputFile:
		out.path = outputPath(cfg.Output.Path, dest, total)
		s, err := filesink.Create(out.path)
		if err != nil {
			return nil, err
		}
		out.sink = s
		out.closers = append(out.closers, s.Close)
	case config.OutputNull:
		s := nullsink.New()
		out.sink = s
		out.closers = append(out.closers, func() error {
			log.Debug("Discarded %d messages (%d bytes)", s.Messages(), s.Bytes())
			return nil
		})
	case config.OutputChannel:
		s := chansink.New(cfg.Output.Buffer)
		done := make(chan struct{})
		go consume(s.Messages(), done, log.WithComponent("display"))
		out.sink = s
		out.closers = append(out.closers, func() error {
			err := s.Close()
			<-done
			if n := s.Dropped(); n > 0 {
				log.Warn("Display for destination %d dropped %d messages", dest, n)
			}
			return err
		})
	default:
		return nil, fmt.Errorf("unknown output kind %q", cfg.Output.Kind)
	}

	if cfg.Snapshot.Enabled {
		snap := snapshot.New(out.sink, fs, snapshot.Options{
			Dir:   cfg.Snapshot.Dir,
			Every: cfg.Snapshot.Every,
			Width: cfg.Snapshot.Width,
		}, log.WithComponent("snapshot"))
		out.sink = snap
		// The writer finishes before the wrapped sink closes.
		out.closers = append([]func() error{func() error {
			err := snap.Close()
			if n := snap.Dropped(); n > 0 {
				log.Warn("Skipped %d snapshots for destination %d", n, dest)
			}
			return err
		}}, out.closers...)
	}
	return out, nil
}

// consume stands in for a display surface: it validates every message
// until the channel is closed.
func consume(msgs <-chan []byte, done chan<- struct{}, log ports.Logger) {
	defer close(done)
	for raw := range msgs {
		m, err := wireframe.Unpack(raw)
		if err != nil {
			log.Warn("Invalid message: %v", err)
			continue
		}
		log.Debug("Picture %dx%d for destination %d", m.Width, m.Height, m.Destination)
	}
}

var _ io.Closer = (*output)(nil)
