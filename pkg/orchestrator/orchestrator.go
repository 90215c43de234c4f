// Package orchestrator runs decode jobs, one worker per stream.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/user/framedecode/pkg/decoder"
	"github.com/user/framedecode/pkg/ports"
	"golang.org/x/sync/errgroup"
)

// Config contains the settings shared by every job.
type Config struct {
	Decoder   decoder.Options
	QueueSize int
}

// DefaultConfig returns a Config with default values. The backend variant
// is left empty and must be chosen by the caller.
func DefaultConfig() Config {
	return Config{
		Decoder:   decoder.Options{Codec: ports.CodecH264},
		QueueSize: 8,
	}
}

// Job is one compressed stream decoded for one destination.
type Job struct {
	Name        string
	Destination int64
	Source      ports.FrameSource
	Sink        ports.FrameSink
}

// Result describes how a job ended.
type Result struct {
	Name        string
	Destination int64
	Stats       decoder.Stats
	Elapsed     time.Duration
	// Err is nil when the stream was decoded to its end.
	Err error
}

// Orchestrator decodes several streams concurrently against one backend.
type Orchestrator struct {
	backend ports.DecoderBackend
	config  Config
	logger  ports.Logger
}

// New creates a new Orchestrator.
func New(backend ports.DecoderBackend, config Config, logger ports.Logger) *Orchestrator {
	return &Orchestrator{
		backend: backend,
		config:  config,
		logger:  logger,
	}
}

// Run decodes every job and returns one Result per job in input order.
// A failing job does not stop the others. The returned error is non-nil
// only when ctx was cancelled. Sources are closed; sinks are left to the
// caller.
func (o *Orchestrator) Run(ctx context.Context, jobs []Job) ([]Result, error) {
	o.logger.Info("Decoding %d streams", len(jobs))

	results := make([]Result, len(jobs))
	var g errgroup.Group
	for i, job := range jobs {
		g.Go(func() error {
			results[i] = o.runJob(ctx, job)
			return nil
		})
	}
	g.Wait()

	return results, ctx.Err()
}

func (o *Orchestrator) runJob(ctx context.Context, job Job) Result {
	log := o.logger.WithComponent(job.Name)
	log.Info("Decoding %s to destination %d", job.Name, job.Destination)
	defer job.Source.Close()

	start := time.Now()
	session := decoder.NewSession(o.backend, job.Sink, job.Destination, o.config.Decoder, log)
	worker := decoder.NewWorker(session, o.config.QueueSize, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(gctx)
	})
	g.Go(func() error {
		defer worker.CloseInput()
		return feed(gctx, job.Source, worker)
	})
	err := g.Wait()

	result := Result{
		Name:        job.Name,
		Destination: job.Destination,
		Stats:       session.Stats(),
		Elapsed:     time.Since(start),
		Err:         err,
	}
	if err != nil {
		log.Error("Stream %s failed: %v", job.Name, err)
	} else {
		log.Info("Stream %s finished: %d frames, %d pictures", job.Name, result.Stats.Frames, result.Stats.Pictures)
	}
	return result
}

// feed submits frames from src until it is exhausted or the worker stops.
func feed(ctx context.Context, src ports.FrameSource, w *decoder.Worker) error {
	for {
		frame, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
		if err := w.Submit(ctx, frame); err != nil {
			if errors.Is(err, decoder.ErrWorkerStopped) {
				return nil
			}
			return err
		}
	}
}
