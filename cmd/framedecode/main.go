// Package main provides the CLI entry point for framedecode.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"

	"github.com/user/framedecode/pkg/adapters/ffmpeg"
	"github.com/user/framedecode/pkg/adapters/filesink"
	"github.com/user/framedecode/pkg/adapters/framesource"
	"github.com/user/framedecode/pkg/adapters/logger"
	"github.com/user/framedecode/pkg/adapters/osfilesystem"
	"github.com/user/framedecode/pkg/config"
	"github.com/user/framedecode/pkg/orchestrator"
	"github.com/user/framedecode/pkg/ports"
	"github.com/user/framedecode/pkg/summarizer"
	"github.com/user/framedecode/pkg/wireframe"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "framedecode",
		Usage:   l10n.T("Decode compressed video streams into raw picture messages"),
		Version: version,
		Commands: []*cli.Command{
			decodeCommand(),
			inspectCommand(),
			probeCommand(),
			versionCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func decodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     l10n.T("Decode video files and emit one picture message per decoded frame"),
		ArgsUsage: "<input>...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: l10n.T("YAML configuration file"), Category: l10n.T("Configuration")},
			&cli.StringFlag{Name: "variant", Usage: l10n.T("Decoder backend (software, hardware)"), Category: l10n.T("Decoder")},
			&cli.StringFlag{Name: "codec", Usage: l10n.T("Compressed codec (h264, hevc)"), Category: l10n.T("Decoder")},
			&cli.StringFlag{Name: "hw-device", Usage: l10n.T("Hardware device type (empty = platform default)"), Category: l10n.T("Decoder")},
			&cli.BoolFlag{Name: "complete-frames", Usage: l10n.T("Treat every input frame as a complete access unit"), Category: l10n.T("Decoder")},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: l10n.T("Recording file for picture messages"), Category: l10n.T("Output")},
			&cli.StringFlag{Name: "output-kind", Usage: l10n.T("Output kind (file, null, channel)"), Category: l10n.T("Output")},
			&cli.StringFlag{Name: "snapshot-dir", Usage: l10n.T("Write PNG snapshots to this directory"), Category: l10n.T("Output")},
			&cli.IntFlag{Name: "snapshot-every", Usage: l10n.T("Snapshot every Nth picture"), Category: l10n.T("Output")},
			&cli.StringFlag{Name: "summary", Usage: l10n.T("Output execution summary to file (Markdown format)"), Category: l10n.T("Output")},
			&cli.StringFlag{Name: "log-level", Aliases: []string{"l"}, Usage: l10n.T("Log level (debug, info, warn, error)"), Category: l10n.T("Logging")},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: l10n.T("Suppress all log output"), Category: l10n.T("Logging")},
		},
		Action: runDecode,
	}
}

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     l10n.T("List the picture messages in a recording"),
		ArgsUsage: "<recording>",
		Action:    runInspect,
	}
}

func probeCommand() *cli.Command {
	return &cli.Command{
		Name:   "probe",
		Usage:  l10n.T("Show the decoder library and hardware device types"),
		Action: runProbe,
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: l10n.T("Show version information"),
		Action: func(c *cli.Context) error {
			fmt.Fprintln(c.App.Writer, l10n.F("framedecode version %s", version))
			return nil
		},
	}
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Defaults()
	if path := c.String("config"); path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if c.IsSet("variant") {
		cfg.Backend.Variant = c.String("variant")
	}
	if c.IsSet("codec") {
		cfg.Codec = c.String("codec")
	}
	if c.IsSet("hw-device") {
		cfg.Backend.HardwareDevice = c.String("hw-device")
	}
	if c.IsSet("complete-frames") {
		cfg.Backend.CompleteFrames = c.Bool("complete-frames")
	}
	if c.IsSet("output") {
		cfg.Output.Path = c.String("output")
	}
	if c.IsSet("output-kind") {
		cfg.Output.Kind = c.String("output-kind")
	}
	if c.IsSet("snapshot-dir") {
		cfg.Snapshot.Enabled = true
		cfg.Snapshot.Dir = c.String("snapshot-dir")
	}
	if c.IsSet("snapshot-every") {
		cfg.Snapshot.Every = c.Int("snapshot-every")
	}
	if c.IsSet("summary") {
		cfg.Summary = c.String("summary")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.Bool("quiet") {
		cfg.LogLevel = "quiet"
	}

	return cfg, cfg.Validate()
}

func newLogger(level string) ports.Logger {
	l := ports.ParseLogLevel(level)
	if l == ports.LevelQuiet {
		return logger.NewNoop()
	}
	return logger.NewConsole(l)
}

func runDecode(c *cli.Context) error {
	inputs := c.Args().Slice()
	if len(inputs) == 0 {
		return cli.Exit(l10n.T("At least one input file is required"), 2)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err, 2)
	}
	log := newLogger(cfg.LogLevel)
	ffmpeg.InitLogging(ports.ParseLogLevel(cfg.Backend.LibraryLogLevel))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			log.Warn("Interrupted, shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	fs := osfilesystem.New()
	var (
		jobs    []orchestrator.Job
		outputs []*output
	)
	defer func() {
		for _, out := range outputs {
			out.Close()
		}
	}()
	abort := func(err error) error {
		for _, job := range jobs {
			job.Source.Close()
		}
		return cli.Exit(err, 1)
	}

	for i, input := range inputs {
		src, err := framesource.Open(input)
		if err != nil {
			log.Error("Failed to open input %s: %v", input, err)
			return abort(err)
		}
		dest := int64(i + 1)
		out, err := openOutput(cfg, dest, len(inputs), fs, log)
		if err != nil {
			src.Close()
			return abort(err)
		}
		outputs = append(outputs, out)
		jobs = append(jobs, orchestrator.Job{
			Name:        filepath.Base(input),
			Destination: dest,
			Source:      src,
			Sink:        out.sink,
		})
	}

	backend := ffmpeg.New()
	log.Debug("Using %s", backend.Name())
	orch := orchestrator.New(backend, orchestrator.Config{
		Decoder:   cfg.DecoderOptions(),
		QueueSize: cfg.QueueSize,
	}, log.WithComponent("orchestrator"))

	results, runErr := orch.Run(ctx, jobs)

	for i, out := range outputs {
		if err := out.Close(); err != nil {
			log.Error("Failed to write output: %s", err)
			results[i].Err = errors.Join(results[i].Err, err)
			continue
		}
		if out.path != "" && results[i].Err == nil {
			log.Info("Output saved to %s", out.path)
		}
	}

	if cfg.Summary != "" {
		writeSummary(cfg, results, fs, log)
	}

	if runErr != nil {
		return cli.Exit(runErr, 130)
	}
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return cli.Exit(l10n.F("%d of %d streams failed", failed, len(results)), 1)
	}
	return nil
}

func writeSummary(cfg config.Config, results []orchestrator.Result, fs ports.FileSystem, log ports.Logger) {
	b := summarizer.NewBuilder().WithSettings(summarizer.Settings{
		Codec:          cfg.Codec,
		Variant:        cfg.Backend.Variant,
		HardwareDevice: cfg.Backend.HardwareDevice,
		CompleteFrames: cfg.Backend.CompleteFrames,
		Output:         describeOutput(cfg),
	})
	for _, r := range results {
		info := summarizer.StreamInfo{
			Name:           r.Name,
			Destination:    r.Destination,
			Frames:         r.Stats.Frames,
			Pictures:       r.Stats.Pictures,
			Pushed:         r.Stats.Pushed,
			Bytes:          r.Stats.Bytes,
			Rebuilds:       r.Stats.Rebuilds,
			HardErrors:     r.Stats.HardErrors,
			ConfigFailures: r.Stats.ConfigFailures,
			Elapsed:        r.Elapsed,
		}
		if r.Err != nil {
			info.Error = r.Err.Error()
		}
		b.AddStream(info)
	}

	formatter := summarizer.NewMarkdownFormatter(
		summarizer.WithTranslator(l10n.T),
		summarizer.WithVersion(version),
	)
	if err := summarizer.NewWriter(formatter, fs).Write(cfg.Summary, b.Build()); err != nil {
		log.Warn("Failed to write summary: %s", err)
		return
	}
	log.Info("Summary saved to %s", cfg.Summary)
}

func describeOutput(cfg config.Config) string {
	if cfg.Output.Kind == config.OutputFile {
		return cfg.Output.Path
	}
	return cfg.Output.Kind
}

func runInspect(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit(l10n.T("A recording file argument is required"), 2)
	}
	f, err := os.Open(c.Args().First())
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer f.Close()

	return inspect(c.App.Writer, filesink.NewReader(f))
}

// inspect prints one line per message and stops at the first invalid one.
func inspect(w io.Writer, r *filesink.Reader) error {
	fmt.Fprintf(w, "%6s %5s %11s %8s %10s %8s %10s\n", "#", "dest", "size", "y-stride", "y-bytes", "c-stride", "c-bytes")
	n := 0
	for {
		raw, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return cli.Exit(l10n.F("Record %d: %v", n+1, err), 1)
		}
		n++
		m, err := wireframe.Unpack(raw)
		if err != nil {
			return cli.Exit(l10n.F("Record %d: %v", n, err), 1)
		}
		fmt.Fprintf(w, "%6d %5d %11s %8d %10d %8d %10d\n",
			n, m.Destination, fmt.Sprintf("%dx%d", m.Width, m.Height),
			m.Luminance.Stride, len(m.Luminance.Bytes),
			m.Chrominance.Stride, len(m.Chrominance.Bytes))
	}
	fmt.Fprintln(w, l10n.F("%d messages", n))
	return nil
}

func runProbe(c *cli.Context) error {
	backend := ffmpeg.New()
	w := c.App.Writer
	fmt.Fprintln(w, l10n.F("Decoder library: %s", backend.Name()))
	fmt.Fprintln(w, l10n.F("Default hardware device: %s", ffmpeg.DefaultHardwareDevice()))

	types := ffmpeg.HardwareDeviceTypes()
	if len(types) == 0 {
		fmt.Fprintln(w, l10n.T("No hardware device types are compiled in"))
		return nil
	}
	fmt.Fprintln(w, l10n.T("Hardware device types:"))
	for _, name := range types {
		status := l10n.T("available")
		dev, err := backend.NewHardwareDevice(name)
		if err != nil {
			status = l10n.T("unavailable")
		} else {
			dev.Free()
		}
		fmt.Fprintf(w, "  %-14s %s\n", name, status)
	}
	return nil
}
