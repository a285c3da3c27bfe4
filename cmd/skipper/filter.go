package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/dbry/skipper"
	"github.com/dbry/skipper/internal/skipper/fault"
	"github.com/dbry/skipper/internal/skipper/splice"
	"github.com/dbry/skipper/internal/skipper/tensor"
)

func filterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "a", Usage: "dump raw AnalysisResult records to <file>"},
		&cli.IntFlag{Name: "c", Value: 2, Usage: "channels (1 or 2)"},
		&cli.StringFlag{Name: "d", Usage: "alternate discrimination tensor <file>"},
		&cli.BoolFlag{Name: "k", Usage: "keep-alive crossfades during long skips"},
		&cli.IntFlag{Name: "l", Value: 0, Usage: "left debug channel source (0-4)"},
		&cli.IntFlag{Name: "r", Value: 0, Usage: "right debug channel source (0-4)"},
		&cli.StringFlag{Name: "m", Usage: "skip music, optional threshold offset"},
		&cli.BoolFlag{Name: "n", Usage: "skip everything"},
		&cli.BoolFlag{Name: "p", Usage: "pass through (default)"},
		&cli.BoolFlag{Name: "q", Usage: "quiet"},
		&cli.IntFlag{Name: "s", Value: 44100, Usage: "sample rate"},
		&cli.StringFlag{Name: "t", Usage: "skip talk, optional threshold offset"},
		&cli.StringFlag{Name: "v", Usage: "verbose, optional period in seconds"},
		&cli.StringFlag{Name: "o", Usage: "output file (default stdout)"},
	}
}

func parseSignedOffset(raw string) (offset int, err error) {
	if raw == "" {
		return 0, nil
	}

	n, convErr := strconv.Atoi(raw)
	if convErr != nil {
		return 0, fmt.Errorf("%w: %q is not a number", fault.ErrArgument, raw)
	}

	if n < -99 || n > 99 {
		return 0, fmt.Errorf("%w: threshold %d out of range [-99,99]", fault.ErrArgument, n)
	}

	return n, nil
}

func runFilter(_ context.Context, cmd *cli.Command) error {
	if cmd.NArg() > 1 {
		return fmt.Errorf("%w: expected at most one input file argument", fault.ErrArgument)
	}

	opts := skipper.DefaultOptions()
	opts.SampleRate = cmd.Int("s")
	opts.Channels = cmd.Int("c")
	opts.KeepAlive = cmd.Bool("k")
	opts.Quiet = cmd.Bool("q")
	opts.DebugLeft = skipper.DebugSource(cmd.Int("l"))
	opts.DebugRight = skipper.DebugSource(cmd.Int("r"))

	musicRaw := strings.TrimSpace(cmd.String("m"))
	talkRaw := strings.TrimSpace(cmd.String("t"))

	switch {
	case cmd.Bool("n"):
		opts.SkipMode = splice.SkipEverything
	case cmd.IsSet("m"):
		opts.SkipMode = splice.SkipMusic

		offset, err := parseSignedOffset(musicRaw)
		if err != nil {
			return err
		}

		opts.Threshold = offset
	case cmd.IsSet("t"):
		opts.SkipMode = splice.SkipTalk

		offset, err := parseSignedOffset(talkRaw)
		if err != nil {
			return err
		}

		opts.Threshold = offset
	default:
		opts.SkipMode = splice.SkipNothing
	}

	if verboseRaw := strings.TrimSpace(cmd.String("v")); cmd.IsSet("v") || verboseRaw != "" {
		opts.Verbose = true

		if verboseRaw != "" {
			period, err := strconv.Atoi(verboseRaw)
			if err != nil {
				return fmt.Errorf("%w: -v period %q is not a number", fault.ErrArgument, verboseRaw)
			}

			opts.VerbosePeriodSec = period
		}
	}

	if tensorPath := cmd.String("d"); tensorPath != "" {
		f, err := os.Open(tensorPath) //nolint:gosec // CLI tool opens a user-specified tensor file
		if err != nil {
			return fmt.Errorf("%w: %w", fault.ErrAssetLoad, err)
		}
		defer f.Close()

		t, err := tensor.Load(f)
		if err != nil {
			return err
		}

		opts.Tensor = t
	}

	if dumpPath := cmd.String("a"); dumpPath != "" {
		f, err := os.Create(dumpPath) //nolint:gosec // CLI tool writes to a user-specified dump file
		if err != nil {
			return fmt.Errorf("%w: %w", fault.ErrWriteFailure, err)
		}
		defer f.Close()

		opts.AnalysisDump = f
	}

	in, closeIn, err := openInput(cmd.Args().First())
	if err != nil {
		return err
	}
	defer closeIn()

	out, closeOut, err := openOutput(cmd.String("o"))
	if err != nil {
		return err
	}
	defer closeOut()

	bufOut := bufio.NewWriter(out)

	result, err := skipper.Run(in, bufOut, opts)
	if err != nil {
		return err
	}

	if err := bufOut.Flush(); err != nil {
		return fmt.Errorf("%w: %w", fault.ErrWriteFailure, err)
	}

	if opts.Verbose && !opts.Quiet {
		fmt.Fprintf(os.Stderr,
			"processed %d samples, wrote %d, discarded %d, %d music / %d talk transitions\n",
			result.InputSamples, result.SamplesWritten, result.SamplesDiscarded,
			result.MusicTransitions, result.TalkTransitions)
	}

	return nil
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return os.Stdin, func() {}, nil
	}

	f, err := os.Open(path) //nolint:gosec // CLI tool opens a user-specified audio file
	if err != nil {
		return nil, func() {}, fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
	}

	return f, func() { f.Close() }, nil
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}

	f, err := os.Create(path) //nolint:gosec // CLI tool writes to a user-specified output file
	if err != nil {
		return nil, func() {}, fmt.Errorf("%w: %w", fault.ErrWriteFailure, err)
	}

	return f, func() { f.Close() }, nil
}
