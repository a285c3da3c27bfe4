package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/dbry/skipper/internal/skipper/analysis"
	"github.com/dbry/skipper/internal/skipper/builder"
	"github.com/dbry/skipper/internal/skipper/fault"
	skipperReport "github.com/dbry/skipper/internal/skipper/report"
	"github.com/dbry/skipper/internal/skipper/tensor"
)

func runTensorGen(_ context.Context, cmd *cli.Command) error {
	if cmd.NArg() < 2 || cmd.NArg() > 3 {
		return fmt.Errorf("%w: expected music.bin talk.bin [out.tensor]", fault.ErrArgument)
	}

	musicPath := cmd.Args().Get(0)
	talkPath := cmd.Args().Get(1)

	outPath := "out.tensor"
	if cmd.NArg() == 3 {
		outPath = cmd.Args().Get(2)
	}

	alternate := cmd.Bool("a")
	dims := cmd.Int("d")
	formatName := cmd.String("f")

	musicHist, err := loadHistogramFile(musicPath, alternate, dims)
	if err != nil {
		return err
	}

	talkHist, err := loadHistogramFile(talkPath, alternate, dims)
	if err != nil {
		return err
	}

	dataset := builder.NewDataset(musicHist, talkHist, dims)
	fused := dataset.Fuse()

	out, err := os.Create(outPath) //nolint:gosec // CLI tool writes to a user-specified output file
	if err != nil {
		return fmt.Errorf("%w: %w", fault.ErrWriteFailure, err)
	}
	defer out.Close()

	if err := tensor.Write(out, fused); err != nil {
		return err
	}

	reportData := map[string]any{
		"music_windows": musicHist.Windows(),
		"talk_windows":  talkHist.Windows(),
		"dimensions":    dims,
	}

	if err := summarizeFields(musicPath, "music", reportData); err != nil {
		return err
	}

	if err := summarizeFields(talkPath, "talk", reportData); err != nil {
		return err
	}

	if alternate {
		musicSplit, err := evaluateFile(musicPath, fused, alternate)
		if err != nil {
			return err
		}

		talkSplit, err := evaluateFile(talkPath, fused, alternate)
		if err != nil {
			return err
		}

		reportData["music_split"] = skipperReport.SplitToMap(musicSplit)
		reportData["talk_split"] = skipperReport.SplitToMap(talkSplit)
	}

	return skipperReport.Write(os.Stdout, outPath, formatName, reportData)
}

func loadHistogramFile(path string, alternate bool, dims int) (*builder.Histogram, error) {
	f, err := os.Open(path) //nolint:gosec // CLI tool opens user-specified record files
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
	}
	defer f.Close()

	h, err := builder.LoadHistogram(f, alternate, dims)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
	}

	return h, nil
}

func evaluateFile(path string, t *tensor.Tensor, alternate bool) (builder.Split, error) {
	f, err := os.Open(path) //nolint:gosec // CLI tool opens user-specified record files
	if err != nil {
		return builder.Split{}, fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
	}
	defer f.Close()

	return builder.Evaluate(f, t, alternate)
}

// fieldBucketSizes bounds each AnalysisResult byte field's reported
// distribution. Every field is a raw, unclamped byte (0-255) as written by
// analysis.Result.Marshal -- the tensor lookup clamps range_dB/cycles/
// low_third/mid_third separately, in tensor.Get, not here -- so every
// bucket slice must span the full byte range.
var fieldBucketSizes = map[string]int{
	"range_db":     256,
	"cycles":       256,
	"attack_ratio": 256,
	"peak_jitter":  256,
}

func summarizeFields(path, label string, report map[string]any) error {
	f, err := os.Open(path) //nolint:gosec // CLI tool opens user-specified record files
	if err != nil {
		return fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
	}
	defer f.Close()

	buckets := map[string][]int{
		"range_db":     make([]int, fieldBucketSizes["range_db"]),
		"cycles":       make([]int, fieldBucketSizes["cycles"]),
		"attack_ratio": make([]int, fieldBucketSizes["attack_ratio"]),
		"peak_jitter":  make([]int, fieldBucketSizes["peak_jitter"]),
	}

	var buf [8]byte

	for {
		if _, err := io.ReadFull(f, buf[:]); err != nil {
			if err == io.EOF {
				break
			}

			return fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
		}

		result := analysis.Unmarshal(buf)

		buckets["range_db"][result.RangeDB]++
		buckets["cycles"][result.Cycles]++
		buckets["attack_ratio"][result.AttackRatio]++
		buckets["peak_jitter"][result.PeakJitter]++
	}

	fields := make(map[string]any, len(buckets))
	for name, b := range buckets {
		fields[name] = skipperReport.SummaryToMap(builder.SummarizeField(b))
	}

	report[label+"_fields"] = fields

	return nil
}
