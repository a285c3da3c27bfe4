// Command tensor-gen is the offline tensor builder (spec §4.5, §6): it
// fuses two files of packed AnalysisResult records (music and talk) into a
// discrimination tensor, optionally evaluating the fused tensor against a
// held-out half of the input and reporting the recovered field histograms.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/dbry/skipper/version"
)

func main() {
	ctx := context.Background()

	appl := &cli.Command{
		Name:      version.Name() + "-tensor-gen",
		Usage:     "Fuse music/talk AnalysisResult records into a discrimination tensor",
		Version:   version.Version() + " " + version.Commit(),
		ArgsUsage: "[-a] [-d<n>] music.bin talk.bin [out.tensor]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "a", Usage: "alternate train/test split"},
			&cli.IntFlag{Name: "d", Value: 4, Usage: "effective dimensions, 1-4"},
			&cli.StringFlag{Name: "f", Value: "console", Usage: "report format: console, json, markdown"},
		},
		Action: runTensorGen,
	}

	if err := appl.Run(ctx, os.Args); err != nil {
		slog.Error("failed to run", "error", err)
		os.Exit(1)
	}
}
