// Command skipper is the streaming filter program (spec §6): it reads raw
// interleaved PCM from a file or stdin, classifies it into music/talk
// windows against a discrimination tensor, and writes the edited stream to
// stdout or a file.
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
		Name:      version.Name(),
		Usage:     "Stream-edit raw PCM audio around music/talk transitions",
		Version:   version.Version() + " " + version.Commit(),
		ArgsUsage: "<file | ->",
		Flags:     filterFlags(),
		Action:    runFilter,
	}

	if err := appl.Run(ctx, os.Args); err != nil {
		slog.Error("failed to run", "error", err)
		os.Exit(1)
	}
}
