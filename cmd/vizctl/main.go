package main

import (
	"context"
	"os"
	"os/signal"

	"vizpilot/internal/config"

	"github.com/spf13/afero"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], afero.NewOsFs())
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, fs afero.Fs) int {
	cmd := newRootCmd(fs, config.Load)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}
