package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

func main() {
	color.NoColor = !isatty.IsTerminal(os.Stderr.Fd())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("error:"), err)
		stop()
		os.Exit(1)
	}
}
