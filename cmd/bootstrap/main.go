package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shipgl/vendor-bootstrap/cmd/bootstrap/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	app := commands.NewApp()
	err := commands.NewRootCmd(app).ExecuteContext(ctx)
	// PersistentPostRun is skipped when a command fails.
	app.Close()
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
