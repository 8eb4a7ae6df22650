// Command thumbnailctl pre-generates and inspects cached thumbnails using
// the same configuration as the server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := defaultCLI()
	if err := newRootCmd(c).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(c.errOut, "Error:", err)
		stop()
		os.Exit(1)
	}
}
