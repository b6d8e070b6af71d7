// Command shelfctl manages shelfwise libraries directly through the record
// store, without a running server.
//
// Usage:
//
//	shelfctl user add reader
//	shelfctl book add --user reader --title "Дюна" --pages 412
//	shelfctl library show --user reader
//	shelfctl catalog export --user reader -o library.yaml
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
