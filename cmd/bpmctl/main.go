// Command bpmctl manages process definitions, instances and tasks on a BPM
// engine through its REST API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/florianilch/bpm-client/cmd/bpmctl/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := commands.Execute(ctx, os.Args)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "bpmctl:", err)
		os.Exit(1)
	}
}
