package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Synerdyn/netscan/internal/runner"
	"github.com/projectdiscovery/gologger"
)

func main() {
	options := runner.ParseOptions()
	netscanRunner, err := runner.NewRunner(options)
	if err != nil {
		gologger.Fatal().Msgf("Could not create runner: %s\n", err)
	}
	defer netscanRunner.Close()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup close handler
	go func() {
		<-c
		fmt.Fprintln(os.Stderr, "\r- Ctrl+C pressed in Terminal, stopping scan...")
		cancel()
	}()

	if err := netscanRunner.Run(ctx); err != nil {
		netscanRunner.Close()
		gologger.Fatal().Msgf("Could not run netscan: %s\n", err)
	}
}
