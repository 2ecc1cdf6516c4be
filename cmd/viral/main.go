// Command viral runs the viral opportunity engine: it ingests social
// signals, builds scored content opportunities, and drives the brief and
// content workflow.
//
// Usage:
//
//	viral ingest                      Fetch signals from configured sources
//	viral build                       Cluster, score and gate into opportunities
//	viral opportunities [id]          List or show opportunities
//	viral brief generate|approve|reject|regenerate|show|list
//	viral content generate|list       Channel content from approved briefs
//	viral sources                     Source fetch status
//
// Scheduling is external; run ingest and build from cron or similar.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := execute(ctx, os.Args[1:])
	stop()
	if err != nil {
		os.Exit(1)
	}
}
