// Package main starts the battle synchronizer simulator.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	duelsimcmd "github.com/nearplay/duelsync/internal/cmd/duelsim"
)

func main() {
	cfg, err := duelsimcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[DUELSIM] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := duelsimcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("simulation failed: %v", err)
	}
}
