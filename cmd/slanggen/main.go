package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/slang-go/slang/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log := &logger.Logger{Writer: os.Stderr, Prefix: "slanggen:"}
	if err := NewCLI(os.Stdout, log, os.Getenv).ExecuteContext(ctx); err != nil {
		stop()
		log.Fatalf("%v", err)
	}
}
