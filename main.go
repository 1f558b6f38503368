package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/lumafi/flasharb/cmd"
	"github.com/lumafi/flasharb/utils"
)

func main() {
	log := utils.GetLogger()
	defer utils.CleanupLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Shutting down gracefully...")
		cancel()
	}()

	if err := cmd.ExecuteContext(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("bot exited with error", zap.Error(err))
	}
}
