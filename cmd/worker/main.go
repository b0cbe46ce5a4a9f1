package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"notify24/config"
	"notify24/internal/worker"
)

func main() {
	cfg := config.Load()
	if cfg.Internal.Key == "" {
		log.Fatal("INTERNAL_API_KEY is required for worker delivery")
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("shutting down...")
		cancel()
	}()

	deliverer := worker.NewHTTPDeliverer(cfg)
	consumer := worker.NewConsumer(cfg, deliverer)
	consumer.Run(ctx)
}
