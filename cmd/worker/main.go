package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/suPer8Hu/devassist/internal/ai"
	"github.com/suPer8Hu/devassist/internal/code"
	"github.com/suPer8Hu/devassist/internal/config"
	"github.com/suPer8Hu/devassist/internal/db"
	"github.com/suPer8Hu/devassist/internal/jobs"
	"github.com/suPer8Hu/devassist/internal/store"
	"github.com/suPer8Hu/devassist/internal/store/rabbitmq"
)

func main() {
	cfg := config.Load()
	if cfg.RabbitURL == "" {
		log.Fatalf("RABBIT_URL is required for the standalone worker")
	}
	if cfg.StoreDriver == "memory" {
		// the api server and the worker must share job rows
		log.Fatalf("STORE_DRIVER must be sqlite or mysql for the standalone worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Connect(cfg.StoreDriver, cfg.DBDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	st, err := store.NewGormStore(gdb)
	if err != nil {
		log.Fatalf("store: %v", err)
	}

	assistant, err := ai.DefaultRegistry(cfg).NewAssistant(ctx, cfg.AIProvider, cfg.AIModel, cfg.AITimeout)
	if err != nil {
		log.Fatalf("ai provider: %v", err)
	}
	defer assistant.Close()
	svc := code.NewService(st, assistant)

	q, err := rabbitmq.Dial(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Fatalf("rabbit dial: %v", err)
	}
	defer q.Close()

	// strict concurrency control
	deliveries, err := q.ConsumeN(ctx, cfg.WorkerConcurrency)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	log.Printf("worker started, queue=%s concurrency=%d provider=%s", cfg.RabbitQueue, cfg.WorkerConcurrency, cfg.AIProvider)
	jobs.NewWorker(st, svc, cfg.WorkerConcurrency).Run(ctx, deliveries)
}
