package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/suPer8Hu/devassist/internal/ai"
	"github.com/suPer8Hu/devassist/internal/config"
	"github.com/suPer8Hu/devassist/internal/db"
	"github.com/suPer8Hu/devassist/internal/httpapi"
	"github.com/suPer8Hu/devassist/internal/httpapi/handlers"
	"github.com/suPer8Hu/devassist/internal/jobs"
	"github.com/suPer8Hu/devassist/internal/seed"
	"github.com/suPer8Hu/devassist/internal/store"
	"github.com/suPer8Hu/devassist/internal/store/rabbitmq"
	"github.com/suPer8Hu/devassist/internal/store/redisstore"
)

var Version = "dev"

func main() {
	var (
		addr   string
		driver string
		noSeed bool
	)

	rootCmd := &cobra.Command{
		Use:     "devassist",
		Short:   "DevAssist API server",
		Version: Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cmd.Flags().Changed("addr") {
				cfg.HTTPAddr = addr
			}
			if cmd.Flags().Changed("store") {
				cfg.StoreDriver = driver
			}
			if noSeed {
				cfg.SeedEnabled = false
			}
			return run(cfg)
		},
	}
	rootCmd.Flags().StringVar(&addr, "addr", ":8080", "http listen address (overrides HTTP_ADDR)")
	rootCmd.Flags().StringVar(&driver, "store", "memory", "store driver: memory, sqlite or mysql (overrides STORE_DRIVER)")
	rootCmd.Flags().BoolVar(&noSeed, "no-seed", false, "skip demo data")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openStore(cfg config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case "", "memory":
		return store.NewMemStore(), nil
	case "sqlite", "mysql":
		gdb, err := db.Connect(cfg.StoreDriver, cfg.DBDSN)
		if err != nil {
			return nil, err
		}
		return store.NewGormStore(gdb)
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER=%q", cfg.StoreDriver)
	}
}

// checkConfig rejects setups where queued jobs could never be processed.
func checkConfig(cfg config.Config) error {
	if cfg.RabbitURL != "" && (cfg.StoreDriver == "" || cfg.StoreDriver == "memory") {
		// a standalone worker cannot see job rows held in this process
		return fmt.Errorf("RABBIT_URL requires STORE_DRIVER=sqlite or mysql, got %q", cfg.StoreDriver)
	}
	return nil
}

func run(cfg config.Config) error {
	if err := checkConfig(cfg); err != nil {
		return err
	}
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}

	if cfg.SeedEnabled {
		if _, err := seed.Run(ctx, st, seed.Options{Random: rand.New(rand.NewSource(cfg.SeedRandom))}); err != nil {
			if !errors.Is(err, store.ErrConflict) {
				return err
			}
			// persistent stores keep the demo user across restarts
			log.Printf("[seed] skipped: %v", err)
		}
	}

	assistant, err := ai.DefaultRegistry(cfg).NewAssistant(ctx, cfg.AIProvider, cfg.AIModel, cfg.AITimeout)
	if err != nil {
		return err
	}
	defer assistant.Close()

	var idem jobs.Idempotency
	if cfg.RedisAddr != "" {
		rs, err := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rs.Close()
		idem = rs
	}

	var queue jobs.Queue
	localWorker := cfg.RabbitURL == ""
	if localWorker {
		queue = jobs.NewChanQueue(0)
	} else {
		rq, err := rabbitmq.Dial(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			return err
		}
		queue = rq
	}
	defer queue.Close()

	h := handlers.NewHandler(st, cfg, assistant, jobs.NewService(st, queue, idem))

	workerDone := make(chan struct{})
	if localWorker {
		deliveries, err := queue.Consume(ctx)
		if err != nil {
			return err
		}
		go func() {
			defer close(workerDone)
			jobs.NewWorker(st, h.CodeSvc, cfg.WorkerConcurrency).Run(ctx, deliveries)
		}()
	} else {
		close(workerDone)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[server] listening addr=%s store=%s provider=%s", cfg.HTTPAddr, cfg.StoreDriver, cfg.AIProvider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Printf("[server] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[server] shutdown: %v", err)
	}
	stop()
	<-workerDone
	return nil
}
