package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"

	"github.com/dealflowhq/dealflow/control-plane/internal/api"
	"github.com/dealflowhq/dealflow/control-plane/internal/config"
	"github.com/dealflowhq/dealflow/control-plane/internal/engine"
	"github.com/dealflowhq/dealflow/control-plane/internal/events"
	"github.com/dealflowhq/dealflow/control-plane/internal/store"
	"github.com/dealflowhq/dealflow/control-plane/internal/store/memory"
	"github.com/dealflowhq/dealflow/control-plane/internal/store/postgres"
	"github.com/dealflowhq/dealflow/control-plane/internal/workflows"
)

type server interface {
	Start(ctx context.Context, addr string) error
}

var (
	loadConfig = func() (config.Config, error) {
		_ = godotenv.Load()
		return config.Load(), nil
	}
	newBroker = events.NewBroker
	newStore  = func(conn string) (store.Store, error) {
		return postgres.New(conn)
	}
	dialTemporal       = client.Dial
	newWorkflowService = workflows.NewService
	buildEngine        = engine.Build
	newServer          = func(st store.Store, broker *events.Broker, wf api.WorkflowService, eng *engine.Engine, cfg config.Config) server {
		return api.NewServer(st, broker, wf, eng, cfg)
	}
	notifyContext = signal.NotifyContext
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := notifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	broker := newBroker()
	st, err := newStore(cfg.PostgresURL)
	if err != nil {
		log.Printf("warning: postgres unavailable, using in-memory store: %v", err)
		st = memory.New()
	}

	var workflowService api.WorkflowService
	temporalClient, err := dialTemporal(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		log.Printf("warning: temporal unavailable, scans run inline: %v", err)
	} else {
		if temporalClient != nil {
			defer temporalClient.Close()
		}
		workflowService = newWorkflowService(temporalClient, cfg.TemporalTaskQueue)
	}

	eng := buildEngine(cfg)
	server := newServer(st, broker, workflowService, eng, cfg)

	addr := fmt.Sprintf(":%s", cfg.ControlPlanePort)
	log.Printf("Dealflow control plane listening on %s", addr)
	if err := server.Start(ctx, addr); err != nil {
		return err
	}

	return nil
}
