package main

import (
	"log"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/dealflowhq/dealflow/control-plane/internal/config"
	"github.com/dealflowhq/dealflow/control-plane/internal/engine"
	"github.com/dealflowhq/dealflow/control-plane/internal/events"
	"github.com/dealflowhq/dealflow/control-plane/internal/store"
	"github.com/dealflowhq/dealflow/control-plane/internal/store/postgres"
	"github.com/dealflowhq/dealflow/control-plane/internal/workflows"
)

var (
	loadConfig = func() (config.Config, error) {
		_ = godotenv.Load()
		return config.Load(), nil
	}
	dialTemporal = client.Dial
	newStore     = func(conn string) (store.Store, error) {
		return postgres.New(conn)
	}
	buildEngine     = engine.Build
	newBroker       = events.NewBroker
	newActivities   = workflows.NewScanActivities
	newWorker       = worker.New
	workerInterrupt = worker.InterruptCh
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
	temporalClient, err := dialTemporal(client.Options{
		HostPort: cfg.TemporalAddress,
	})
	if err != nil {
		return err
	}
	if temporalClient != nil {
		defer temporalClient.Close()
	}

	st, err := newStore(cfg.PostgresURL)
	if err != nil {
		return err
	}

	activities := newActivities(buildEngine(cfg), st, newBroker(), cfg)

	w := newWorker(temporalClient, cfg.TemporalTaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.ScanWorkflow)
	w.RegisterActivity(activities)

	log.Println("Dealflow scan worker started")
	if err := w.Run(workerInterrupt()); err != nil {
		return err
	}

	return nil
}
