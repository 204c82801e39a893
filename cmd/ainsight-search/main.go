// ainsight-search runs the first pipeline stage: windowed GitHub repository
// searches. Worker 1 also generates the backfill job set; additional workers
// just drain the queue.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/orange-taco/ainsight-backend/internal/app"
	"github.com/orange-taco/ainsight-backend/internal/common"
	"github.com/orange-taco/ainsight-backend/internal/models"
	"github.com/orange-taco/ainsight-backend/internal/services/jobengine"
	"github.com/orange-taco/ainsight-backend/internal/services/search"
)

const stage = "search"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ainsight-search: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	a, err := app.New(stage, "")
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gh, err := a.GitHubClient()
	if err != nil {
		return err
	}

	svc := search.NewService(gh, a.Storage.RepositoryStore(), a.Storage.SearchJobs(), a.Config, a.Logger)

	// Only worker 1 seeds the backfill; everyone drains.
	var generate jobengine.GenerateFunc
	if a.Config.Pipeline.WorkerID == 1 {
		generate = svc.Generate
	}

	orch := jobengine.NewOrchestrator(stage, a.Storage, a.Storage.SearchJobs(), generate, a.Logger)
	if err := orch.Bootstrap(ctx); err != nil {
		return err
	}
	if interval := a.Config.Pipeline.GetMonitorInterval(); interval > 0 {
		go orch.Monitor(ctx, interval)
	}

	worker := jobengine.NewWorker[*models.SearchJob](a.Storage.SearchJobs(), svc, a.Logger, jobengine.Config{
		Stage:        stage,
		WorkerID:     a.Config.Pipeline.WorkerID,
		PollInterval: a.Config.Pipeline.GetPollInterval(),
		AutoExit:     a.Config.Pipeline.AutoExit,
		StartupGrace: a.Config.Pipeline.StartupGrace,
	})
	worker.Run(ctx)

	common.PrintShutdownBanner(stage, a.Logger)
	return nil
}
