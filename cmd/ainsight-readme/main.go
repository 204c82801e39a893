// ainsight-readme runs the second pipeline stage: fetching READMEs for the
// repositories search discovered. The README queue is partitioned by
// repo_id so several workers, each on its own GitHub token, never contend.
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
	"github.com/orange-taco/ainsight-backend/internal/services/readme"
)

const stage = "readme"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ainsight-readme: %v\n", err)
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

	svc := readme.NewService(gh, a.Storage.RepositoryStore(), a.Storage.ReadmeJobs(), a.Config, a.Logger)

	// Every process generates; the unique repo_id index makes concurrent
	// generation a race only for who inserts first.
	orch := jobengine.NewOrchestrator(stage, a.Storage, a.Storage.ReadmeJobs(), svc.Generate, a.Logger)
	if err := orch.Bootstrap(ctx); err != nil {
		return err
	}
	if interval := a.Config.Pipeline.GetMonitorInterval(); interval > 0 {
		go orch.Monitor(ctx, interval)
	}

	worker := jobengine.NewWorker[*models.RepoJob](a.Storage.ReadmeJobs(), svc, a.Logger, jobengine.Config{
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
