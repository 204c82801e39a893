// ainsight-classify runs the third pipeline stage: LLM classification of
// repositories whose README has been fetched.
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
	"github.com/orange-taco/ainsight-backend/internal/services/classify"
	"github.com/orange-taco/ainsight-backend/internal/services/jobengine"
)

const stage = "classify"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ainsight-classify: %v\n", err)
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

	llm, err := a.GeminiClient(ctx)
	if err != nil {
		return err
	}

	svc := classify.NewService(llm, a.Storage.RepositoryStore(), a.Storage.ClassifyJobs(), a.Config, a.Logger)

	orch := jobengine.NewOrchestrator(stage, a.Storage, a.Storage.ClassifyJobs(), svc.Generate, a.Logger)
	if err := orch.Bootstrap(ctx); err != nil {
		return err
	}
	if interval := a.Config.Pipeline.GetMonitorInterval(); interval > 0 {
		go orch.Monitor(ctx, interval)
	}

	worker := jobengine.NewWorker[*models.RepoJob](a.Storage.ClassifyJobs(), svc, a.Logger, jobengine.Config{
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
