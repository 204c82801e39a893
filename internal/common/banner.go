package common

import (
	"fmt"
	"os"
	"strings"

	"github.com/ternarybob/banner"
)

// PrintBanner displays the stage startup banner to stderr.
func PrintBanner(config *Config, stage string, logger *Logger) {
	version := GetVersion()
	build := GetBuild()
	commit := GetGitCommit()
	worker := fmt.Sprintf("%d of %d", config.Pipeline.WorkerID, config.Pipeline.TotalWorkers)
	database := fmt.Sprintf("%s/%s", config.Storage.Namespace, config.Storage.Database)

	lineColor := banner.ColorCyan
	textColor := banner.ColorBold + banner.ColorWhite
	width := 70
	hr := lineColor + strings.Repeat("═", width) + banner.ColorReset

	art := []string{
		`    _     ___  _   _  ____   ___   ____  _   _  _____ `,
		`   / \   |_ _|| \ | |/ ___| |_ _| / ___|| | | ||_   _|`,
		`  / _ \   | | |  \| |\___ \  | | | |  _ | |_| |  | |  `,
		` / ___ \  | | | |\  | ___) | | | | |_| ||  _  |  | |  `,
		`/_/   \_\|___||_| \_||____/ |___| \____||_| |_|  |_|  `,
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "%s\n", hr)
	fmt.Fprintf(os.Stderr, "\n")
	for _, line := range art {
		fmt.Fprintf(os.Stderr, "%s%s%s\n", textColor, line, banner.ColorReset)
	}
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "%s  GitHub Repository Enrichment Pipeline%s\n", textColor, banner.ColorReset)
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "%s\n", hr)
	fmt.Fprintf(os.Stderr, "\n")

	kvPad := 16
	kvLines := [][2]string{
		{"Version", version},
		{"Build", build},
		{"Commit", commit},
		{"Environment", config.Environment},
		{"Stage", stage},
		{"Worker", worker},
		{"Storage", config.Storage.Address},
		{"Database", database},
	}
	for _, kv := range kvLines {
		fmt.Fprintf(os.Stderr, "%s  %-*s %s%s\n", textColor, kvPad, kv[0], kv[1], banner.ColorReset)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "%s\n", hr)
	fmt.Fprintf(os.Stderr, "\n")

	logger.Info().
		Str("version", version).
		Str("build", build).
		Str("commit", commit).
		Str("environment", config.Environment).
		Str("stage", stage).
		Int("worker_id", config.Pipeline.WorkerID).
		Int("total_workers", config.Pipeline.TotalWorkers).
		Str("storage_address", config.Storage.Address).
		Msg("Stage started")
}

// PrintShutdownBanner displays the stage shutdown banner to stderr.
func PrintShutdownBanner(stage string, logger *Logger) {
	lineColor := banner.ColorCyan
	textColor := banner.ColorBold + banner.ColorWhite
	width := 42
	hr := lineColor + strings.Repeat("═", width) + banner.ColorReset

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "%s\n", hr)
	fmt.Fprintf(os.Stderr, "%s  AINSIGHT %s - SHUTTING DOWN%s\n", textColor, strings.ToUpper(stage), banner.ColorReset)
	fmt.Fprintf(os.Stderr, "%s\n", hr)
	fmt.Fprintf(os.Stderr, "\n")

	logger.Info().Str("stage", stage).Msg("Stage shutting down")
}
