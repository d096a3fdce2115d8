// Command analyze runs the deviations-and-bias pipeline over an OTEL
// trace payload and prints the resulting findings.
//
// Usage:
//
//	go run cmd/analyze/main.go --input=traces.json --purpose="approves consumer loans"
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"deviations-analyzer/internal/config"
	deviationsSvc "deviations-analyzer/internal/core/services/deviations"
	"deviations-analyzer/pkg/errors"
	"deviations-analyzer/pkg/logging"
	"deviations-analyzer/pkg/utils"
	"deviations-analyzer/pkg/validator"
)

func main() {
	var (
		inputPath = flag.String("input", "", "path to an OTEL trace payload (compact or OTLP JSON)")
		purpose   = flag.String("purpose", "", "free-text description of the analyzed agent's purpose")
	)
	flag.Parse()

	if *inputPath == "" {
		log.Fatal("--input is required")
	}

	// AgentPurpose is optional (§3): an unset --purpose skips validation
	// entirely rather than tripping Required on an empty string.
	if *purpose != "" {
		if err := validator.ValidateAgentPurpose(*purpose); err != nil {
			log.Fatalf("invalid --purpose: %v", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := logging.NewLoggerWithFormat(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	slog.SetDefault(logger)

	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info("metrics server listening", "addr", cfg.Metrics.Addr)
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	payload, err := os.ReadFile(*inputPath)
	if err != nil {
		log.Fatalf("failed to read input file: %v", err)
	}

	result, err := deviationsSvc.Analyze(payload, *purpose, cfg.Analyzer, logger)
	if err != nil {
		if appErr, ok := errors.IsAppError(err); ok {
			log.Fatalf("analysis aborted (%s): %s", appErr.Type, appErr.Message)
		}
		log.Fatalf("analysis failed: %v", err)
	}

	out, err := utils.JSONMarshal(result)
	if err != nil {
		log.Fatalf("failed to marshal result: %v", err)
	}
	fmt.Println(string(out))

	granularity := "none"
	if result.Run.GranularityUsed != nil {
		granularity = string(*result.Run.GranularityUsed)
	}
	fmt.Fprintf(os.Stderr, "%s findings across %s metrics and %s parameters (granularity: %s, %s skipped)\n",
		humanize.Comma(int64(len(result.Findings))),
		humanize.Comma(int64(len(result.Run.MetricsConsidered))),
		humanize.Comma(int64(len(result.Run.ParametersConsidered))),
		granularity,
		humanize.Comma(int64(len(result.Run.Skipped))),
	)
}
