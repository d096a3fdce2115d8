package deviations

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"deviations-analyzer/internal/config"
	"deviations-analyzer/internal/core/domain/deviations"
	"deviations-analyzer/pkg/errors"
)

// Analyze runs the full deviations-and-bias pipeline over a raw OTEL
// payload: normalize, extract candidate metrics/parameters, evaluate the
// temporal and bias detectors, synthesize narratives, and rank findings.
// Temporal and bias evaluation for distinct metrics run concurrently, but
// results are collected into per-metric slots and concatenated in input
// order before the final sort, so wall-clock scheduling never changes the
// output (§5, §8 purity/determinism properties).
func Analyze(payload []byte, purpose string, cfg config.AnalyzerConfig, logger *slog.Logger) (*deviations.AnalysisResult, error) {
	if len(payload) == 0 {
		return nil, errors.NewEmptyInputError("payload is empty")
	}

	records, err := Normalize(payload)
	if err != nil {
		switch err {
		case deviations.ErrMalformedInput:
			return nil, errors.NewMalformedInputError("could not classify payload shape: " + err.Error())
		case deviations.ErrEmptyInput:
			return nil, errors.NewEmptyInputError("no usable records after normalization")
		default:
			return nil, errors.NewInternalError("normalization failed", err)
		}
	}

	if len(purpose) > deviations.MaxPurposeBytes {
		purpose = purpose[:deviations.MaxPurposeBytes]
	}

	extraction := Extract(records, purpose, cfg)
	logger.Info("extracted candidates",
		"metrics", len(extraction.Metrics),
		"parameters", len(extraction.Parameters),
		"protected", len(extraction.Protected),
	)

	granularity, buckets := ComputeBuckets(records)

	temporalResults := make([][]deviations.Finding, len(extraction.Metrics))
	temporalSkips := make([][]deviations.SkippedEntity, len(extraction.Metrics))
	biasResults := make([][]deviations.Finding, len(extraction.Metrics))
	biasSkips := make([][]deviations.SkippedEntity, len(extraction.Metrics))

	g, _ := errgroup.WithContext(context.Background())

	if granularity != nil {
		for i, metric := range extraction.Metrics {
			i, metric := i, metric
			g.Go(func() error {
				findings, skipped := EvaluateTemporal(records, buckets, metric, cfg)
				temporalResults[i] = findings
				temporalSkips[i] = skipped
				return nil
			})
		}
	}

	for i, metric := range extraction.Metrics {
		i, metric := i, metric
		g.Go(func() error {
			findings, skipped := EvaluateBias(records, []deviations.MetricDescriptor{metric}, extraction.Parameters, cfg)
			biasResults[i] = findings
			biasSkips[i] = skipped
			return nil
		})
	}

	_ = g.Wait()

	var findings []deviations.Finding
	var skipped []deviations.SkippedEntity
	skipped = append(skipped, extraction.Skipped...)

	for i := range extraction.Metrics {
		findings = append(findings, temporalResults[i]...)
		skipped = append(skipped, temporalSkips[i]...)
		findings = append(findings, biasResults[i]...)
		skipped = append(skipped, biasSkips[i]...)
	}

	ranked := Synthesize(findings, purpose)

	metricNames := make([]string, len(extraction.Metrics))
	for i, m := range extraction.Metrics {
		metricNames[i] = m.Name
	}
	paramNames := make([]string, len(extraction.Parameters))
	for i, p := range extraction.Parameters {
		paramNames[i] = p.Name
	}

	return &deviations.AnalysisResult{
		Findings: ranked,
		Run: deviations.RunEnvelope{
			GranularityUsed:      granularity,
			MetricsConsidered:    metricNames,
			ParametersConsidered: paramNames,
			ProtectedDetected:    extraction.Protected,
			Skipped:              skipped,
		},
	}, nil
}
