package observability

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// FlushTelemetry logs the store query totals served by this process and syncs the logger.
// Metrics are pull-based, so nothing else is buffered. Call after in-flight requests have drained.
func FlushTelemetry(ctx context.Context, logger *zap.Logger) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("flush telemetry: %w", err)
	}
	if logger == nil {
		return nil
	}
	totals, err := queryTotals()
	if err != nil {
		logger.Warn("gather query totals", zap.Error(err))
	} else {
		for query, byStatus := range totals {
			logger.Info("store query totals",
				zap.String("query", query),
				zap.Float64("success", byStatus["success"]),
				zap.Float64("error", byStatus["error"]))
		}
	}
	if err := logger.Sync(); err != nil {
		return fmt.Errorf("flush logs: %w", err)
	}
	return nil
}

// queryTotals reads dbQueriesTotal from the registry, keyed by query then status.
func queryTotals() (map[string]map[string]float64, error) {
	families, err := registry.Gather()
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]float64)
	for _, mf := range families {
		if mf.GetName() != "dbQueriesTotal" {
			continue
		}
		for _, m := range mf.GetMetric() {
			var query, status string
			for _, lp := range m.GetLabel() {
				switch lp.GetName() {
				case "query":
					query = lp.GetValue()
				case "status":
					status = lp.GetValue()
				}
			}
			if out[query] == nil {
				out[query] = make(map[string]float64)
			}
			out[query][status] += m.GetCounter().GetValue()
		}
	}
	return out, nil
}
