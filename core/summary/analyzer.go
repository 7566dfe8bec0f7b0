package summary

import (
	"context"
	"fmt"

	"github.com/avamec/salas/core"
	"github.com/avamec/salas/core/monitor"
)

// Analyzer narrates digests with a primary Summarizer, falling back to the
// TemplateSummarizer when it is missing or fails.
type Analyzer struct {
	primary  Summarizer
	fallback TemplateSummarizer
	logger   core.Logger
}

// NewAnalyzer returns an Analyzer. primary may be nil.
func NewAnalyzer(primary Summarizer, logger core.Logger) *Analyzer {
	return &Analyzer{primary: primary, logger: logger}
}

// Analyze always returns an analysis; failures of the primary summarizer are logged and recorded in Analysis.Error.
func (a *Analyzer) Analyze(ctx context.Context, d Digest) Analysis {
	if a.primary != nil {
		res, err := a.primary.Summarize(ctx, d)
		if err == nil {
			if res.GeneratedAt.IsZero() {
				res.GeneratedAt = monitor.NowFunc()
			}
			res.Digest = d
			return res
		}
		a.logger.Warn(fmt.Sprintf("summary: falling back to template: %v", err), err)

		res, _ = a.fallback.Summarize(ctx, d)
		res.Fallback = true
		res.Error = err.Error()
		return res
	}

	res, _ := a.fallback.Summarize(ctx, d)
	res.Fallback = true
	return res
}
