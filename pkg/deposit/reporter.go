package deposit

import (
	"context"

	"go.uber.org/zap"

	"github.com/tradepoint/deposit-gateway/internal/metrics"
	apperrors "github.com/tradepoint/deposit-gateway/pkg/app/errors"
)

// LogReporter is the default exception-reporting boundary. It writes the
// error and the offending payload to the structured log so the original
// message survives for postmortem analysis.
type LogReporter struct {
	logger *zap.Logger
}

// NewLogReporter creates a reporter backed by the given logger.
func NewLogReporter(logger *zap.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

// Report implements Reporter.
func (r *LogReporter) Report(_ context.Context, err error, payload []byte) {
	category := apperrors.CategoryOf(err)
	r.logger.Error("deposit processing exception",
		zap.Error(err),
		zap.String("category", category.String()),
		zap.ByteString("payload", payload))
	metrics.ErrorsTotal.WithLabelValues("deposit_processor", category.String()).Inc()
}
