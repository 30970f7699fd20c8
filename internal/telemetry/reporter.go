package telemetry

import (
	"context"

	"go.uber.org/zap"
)

// Reporter submits session records, swallowing every failure. A
// session's exit status must never depend on whether the collector was
// reachable.
type Reporter struct {
	client  *Client
	enabled bool
	logger  *zap.Logger
}

// NewReporter wraps a client with the enabled switch.
func NewReporter(client *Client, enabled bool, logger *zap.Logger) *Reporter {
	return &Reporter{client: client, enabled: enabled, logger: logger}
}

// Report encodes and submits the record. Attempted exactly once, no
// retries; encode and transport failures are logged and absorbed.
func (r *Reporter) Report(ctx context.Context, record SessionRecord) {
	if !r.enabled {
		r.logger.Debug("telemetry disabled, skipping report",
			zap.String("session_id", record.SessionID))
		return
	}

	envelope, err := Encode(record)
	if err != nil {
		r.logger.Warn("telemetry record not encodable",
			zap.String("session_id", record.SessionID),
			zap.Error(err))
		return
	}

	if err := r.client.Post(ctx, envelope); err != nil {
		r.logger.Warn("telemetry report not delivered",
			zap.String("session_id", record.SessionID),
			zap.Error(err))
		return
	}

	r.logger.Info("telemetry reported",
		zap.String("session_id", record.SessionID),
		zap.String("status", record.FinalStatus),
		zap.Int("trials", len(record.Trials)))
}

// ReportFailure submits a failure diagnostic bundle as plain JSON,
// without the compressed envelope. The enabled switch does not apply;
// explicit uploads always post. Failures are logged and absorbed.
func (r *Reporter) ReportFailure(ctx context.Context, report any) {
	if err := r.client.Post(ctx, report); err != nil {
		r.logger.Warn("failure report not delivered", zap.Error(err))
		return
	}
	r.logger.Info("failure report delivered")
}
