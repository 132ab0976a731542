package observability

import (
	"context"
	"log/slog"

	"github.com/manifesto-ai/bridge/pkg/domain"
)

// LoggingHooks returns hooks that log every event at debug level,
// and rejected pulls, failed commands and rejected captures at warn level.
func LoggingHooks(logger *slog.Logger) domain.Hooks {
	return domain.Hooks{
		OnFlush: func(ctx context.Context, e *domain.FlushEvent) {
			logger.DebugContext(ctx, "flush",
				"data_paths", e.DataPaths,
				"state_paths", e.StatePaths,
				"dropped", e.Dropped,
				"batched", e.Batched,
				"duration", e.Duration,
			)
		},
		OnPull: func(ctx context.Context, e *domain.PullEvent) {
			if len(e.Rejected) > 0 {
				logger.WarnContext(ctx, "pull_rejected", "paths", e.Paths, "rejected", e.Rejected)
				return
			}
			logger.DebugContext(ctx, "pull", "paths", e.Paths)
		},
		OnCommand: func(ctx context.Context, e *domain.CommandEvent) {
			if e.Code != "" {
				logger.WarnContext(ctx, "command_failed", "kind", e.Kind, "code", e.Code, "duration", e.Duration)
				return
			}
			logger.DebugContext(ctx, "command", "kind", e.Kind, "duration", e.Duration)
		},
		OnCapture: func(ctx context.Context, e *domain.CaptureEvent) {
			if e.Failed {
				logger.WarnContext(ctx, "capture_rejected", "paths", e.Paths)
				return
			}
			logger.DebugContext(ctx, "capture", "paths", e.Paths)
		},
	}
}
