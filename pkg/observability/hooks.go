package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/iaqflow/pkg/domain"
)

// LoggingHooks logs alert and cycle events at Info, data problems at Debug
// and the end of every run.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnEvent: func(ctx context.Context, e *domain.Event) {
			level := slog.LevelInfo
			switch e.Kind {
			case domain.EventDataQuality, domain.EventChannelStale, domain.EventChannelResumed:
				level = slog.LevelDebug
			}
			logger.Log(ctx, level, string(e.Kind),
				"seq", e.Seq,
				"timestamp", e.Timestamp,
				"channel", e.Channel,
				"from", e.From,
				"to", e.To,
				"detail", e.Detail,
			)
		},
		OnRunComplete: func(ctx context.Context, e *domain.RunEvent) {
			if e.Err != nil {
				logger.Error("run failed", "run_id", e.RunID, "error", e.Err)
				return
			}
			logger.Info("run finished",
				"run_id", e.RunID,
				"frames", e.Frames,
				"events", e.Events,
				"duration", e.Duration,
			)
		},
	}
}

// Combine returns hooks that call every given hook in order.
func Combine(hooks ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	var (
		onEvent []func(context.Context, *domain.Event)
		onFrame []func(context.Context, *domain.FrameEvent)
		onRun   []func(context.Context, *domain.RunEvent)
	)
	for _, h := range hooks {
		if h.OnEvent != nil {
			onEvent = append(onEvent, h.OnEvent)
		}
		if h.OnFrame != nil {
			onFrame = append(onFrame, h.OnFrame)
		}
		if h.OnRunComplete != nil {
			onRun = append(onRun, h.OnRunComplete)
		}
	}
	if len(onEvent) > 0 {
		out.OnEvent = func(ctx context.Context, e *domain.Event) {
			for _, fn := range onEvent {
				fn(ctx, e)
			}
		}
	}
	if len(onFrame) > 0 {
		out.OnFrame = func(ctx context.Context, e *domain.FrameEvent) {
			for _, fn := range onFrame {
				fn(ctx, e)
			}
		}
	}
	if len(onRun) > 0 {
		out.OnRunComplete = func(ctx context.Context, e *domain.RunEvent) {
			for _, fn := range onRun {
				fn(ctx, e)
			}
		}
	}
	return out
}
