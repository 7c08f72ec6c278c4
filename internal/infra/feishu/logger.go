package feishu

import (
	"context"
	"fmt"
	"log/slog"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
)

// larkLogger forwards SDK logs to slog
type larkLogger struct {
	logger *slog.Logger
}

func newLarkLogger(logger *slog.Logger) larkcore.Logger {
	return &larkLogger{logger: logger}
}

func (l *larkLogger) Debug(ctx context.Context, args ...any) {
	l.log(ctx, slog.LevelDebug, args...)
}

func (l *larkLogger) Info(ctx context.Context, args ...any) {
	l.log(ctx, slog.LevelInfo, args...)
}

func (l *larkLogger) Warn(ctx context.Context, args ...any) {
	l.log(ctx, slog.LevelWarn, args...)
}

func (l *larkLogger) Error(ctx context.Context, args ...any) {
	l.log(ctx, slog.LevelError, args...)
}

func (l *larkLogger) log(ctx context.Context, level slog.Level, args ...any) {
	l.logger.Log(ctx, level, "sdk", slog.String("detail", fmt.Sprint(args...)))
}
