// Package log exposes the shared context-aware logger helpers.
package log

import (
	"context"

	"github.com/fanstack/fanstack/internal/observability/logger"
	"go.uber.org/zap"
)

// L returns a context-aware logger with correlation metadata.
func L(ctx context.Context) *zap.Logger {
	return logger.FromContext(ctx)
}
