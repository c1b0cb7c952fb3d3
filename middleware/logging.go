package middleware

import (
	"context"
	"time"

	"doordb/message"

	"go.uber.org/zap"
)

// Logging logs every query with its duration; failures are logged at Warn.
func Logging(logger *zap.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, q message.Query) message.Envelope {
			start := time.Now()
			env := next(ctx, q)
			fields := []zap.Field{
				zap.String("query", message.VariantName(q)),
				zap.Duration("duration", time.Since(start)),
			}
			if env.Err != nil {
				logger.Warn("query failed", append(fields, zap.String("error", env.Err.Message))...)
				return env
			}
			logger.Debug("query served", fields...)
			return env
		}
	}
}
