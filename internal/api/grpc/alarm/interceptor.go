package alarm

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/oshokin/wake-alarm/internal/logger"
)

// ActorMetadataKey carries "user@host" of the caller for the audit log.
const ActorMetadataKey = "x-wakealarm-actor"

// ActorFromContext returns the caller announced in incoming metadata.
func ActorFromContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}

	values := md.Get(ActorMetadataKey)
	if len(values) == 0 {
		return ""
	}

	return values[0]
}

// LoggingInterceptor logs every unary call with its caller, duration and status.
func LoggingInterceptor(base context.Context) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx = logger.ToContext(ctx, logger.FromContext(logger.WithName(base, "grpc")))
		ctx = logger.WithFields(ctx,
			"method", info.FullMethod,
			"actor", ActorFromContext(ctx))

		started := time.Now()
		resp, err := handler(ctx, req)

		if err != nil {
			logger.WarnKV(ctx, "Call failed",
				"code", status.Code(err).String(),
				"duration", time.Since(started),
				"error", err)

			return resp, err
		}

		logger.DebugKV(ctx, "Call served", "duration", time.Since(started))

		return resp, nil
	}
}
