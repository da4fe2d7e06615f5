package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/autopeer-io/roverhub/pkg/log"
)

// UnaryServerLoggingInterceptor logs failed calls at info and the rest at debug.
func UnaryServerLoggingInterceptor(logger log.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		kv := []any{"method", info.FullMethod, "code", status.Code(err).String(), "latency", time.Since(start)}
		if err != nil {
			logger.Info("gRPC call failed", append(kv, "error", err.Error())...)
		} else {
			logger.Debug("gRPC call", kv...)
		}
		return resp, err
	}
}
