package grpc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	mw "github.com/autopeer-io/roverhub/internal/pkg/middleware/grpc"
	"github.com/autopeer-io/roverhub/pkg/options"
)

type pinger struct{ err error }

func (p *pinger) Ping(context.Context) error { return p.err }

func status(t *testing.T, s *Server, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := s.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealthFollowsStore(t *testing.T) {
	p := &pinger{}
	s := NewServer(options.NewGrpcOptions(), p)

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, s, ""))

	s.check(context.Background())
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, s, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, s, ServiceName))

	p.err = errors.New("connection refused")
	s.check(context.Background())
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, s, ServiceName))
}

func TestTimeoutInterceptor(t *testing.T) {
	interceptor := mw.UnaryServerTimeoutInterceptor(time.Minute)
	info := &grpc.UnaryServerInfo{FullMethod: "/test/Method"}

	_, err := interceptor(context.Background(), nil, info, func(ctx context.Context, _ any) (any, error) {
		deadline, ok := ctx.Deadline()
		assert.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, time.Second)
		return nil, nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()
	_, err = interceptor(ctx, nil, info, func(inner context.Context, _ any) (any, error) {
		deadline, _ := inner.Deadline()
		assert.WithinDuration(t, time.Now().Add(time.Hour), deadline, time.Second)
		return nil, nil
	})
	require.NoError(t, err)
}
