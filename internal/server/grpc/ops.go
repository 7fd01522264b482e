package grpcserver

import (
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/and161185/jdue/internal/metrics"
)

// RemindersService is the health service name that tracks the reminder scheduler.
const RemindersService = "jdue.reminders"

// Ops serves grpc.health.v1 and, in dev mode, server reflection.
type Ops struct {
	srv    *grpc.Server
	health *health.Server
	log    *zap.Logger
}

// NewOps builds the ops server. Extra options (e.g. TLS credentials) are appended.
func NewOps(log *zap.Logger, m *metrics.Metrics, dev bool, opts ...grpc.ServerOption) *Ops {
	opts = append(opts, grpc.ChainUnaryInterceptor(
		RecoverUnary(log),
		LoggingUnary(log, m),
	))
	s := grpc.NewServer(opts...)

	hs := health.NewServer()
	hs.SetServingStatus(RemindersService, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	if dev {
		reflection.Register(s)
	}
	return &Ops{srv: s, health: hs, log: log}
}

// SetReminders reports the scheduler state; it matches reminder.Scheduler.OnState.
func (o *Ops) SetReminders(running bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if running {
		st = healthpb.HealthCheckResponse_SERVING
	}
	o.health.SetServingStatus(RemindersService, st)
}

// Serve blocks serving lis.
func (o *Ops) Serve(lis net.Listener) error {
	return o.srv.Serve(lis)
}

// Stop marks everything NOT_SERVING and stops gracefully, forcing after timeout.
func (o *Ops) Stop(timeout time.Duration) {
	o.health.Shutdown()
	done := make(chan struct{})
	go func() {
		o.srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		o.log.Warn("ops server did not stop in time, forcing")
		o.srv.Stop()
	}
}
