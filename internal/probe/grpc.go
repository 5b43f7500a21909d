package probe

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"breakwater/internal/config"
	"breakwater/pkg/resilience"
)

// grpcCheck probes a gRPC target through the standard health protocol
// (grpc.health.v1.Health/Check). Every probe dials fresh, so name
// resolution and the connection handshake are exercised on the same
// path a new client of the dependency would take.
func (p *Prober) grpcCheck(ctx context.Context, target config.ProbeTarget) error {
	conn, err := grpc.NewClient(target.URL,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUserAgent(userAgent),
	)
	if err != nil {
		return &resilience.ValidationError{Field: "url", Message: err.Error()}
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			p.logger.Debug("closing probe connection",
				slog.String("target", target.Name),
				slog.Any("error", closeErr))
		}
	}()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{
		Service: target.GRPCService,
	})
	if err != nil {
		// The status error stays in the chain; the retry classifier
		// reads its code.
		return fmt.Errorf("health check: %w", err)
	}

	if got := resp.GetStatus(); got != healthpb.HealthCheckResponse_SERVING {
		return &resilience.ExternalServiceError{
			Service:   target.Name,
			Transient: true,
			Err:       fmt.Errorf("health status %s", got),
		}
	}
	return nil
}
