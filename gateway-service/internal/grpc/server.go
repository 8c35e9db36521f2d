package grpc

import (
	"fmt"
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/weiawesome/wes-io-chat/gateway-service/internal/health"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

// StartGRPCServer serves the standard health service so orchestrators can
// probe the gateway's bus state.
func StartGRPCServer(addr string, state *health.State, logger zerolog.Logger) (*grpc.Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s := grpc.NewServer(
		grpc.UnaryInterceptor(log.UnaryServerInterceptor(logger)),
		grpc.StreamInterceptor(log.StreamServerInterceptor(logger)),
	)
	healthpb.RegisterHealthServer(s, state.GRPC())

	go func() {
		l := log.L()
		l.Info().Str("address", addr).Msg("gateway grpc server listening")
		if err := s.Serve(lis); err != nil {
			l.Error().Err(err).Msg("grpc server error")
		}
	}()

	return s, nil
}
