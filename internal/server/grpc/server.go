// Package grpc serves BiometricService over gRPC.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/biokeeper/internal/logging"
	"github.com/dmitrijs2005/biokeeper/internal/server/services"
	"google.golang.org/grpc"
)

type GRPCServer struct {
	address     string
	svc         services.Bundle
	logger      logging.Logger
	jwtSecret   []byte
	authEnabled bool
}

var _ BiometricServer = (*GRPCServer)(nil)

func NewGRPCServer(a string, l logging.Logger, svc services.Bundle, secretKey string, authEnabled bool) *GRPCServer {
	return &GRPCServer{
		address:     a,
		logger:      l.With("module", "grpc_server"),
		svc:         svc,
		jwtSecret:   []byte(secretKey),
		authEnabled: authEnabled,
	}
}

// newServer builds a grpc.Server with the service and interceptors
// registered.
func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.recoveryInterceptor, s.accessTokenInterceptor))
	RegisterBiometricServer(srv, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled, then stops
// gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.logger.Info(context.Background(), "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}
	<-stopped
	return nil
}
