package coordsvc

import (
	"fmt"
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"github.com/sandialabs/firewheel-core/pkg/config"
)

// Server wraps a *Store with a grpc.Server, the same "store/manager plus
// grpc.Server" shape as cuemby-warren/pkg/api/server.go's Server —
// without that teacher's mTLS cert loading, since spec.md's Non-goals
// exclude a hardened cluster security story for the Coordination
// Service.
type Server struct {
	store *Store
	grpc  *grpc.Server
	log   zerolog.Logger
}

// NewServer constructs a Server over store.
func NewServer(store *Store, log zerolog.Logger) *Server {
	grpcServer := grpc.NewServer()
	grpcServer.RegisterService(&serviceDesc, store)
	return &Server{store: store, grpc: grpcServer, log: log}
}

// Start listens on addr and serves until the listener errors or Stop
// is called.
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("coordsvc: listen %s: %w", addr, err)
	}
	s.log.Info().Str("addr", addr).Msg("coordination service listening")
	return s.grpc.Serve(lis)
}

// Stop gracefully drains in-flight RPCs and stops serving.
func (s *Server) Stop() {
	s.grpc.GracefulStop()
}

// DialOption is the default call option every coordsvc client must use
// to negotiate the JSON codec registered in codec.go.
func DialOption() grpc.DialOption {
	return grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName))
}

// Addr formats a dial target from a config.Coordination.
func Addr(c config.Coordination) string {
	return fmt.Sprintf("%s:%d", c.Hostname, c.Port)
}
