package coordsvc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/sandialabs/firewheel-core/pkg/config"
	"github.com/sandialabs/firewheel-core/pkg/vmstate"
)

func startTestServer(t *testing.T) (*grpc.ClientConn, func()) {
	t.Helper()
	store := NewStore(config.DefaultExperimentTiming())
	srv := NewServer(store, zerolog.Nop())

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		_ = srv.grpc.Serve(lis)
	}()

	conn, err := grpc.NewClient(lis.Addr().String(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		DialOption(),
	)
	require.NoError(t, err)

	return conn, func() {
		conn.Close()
		srv.Stop()
	}
}

func TestClientRoundTripsVMMappingOverGRPC(t *testing.T) {
	conn, cleanup := startTestServer(t)
	defer cleanup()

	client := NewClient(conn, "default", "vm-1", config.Retry{Base: time.Millisecond, Factor: 2, MaxAttempts: 3})
	ctx := context.Background()

	_, err := client.SetVMMapping(ctx, VMMapping{ServerUUID: "vm-1", ServerName: "node0", State: vmstate.Configuring})
	require.NoError(t, err)

	got, err := client.GetVMMappingByUUID(ctx, "vm-1")
	require.NoError(t, err)
	require.Equal(t, "node0", got.ServerName)

	require.NoError(t, client.ReportState(ctx, "node0", vmstate.Configured))

	got, err = client.GetVMMappingByUUID(ctx, "vm-1")
	require.NoError(t, err)
	require.Equal(t, vmstate.Configured, got.State)
}

func TestClientWaitForStartTimeUnblocksAfterInitialize(t *testing.T) {
	conn, cleanup := startTestServer(t)
	defer cleanup()

	client := NewClient(conn, "default", "vm-1", config.Retry{Base: time.Millisecond, Factor: 2, MaxAttempts: 3})
	ctx := context.Background()

	done := make(chan float64, 1)
	go func() {
		st, err := client.WaitForStartTime(ctx)
		require.NoError(t, err)
		done <- st
	}()

	time.Sleep(20 * time.Millisecond)
	_, err := client.InitializeExperimentStartTime(ctx)
	require.NoError(t, err)

	select {
	case st := <-done:
		require.Greater(t, st, 0.0)
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForStartTime did not unblock after InitializeExperimentStartTime")
	}
}
